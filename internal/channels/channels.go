// Package channels defines the contract between the conversation
// engine and messaging platform adapters, plus shared helpers for
// outbound delivery.
package channels

import (
	"context"
	"time"

	"github.com/brrr-bot/brrr/pkg/models"
)

// Handler is the engine-side contract an adapter drives: a one-time
// readiness signal, then one call per inbound message. An empty reply
// means nothing should be sent.
type Handler interface {
	Ready(selfID string, at time.Time)
	HandleMessage(ctx context.Context, msg *models.InboundMessage) (string, error)
}

// Adapter connects a messaging platform to a Handler.
type Adapter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
