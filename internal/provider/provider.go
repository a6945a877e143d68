// Package provider defines the chat-model client contract and the
// serializing wrapper that guards all outbound model calls.
package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/brrr-bot/brrr/pkg/models"
)

// ErrUnavailable indicates the model provider could not be reached or
// returned an unusable response. It is terminal for the current turn;
// callers do not retry.
var ErrUnavailable = errors.New("provider: unavailable")

// FinishReason values surfaced by the provider.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
)

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ChatRequest is one outbound completion request.
type ChatRequest struct {
	Model     string
	System    string
	Messages  []models.ChatMessage
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is the provider's reply: either final text or an ordered
// list of tool calls (both may be present; tool calls take precedence
// in the turn loop).
type ChatResponse struct {
	Text         string
	ToolCalls    []models.ToolCall
	FinishReason string

	PromptTokens     int
	CompletionTokens int
}

// Client is a chat-model backend.
//
// Implementations are not required to be safe for concurrent use; the
// SerialClient wrapper provides that guarantee for the process.
type Client interface {
	// Invoke sends one completion request and returns the full response.
	Invoke(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name identifies the backend for logging.
	Name() string
}
