package engine

import (
	"sync/atomic"
	"time"
)

// Fence latches the moment the bot became ready. Messages that arrived
// before that moment are ignored so a reconnect burst of gateway
// backlog never triggers replies.
//
// MarkReady publishes through an atomic pointer, so readers on other
// goroutines always see either nil or a fully written timestamp.
type Fence struct {
	readyAt atomic.Pointer[time.Time]
}

// NewFence returns an unlatched fence.
func NewFence() *Fence {
	return &Fence{}
}

// MarkReady latches the readiness timestamp. Only the first call has
// any effect; later ready events (reconnects) keep the original cutoff.
func (f *Fence) MarkReady(t time.Time) {
	f.readyAt.CompareAndSwap(nil, &t)
}

// Ready reports whether readiness has been latched.
func (f *Fence) Ready() bool {
	return f.readyAt.Load() != nil
}

// Admits reports whether a message timestamped at t should be
// processed. Nothing is admitted before the fence latches.
func (f *Fence) Admits(t time.Time) bool {
	ready := f.readyAt.Load()
	if ready == nil {
		return false
	}
	return !t.Before(*ready)
}
