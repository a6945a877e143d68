package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SerialClient admits exactly one model call at a time, process-wide.
// Callers queue on a single mutex and are served in arrival order; the
// per-call timeout starts only when the call is admitted, so queue wait
// never counts against a caller's deadline.
//
// Any failure from the underlying client, including timeouts and
// malformed responses, is reported as ErrUnavailable. The serializer
// never retries; turn-level recovery is the engine's job.
type SerialClient struct {
	inner   Client
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex
}

// NewSerialClient wraps inner with global single-flight admission and a
// per-call timeout. A non-positive timeout disables the deadline.
func NewSerialClient(inner Client, timeout time.Duration, logger *slog.Logger) *SerialClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SerialClient{
		inner:   inner,
		timeout: timeout,
		logger:  logger.With("component", "provider"),
	}
}

// Name implements Client.
func (s *SerialClient) Name() string {
	return s.inner.Name()
}

// Invoke implements Client. It blocks until all earlier calls have
// completed, then runs the wrapped call under the configured timeout.
func (s *SerialClient) Invoke(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	waitStart := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	queueWait := time.Since(waitStart)
	if queueWait > time.Second {
		s.logger.Debug("model call queued",
			"model", req.Model,
			"queue_wait", queueWait)
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.inner.Invoke(callCtx, req)
	if err != nil {
		s.logger.Warn("model call failed",
			"model", req.Model,
			"duration", time.Since(start),
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("model call completed",
		"model", req.Model,
		"duration", time.Since(start),
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return resp, nil
}
