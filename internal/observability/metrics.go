// Package observability exposes Prometheus metrics for the bot's
// message handling, model calls, and tool executions.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeDone          = "done"
	OutcomeDegraded      = "degraded"
	OutcomeProviderError = "provider_error"
	OutcomeStoreError    = "store_error"
)

// Metrics holds the bot's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so tests can pass nil.
type Metrics struct {
	turns         *prometheus.CounterVec
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	fallbacks     prometheus.Counter
	registry      *prometheus.Registry
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brrr_turns_total",
			Help: "Conversation turns processed, by outcome.",
		}, []string{"outcome"}),
		modelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brrr_model_calls_total",
			Help: "Model provider calls, by model and status.",
		}, []string{"model", "status"}),
		modelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brrr_model_call_duration_seconds",
			Help:    "Model provider call latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"model"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brrr_tool_executions_total",
			Help: "Tool executions, by tool and status.",
		}, []string{"tool", "status"}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "brrr_fallbacks_total",
			Help: "Length-triggered fallback model invocations.",
		}),
	}
}

// ObserveTurn records a completed turn.
func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// ObserveModelCall records one provider call.
func (m *Metrics) ObserveModelCall(model string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelCalls.WithLabelValues(model, status).Inc()
	m.modelDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveToolCall records one tool execution.
func (m *Metrics) ObserveToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	status := "ok"
	if isError {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// ObserveFallback records a fallback model invocation.
func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// Gatherer returns the metric registry, for exposition or inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
