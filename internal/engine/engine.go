// Package engine implements the conversational core: admission
// fencing, trigger filtering, per-channel serialization, and the
// tool-calling loop that drives each turn to a final reply.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brrr-bot/brrr/internal/observability"
	"github.com/brrr-bot/brrr/internal/provider"
	"github.com/brrr-bot/brrr/internal/store"
	"github.com/brrr-bot/brrr/internal/tools"
	"github.com/brrr-bot/brrr/pkg/models"
)

// User-facing notices for degraded turn outcomes.
const (
	noticeProviderDown = "brrr... something went wrong! Try again? \U0001F527"
	noticeTooManySteps = "I tried to complete your request but it required too many steps. Please try breaking it into smaller requests."
	noticeBlank        = "brrr... I didn't quite get that. Try asking in another way?"
)

// turnState is the explicit state of the tool-calling loop.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateExecutingTools
	stateDone
)

// Options carries the engine's configuration values.
type Options struct {
	PrimaryModel      string
	FallbackModel     string
	MaxTokens         int
	FallbackMaxTokens int
	MaxToolRounds     int
	WakePhrase        string
	HistoryLimit      int
}

// Engine turns admissible inbound messages into replies. It owns the
// startup fence, the trigger filter, and the per-channel locks; the
// model client it is given must already be serialized.
type Engine struct {
	client  provider.Client
	store   *store.Store
	locks   *ChannelLocks
	fence   *Fence
	metrics *observability.Metrics
	logger  *slog.Logger
	opts    Options

	readyOnce sync.Once
	selfID    string
	trigger   *Trigger
}

// New creates an engine. It accepts no messages until Ready is called.
func New(client provider.Client, st *store.Store, metrics *observability.Metrics, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:  client,
		store:   st,
		locks:   NewChannelLocks(),
		fence:   NewFence(),
		metrics: metrics,
		logger:  logger.With("component", "engine"),
		opts:    opts,
	}
}

// Ready latches the readiness fence and records the bot's own identity.
// Only the first call has any effect; the trigger filter and self ID
// are published before the fence latches, so any goroutine that sees an
// admissible message also sees them.
func (e *Engine) Ready(selfID string, at time.Time) {
	e.readyOnce.Do(func() {
		e.selfID = selfID
		e.trigger = NewTrigger(selfID, e.opts.WakePhrase)
		e.fence.MarkReady(at)
		e.logger.Info("engine ready", "self_id", selfID, "ready_at", at)
	})
}

// HandleMessage processes one inbound message and returns the reply
// text. An empty reply with a nil error means the message was dropped
// or not addressed to the bot. The turn runs under the channel's lock;
// degraded outcomes still produce a reply rather than an error.
func (e *Engine) HandleMessage(ctx context.Context, msg *models.InboundMessage) (string, error) {
	if !e.fence.Admits(msg.Timestamp) {
		e.logger.Debug("message rejected by startup fence", "message_id", msg.ID)
		return "", nil
	}
	if !e.trigger.ShouldRespond(msg) {
		return "", nil
	}

	release := e.locks.Acquire(msg.ChannelID)
	defer release()

	return e.runTurn(ctx, msg)
}

func (e *Engine) runTurn(ctx context.Context, msg *models.InboundMessage) (string, error) {
	logger := e.logger.With(
		"turn_id", uuid.NewString(),
		"channel_id", msg.ChannelID,
		"user_id", msg.AuthorID)

	memories, err := e.store.GetMemories(ctx, msg.AuthorID, msg.GuildID)
	if err != nil {
		logger.Warn("loading memories failed", "error", turnErr(PhaseHistory, 0, err))
	}
	stored, err := e.store.RecentMessages(ctx, msg.AuthorID, msg.GuildID, msg.ChannelID, e.opts.HistoryLimit)
	if err != nil {
		logger.Warn("loading history failed", "error", turnErr(PhaseHistory, 0, err))
	}
	history := filterHistory(stored)

	content := e.cleanContent(msg)
	system := buildSystemPrompt(msg.AuthorName, memories)

	registry := tools.DefaultRegistry(e.store, tools.Scope{
		UserID:    msg.AuthorID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
	}, e.logger)

	messages := append(history, models.ChatMessage{Role: models.RoleUser, Content: content})

	finalText, outcome := e.runLoop(ctx, logger, system, messages, registry, msg)

	// Failure notices stay out of history so they cannot pollute the
	// next turn's context.
	if outcome != observability.OutcomeProviderError {
		if err := e.persistTurn(ctx, msg, content, finalText); err != nil {
			logger.Warn("persisting turn failed", "error", err)
			outcome = observability.OutcomeStoreError
		}
	}
	e.metrics.ObserveTurn(outcome)
	return finalText, nil
}

// runLoop drives the turn state machine until DONE and returns the
// reply text plus the outcome label for metrics.
func (e *Engine) runLoop(ctx context.Context, logger *slog.Logger, system string, messages []models.ChatMessage, registry *tools.Registry, msg *models.InboundMessage) (string, string) {
	defs := registry.Defs()

	state := stateAwaitingModel
	round := 0
	fallbackUsed := false
	outcome := observability.OutcomeDone

	var finalText string
	var pending []models.ToolCall
	var collected []memoryEntry

	for state != stateDone {
		switch state {
		case stateAwaitingModel:
			resp, err := e.invoke(ctx, &provider.ChatRequest{
				Model:     e.opts.PrimaryModel,
				System:    system,
				Messages:  messages,
				Tools:     defs,
				MaxTokens: e.opts.MaxTokens,
			})
			if err != nil {
				logger.Error("turn aborted", "error", turnErr(PhaseModel, round, err))
				finalText = noticeProviderDown
				outcome = observability.OutcomeProviderError
				state = stateDone
				continue
			}

			clean, mems := extractMemories(resp.Text)
			collected = append(collected, mems...)

			if len(resp.ToolCalls) > 0 {
				if round >= e.opts.MaxToolRounds {
					logger.Warn("tool round budget exhausted", "rounds", round)
					if strings.TrimSpace(clean) != "" {
						finalText = clean
					} else {
						finalText = noticeTooManySteps
					}
					outcome = observability.OutcomeDegraded
					state = stateDone
					continue
				}
				round++
				pending = resp.ToolCalls
				messages = append(messages, models.ChatMessage{
					Role:      models.RoleAssistant,
					Content:   resp.Text,
					ToolCalls: resp.ToolCalls,
				})
				state = stateExecutingTools
				continue
			}

			if strings.TrimSpace(clean) == "" && resp.FinishReason == provider.FinishLength && !fallbackUsed {
				fallbackUsed = true
				clean = e.runFallback(ctx, logger, msg)
			}
			if strings.TrimSpace(clean) == "" && len(collected) > 0 {
				clean = ackForMemories(collected)
			}
			if strings.TrimSpace(clean) == "" {
				clean = noticeBlank
			}
			finalText = clean
			state = stateDone

		case stateExecutingTools:
			results := make([]models.ToolResult, len(pending))
			for i, call := range pending {
				results[i] = registry.Execute(ctx, call)
				e.metrics.ObserveToolCall(call.Name, results[i].IsError)
				logger.Debug("tool executed",
					"round", round,
					"tool", call.Name,
					"is_error", results[i].IsError)
			}
			messages = append(messages, models.ChatMessage{Role: models.RoleTool, ToolResults: results})
			pending = nil
			state = stateAwaitingModel
		}
	}

	e.saveMemories(ctx, logger, msg, collected)
	return finalText, outcome
}

// runFallback retries once on the secondary model with a stripped
// prompt and a reduced token budget. It returns whatever text came
// back, possibly empty.
func (e *Engine) runFallback(ctx context.Context, logger *slog.Logger, msg *models.InboundMessage) string {
	logger.Debug("empty length-limited response, retrying on fallback model", "model", e.opts.FallbackModel)
	e.metrics.ObserveFallback()

	resp, err := e.invoke(ctx, &provider.ChatRequest{
		Model:  e.opts.FallbackModel,
		System: shortenedPrompt(msg.AuthorName),
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: e.cleanContent(msg)},
		},
		MaxTokens: e.opts.FallbackMaxTokens,
	})
	if err != nil {
		logger.Warn("fallback call failed", "error", turnErr(PhaseFallback, 0, err))
		return ""
	}
	return strings.TrimSpace(resp.Text)
}

func (e *Engine) invoke(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	start := time.Now()
	resp, err := e.client.Invoke(ctx, req)
	e.metrics.ObserveModelCall(req.Model, err, time.Since(start))
	return resp, err
}

// cleanContent strips the bot's own mention tokens and tags messages
// from other bots so the model knows who it is talking to.
func (e *Engine) cleanContent(msg *models.InboundMessage) string {
	content := msg.Content
	content = strings.ReplaceAll(content, "<@"+e.selfID+">", "")
	content = strings.ReplaceAll(content, "<@!"+e.selfID+">", "")
	content = strings.TrimSpace(content)
	if content == "" {
		content = "Hello!"
	}
	if msg.AuthorIsBot {
		content = fmt.Sprintf("[This message is from another bot named %s] %s", msg.AuthorName, content)
	}
	return content
}

func (e *Engine) persistTurn(ctx context.Context, msg *models.InboundMessage, userContent, reply string) error {
	if err := e.store.AppendMessage(ctx, msg.AuthorID, msg.GuildID, msg.ChannelID, models.RoleUser, userContent); err != nil {
		return turnErr(PhaseHistory, 0, fmt.Errorf("persist user message: %w", err))
	}
	if err := e.store.AppendMessage(ctx, msg.AuthorID, msg.GuildID, msg.ChannelID, models.RoleAssistant, reply); err != nil {
		return turnErr(PhaseHistory, 0, fmt.Errorf("persist reply: %w", err))
	}
	return nil
}

func (e *Engine) saveMemories(ctx context.Context, logger *slog.Logger, msg *models.InboundMessage, entries []memoryEntry) {
	for _, m := range entries {
		key := m.Key
		if key == "" {
			key = "misc"
		}
		if err := e.store.SetMemory(ctx, msg.AuthorID, msg.GuildID, key, m.Value, m.Context); err != nil {
			logger.Warn("saving memory failed", "key", key, "error", err)
			continue
		}
		logger.Info("saved memory", "user_id", msg.AuthorID, "key", key)
	}
}
