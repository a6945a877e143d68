// Package discord connects the conversation engine to Discord's
// gateway using discordgo.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/brrr-bot/brrr/internal/channels"
	"github.com/brrr-bot/brrr/pkg/models"
)

// typingInterval refreshes the typing indicator while a turn runs;
// Discord expires it after about ten seconds.
const typingInterval = 8 * time.Second

// discordSession allows mocking the Discord session in tests.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	UpdateWatchStatus(idle int, name string) error
}

// Config holds configuration for the Discord adapter.
type Config struct {
	// Token is the bot token from the Discord Developer Portal (required).
	Token string

	// Presence is the "watching ..." status text shown on the bot's
	// profile once connected.
	Presence string

	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("discord: token is required")
	}
	if c.Presence == "" {
		c.Presence = "projects go brrrrr"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter bridges Discord gateway events to a channels.Handler and
// delivers the handler's replies back to the originating channel,
// chunked to Discord's message limit.
type Adapter struct {
	config  Config
	session discordSession
	handler channels.Handler
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	selfID atomic.Value
}

// NewAdapter creates a Discord adapter bound to the given handler.
func NewAdapter(config Config, handler channels.Handler) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		config:  config,
		handler: handler,
		logger:  config.Logger.With("adapter", "discord"),
	}, nil
}

// Start opens the gateway connection and begins dispatching messages.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("discord: adapter already started")
	}

	if a.session == nil {
		dg, err := discordgo.New("Bot " + a.config.Token)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentMessageContent
		a.session = dg
	}

	// Open starts the gateway read loop, so the dispatch context must
	// exist before any handler can fire.
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.session.AddHandler(a.handleReady)
	a.session.AddHandler(a.handleMessageCreate)

	if err := a.session.Open(); err != nil {
		a.cancel()
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.started = true
	a.logger.Info("discord adapter started")
	return nil
}

// Stop closes the gateway connection and waits for in-flight turns.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.logger.Info("stopping discord adapter")
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("stop timeout, abandoning in-flight turns")
	}

	if err := a.session.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	a.started = false
	a.logger.Info("discord adapter stopped")
	return nil
}

func (a *Adapter) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	a.selfID.Store(r.User.ID)
	a.handler.Ready(r.User.ID, time.Now().UTC())
	a.logger.Info("discord gateway ready",
		"self_id", r.User.ID,
		"guilds", len(r.Guilds))

	if err := a.session.UpdateWatchStatus(0, a.config.Presence); err != nil {
		a.logger.Warn("setting presence failed", "error", err)
	}
}

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	msg := a.convertMessage(m)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.dispatch(msg)
	}()
}

// convertMessage maps a gateway event to the engine's inbound shape.
func (a *Adapter) convertMessage(m *discordgo.MessageCreate) *models.InboundMessage {
	selfID, _ := a.selfID.Load().(string)

	mentionsSelf := false
	for _, u := range m.Mentions {
		if u.ID == selfID {
			mentionsSelf = true
			break
		}
	}

	isReplyToSelf := m.ReferencedMessage != nil &&
		m.ReferencedMessage.Author != nil &&
		m.ReferencedMessage.Author.ID == selfID

	return &models.InboundMessage{
		ID:            m.ID,
		AuthorID:      m.Author.ID,
		AuthorName:    authorName(m),
		AuthorIsBot:   m.Author.Bot,
		ChannelID:     m.ChannelID,
		GuildID:       m.GuildID,
		Content:       m.Content,
		MentionsSelf:  mentionsSelf,
		IsReplyToSelf: isReplyToSelf,
		Timestamp:     m.Timestamp,
	}
}

// dispatch runs one turn, keeping the typing indicator alive while the
// handler works, then delivers the reply.
func (a *Adapter) dispatch(msg *models.InboundMessage) {
	ctx := a.ctx

	stopTyping := a.keepTyping(msg.ChannelID)
	reply, err := a.handler.HandleMessage(ctx, msg)
	stopTyping()

	if err != nil {
		a.logger.Error("turn failed", "channel_id", msg.ChannelID, "error", err)
		return
	}
	if reply == "" {
		return
	}

	a.deliver(msg, reply)
}

// keepTyping shows the typing indicator and refreshes it until the
// returned stop function is called. The first typing call is sent
// before returning so the indicator appears immediately.
func (a *Adapter) keepTyping(channelID string) (stop func()) {
	if err := a.session.ChannelTyping(channelID); err != nil {
		a.logger.Debug("typing indicator failed", "channel_id", channelID, "error", err)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				if err := a.session.ChannelTyping(channelID); err != nil {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// deliver sends the reply, chunked to Discord's limit. The first chunk
// replies to the triggering message; the rest follow as plain sends.
func (a *Adapter) deliver(msg *models.InboundMessage, reply string) {
	chunks := channels.ChunkMessage(reply, channels.DiscordMessageLimit)
	for i, chunk := range chunks {
		var err error
		if i == 0 {
			ref := &discordgo.MessageReference{
				MessageID: msg.ID,
				ChannelID: msg.ChannelID,
				GuildID:   msg.GuildID,
			}
			_, err = a.session.ChannelMessageSendReply(msg.ChannelID, chunk, ref)
		} else {
			_, err = a.session.ChannelMessageSend(msg.ChannelID, chunk)
		}
		if err != nil {
			a.logger.Error("sending reply failed",
				"channel_id", msg.ChannelID,
				"chunk", i,
				"error", err)
			return
		}
	}
	a.logger.Debug("reply delivered",
		"channel_id", msg.ChannelID,
		"chunks", len(chunks),
		"length", len(reply))
}

// Send posts content to a channel outside a conversation turn, chunked
// to the message limit. Used by the weekly digest.
func (a *Adapter) Send(channelID, content string) error {
	for _, chunk := range channels.ChunkMessage(content, channels.DiscordMessageLimit) {
		if _, err := a.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("discord: send to %s: %w", channelID, err)
		}
	}
	return nil
}

func authorName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
