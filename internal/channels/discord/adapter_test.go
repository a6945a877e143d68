package discord

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/brrr-bot/brrr/pkg/models"
)

// mockSession is a mock Discord session for testing.
type mockSession struct {
	mu          sync.Mutex
	openCalled  bool
	closeCalled bool
	sends       []sentMessage
	typing      []string

	// onOpen, when set, runs inside Open before it returns, the way
	// discordgo's read loop can deliver events during Open.
	onOpen func()
}

type sentMessage struct {
	channelID string
	content   string
	isReply   bool
}

func (m *mockSession) Open() error {
	m.openCalled = true
	if m.onOpen != nil {
		m.onOpen()
	}
	return nil
}

func (m *mockSession) Close() error {
	m.closeCalled = true
	return nil
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	return func() {}
}

func (m *mockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: "sent", ChannelID: channelID, Content: content}, nil
}

func (m *mockSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMessage{channelID: channelID, content: content, isReply: true})
	return &discordgo.Message{ID: "sent", ChannelID: channelID, Content: content}, nil
}

func (m *mockSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, channelID)
	return nil
}

func (m *mockSession) UpdateWatchStatus(idle int, name string) error {
	return nil
}

func (m *mockSession) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sends...)
}

// recordingHandler captures inbound messages and returns a fixed reply.
type recordingHandler struct {
	mu       sync.Mutex
	ready    bool
	selfID   string
	messages []*models.InboundMessage
	reply    string
}

func (h *recordingHandler) Ready(selfID string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = true
	h.selfID = selfID
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg *models.InboundMessage) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return h.reply, nil
}

func newTestAdapter(t *testing.T, handler *recordingHandler) (*Adapter, *mockSession) {
	t.Helper()
	a, err := NewAdapter(Config{Token: "test-token"}, handler)
	if err != nil {
		t.Fatal(err)
	}
	mock := &mockSession{}
	a.session = mock
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Stop(ctx)
	})
	return a, mock
}

func TestNewAdapter_RequiresToken(t *testing.T) {
	if _, err := NewAdapter(Config{}, &recordingHandler{}); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestAdapter_StartOpensSession(t *testing.T) {
	_, mock := newTestAdapter(t, &recordingHandler{})
	if !mock.openCalled {
		t.Error("Start() did not open the session")
	}
}

func TestAdapter_MessageDuringOpenIsDispatched(t *testing.T) {
	handler := &recordingHandler{reply: "hi"}
	a, err := NewAdapter(Config{Token: "test-token"}, handler)
	if err != nil {
		t.Fatal(err)
	}
	mock := &mockSession{}
	mock.onOpen = func() {
		a.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        "m1",
			ChannelID: "ch1",
			Content:   "hello",
			Author:    &discordgo.User{ID: "u1", Username: "sam"},
		}})
	}
	a.session = mock

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		handler.mu.Lock()
		n := len(handler.messages)
		handler.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("message delivered during Open was never dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestAdapter_ReadySignalsHandler(t *testing.T) {
	handler := &recordingHandler{}
	a, _ := newTestAdapter(t, handler)

	a.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "bot-1"}})

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if !handler.ready || handler.selfID != "bot-1" {
		t.Errorf("handler ready = %v, selfID = %q", handler.ready, handler.selfID)
	}
}

func TestAdapter_ConvertMessage(t *testing.T) {
	handler := &recordingHandler{}
	a, _ := newTestAdapter(t, handler)
	a.selfID.Store("bot-1")

	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "ch1",
		GuildID:   "g1",
		Content:   "hey <@bot-1>",
		Author:    &discordgo.User{ID: "u1", Username: "sam", Bot: false},
		Mentions:  []*discordgo.User{{ID: "bot-1"}},
		Timestamp: time.Now(),
		ReferencedMessage: &discordgo.Message{
			Author: &discordgo.User{ID: "bot-1"},
		},
	}}

	msg := a.convertMessage(m)
	if !msg.MentionsSelf {
		t.Error("MentionsSelf not detected")
	}
	if !msg.IsReplyToSelf {
		t.Error("IsReplyToSelf not detected")
	}
	if msg.AuthorName != "sam" {
		t.Errorf("AuthorName = %q", msg.AuthorName)
	}
}

func TestAdapter_DispatchDeliversReply(t *testing.T) {
	handler := &recordingHandler{reply: "hello back"}
	a, mock := newTestAdapter(t, handler)

	a.dispatch(&models.InboundMessage{ID: "m1", ChannelID: "ch1", GuildID: "g1"})

	sends := mock.sent()
	if len(sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(sends))
	}
	if !sends[0].isReply || sends[0].content != "hello back" {
		t.Errorf("send = %+v", sends[0])
	}
}

func TestAdapter_DispatchChunksLongReply(t *testing.T) {
	handler := &recordingHandler{reply: strings.Repeat("brrr ", 1000)}
	a, mock := newTestAdapter(t, handler)

	a.dispatch(&models.InboundMessage{ID: "m1", ChannelID: "ch1"})

	sends := mock.sent()
	if len(sends) < 2 {
		t.Fatalf("long reply sent in %d chunks", len(sends))
	}
	if !sends[0].isReply {
		t.Error("first chunk should be a reply")
	}
	for _, s := range sends[1:] {
		if s.isReply {
			t.Error("follow-up chunks should be plain sends")
		}
	}
	for _, s := range sends {
		if len(s.content) > 2000 {
			t.Errorf("chunk exceeds Discord limit: %d", len(s.content))
		}
	}
}

func TestAdapter_EmptyReplySendsNothing(t *testing.T) {
	handler := &recordingHandler{reply: ""}
	a, mock := newTestAdapter(t, handler)

	a.dispatch(&models.InboundMessage{ID: "m1", ChannelID: "ch1"})

	if len(mock.sent()) != 0 {
		t.Error("empty reply should not send anything")
	}
}

func TestAdapter_TypingShownDuringTurn(t *testing.T) {
	handler := &recordingHandler{reply: "ok"}
	a, mock := newTestAdapter(t, handler)

	a.dispatch(&models.InboundMessage{ID: "m1", ChannelID: "ch1"})

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.typing) == 0 {
		t.Error("typing indicator never shown")
	}
}
