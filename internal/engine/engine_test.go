package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brrr-bot/brrr/internal/observability"
	"github.com/brrr-bot/brrr/internal/provider"
	"github.com/brrr-bot/brrr/internal/store"
	"github.com/brrr-bot/brrr/pkg/models"
)

// scriptedClient plays back a fixed sequence of responses and records
// every request it saw.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*provider.ChatResponse
	errs      []error
	requests  []*provider.ChatRequest
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Invoke(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		return nil, fmt.Errorf("scripted client exhausted after %d calls", len(c.responses))
	}
	return c.responses[i], nil
}

func (c *scriptedClient) calls() []*provider.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*provider.ChatRequest(nil), c.requests...)
}

func textResponse(text string) *provider.ChatResponse {
	return &provider.ChatResponse{Text: text, FinishReason: provider.FinishStop}
}

func toolResponse(calls ...models.ToolCall) *provider.ChatResponse {
	return &provider.ChatResponse{ToolCalls: calls, FinishReason: provider.FinishToolCalls}
}

func newTestEngine(t *testing.T, client provider.Client) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	e := New(client, st, nil, Options{
		PrimaryModel:      "primary",
		FallbackModel:     "fallback",
		MaxTokens:         12000,
		FallbackMaxTokens: 256,
		MaxToolRounds:     5,
		WakePhrase:        "brrr",
		HistoryLimit:      5,
	}, nil)
	e.Ready("bot-1", time.Now().Add(-time.Minute))
	return e, st
}

func inbound(content string) *models.InboundMessage {
	return &models.InboundMessage{
		ID:           "m1",
		AuthorID:     "u1",
		AuthorName:   "sam",
		ChannelID:    "ch1",
		GuildID:      "g1",
		Content:      content,
		MentionsSelf: true,
		Timestamp:    time.Now(),
	}
}

func TestHandleMessage_SimpleReply(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{textResponse("just ship it")}}
	e, st := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("should I ship?"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "just ship it" {
		t.Errorf("reply = %q", reply)
	}

	// Both sides of the exchange are persisted.
	msgs, err := st.RecentMessages(context.Background(), "u1", "g1", "ch1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestHandleMessage_TwoRoundToolChain(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		toolResponse(models.ToolCall{ID: "c1", Name: "create_project", Arguments: json.RawMessage(`{"title":"X"}`)}),
		toolResponse(models.ToolCall{ID: "c2", Name: "create_task", Arguments: json.RawMessage(`{"project_id":1,"label":"Y"}`)}),
		textResponse("project X is tracked with task Y"),
	}}
	e, st := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("create a project called X then add task Y to it"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "project X is tracked with task Y" {
		t.Errorf("reply = %q", reply)
	}

	calls := client.calls()
	if len(calls) != 3 {
		t.Fatalf("model calls = %d, want 3", len(calls))
	}

	// Round 2 sees the create_project result before producing create_task.
	var sawResult bool
	for _, m := range calls[1].Messages {
		for _, tr := range m.ToolResults {
			if tr.ToolCallID == "c1" && !tr.IsError {
				sawResult = true
			}
		}
	}
	if !sawResult {
		t.Error("second call did not carry the first tool result")
	}

	// Side effects landed in order: the task requires the project.
	projects, err := st.ListProjects(context.Background(), "g1", models.ProjectActive)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].Title != "X" {
		t.Fatalf("projects = %+v", projects)
	}
	tasks, err := st.ListTasks(context.Background(), projects[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Label != "Y" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestHandleMessage_ToolResultsKeepEmittedOrder(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		toolResponse(
			models.ToolCall{ID: "cA", Name: "create_project", Arguments: json.RawMessage(`{"title":"A"}`)},
			models.ToolCall{ID: "cB", Name: "create_task", Arguments: json.RawMessage(`{"project_id":1,"label":"B"}`)},
		),
		textResponse("done"),
	}}
	e, _ := newTestEngine(t, client)

	if _, err := e.HandleMessage(context.Background(), inbound("set it all up")); err != nil {
		t.Fatal(err)
	}

	calls := client.calls()
	if len(calls) != 2 {
		t.Fatalf("model calls = %d, want 2", len(calls))
	}
	var results []models.ToolResult
	for _, m := range calls[1].Messages {
		if m.Role == models.RoleTool {
			results = m.ToolResults
		}
	}
	if len(results) != 2 || results[0].ToolCallID != "cA" || results[1].ToolCallID != "cB" {
		t.Fatalf("results = %+v", results)
	}
	// create_task ran after create_project, so project 1 existed.
	if results[1].IsError {
		t.Errorf("create_task should have seen the project: %q", results[1].Content)
	}
}

func TestHandleMessage_ToolFailureFedBackAsData(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		toolResponse(models.ToolCall{ID: "c1", Name: "archive_project", Arguments: json.RawMessage(`{"project_id":99}`)}),
		textResponse("that project doesn't exist, sorry"),
	}}
	e, _ := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("archive project 99"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "that project doesn't exist, sorry" {
		t.Errorf("reply = %q", reply)
	}

	calls := client.calls()
	var result *models.ToolResult
	for _, m := range calls[1].Messages {
		for i := range m.ToolResults {
			result = &m.ToolResults[i]
		}
	}
	if result == nil || !result.IsError {
		t.Fatalf("tool failure should reach the model as an error result, got %+v", result)
	}
}

func TestHandleMessage_RoundBudgetDegrades(t *testing.T) {
	loop := toolResponse(models.ToolCall{ID: "c", Name: "get_projects", Arguments: json.RawMessage(`{}`)})
	client := &scriptedClient{responses: []*provider.ChatResponse{loop, loop, loop, loop, loop, loop}}

	st, err := store.Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	e := New(client, st, nil, Options{
		PrimaryModel:      "primary",
		FallbackModel:     "fallback",
		MaxTokens:         12000,
		FallbackMaxTokens: 256,
		MaxToolRounds:     2,
		WakePhrase:        "brrr",
		HistoryLimit:      5,
	}, nil)
	e.Ready("bot-1", time.Now().Add(-time.Minute))

	reply, err := e.HandleMessage(context.Background(), inbound("loop forever"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != noticeTooManySteps {
		t.Errorf("reply = %q", reply)
	}
	// Two tool rounds plus the call that exceeded the budget.
	if got := len(client.calls()); got != 3 {
		t.Errorf("model calls = %d, want 3", got)
	}
}

func TestHandleMessage_ProviderUnavailableEndsTurn(t *testing.T) {
	client := &scriptedClient{
		errs:      []error{fmt.Errorf("%w: upstream 502", provider.ErrUnavailable)},
		responses: []*provider.ChatResponse{nil, textResponse("back online")},
	}
	e, st := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != noticeProviderDown {
		t.Errorf("reply = %q", reply)
	}

	// The failure notice never enters history.
	msgs, err := st.RecentMessages(context.Background(), "u1", "g1", "ch1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("failed turn persisted %d messages", len(msgs))
	}

	// The channel lock was released: the next message goes through.
	reply, err = e.HandleMessage(context.Background(), inbound("hello again"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "back online" {
		t.Errorf("follow-up reply = %q", reply)
	}
}

func TestHandleMessage_FallbackOnEmptyLengthResponse(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		{Text: "", FinishReason: provider.FinishLength},
		textResponse("short answer"),
	}}
	e, _ := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("explain everything"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "short answer" {
		t.Errorf("reply = %q", reply)
	}

	calls := client.calls()
	if len(calls) != 2 {
		t.Fatalf("model calls = %d, want 2", len(calls))
	}
	fb := calls[1]
	if fb.Model != "fallback" {
		t.Errorf("fallback model = %q", fb.Model)
	}
	if fb.MaxTokens != 256 {
		t.Errorf("fallback max tokens = %d, want 256", fb.MaxTokens)
	}
	if len(fb.Messages) != 1 || fb.Messages[0].Role != models.RoleUser {
		t.Errorf("fallback should carry only the user message, got %+v", fb.Messages)
	}
	if len(fb.Tools) != 0 {
		t.Error("fallback request should not offer tools")
	}
}

func TestHandleMessage_FallbackAtMostOnce(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		{Text: "", FinishReason: provider.FinishLength},
		{Text: "", FinishReason: provider.FinishLength},
	}}
	e, _ := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("explain everything"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != noticeBlank {
		t.Errorf("reply = %q", reply)
	}
	if got := len(client.calls()); got != 2 {
		t.Errorf("model calls = %d, want 2 (no second fallback)", got)
	}
}

func TestHandleMessage_ExtractsAndSavesMemories(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		textResponse("Python for 5 years, nice!\n\n```json\n{\"memories\": [{\"key\": \"skill_python\", \"value\": \"advanced\"}]}\n```"),
	}}
	e, st := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("I've done Python for 5 years"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(reply, "```") {
		t.Errorf("memory block leaked into reply: %q", reply)
	}

	memories, err := st.GetMemories(context.Background(), "u1", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(memories) != 1 || memories[0].Key != "skill_python" {
		t.Fatalf("memories = %+v", memories)
	}
}

func TestHandleMessage_MemoryOnlyResponseGetsAck(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{
		textResponse("```json\n{\"memories\": [{\"key\": \"timezone\", \"value\": \"UTC\"}]}\n```"),
	}}
	e, _ := newTestEngine(t, client)

	reply, err := e.HandleMessage(context.Background(), inbound("I'm on UTC"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "remember") || !strings.Contains(reply, "timezone") {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleMessage_StaleMessageDropped(t *testing.T) {
	client := &scriptedClient{}
	e, _ := newTestEngine(t, client)

	msg := inbound("old news")
	msg.Timestamp = time.Now().Add(-time.Hour)

	reply, err := e.HandleMessage(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "" {
		t.Errorf("stale message produced reply %q", reply)
	}
	if len(client.calls()) != 0 {
		t.Error("stale message reached the model")
	}
}

func TestHandleMessage_OwnMessageIgnored(t *testing.T) {
	client := &scriptedClient{}
	e, _ := newTestEngine(t, client)

	msg := inbound("talking to myself")
	msg.AuthorID = "bot-1"

	reply, err := e.HandleMessage(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "" || len(client.calls()) != 0 {
		t.Error("bot responded to its own message")
	}
}

func TestHandleMessage_MentionStrippedAndBotTagged(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{textResponse("hi")}}
	e, _ := newTestEngine(t, client)

	msg := inbound("<@bot-1> hello there")
	msg.AuthorIsBot = true
	msg.AuthorName = "otherbot"

	if _, err := e.HandleMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	calls := client.calls()
	last := calls[0].Messages[len(calls[0].Messages)-1]
	if strings.Contains(last.Content, "<@bot-1>") {
		t.Errorf("mention not stripped: %q", last.Content)
	}
	if !strings.Contains(last.Content, "[This message is from another bot named otherbot]") {
		t.Errorf("bot tag missing: %q", last.Content)
	}
}

func TestHandleMessage_StoreFailureStillReplies(t *testing.T) {
	client := &scriptedClient{responses: []*provider.ChatResponse{textResponse("still here")}}
	st, err := store.Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatal(err)
	}
	metrics := observability.New()
	e := New(client, st, metrics, Options{
		PrimaryModel:  "primary",
		FallbackModel: "fallback",
		MaxTokens:     12000,
		MaxToolRounds: 5,
		HistoryLimit:  5,
	}, nil)
	e.Ready("bot-1", time.Now().Add(-time.Minute))

	// A dead store must not take the conversation down with it.
	st.Close()

	reply, err := e.HandleMessage(context.Background(), inbound("anyone home?"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "still here" {
		t.Errorf("reply = %q", reply)
	}
	if got := turnCount(t, metrics, observability.OutcomeStoreError); got != 1 {
		t.Errorf("store_error turns = %v, want 1", got)
	}
}

func turnCount(t *testing.T, m *observability.Metrics, outcome string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, family := range families {
		if family.GetName() != "brrr_turns_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
