package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brrr-bot/brrr/internal/store"
	"github.com/brrr-bot/brrr/pkg/models"
)

// SaveMemoryTool remembers a fact about the current user.
type SaveMemoryTool struct {
	store *store.Store
	scope Scope
}

func NewSaveMemoryTool(s *store.Store, scope Scope) *SaveMemoryTool {
	return &SaveMemoryTool{store: s, scope: scope}
}

func (t *SaveMemoryTool) Name() string { return "save_memory" }

func (t *SaveMemoryTool) Description() string {
	return "Remember a fact about the current user for future conversations. Overwrites any existing fact with the same key."
}

func (t *SaveMemoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {
				"type": "string",
				"description": "Short snake_case key for the fact, e.g. favorite_language"
			},
			"value": {
				"type": "string",
				"description": "The fact to remember"
			},
			"context": {
				"type": "string",
				"description": "Optional note on where the fact came from"
			}
		},
		"required": ["key", "value"]
	}`)
}

func (t *SaveMemoryTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Key     string `json:"key"`
		Value   string `json:"value"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if strings.TrimSpace(input.Key) == "" || strings.TrimSpace(input.Value) == "" {
		return errResult("key and value are required"), nil
	}

	if err := t.store.SetMemory(ctx, t.scope.UserID, t.scope.GuildID, input.Key, input.Value, input.Context); err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return &Result{Content: fmt.Sprintf("remembered %s", input.Key)}, nil
}

// GetMemoriesTool recalls everything remembered about the current user.
type GetMemoriesTool struct {
	store *store.Store
	scope Scope
}

func NewGetMemoriesTool(s *store.Store, scope Scope) *GetMemoriesTool {
	return &GetMemoriesTool{store: s, scope: scope}
}

func (t *GetMemoriesTool) Name() string { return "get_memories" }

func (t *GetMemoriesTool) Description() string {
	return "List everything remembered about the current user"
}

func (t *GetMemoriesTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *GetMemoriesTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	memories, err := t.store.GetMemories(ctx, t.scope.UserID, t.scope.GuildID)
	if err != nil {
		return nil, fmt.Errorf("get memories: %w", err)
	}

	var b strings.Builder
	for _, m := range memories {
		if m.Key == models.PersonaKey {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Key, m.Value)
	}
	if b.Len() == 0 {
		return &Result{Content: "nothing remembered about this user yet"}, nil
	}
	return &Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// ForgetMemoryTool deletes a remembered fact, or all of them.
type ForgetMemoryTool struct {
	store *store.Store
	scope Scope
}

func NewForgetMemoryTool(s *store.Store, scope Scope) *ForgetMemoryTool {
	return &ForgetMemoryTool{store: s, scope: scope}
}

func (t *ForgetMemoryTool) Name() string { return "forget_memory" }

func (t *ForgetMemoryTool) Description() string {
	return "Forget a remembered fact about the current user by key, or pass all=true to forget everything"
}

func (t *ForgetMemoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {
				"type": "string",
				"description": "The key of the fact to forget"
			},
			"all": {
				"type": "boolean",
				"description": "Forget every remembered fact"
			}
		}
	}`)
}

func (t *ForgetMemoryTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Key string `json:"key"`
		All bool   `json:"all"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	if input.All {
		if err := t.store.ClearMemories(ctx, t.scope.UserID, t.scope.GuildID); err != nil {
			return nil, fmt.Errorf("clear memories: %w", err)
		}
		return &Result{Content: "forgot everything about this user"}, nil
	}

	if strings.TrimSpace(input.Key) == "" {
		return errResult("key is required unless all=true"), nil
	}

	err := t.store.DeleteMemory(ctx, t.scope.UserID, t.scope.GuildID, input.Key)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("nothing remembered under %q", input.Key)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("forget memory: %w", err)
	}
	return &Result{Content: fmt.Sprintf("forgot %s", input.Key)}, nil
}

// SetPersonaTool stores custom response-style instructions for the user.
type SetPersonaTool struct {
	store *store.Store
	scope Scope
}

func NewSetPersonaTool(s *store.Store, scope Scope) *SetPersonaTool {
	return &SetPersonaTool{store: s, scope: scope}
}

func (t *SetPersonaTool) Name() string { return "set_persona" }

func (t *SetPersonaTool) Description() string {
	return "Set how the assistant should talk to the current user, e.g. tone or format preferences. Pass an empty value to clear."
}

func (t *SetPersonaTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"instructions": {
				"type": "string",
				"description": "Response-style instructions, or empty to reset to the default style"
			}
		},
		"required": ["instructions"]
	}`)
}

func (t *SetPersonaTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Instructions string `json:"instructions"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	if strings.TrimSpace(input.Instructions) == "" {
		err := t.store.DeleteMemory(ctx, t.scope.UserID, t.scope.GuildID, models.PersonaKey)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("clear persona: %w", err)
		}
		return &Result{Content: "persona reset to default"}, nil
	}

	if err := t.store.SetMemory(ctx, t.scope.UserID, t.scope.GuildID, models.PersonaKey, input.Instructions, ""); err != nil {
		return nil, fmt.Errorf("set persona: %w", err)
	}
	return &Result{Content: "persona updated"}, nil
}
