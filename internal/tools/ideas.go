package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brrr-bot/brrr/internal/store"
)

// AddIdeaTool captures a project idea for later.
type AddIdeaTool struct {
	store *store.Store
	scope Scope
}

func NewAddIdeaTool(s *store.Store, scope Scope) *AddIdeaTool {
	return &AddIdeaTool{store: s, scope: scope}
}

func (t *AddIdeaTool) Name() string { return "add_idea" }

func (t *AddIdeaTool) Description() string {
	return "Capture a project idea so it can be picked up later"
}

func (t *AddIdeaTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {
				"type": "string",
				"description": "Short name for the idea"
			},
			"description": {
				"type": "string",
				"description": "What the idea is about"
			}
		},
		"required": ["title"]
	}`)
}

func (t *AddIdeaTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if strings.TrimSpace(input.Title) == "" {
		return errResult("title is required"), nil
	}

	idea, err := t.store.AddIdea(ctx, t.scope.GuildID, t.scope.UserID, input.Title, input.Description)
	if err != nil {
		return nil, fmt.Errorf("add idea: %w", err)
	}
	return &Result{Content: fmt.Sprintf("saved idea #%d %q", idea.ID, idea.Title)}, nil
}

// GetIdeasTool lists captured ideas for the guild.
type GetIdeasTool struct {
	store *store.Store
	scope Scope
}

func NewGetIdeasTool(s *store.Store, scope Scope) *GetIdeasTool {
	return &GetIdeasTool{store: s, scope: scope}
}

func (t *GetIdeasTool) Name() string { return "get_ideas" }

func (t *GetIdeasTool) Description() string {
	return "List captured project ideas for this server"
}

func (t *GetIdeasTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"unused_only": {
				"type": "boolean",
				"description": "Only show ideas not yet turned into projects (default false)"
			}
		}
	}`)
}

func (t *GetIdeasTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		UnusedOnly bool `json:"unused_only"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	ideas, err := t.store.ListIdeas(ctx, t.scope.GuildID, input.UnusedOnly)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	if len(ideas) == 0 {
		return &Result{Content: "no ideas saved"}, nil
	}

	var b strings.Builder
	for _, idea := range ideas {
		fmt.Fprintf(&b, "#%d %s", idea.ID, idea.Title)
		if idea.Used {
			b.WriteString(" (used)")
		}
		if idea.Description != "" {
			fmt.Fprintf(&b, " - %s", idea.Description)
		}
		b.WriteByte('\n')
	}
	return &Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// DeleteIdeaTool discards a captured idea.
type DeleteIdeaTool struct {
	store *store.Store
	scope Scope
}

func NewDeleteIdeaTool(s *store.Store, scope Scope) *DeleteIdeaTool {
	return &DeleteIdeaTool{store: s, scope: scope}
}

func (t *DeleteIdeaTool) Name() string { return "delete_idea" }

func (t *DeleteIdeaTool) Description() string {
	return "Delete a captured idea by ID"
}

func (t *DeleteIdeaTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"idea_id": {
				"type": "integer",
				"description": "The idea to delete"
			}
		},
		"required": ["idea_id"]
	}`)
}

func (t *DeleteIdeaTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		IdeaID int64 `json:"idea_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	err := t.store.DeleteIdea(ctx, input.IdeaID)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("no idea with id %d", input.IdeaID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete idea: %w", err)
	}
	return &Result{Content: fmt.Sprintf("deleted idea #%d", input.IdeaID)}, nil
}
