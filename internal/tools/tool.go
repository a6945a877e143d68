// Package tools defines the function-calling surface the model can
// reach during a turn: project, task, idea, and memory operations
// backed by the store.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is a single callable function exposed to the model.
type Tool interface {
	// Name returns the tool name used in function calling. Must be
	// alphanumeric with underscores.
	Name() string

	// Description tells the model what the tool does and when to use it.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool. Domain failures (missing records, bad
	// input) are reported via Result.IsError so the model can recover;
	// an error return means the tool itself broke.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is the output of a tool execution.
type Result struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

func errResult(msg string) *Result {
	return &Result{Content: msg, IsError: true}
}

// Scope pins a tool set to the turn it serves. Project and idea
// operations are scoped to the guild; memory operations to the user.
type Scope struct {
	UserID    string
	GuildID   string
	ChannelID string
}
