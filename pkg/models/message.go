package models

import (
	"encoding/json"
	"time"
)

// Role indicates who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// InboundMessage is a message event delivered by the messaging platform.
type InboundMessage struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	AuthorIsBot   bool      `json:"author_is_bot"`
	ChannelID     string    `json:"channel_id"`
	GuildID       string    `json:"guild_id"`
	Content       string    `json:"content"`
	MentionsSelf  bool      `json:"mentions_self"`
	IsReplyToSelf bool      `json:"is_reply_to_self"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatMessage is a single role-tagged entry in the conversation sent to
// the model provider.
type ChatMessage struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolCall is the model's request to execute a named tool with arguments.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of one tool execution, reported back to the
// model in the order the calls were emitted.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// StoredMessage is one persisted conversation history entry.
type StoredMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
