package models

import "time"

// ProjectStatus tracks the lifecycle of a project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Project is a tracked coding project within a guild.
type Project struct {
	ID          int64         `json:"id"`
	GuildID     string        `json:"guild_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	OwnerID     string        `json:"owner_id"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ArchivedAt  time.Time     `json:"archived_at,omitempty"`
}

// Task is a checklist item attached to a project.
type Task struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Label     string    `json:"label"`
	Done      bool      `json:"done"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Idea is a captured project idea waiting to be picked up.
type Idea struct {
	ID          int64     `json:"id"`
	GuildID     string    `json:"guild_id"`
	AuthorID    string    `json:"author_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Used        bool      `json:"used"`
	CreatedAt   time.Time `json:"created_at"`
}

// Memory is a remembered fact about a user, keyed for later recall.
type Memory struct {
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Context   string    `json:"context,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PersonaKey is the reserved memory key holding a user's custom
// response-style instructions. It is excluded from the remembered-facts
// section of the system prompt and injected separately.
const PersonaKey = "persona_instructions"
