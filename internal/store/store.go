// Package store provides SQLite persistence for projects, tasks, ideas,
// user memories, and conversation history.
//
// Each method is an independent transaction; the store performs no
// cross-call coordination and is safe for concurrent use by virtue of
// database/sql connection pooling plus SQLite's own locking.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brrr-bot/brrr/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			owner_id TEXT DEFAULT '',
			status TEXT DEFAULT 'active',
			created_at DATETIME NOT NULL,
			archived_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			done INTEGER DEFAULT 0,
			created_by TEXT DEFAULT '',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id)
		)`,
		`CREATE TABLE IF NOT EXISTS ideas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			used INTEGER DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memories (
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			context TEXT DEFAULT '',
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, guild_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_guild ON projects(guild_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ideas_guild ON ideas(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_scope ON messages(user_id, guild_id, channel_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// --- Projects ---

// CreateProject inserts a new active project and returns it with its ID.
func (s *Store) CreateProject(ctx context.Context, guildID, ownerID, title, description string) (*models.Project, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (guild_id, title, description, owner_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, guildID, title, description, ownerID, models.ProjectActive, now)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &models.Project{
		ID:          id,
		GuildID:     guildID,
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Status:      models.ProjectActive,
		CreatedAt:   now,
	}, nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, title, description, owner_id, status, created_at, archived_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects returns a guild's projects, optionally filtered by status.
func (s *Store) ListProjects(ctx context.Context, guildID string, status models.ProjectStatus) ([]*models.Project, error) {
	query := `
		SELECT id, guild_id, title, description, owner_id, status, created_at, archived_at
		FROM projects WHERE guild_id = ?`
	args := []any{guildID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ActiveProjects returns every active project across all guilds, used
// by the weekly digest.
func (s *Store) ActiveProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, title, description, owner_id, status, created_at, archived_at
		FROM projects WHERE status = ? ORDER BY created_at
	`, models.ProjectActive)
	if err != nil {
		return nil, fmt.Errorf("active projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ArchiveProject marks a project archived.
func (s *Store) ArchiveProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET status = ?, archived_at = ? WHERE id = ? AND status = ?
	`, models.ProjectArchived, time.Now().UTC(), id, models.ProjectActive)
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var archivedAt sql.NullTime
	err := row.Scan(&p.ID, &p.GuildID, &p.Title, &p.Description, &p.OwnerID, &p.Status, &p.CreatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if archivedAt.Valid {
		p.ArchivedAt = archivedAt.Time
	}
	return &p, nil
}

// --- Tasks ---

// CreateTask adds a checklist item to a project.
func (s *Store) CreateTask(ctx context.Context, projectID int64, label, createdBy string) (*models.Task, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (project_id, label, created_by, created_at) VALUES (?, ?, ?, ?)
	`, projectID, label, createdBy, now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &models.Task{ID: id, ProjectID: projectID, Label: label, CreatedBy: createdBy, CreatedAt: now}, nil
}

// ListTasks returns a project's tasks in creation order.
func (s *Store) ListTasks(ctx context.Context, projectID int64) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, label, done, created_by, created_at
		FROM tasks WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Label, &t.Done, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// ToggleTask flips a task's done flag and returns the new state.
func (s *Store) ToggleTask(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET done = NOT done WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("toggle task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	var done bool
	if err := s.db.QueryRowContext(ctx, `SELECT done FROM tasks WHERE id = ?`, id).Scan(&done); err != nil {
		return false, fmt.Errorf("toggle task: %w", err)
	}
	return done, nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Ideas ---

// AddIdea records a new idea.
func (s *Store) AddIdea(ctx context.Context, guildID, authorID, title, description string) (*models.Idea, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ideas (guild_id, author_id, title, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, guildID, authorID, title, description, now)
	if err != nil {
		return nil, fmt.Errorf("add idea: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add idea: %w", err)
	}
	return &models.Idea{ID: id, GuildID: guildID, AuthorID: authorID, Title: title, Description: description, CreatedAt: now}, nil
}

// ListIdeas returns a guild's ideas, optionally only unused ones.
func (s *Store) ListIdeas(ctx context.Context, guildID string, unusedOnly bool) ([]*models.Idea, error) {
	query := `
		SELECT id, guild_id, author_id, title, description, used, created_at
		FROM ideas WHERE guild_id = ?`
	if unusedOnly {
		query += ` AND used = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	var ideas []*models.Idea
	for rows.Next() {
		var i models.Idea
		if err := rows.Scan(&i.ID, &i.GuildID, &i.AuthorID, &i.Title, &i.Description, &i.Used, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, &i)
	}
	return ideas, rows.Err()
}

// DeleteIdea removes an idea.
func (s *Store) DeleteIdea(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ideas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Memories ---

// SetMemory upserts a remembered fact about a user.
func (s *Store) SetMemory(ctx context.Context, userID, guildID, key, value, context_ string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (user_id, guild_id, key, value, context, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, guild_id, key) DO UPDATE
		SET value = excluded.value, context = excluded.context, updated_at = excluded.updated_at
	`, userID, guildID, key, value, context_, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set memory: %w", err)
	}
	return nil
}

// GetMemories returns all remembered facts for a user in a guild.
func (s *Store) GetMemories(ctx context.Context, userID, guildID string) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, guild_id, key, value, context, updated_at
		FROM memories WHERE user_id = ? AND guild_id = ? ORDER BY key
	`, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("get memories: %w", err)
	}
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		var m models.Memory
		if err := rows.Scan(&m.UserID, &m.GuildID, &m.Key, &m.Value, &m.Context, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

// DeleteMemory forgets a single fact.
func (s *Store) DeleteMemory(ctx context.Context, userID, guildID, key string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memories WHERE user_id = ? AND guild_id = ? AND key = ?
	`, userID, guildID, key)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearMemories forgets everything known about a user in a guild.
func (s *Store) ClearMemories(ctx context.Context, userID, guildID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM memories WHERE user_id = ? AND guild_id = ?
	`, userID, guildID)
	if err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	return nil
}

// --- Conversation history ---

// AppendMessage stores one conversation turn entry.
func (s *Store) AppendMessage(ctx context.Context, userID, guildID, channelID string, role models.Role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (user_id, guild_id, channel_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, guildID, channelID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit history entries for a user in a
// channel, oldest first.
func (s *Store) RecentMessages(ctx context.Context, userID, guildID, channelID string, limit int) ([]*models.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, channel_id, role, content, created_at
		FROM messages
		WHERE user_id = ? AND guild_id = ? AND channel_id = ?
		ORDER BY id DESC LIMIT ?
	`, userID, guildID, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.StoredMessage
	for rows.Next() {
		var m models.StoredMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.GuildID, &m.ChannelID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
