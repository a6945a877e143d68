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

// CreateProjectTool starts tracking a new project.
type CreateProjectTool struct {
	store *store.Store
	scope Scope
}

func NewCreateProjectTool(s *store.Store, scope Scope) *CreateProjectTool {
	return &CreateProjectTool{store: s, scope: scope}
}

func (t *CreateProjectTool) Name() string { return "create_project" }

func (t *CreateProjectTool) Description() string {
	return "Start tracking a new coding project for this server"
}

func (t *CreateProjectTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {
				"type": "string",
				"description": "Short project title"
			},
			"description": {
				"type": "string",
				"description": "What the project is about"
			}
		},
		"required": ["title"]
	}`)
}

func (t *CreateProjectTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
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

	project, err := t.store.CreateProject(ctx, t.scope.GuildID, t.scope.UserID, input.Title, input.Description)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &Result{Content: fmt.Sprintf("created project #%d %q", project.ID, project.Title)}, nil
}

// GetProjectsTool lists projects for the current guild.
type GetProjectsTool struct {
	store *store.Store
	scope Scope
}

func NewGetProjectsTool(s *store.Store, scope Scope) *GetProjectsTool {
	return &GetProjectsTool{store: s, scope: scope}
}

func (t *GetProjectsTool) Name() string { return "get_projects" }

func (t *GetProjectsTool) Description() string {
	return "List tracked projects for this server, optionally including archived ones"
}

func (t *GetProjectsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"include_archived": {
				"type": "boolean",
				"description": "Include archived projects (default false)"
			}
		}
	}`)
}

func (t *GetProjectsTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		IncludeArchived bool `json:"include_archived"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	status := models.ProjectActive
	if input.IncludeArchived {
		status = ""
	}
	projects, err := t.store.ListProjects(ctx, t.scope.GuildID, status)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		return &Result{Content: "no projects yet"}, nil
	}

	var b strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&b, "#%d %s [%s]", p.ID, p.Title, p.Status)
		if p.Description != "" {
			fmt.Fprintf(&b, " - %s", p.Description)
		}
		b.WriteByte('\n')
	}
	return &Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// GetProjectInfoTool fetches one project with its task checklist.
type GetProjectInfoTool struct {
	store *store.Store
	scope Scope
}

func NewGetProjectInfoTool(s *store.Store, scope Scope) *GetProjectInfoTool {
	return &GetProjectInfoTool{store: s, scope: scope}
}

func (t *GetProjectInfoTool) Name() string { return "get_project_info" }

func (t *GetProjectInfoTool) Description() string {
	return "Get details for one project by ID, including its task list"
}

func (t *GetProjectInfoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_id": {
				"type": "integer",
				"description": "The ID of the project"
			}
		},
		"required": ["project_id"]
	}`)
}

func (t *GetProjectInfoTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	project, err := t.store.GetProject(ctx, input.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("no project with id %d", input.ProjectID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	tasks, err := t.store.ListTasks(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]", project.ID, project.Title, project.Status)
	if project.Description != "" {
		fmt.Fprintf(&b, "\n%s", project.Description)
	}
	if len(tasks) == 0 {
		b.WriteString("\nno tasks yet")
	}
	for _, task := range tasks {
		mark := " "
		if task.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "\n[%s] #%d %s", mark, task.ID, task.Label)
	}
	return &Result{Content: b.String()}, nil
}

// ArchiveProjectTool archives an active project.
type ArchiveProjectTool struct {
	store *store.Store
	scope Scope
}

func NewArchiveProjectTool(s *store.Store, scope Scope) *ArchiveProjectTool {
	return &ArchiveProjectTool{store: s, scope: scope}
}

func (t *ArchiveProjectTool) Name() string { return "archive_project" }

func (t *ArchiveProjectTool) Description() string {
	return "Archive a finished or abandoned project by ID"
}

func (t *ArchiveProjectTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_id": {
				"type": "integer",
				"description": "The ID of the project to archive"
			}
		},
		"required": ["project_id"]
	}`)
}

func (t *ArchiveProjectTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	err := t.store.ArchiveProject(ctx, input.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("no active project with id %d", input.ProjectID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive project: %w", err)
	}
	return &Result{Content: fmt.Sprintf("archived project #%d", input.ProjectID)}, nil
}
