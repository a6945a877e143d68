package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brrr-bot/brrr/internal/store"
)

// CreateTaskTool adds a checklist item to a project.
type CreateTaskTool struct {
	store *store.Store
	scope Scope
}

func NewCreateTaskTool(s *store.Store, scope Scope) *CreateTaskTool {
	return &CreateTaskTool{store: s, scope: scope}
}

func (t *CreateTaskTool) Name() string { return "create_task" }

func (t *CreateTaskTool) Description() string {
	return "Add a task to a project's checklist"
}

func (t *CreateTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_id": {
				"type": "integer",
				"description": "The project to add the task to"
			},
			"label": {
				"type": "string",
				"description": "What needs doing"
			}
		},
		"required": ["project_id", "label"]
	}`)
}

func (t *CreateTaskTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ProjectID int64  `json:"project_id"`
		Label     string `json:"label"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if strings.TrimSpace(input.Label) == "" {
		return errResult("label is required"), nil
	}

	task, err := t.store.CreateTask(ctx, input.ProjectID, input.Label, t.scope.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("no project with id %d", input.ProjectID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	return &Result{Content: fmt.Sprintf("added task #%d to project #%d", task.ID, input.ProjectID)}, nil
}

// GetTasksTool lists a project's checklist.
type GetTasksTool struct {
	store *store.Store
	scope Scope
}

func NewGetTasksTool(s *store.Store, scope Scope) *GetTasksTool {
	return &GetTasksTool{store: s, scope: scope}
}

func (t *GetTasksTool) Name() string { return "get_tasks" }

func (t *GetTasksTool) Description() string {
	return "List the tasks on a project's checklist"
}

func (t *GetTasksTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_id": {
				"type": "integer",
				"description": "The project whose tasks to list"
			}
		},
		"required": ["project_id"]
	}`)
}

func (t *GetTasksTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	tasks, err := t.store.ListTasks(ctx, input.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return &Result{Content: "no tasks on this project"}, nil
	}

	var b strings.Builder
	for _, task := range tasks {
		mark := " "
		if task.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] #%d %s\n", mark, task.ID, task.Label)
	}
	return &Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// ToggleTaskTool flips a task between done and not done.
type ToggleTaskTool struct {
	store *store.Store
	scope Scope
}

func NewToggleTaskTool(s *store.Store, scope Scope) *ToggleTaskTool {
	return &ToggleTaskTool{store: s, scope: scope}
}

func (t *ToggleTaskTool) Name() string { return "toggle_task" }

func (t *ToggleTaskTool) Description() string {
	return "Toggle a task between done and not done"
}

func (t *ToggleTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "integer",
				"description": "The task to toggle"
			}
		},
		"required": ["task_id"]
	}`)
}

func (t *ToggleTaskTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	done, err := t.store.ToggleTask(ctx, input.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("no task with id %d", input.TaskID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggle task: %w", err)
	}
	state := "not done"
	if done {
		state = "done"
	}
	return &Result{Content: fmt.Sprintf("task #%d is now %s", input.TaskID, state)}, nil
}

// DeleteTaskTool removes a task from a checklist.
type DeleteTaskTool struct {
	store *store.Store
	scope Scope
}

func NewDeleteTaskTool(s *store.Store, scope Scope) *DeleteTaskTool {
	return &DeleteTaskTool{store: s, scope: scope}
}

func (t *DeleteTaskTool) Name() string { return "delete_task" }

func (t *DeleteTaskTool) Description() string {
	return "Delete a task from a project's checklist"
}

func (t *DeleteTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "integer",
				"description": "The task to delete"
			}
		},
		"required": ["task_id"]
	}`)
}

func (t *DeleteTaskTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	err := t.store.DeleteTask(ctx, input.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return errResult(fmt.Sprintf("no task with id %d", input.TaskID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return &Result{Content: fmt.Sprintf("deleted task #%d", input.TaskID)}, nil
}
