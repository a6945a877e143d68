package tools

import (
	"log/slog"

	"github.com/brrr-bot/brrr/internal/store"
)

// DefaultRegistry builds the full tool set for one turn, scoped to the
// turn's user and guild.
func DefaultRegistry(s *store.Store, scope Scope, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.MustRegister(
		NewCreateProjectTool(s, scope),
		NewGetProjectsTool(s, scope),
		NewGetProjectInfoTool(s, scope),
		NewArchiveProjectTool(s, scope),
		NewCreateTaskTool(s, scope),
		NewGetTasksTool(s, scope),
		NewToggleTaskTool(s, scope),
		NewDeleteTaskTool(s, scope),
		NewAddIdeaTool(s, scope),
		NewGetIdeasTool(s, scope),
		NewDeleteIdeaTool(s, scope),
		NewSaveMemoryTool(s, scope),
		NewGetMemoriesTool(s, scope),
		NewForgetMemoryTool(s, scope),
		NewSetPersonaTool(s, scope),
	)
	return r
}
