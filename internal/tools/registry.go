package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/brrr-bot/brrr/internal/provider"
	"github.com/brrr-bot/brrr/pkg/models"
)

// Registry holds the tools available to a turn and dispatches calls to
// them. Arguments are validated against each tool's schema before the
// tool runs; validation failures come back as error results rather
// than aborting the turn.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger.With("component", "tools"),
	}
}

// Register adds a tool, compiling its schema. Registering a duplicate
// name or an invalid schema is a programming error.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	compiler := jsonschema.NewCompiler()
	url := "tool://" + name
	if err := compiler.AddResource(url, strings.NewReader(string(t.Schema()))); err != nil {
		return fmt.Errorf("tool %q schema: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("tool %q schema: %w", name, err)
	}

	r.tools[name] = t
	r.schemas[name] = schema
	return nil
}

// MustRegister registers tools and panics on failure. Intended for
// wiring a fixed tool set at startup.
func (r *Registry) MustRegister(ts ...Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Defs returns provider tool definitions in stable name order.
func (r *Registry) Defs() []provider.ToolDef {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]provider.ToolDef, len(names))
	for i, name := range names {
		t := r.tools[name]
		defs[i] = provider.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		}
	}
	return defs
}

// Execute runs a single tool call and always produces a result: unknown
// tools, invalid arguments, and execution failures all become error
// results the model sees as data.
func (r *Registry) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	result := models.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	tool, ok := r.tools[call.Name]
	if !ok {
		result.Content = fmt.Sprintf("unknown tool %q", call.Name)
		result.IsError = true
		return result
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		result.Content = fmt.Sprintf("arguments are not valid JSON: %v", err)
		result.IsError = true
		return result
	}
	if err := r.schemas[call.Name].Validate(decoded); err != nil {
		result.Content = fmt.Sprintf("invalid arguments: %v", err)
		result.IsError = true
		return result
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		result.Content = fmt.Sprintf("tool failed: %v", err)
		result.IsError = true
		return result
	}

	result.Content = out.Content
	result.IsError = out.IsError
	return result
}
