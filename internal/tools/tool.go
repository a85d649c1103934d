package tools

import (
	"context"
	"sync"
)

// Result is the structured outcome of a tool invocation. Validation
// failures are expressed here with success=false, never as Go errors.
type Result map[string]any

// Tool is one side-effecting capability the engine can dispatch to on
// auto-resolution.
type Tool interface {
	Name() string
	// Execute runs the tool. The error return is reserved for
	// infrastructure failure; rejected input must come back as a Result
	// with "success": false.
	Execute(ctx context.Context, params map[string]any) (Result, error)
}

// Registry holds registered tools and dispatches execution by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute runs the named tool. An unknown tool name yields a
// tool_not_implemented result, not an error; the engine records it and
// moves on.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (Result, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return Result{"success": false, "error": "tool_not_implemented", "tool": name}, nil
	}
	return t.Execute(ctx, params)
}
