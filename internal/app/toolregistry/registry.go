package toolregistry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"retouch/internal/domain/adjust"
	"retouch/internal/domain/agent/ports"
)

// Registry is the operation catalogue: every executor the decision-maker
// may call, keyed by its exact name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]ports.ToolExecutor
	order  []string
	// sorted is rebuilt on every Register and shared by List callers.
	sorted []ports.ToolDefinition
}

// Config selects the adjustment library the built-in executors bind to.
type Config struct {
	Library *adjust.Library
}

// NewRegistry returns a registry holding the built-in catalogue.
func NewRegistry(config Config) (*Registry, error) {
	lib := config.Library
	if lib == nil {
		lib = adjust.Default()
	}
	r := &Registry{byName: make(map[string]ports.ToolExecutor)}
	for _, tool := range builtinTools(lib) {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an executor under its definition name.
func (r *Registry) Register(tool ports.ToolExecutor) error {
	def := tool.Definition()
	if def.Name == "" {
		return errors.New("tool definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.byName[def.Name] = tool
	r.order = append(r.order, def.Name)

	sorted := make([]ports.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		sorted = append(sorted, r.byName[name].Definition())
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	r.sorted = sorted
	return nil
}

// Get resolves an exact name. Near-misses are repaired by the plan
// sequencer, never here.
func (r *Registry) Get(name string) (ports.ToolExecutor, error) {
	r.mu.RLock()
	tool, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownOperation, name)
	}
	return tool, nil
}

// List returns every definition sorted by name. Callers must not modify it.
func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted
}

// Names lists one category in registration order; "" lists everything.
func (r *Registry) Names(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if category == "" || r.byName[name].Metadata().Category == category {
			names = append(names, name)
		}
	}
	return names
}

// Definitions returns the named definitions in argument order, skipping
// names that are not registered.
func (r *Registry) Definitions(names ...string) []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ports.ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.byName[name]; ok {
			defs = append(defs, tool.Definition())
		}
	}
	return defs
}

var _ ports.ToolRegistry = (*Registry)(nil)
