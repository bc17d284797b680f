package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Result is what a tool invocation produces: output text plus the URLs the
// data came from, kept for citation in the final answer.
type Result struct {
	Output     string
	SourceURLs []string
}

// Tool is the capability contract the orchestration core programs against.
// Search, browser fetch and skill dispatch all implement it.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Invoke(ctx context.Context, args map[string]interface{}) (Result, error)
}

// ErrToolNotFound indicates a selected tool name is not registered.
var ErrToolNotFound = fmt.Errorf("tool not found")

// Registry holds the available tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry from the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Descriptions renders the tool catalog for the selection prompt: name,
// description and input schema per tool.
func (r *Registry) Descriptions() string {
	var b strings.Builder
	for _, t := range r.List() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		schema := t.InputSchema()
		if props, ok := schema["properties"].(map[string]interface{}); ok && len(props) > 0 {
			keys := make([]string, 0, len(props))
			for k := range props {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				desc := ""
				if pm, ok := props[k].(map[string]interface{}); ok {
					if d, ok := pm["description"].(string); ok {
						desc = d
					}
				}
				fmt.Fprintf(&b, "    %s: %s\n", k, desc)
			}
		}
	}
	return b.String()
}
