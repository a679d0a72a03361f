package tool

import "sort"

// Registry is a named collection of tools. The zero value is usable.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry constructs a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	if r.tools == nil {
		r.tools = make(map[string]Tool)
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names sorted for deterministic listings.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the subset of tools named by a blueprint's tool list,
// silently skipping unknown names.
func (r *Registry) Select(names []string) []Tool {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}
