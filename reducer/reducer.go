package reducer

import (
	"fmt"

	"github.com/hupe1980/agentmem/core"
)

// Reducer maps (state, event) to a reducer result. Reducers must be pure:
// given the same state and event they return the same result, with no hidden
// I/O. Side effects belong to the orchestrator.
type Reducer interface {
	// EventTypes declares the event-type discriminants this reducer may handle.
	EventTypes() []core.EventType
	// CanHandle narrows within a declared event type (e.g. by payload shape).
	CanHandle(ev core.AgentEvent) bool
	// Reduce produces the operations and new chunks for the event.
	Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error)
}

// Registry indexes reducers by event type for O(1) candidate lookup. It is a
// plain value passed through constructor injection; multiple independent
// registries can coexist (subagents, test isolation).
type Registry struct {
	byType map[core.EventType][]Reducer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[core.EventType][]Reducer)}
}

// NewDefaultRegistry constructs a registry with all built-in reducers
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewConversationReducer())
	r.Register(NewToolReducer())
	r.Register(NewSubagentReducer())
	r.Register(NewTaskReducer())
	r.Register(NewTodoReducer())
	r.Register(NewMemoryReducer())
	return r
}

// Register adds a reducer under each of its declared event types. More than
// one reducer may handle the same type; results are concatenated in
// registration order.
func (r *Registry) Register(red Reducer) {
	for _, t := range red.EventTypes() {
		r.byType[t] = append(r.byType[t], red)
	}
}

// Reduce runs every matching reducer for the event and concatenates their
// operations and new chunks into one result. An event with no matching
// reducer yields an empty result, not an error.
func (r *Registry) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	var result core.ReducerResult
	for _, red := range r.byType[ev.Type] {
		if !red.CanHandle(ev) {
			continue
		}
		part, err := red.Reduce(state, ev)
		if err != nil {
			return core.ReducerResult{}, fmt.Errorf("reduce %s: %w", ev.Type, err)
		}
		result = result.Merge(part)
	}
	return result, nil
}

// appendToHistory produces the operations that place chunk into the state's
// working-history container: an ADD for the chunk itself plus either an
// UPDATE deriving the container with the new child id appended, or, when no
// container exists yet, an ADD creating one.
func appendToHistory(state core.State, chunk core.Chunk) core.ReducerResult {
	ops := []core.Operation{core.NewAddOperation(chunk.ID, nil)}
	chunks := []core.Chunk{chunk}

	if container, ok := state.WorkingHistory(); ok {
		next := core.AppendChild(container, chunk.ID)
		ops = append(ops, core.NewUpdateOperation(container.ID, next.ID))
		chunks = append(chunks, next)
	} else {
		container := core.NewChunk(core.ChunkSpec{
			Type:      core.ChunkTypeWorkingHistory,
			Retention: core.RetentionCritical,
			ChildIDs:  []string{chunk.ID},
		})
		pos := 0
		ops = append(ops, core.NewAddOperation(container.ID, &pos))
		chunks = append(chunks, container)
	}
	return core.ReducerResult{Operations: ops, NewChunks: chunks}
}
