package reducer

import "github.com/hupe1980/agentmem/core"

// MemoryReducer handles explicit retention overrides: pinning a chunk against
// compaction and forgetting a chunk from the current state. Forgotten chunks
// stay reachable through prior states, so the audit trail is intact.
type MemoryReducer struct{}

// NewMemoryReducer constructs the built-in memory management reducer.
func NewMemoryReducer() *MemoryReducer { return &MemoryReducer{} }

// EventTypes implements Reducer.
func (r *MemoryReducer) EventTypes() []core.EventType {
	return []core.EventType{
		core.EventMemoryMarkCritical,
		core.EventMemoryForget,
	}
}

// CanHandle implements Reducer.
func (r *MemoryReducer) CanHandle(ev core.AgentEvent) bool { return ev.ChunkID != "" }

// Reduce implements Reducer.
func (r *MemoryReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	switch ev.Type {
	case core.EventMemoryMarkCritical:
		target, ok := state.Chunk(ev.ChunkID)
		if !ok {
			// referencing a vanished chunk is a no-op, not an error
			return core.ReducerResult{}, nil
		}
		if target.Retention == core.RetentionCritical {
			return core.ReducerResult{}, nil
		}
		pinned := core.DeriveChunk(target, func(spec *core.ChunkSpec) {
			spec.Retention = core.RetentionCritical
		})
		result := core.ReducerResult{
			Operations: []core.Operation{core.NewUpdateOperation(target.ID, pinned.ID)},
			NewChunks:  []core.Chunk{pinned},
		}
		// keep the container's child reference pointing at the new id
		if container, ok := state.WorkingHistory(); ok && containsID(container.ChildIDs, target.ID) {
			next := core.ReplaceChildren(container, []string{target.ID}, pinned.ID)
			result.Operations = append(result.Operations, core.NewUpdateOperation(container.ID, next.ID))
			result.NewChunks = append(result.NewChunks, next)
		}
		return result, nil

	case core.EventMemoryForget:
		if _, ok := state.Chunk(ev.ChunkID); !ok {
			return core.ReducerResult{}, nil
		}
		result := core.ReducerResult{
			Operations: []core.Operation{core.NewDeleteOperation(ev.ChunkID)},
		}
		if container, ok := state.WorkingHistory(); ok && containsID(container.ChildIDs, ev.ChunkID) {
			next := core.RemoveChildren(container, []string{ev.ChunkID})
			result.Operations = append(result.Operations, core.NewUpdateOperation(container.ID, next.ID))
			result.NewChunks = append(result.NewChunks, next)
		}
		return result, nil
	}
	return core.ReducerResult{}, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
