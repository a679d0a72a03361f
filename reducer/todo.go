package reducer

import "github.com/hupe1980/agentmem/core"

// CustomKeyTodoID identifies the todo item a todo chunk tracks.
const CustomKeyTodoID = "todo_id"

// TodoReducer maintains one CRITICAL chunk per tracked todo item, outside the
// working-history container. Updates derive a new chunk (lineage preserved);
// deletion removes the chunk from the current state only.
type TodoReducer struct{}

// NewTodoReducer constructs the built-in todo reducer.
func NewTodoReducer() *TodoReducer { return &TodoReducer{} }

// EventTypes implements Reducer.
func (r *TodoReducer) EventTypes() []core.EventType {
	return []core.EventType{
		core.EventTodoSet,
		core.EventTodoCompleted,
		core.EventTodoExpanded,
		core.EventTodoUpdated,
		core.EventTodoDeleted,
	}
}

// CanHandle implements Reducer.
func (r *TodoReducer) CanHandle(ev core.AgentEvent) bool { return ev.TodoID != "" }

// Reduce implements Reducer.
func (r *TodoReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	existing, found := findTodo(state, ev.TodoID)

	switch ev.Type {
	case core.EventTodoSet:
		chunk := core.NewChunk(core.ChunkSpec{
			Type:      core.ChunkTypeTodo,
			Content:   core.Text(ev.Text),
			Retention: core.RetentionCritical,
			Mutable:   true,
			Custom:    map[string]any{CustomKeyTodoID: ev.TodoID, "done": false},
		})
		if found {
			return core.ReducerResult{
				Operations: []core.Operation{core.NewUpdateOperation(existing.ID, chunk.ID)},
				NewChunks:  []core.Chunk{chunk},
			}, nil
		}
		return core.ReducerResult{
			Operations: []core.Operation{core.NewAddOperation(chunk.ID, nil)},
			NewChunks:  []core.Chunk{chunk},
		}, nil

	case core.EventTodoCompleted:
		if !found {
			return core.ReducerResult{}, nil
		}
		chunk := core.DeriveChunk(existing, func(spec *core.ChunkSpec) {
			spec.Custom["done"] = true
		})
		return updateTodo(existing, chunk), nil

	case core.EventTodoExpanded:
		if !found {
			return core.ReducerResult{}, nil
		}
		chunk := core.DeriveChunk(existing, func(spec *core.ChunkSpec) {
			spec.Content = core.Text(core.ContentText(spec.Content) + "\n" + ev.Text)
		})
		return updateTodo(existing, chunk), nil

	case core.EventTodoUpdated:
		if !found {
			return core.ReducerResult{}, nil
		}
		chunk := core.DeriveChunk(existing, func(spec *core.ChunkSpec) {
			spec.Content = core.Text(ev.Text)
		})
		return updateTodo(existing, chunk), nil

	case core.EventTodoDeleted:
		if !found {
			return core.ReducerResult{}, nil
		}
		return core.ReducerResult{
			Operations: []core.Operation{core.NewDeleteOperation(existing.ID)},
		}, nil
	}
	return core.ReducerResult{}, nil
}

func updateTodo(existing, next core.Chunk) core.ReducerResult {
	return core.ReducerResult{
		Operations: []core.Operation{core.NewUpdateOperation(existing.ID, next.ID)},
		NewChunks:  []core.Chunk{next},
	}
}

func findTodo(state core.State, todoID string) (core.Chunk, bool) {
	for _, c := range state.ChunksByType(core.ChunkTypeTodo) {
		if c.Metadata.Custom[CustomKeyTodoID] == todoID {
			return c, true
		}
	}
	return core.Chunk{}, false
}
