package reducer

import "github.com/hupe1980/agentmem/core"

// TaskReducer records terminal task outcomes as CRITICAL task-output chunks
// outside the working-history container, so compaction can never fold the
// final result away.
type TaskReducer struct{}

// NewTaskReducer constructs the built-in task lifecycle reducer.
func NewTaskReducer() *TaskReducer { return &TaskReducer{} }

// EventTypes implements Reducer.
func (r *TaskReducer) EventTypes() []core.EventType {
	return []core.EventType{
		core.EventTaskCompleted,
		core.EventTaskAbandoned,
		core.EventTaskTerminated,
	}
}

// CanHandle implements Reducer.
func (r *TaskReducer) CanHandle(core.AgentEvent) bool { return true }

// Reduce implements Reducer.
func (r *TaskReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	success := ev.Type == core.EventTaskCompleted
	subtype := map[core.EventType]string{
		core.EventTaskCompleted:  "completed",
		core.EventTaskAbandoned:  "abandoned",
		core.EventTaskTerminated: "terminated",
	}[ev.Type]

	chunk := core.NewChunk(core.ChunkSpec{
		Type:      core.ChunkTypeTaskOutput,
		Subtype:   subtype,
		Content:   core.Text(ev.Text),
		Retention: core.RetentionCritical,
		Custom:    map[string]any{"success": success},
	})
	return core.ReducerResult{
		Operations: []core.Operation{core.NewAddOperation(chunk.ID, nil)},
		NewChunks:  []core.Chunk{chunk},
	}, nil
}
