package reducer

import "github.com/hupe1980/agentmem/core"

// Custom metadata keys written by the subagent reducer and consumed by the
// orchestrator when materializing child threads.
const (
	// CustomKeySpawnID correlates a spawn chunk with the tool call that
	// requested it.
	CustomKeySpawnID = "spawn_id"
	// CustomKeySubagentName names the blueprint the child is created from.
	CustomKeySubagentName = "subagent_name"
	// CustomKeySubagentThreadID links a result chunk to the child thread.
	CustomKeySubagentThreadID = "subagent_thread_id"
)

// SubagentReducer records delegation requests and subagent outcomes. The
// spawn chunk is CRITICAL so the delegation intent survives compaction; the
// orchestrator materializes the child thread when it processes the spawn
// event, keeping this reducer pure.
type SubagentReducer struct{}

// NewSubagentReducer constructs the built-in subagent reducer.
func NewSubagentReducer() *SubagentReducer { return &SubagentReducer{} }

// EventTypes implements Reducer.
func (r *SubagentReducer) EventTypes() []core.EventType {
	return []core.EventType{
		core.EventLLMSubagentSpawn,
		core.EventLLMSubagentMessage,
		core.EventSubagentResult,
		core.EventSubagentError,
	}
}

// CanHandle implements Reducer.
func (r *SubagentReducer) CanHandle(ev core.AgentEvent) bool {
	switch ev.Type {
	case core.EventLLMSubagentSpawn:
		return ev.SubagentName != ""
	case core.EventSubagentError:
		// materialization failures carry a spawn id but no child thread
		return ev.SubagentThreadID != "" || ev.SpawnID != ""
	default:
		return ev.SubagentThreadID != ""
	}
}

// Reduce implements Reducer.
func (r *SubagentReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	var spec core.ChunkSpec
	switch ev.Type {
	case core.EventLLMSubagentSpawn:
		spec = core.ChunkSpec{
			Type:      core.ChunkTypeSubagentSpawn,
			Content:   core.Text(ev.Task),
			Retention: core.RetentionCritical,
			Custom: map[string]any{
				CustomKeySpawnID:      ev.SpawnID,
				CustomKeySubagentName: ev.SubagentName,
			},
		}

	case core.EventLLMSubagentMessage:
		spec = core.ChunkSpec{
			Type:      core.ChunkTypeDelegation,
			Subtype:   "message",
			Content:   core.Text(ev.Text),
			Retention: core.RetentionCompressible,
			Custom:    map[string]any{CustomKeySubagentThreadID: ev.SubagentThreadID},
		}

	case core.EventSubagentResult:
		spec = core.ChunkSpec{
			Type:      core.ChunkTypeSubagentResult,
			Content:   core.Text(ev.Text),
			Retention: core.RetentionCompressible,
			Custom: map[string]any{
				CustomKeySubagentThreadID: ev.SubagentThreadID,
				"success":                 true,
			},
		}

	case core.EventSubagentError:
		custom := map[string]any{"success": false}
		if ev.SubagentThreadID != "" {
			custom[CustomKeySubagentThreadID] = ev.SubagentThreadID
		}
		if ev.SpawnID != "" {
			custom[CustomKeySpawnID] = ev.SpawnID
		}
		spec = core.ChunkSpec{
			Type:      core.ChunkTypeDelegation,
			Subtype:   "error",
			Content:   core.Text(ev.ErrorText),
			Retention: core.RetentionCompressible,
			Custom:    custom,
		}
	}
	return appendToHistory(state, core.NewChunk(spec)), nil
}
