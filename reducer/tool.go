package reducer

import "github.com/hupe1980/agentmem/core"

// ToolReducer records tool and skill invocations and their outcomes as
// working-history chunks. Failures are not exceptions: a tool error reduces
// to a result chunk flagged success=false, preserving the failure in the
// permanent, inspectable history.
type ToolReducer struct{}

// NewToolReducer constructs the built-in tool/skill reducer.
func NewToolReducer() *ToolReducer { return &ToolReducer{} }

// EventTypes implements Reducer.
func (r *ToolReducer) EventTypes() []core.EventType {
	return []core.EventType{
		core.EventLLMToolCall,
		core.EventLLMSkillCall,
		core.EventToolResult,
		core.EventToolError,
		core.EventSkillResult,
		core.EventSkillError,
	}
}

// CanHandle implements Reducer.
func (r *ToolReducer) CanHandle(ev core.AgentEvent) bool {
	return ev.Name != ""
}

// Reduce implements Reducer.
func (r *ToolReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	var spec core.ChunkSpec
	switch ev.Type {
	case core.EventLLMToolCall, core.EventLLMSkillCall:
		spec = core.ChunkSpec{
			Content: core.RawContent{Fields: map[string]any{
				"name":      ev.Name,
				"arguments": ev.Arguments,
			}},
			Retention: core.RetentionCompressible,
			Custom:    map[string]any{"call_id": ev.CallID, "name": ev.Name},
		}
		if ev.Type == core.EventLLMToolCall {
			spec.Type = core.ChunkTypeToolCall
		} else {
			spec.Type = core.ChunkTypeSkillCall
		}

	case core.EventToolResult, core.EventSkillResult:
		spec = core.ChunkSpec{
			Content:   resultContent(ev.Result),
			Retention: core.RetentionDisposable,
			Custom:    map[string]any{"call_id": ev.CallID, "name": ev.Name, "success": true},
		}
		if ev.Type == core.EventToolResult {
			spec.Type = core.ChunkTypeToolResult
		} else {
			spec.Type = core.ChunkTypeSkillResult
		}

	case core.EventToolError, core.EventSkillError:
		spec = core.ChunkSpec{
			Content:   core.Text(ev.ErrorText),
			Retention: core.RetentionDisposable,
			Custom:    map[string]any{"call_id": ev.CallID, "name": ev.Name, "success": false},
		}
		if ev.Type == core.EventToolError {
			spec.Type = core.ChunkTypeToolResult
		} else {
			spec.Type = core.ChunkTypeSkillResult
		}
	}
	return appendToHistory(state, core.NewChunk(spec)), nil
}

func resultContent(result any) core.Content {
	switch v := result.(type) {
	case nil:
		return core.Text("")
	case string:
		return core.Text(v)
	case map[string]any:
		return core.RawContent{Fields: v}
	default:
		return core.RawContent{Fields: map[string]any{"result": v}}
	}
}
