package tool

import (
	"github.com/hupe1980/agentmem/core"
)

// spawnSubagentTool delegates a task to a named subagent. The tool itself only
// validates the request against the caller's blueprint and emits a spawn event
// carrying a synthetic spawn id; the orchestrator materializes the child
// thread when the event is processed.
type spawnSubagentTool struct{}

// NewSpawnSubagentTool constructs the spawn tool instance.
func NewSpawnSubagentTool() Tool { return &spawnSubagentTool{} }

func (t *spawnSubagentTool) Name() string { return "spawn_subagent" }

func (t *spawnSubagentTool) Description() string {
	return "Delegate a task to a named subagent. The subagent runs independently and reports back when finished."
}

func (t *spawnSubagentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "description": "Subagent name from the blueprint"},
			"task": map[string]any{"type": "string", "description": "Task for the subagent to carry out"},
		},
		"required": []string{"name", "task"},
	}
}

func (t *spawnSubagentTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, NewToolError(t.Name(), "field 'name' must be a non-empty string", "invalid_argument")
	}
	task, ok := args["task"].(string)
	if !ok || task == "" {
		return nil, NewToolError(t.Name(), "field 'task' must be a non-empty string", "invalid_argument")
	}
	if tc.Blueprint == nil || tc.Blueprint.Subagents[name] == nil {
		return nil, NewToolError(t.Name(), "unknown subagent: "+name, "unknown_subagent")
	}

	spawnID := core.NewID()
	tc.EmitEvent(core.NewSubagentSpawnEvent(spawnID, name, task))
	return map[string]any{"spawn_id": spawnID, "subagent": name}, nil
}
