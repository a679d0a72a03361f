package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/core"
)

func blueprintWithSubagent(name string) *core.Blueprint {
	return &core.Blueprint{
		Name: "parent",
		Subagents: map[string]*core.Blueprint{
			name: {Name: name},
		},
	}
}

func TestSpawnSubagentTool_EmitsSpawnEvent(t *testing.T) {
	spawn := NewSpawnSubagentTool()
	tc := NewToolContext("t1", "call-1", blueprintWithSubagent("researcher"))

	result, err := spawn.Call(tc, map[string]any{"name": "researcher", "task": "find references"})
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "researcher", out["subagent"])
	assert.NotEmpty(t, out["spawn_id"])

	events := tc.EmittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventLLMSubagentSpawn, events[0].Type)
	assert.Equal(t, out["spawn_id"], events[0].SpawnID)
	assert.Equal(t, "researcher", events[0].SubagentName)
	assert.Equal(t, "find references", events[0].Task)
}

func TestSpawnSubagentTool_ValidatesArgs(t *testing.T) {
	spawn := NewSpawnSubagentTool()
	bp := blueprintWithSubagent("researcher")

	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"missing name", map[string]any{"task": "x"}, "invalid_argument"},
		{"empty task", map[string]any{"name": "researcher", "task": ""}, "invalid_argument"},
		{"unknown subagent", map[string]any{"name": "ghost", "task": "x"}, "unknown_subagent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := NewToolContext("t1", "call-1", bp)
			_, err := spawn.Call(tc, tt.args)
			require.Error(t, err)
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.code, toolErr.Code)
			assert.Empty(t, tc.EmittedEvents(), "no event emitted on validation failure")
		})
	}
}

func TestRegistry_SelectSkipsUnknown(t *testing.T) {
	r := NewRegistry(NewSpawnSubagentTool())

	selected := r.Select([]string{"spawn_subagent", "missing"})
	require.Len(t, selected, 1)
	assert.Equal(t, "spawn_subagent", selected[0].Name())
	assert.Equal(t, []string{"spawn_subagent"}, r.Names())

	_, ok := r.Get("missing")
	assert.False(t, ok)
}
