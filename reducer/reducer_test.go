package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/core"
)

func apply(t *testing.T, state core.State, result core.ReducerResult) core.State {
	t.Helper()
	next, _, err := core.ApplyOperations(state, result.Operations, result.NewChunks, nil)
	require.NoError(t, err)
	return next
}

func TestRegistry_NoMatchingReducerYieldsEmptyResult(t *testing.T) {
	r := NewRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewUserMessageEvent("hello"))
	require.NoError(t, err)
	assert.True(t, result.IsNoOp())
	assert.Empty(t, result.NewChunks)
}

func TestConversationReducer_FirstMessageCreatesContainer(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewUserMessageEvent("hello"))
	require.NoError(t, err)
	next := apply(t, state, result)

	require.Len(t, next.ChunkIDs, 2)
	container, ok := next.WorkingHistory()
	require.True(t, ok)

	messages := next.ChunksByType(core.ChunkTypeUserMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, []string{messages[0].ID}, container.ChildIDs)
	assert.Equal(t, "hello", core.ContentText(messages[0].Content))
}

func TestConversationReducer_SequentialMessagesKeepDispatchOrder(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	for _, text := range []string{"first", "second"} {
		result, err := r.Reduce(state, core.NewUserMessageEvent(text))
		require.NoError(t, err)
		state = apply(t, state, result)
	}

	container, ok := state.WorkingHistory()
	require.True(t, ok)
	require.Len(t, container.ChildIDs, 2)

	first, _ := state.Chunk(container.ChildIDs[0])
	second, _ := state.Chunk(container.ChildIDs[1])
	assert.Equal(t, "first", core.ContentText(first.Content))
	assert.Equal(t, "second", core.ContentText(second.Content))
}

func TestToolReducer_ErrorBecomesFailureChunk(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewToolErrorEvent("call-1", "search", "boom"))
	require.NoError(t, err)
	next := apply(t, state, result)

	results := next.ChunksByType(core.ChunkTypeToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, false, results[0].Metadata.Custom["success"])
	assert.Equal(t, "boom", core.ContentText(results[0].Content))
}

func TestSubagentReducer_SpawnChunkIsCritical(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewSubagentSpawnEvent("spawn-1", "researcher", "find things"))
	require.NoError(t, err)
	next := apply(t, state, result)

	spawns := next.ChunksByType(core.ChunkTypeSubagentSpawn)
	require.Len(t, spawns, 1)
	assert.Equal(t, core.RetentionCritical, spawns[0].Retention)
	assert.Equal(t, "spawn-1", spawns[0].Metadata.Custom[CustomKeySpawnID])
	assert.Equal(t, "researcher", spawns[0].Metadata.Custom[CustomKeySubagentName])
}

func TestSubagentReducer_ErrorWithSpawnIDOnly(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	// a failed materialization has a spawn id but never got a child thread
	ev := core.NewSubagentErrorEvent("", "unknown subagent")
	ev.SpawnID = "spawn-1"

	result, err := r.Reduce(state, ev)
	require.NoError(t, err)
	require.False(t, result.IsNoOp(), "the failure must be recorded")
	next := apply(t, state, result)

	delegations := next.ChunksByType(core.ChunkTypeDelegation)
	require.Len(t, delegations, 1)
	assert.Equal(t, "error", delegations[0].Subtype)
	assert.Equal(t, false, delegations[0].Metadata.Custom["success"])
	assert.Equal(t, "spawn-1", delegations[0].Metadata.Custom[CustomKeySpawnID])
	assert.NotContains(t, delegations[0].Metadata.Custom, CustomKeySubagentThreadID)
	assert.Equal(t, "unknown subagent", core.ContentText(delegations[0].Content))
}

func TestTaskReducer_OutputOutsideContainer(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewUserMessageEvent("go"))
	require.NoError(t, err)
	state = apply(t, state, result)

	result, err = r.Reduce(state, core.NewTaskCompletedEvent("done"))
	require.NoError(t, err)
	state = apply(t, state, result)

	outputs := state.ChunksByType(core.ChunkTypeTaskOutput)
	require.Len(t, outputs, 1)
	assert.Equal(t, core.RetentionCritical, outputs[0].Retention)

	container, _ := state.WorkingHistory()
	assert.NotContains(t, container.ChildIDs, outputs[0].ID)
}

func TestTodoReducer_Lifecycle(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewTodoSetEvent("todo-1", "write tests"))
	require.NoError(t, err)
	state = apply(t, state, result)

	todos := state.ChunksByType(core.ChunkTypeTodo)
	require.Len(t, todos, 1)
	assert.Equal(t, false, todos[0].Metadata.Custom["done"])

	result, err = r.Reduce(state, core.NewTodoCompletedEvent("todo-1"))
	require.NoError(t, err)
	state = apply(t, state, result)

	todos = state.ChunksByType(core.ChunkTypeTodo)
	require.Len(t, todos, 1)
	assert.Equal(t, true, todos[0].Metadata.Custom["done"])
	assert.NotEmpty(t, todos[0].Metadata.ParentIDs, "completion should derive, not mutate")

	result, err = r.Reduce(state, core.NewTodoDeletedEvent("todo-1"))
	require.NoError(t, err)
	state = apply(t, state, result)
	assert.Empty(t, state.ChunksByType(core.ChunkTypeTodo))
}

func TestMemoryReducer_MarkCriticalRewiresContainer(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewUserMessageEvent("remember this"))
	require.NoError(t, err)
	state = apply(t, state, result)

	target := state.ChunksByType(core.ChunkTypeUserMessage)[0]
	result, err = r.Reduce(state, core.NewMarkCriticalEvent(target.ID))
	require.NoError(t, err)
	state = apply(t, state, result)

	messages := state.ChunksByType(core.ChunkTypeUserMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, core.RetentionCritical, messages[0].Retention)

	container, _ := state.WorkingHistory()
	assert.Equal(t, []string{messages[0].ID}, container.ChildIDs)
}

func TestMemoryReducer_ForgetRemovesFromContainer(t *testing.T) {
	r := NewDefaultRegistry()
	state := core.NewState("t1", nil, nil)

	for _, text := range []string{"keep", "drop"} {
		result, err := r.Reduce(state, core.NewUserMessageEvent(text))
		require.NoError(t, err)
		state = apply(t, state, result)
	}
	container, _ := state.WorkingHistory()
	dropID := container.ChildIDs[1]

	result, err := r.Reduce(state, core.NewForgetEvent(dropID))
	require.NoError(t, err)
	state = apply(t, state, result)

	_, ok := state.Chunk(dropID)
	assert.False(t, ok)
	container, _ = state.WorkingHistory()
	assert.Len(t, container.ChildIDs, 1)
}

// customReducer verifies that more than one reducer can claim the same event
// type and results concatenate.
type customReducer struct{}

func (customReducer) EventTypes() []core.EventType { return []core.EventType{core.EventUserMessage} }
func (customReducer) CanHandle(core.AgentEvent) bool { return true }
func (customReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	c := core.NewChunk(core.ChunkSpec{Type: core.ChunkTypeTodo, Content: core.Text("auto: " + ev.Text), Custom: map[string]any{CustomKeyTodoID: "auto"}})
	return core.ReducerResult{
		Operations: []core.Operation{core.NewAddOperation(c.ID, nil)},
		NewChunks:  []core.Chunk{c},
	}, nil
}

func TestRegistry_MultipleReducersPerEventType(t *testing.T) {
	r := NewDefaultRegistry()
	r.Register(customReducer{})
	state := core.NewState("t1", nil, nil)

	result, err := r.Reduce(state, core.NewUserMessageEvent("hi"))
	require.NoError(t, err)
	next := apply(t, state, result)

	assert.Len(t, next.ChunksByType(core.ChunkTypeUserMessage), 1)
	assert.Len(t, next.ChunksByType(core.ChunkTypeTodo), 1)
}
