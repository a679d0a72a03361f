package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/model"
	"github.com/hupe1980/agentmem/reducer"
	"github.com/hupe1980/agentmem/store"
)

func simpleBlueprint() core.Blueprint {
	return core.Blueprint{
		Name: "assistant",
		InitialChunks: []core.BlueprintChunk{
			{Type: core.ChunkTypeSystem, Text: "Be helpful."},
		},
		ExecutionMode: core.ModeStepping,
	}
}

func TestCreateThread_InitialState(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)
	assert.Equal(t, thread.InitialStateID, thread.CurrentStateID)

	state, err := e.CurrentState(ctx, thread.ID)
	require.NoError(t, err)

	systems := state.ChunksByType(core.ChunkTypeSystem)
	require.Len(t, systems, 1)
	assert.Equal(t, "Be helpful.", core.ContentText(systems[0].Content))
	assert.Equal(t, core.RetentionCritical, systems[0].Retention)

	container, ok := state.WorkingHistory()
	require.True(t, ok)
	assert.Empty(t, container.ChildIDs)

	require.NotNil(t, state.Metadata.Provenance)
	assert.Equal(t, core.SourceInitialization, state.Metadata.Provenance.Source)
}

func TestDispatch_UserMessageAppendsToHistory(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)
	before, err := e.CurrentState(ctx, thread.ID)
	require.NoError(t, err)

	res, err := e.Dispatch(ctx, thread.ID, core.NewUserMessageEvent("hello"))
	require.NoError(t, err)

	assert.NotEqual(t, before.ID, res.State.ID)
	assert.Equal(t, before.ID, res.State.Metadata.PreviousStateID)
	assert.Len(t, res.AddedChunkIDs, 2, "message plus derived container")

	messages := res.State.ChunksByType(core.ChunkTypeUserMessage)
	require.Len(t, messages, 1)
	container, ok := res.State.WorkingHistory()
	require.True(t, ok)
	assert.Equal(t, []string{messages[0].ID}, container.ChildIDs)

	require.NotNil(t, res.State.Metadata.Provenance)
	assert.Equal(t, core.SourceEventDispatch, res.State.Metadata.Provenance.Source)

	// thread pointer advanced and step recorded
	updated, err := e.store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, res.State.ID, updated.CurrentStateID)

	step, err := e.store.GetStep(ctx, res.StepID)
	require.NoError(t, err)
	assert.Equal(t, core.StepCompleted, step.Status)
	assert.Equal(t, before.ID, step.FromStateID)
	assert.Equal(t, res.State.ID, step.ToStateID)
}

func TestDispatch_NoOpFastPath(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)
	before, err := e.CurrentState(ctx, thread.ID)
	require.NoError(t, err)

	// forgetting an absent chunk reduces to nothing
	res, err := e.Dispatch(ctx, thread.ID, core.NewForgetEvent("missing"))
	require.NoError(t, err)
	assert.Equal(t, before.ID, res.State.ID)
	assert.Empty(t, res.AddedChunkIDs)
	assert.Empty(t, res.RemovedChunkIDs)

	step, err := e.store.GetStep(ctx, res.StepID)
	require.NoError(t, err)
	assert.Equal(t, core.StepCompleted, step.Status)
	assert.Equal(t, before.ID, step.ToStateID)
}

func TestDispatch_StrategyFlags(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)

	res, err := e.Dispatch(ctx, thread.ID, core.NewTaskCompletedEvent("done"))
	require.NoError(t, err)
	assert.True(t, res.ShouldTerminate)
	assert.False(t, res.ShouldInterrupt)

	// terminal output is recorded outside the working history
	outputs := res.State.ChunksByType(core.ChunkTypeTaskOutput)
	require.Len(t, outputs, 1)
	container, ok := res.State.WorkingHistory()
	require.True(t, ok)
	assert.NotContains(t, container.ChildIDs, outputs[0].ID)
}

func TestSteppingMode_DefersProcessing(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)
	require.NoError(t, e.EnqueueEvent(ctx, thread.ID, core.NewTodoSetEvent("todo-1", "write tests")))

	n, err := e.store.QueueLength(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "stepping mode must not auto-drain the queue")

	res, err := e.StepThread(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.State.ChunksByType(core.ChunkTypeTodo), 1)

	res, err = e.StepThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Nil(t, res, "empty queue steps to nil")
}

func TestAutoMode_DrivesModelTurn(t *testing.T) {
	ctx := context.Background()
	mock := model.NewMockModel("mock")
	mock.AddResponse("ping", model.Response{Content: "pong"})

	e := New(func(o *Options) { o.Model = mock })

	bp := simpleBlueprint()
	bp.ExecutionMode = core.ModeAuto
	thread, err := e.CreateThread(ctx, bp, "")
	require.NoError(t, err)

	require.NoError(t, e.EnqueueEvent(ctx, thread.ID, core.NewUserMessageEvent("ping")))
	e.Wait(thread.ID)

	state, err := e.CurrentState(ctx, thread.ID)
	require.NoError(t, err)
	assistants := state.ChunksByType(core.ChunkTypeAssistantMessage)
	require.Len(t, assistants, 1)
	assert.Equal(t, "pong", core.ContentText(assistants[0].Content))

	container, ok := state.WorkingHistory()
	require.True(t, ok)
	assert.Len(t, container.ChildIDs, 2, "user message and assistant response in order")
}

func TestSubagent_TwoPhaseSpawnAndResult(t *testing.T) {
	ctx := context.Background()
	mock := model.NewMockModel("mock")
	mock.AddResponse("delegate", model.Response{
		ToolCalls: []model.ToolCall{{
			ID:   "call-1",
			Name: "spawn_subagent",
			Arguments: map[string]any{
				"name": "researcher",
				"task": "investigate goroutines",
			},
		}},
	})
	mock.AddResponse("investigate goroutines", model.Response{Content: "found three patterns"})

	obs := &spawnObserver{}
	e := New(func(o *Options) {
		o.Model = mock
		o.Observers = []core.Observer{obs}
	})

	bp := core.Blueprint{
		Name:  "orchestrator",
		Tools: []string{"spawn_subagent"},
		InitialChunks: []core.BlueprintChunk{
			{Type: core.ChunkTypeSystem, Text: "Delegate research tasks."},
		},
		Subagents: map[string]*core.Blueprint{
			"researcher": {Name: "researcher"},
		},
	}

	parent, err := e.CreateThread(ctx, bp, "")
	require.NoError(t, err)
	require.NoError(t, e.EnqueueEvent(ctx, parent.ID, core.NewUserMessageEvent("please delegate this")))
	e.Wait(parent.ID)

	// the spawn event materialized a linked child thread
	parentThread, err := e.store.GetThread(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, parentThread.ChildThreadIDs, 1)
	childID := parentThread.ChildThreadIDs[0]
	e.Wait(childID)

	child, err := e.store.GetThread(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ParentThreadID)
	assert.Equal(t, parent.ID, obs.spawnedParent)
	assert.Equal(t, childID, obs.spawnedChild)

	parentState, err := e.CurrentState(ctx, parent.ID)
	require.NoError(t, err)
	spawns := parentState.ChunksByType(core.ChunkTypeSubagentSpawn)
	require.Len(t, spawns, 1)
	assert.Equal(t, core.RetentionCritical, spawns[0].Retention)

	// child inherited the parent's system context and worked the task
	childState, err := e.CurrentState(ctx, childID)
	require.NoError(t, err)
	systems := childState.ChunksByType(core.ChunkTypeSystem)
	require.NotEmpty(t, systems)
	assistants := childState.ChunksByType(core.ChunkTypeAssistantMessage)
	require.Len(t, assistants, 1)
	assert.Equal(t, "found three patterns", core.ContentText(assistants[0].Content))

	// completing the child's task reports back to the parent via events only
	require.NoError(t, e.EnqueueEvent(ctx, childID, core.NewTaskCompletedEvent("summary of findings")))
	e.Wait(childID)

	require.Eventually(t, func() bool {
		state, err := e.CurrentState(ctx, parent.ID)
		if err != nil {
			return false
		}
		return len(state.ChunksByType(core.ChunkTypeSubagentResult)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	state, err := e.CurrentState(ctx, parent.ID)
	require.NoError(t, err)
	results := state.ChunksByType(core.ChunkTypeSubagentResult)
	require.Len(t, results, 1)
	assert.Contains(t, core.ContentText(results[0].Content), "summary of findings")
	assert.True(t, obs.completedSuccess)
}

func TestObserverPanicIsolated(t *testing.T) {
	ctx := context.Background()
	e := New(func(o *Options) {
		o.Observers = []core.Observer{panickyObserver{}}
	})

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)

	res, err := e.Dispatch(ctx, thread.ID, core.NewUserMessageEvent("hello"))
	require.NoError(t, err)
	assert.Len(t, res.State.ChunksByType(core.ChunkTypeUserMessage), 1)
}

func TestCheckCompactionNeeded_UsesCurrentState(t *testing.T) {
	ctx := context.Background()
	e := New(func(o *Options) { o.Store = store.NewInMemoryStore() })

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)

	usage, err := e.CheckCompactionNeeded(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, usage.TotalTokens)
	assert.False(t, usage.SuggestCompaction)

	res, err := e.Dispatch(ctx, thread.ID, core.NewUserMessageEvent("some working content"))
	require.NoError(t, err)
	require.NotNil(t, res)

	usage, err = e.CheckCompactionNeeded(ctx, thread.ID)
	require.NoError(t, err)
	assert.Greater(t, usage.TotalTokens, 0)
	assert.NotEmpty(t, usage.ChunksToCompact)
}

func TestDispatch_SpawnFailurePreservedAsDelegationError(t *testing.T) {
	ctx := context.Background()
	e := New()

	// blueprint declares no subagents, so materialization must fail
	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)

	spawnID := core.NewID()
	res, err := e.Dispatch(ctx, thread.ID, core.NewSubagentSpawnEvent(spawnID, "ghost", "find something"))
	require.NoError(t, err)
	require.NotNil(t, res)

	// the failure is enqueued as a subagent error event carrying the spawn id
	n, err := e.store.QueueLength(ctx, thread.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	res, err = e.StepThread(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, res)

	delegations := res.State.ChunksByType(core.ChunkTypeDelegation)
	require.Len(t, delegations, 1, "spawn failure must leave a delegation chunk")
	assert.Equal(t, "error", delegations[0].Subtype)
	assert.Equal(t, false, delegations[0].Metadata.Custom["success"])
	assert.Equal(t, spawnID, delegations[0].Metadata.Custom[reducer.CustomKeySpawnID])
}

func TestCheckCompactionNeeded_BlueprintAutoCompactThreshold(t *testing.T) {
	ctx := context.Background()
	e := New()

	bp := simpleBlueprint()
	bp.AutoCompactThreshold = 10
	thread, err := e.CreateThread(ctx, bp, "")
	require.NoError(t, err)

	_, err = e.Dispatch(ctx, thread.ID, core.NewUserMessageEvent(strings.Repeat("a", 400)))
	require.NoError(t, err)

	usage, err := e.CheckCompactionNeeded(ctx, thread.ID)
	require.NoError(t, err)
	assert.True(t, usage.ForceCompaction, "blueprint threshold overrides the default")
	assert.False(t, usage.SuggestCompaction, "default soft threshold still applies")
}

func TestStateCacheKeepsOneEntryPerThread(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := e.Dispatch(ctx, thread.ID, core.NewUserMessageEvent("tick"))
		require.NoError(t, err)
	}

	current, err := e.store.GetThread(ctx, thread.ID)
	require.NoError(t, err)

	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	assert.Len(t, e.cache, 1, "predecessor states are evicted")
	_, ok := e.cache[current.CurrentStateID]
	assert.True(t, ok)
}

func TestSteppingMode_EachDispatchRecordsOwnStep(t *testing.T) {
	ctx := context.Background()
	e := New()

	thread, err := e.CreateThread(ctx, simpleBlueprint(), "")
	require.NoError(t, err)
	require.NoError(t, e.EnqueueEvent(ctx, thread.ID, core.NewUserMessageEvent("first")))
	require.NoError(t, e.EnqueueEvent(ctx, thread.ID, core.NewUserMessageEvent("second")))

	first, err := e.StepThread(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := e.StepThread(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.NotEqual(t, first.StepID, second.StepID)

	steps, err := e.store.ListSteps(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		assert.Equal(t, core.StepCompleted, s.Status)
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{first.StepID, second.StepID}, ids)

	// the second dispatch chains from the first dispatch's resulting state
	secondStep, err := e.store.GetStep(ctx, second.StepID)
	require.NoError(t, err)
	assert.Equal(t, first.State.ID, secondStep.FromStateID)
}

type spawnObserver struct {
	core.NoOpObserver
	spawnedParent    string
	spawnedChild     string
	completedSuccess bool
}

func (s *spawnObserver) OnSubagentSpawned(parentThreadID, childThreadID, _ string) {
	s.spawnedParent = parentThreadID
	s.spawnedChild = childThreadID
}

func (s *spawnObserver) OnSubagentCompleted(_, _ string, success bool) {
	s.completedSuccess = success
}

type panickyObserver struct{ core.NoOpObserver }

func (panickyObserver) OnStateChanged(string, core.State) { panic("broken observer") }
