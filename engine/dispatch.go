package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentmem/core"
)

// DispatchResult reports the outcome of processing one event on one thread.
type DispatchResult struct {
	// State is the thread's state after the event (unchanged on a no-op).
	State core.State
	// AddedChunkIDs / RemovedChunkIDs accumulate the chunk ids the event's
	// operations added and removed.
	AddedChunkIDs   []string
	RemovedChunkIDs []string
	// StepID identifies the audit record for this dispatch.
	StepID string
	// ShouldInterrupt asks the caller to preempt any in-flight model call.
	ShouldInterrupt bool
	// ShouldTerminate asks the caller to stop the thread's loop.
	ShouldTerminate bool
	// NeedsLLMResponse hints that the caller should drive a model turn next.
	NeedsLLMResponse bool
}

// Dispatch processes one event through the pipeline: reduce, apply, persist,
// record a step, notify observers. Processing is strictly serialized per
// thread. Compaction is never run here.
func (e *Engine) Dispatch(ctx context.Context, threadID string, ev core.AgentEvent) (*DispatchResult, error) {
	mu := e.threadLock(threadID)
	mu.Lock()
	defer mu.Unlock()
	return e.dispatchLocked(ctx, threadID, ev)
}

func (e *Engine) dispatchLocked(ctx context.Context, threadID string, ev core.AgentEvent) (*DispatchResult, error) {
	started := time.Now()

	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state, err := e.currentState(ctx, thread)
	if err != nil {
		return nil, err
	}

	step := core.NewStep(threadID, ev, state.ID)
	if err := e.store.SaveStep(ctx, step); err != nil {
		return nil, fmt.Errorf("record step start: %w", err)
	}

	strategy := ev.EffectiveStrategy()
	result := &DispatchResult{
		State:            state,
		StepID:           step.ID,
		ShouldInterrupt:  strategy == core.DispatchInterrupt,
		ShouldTerminate:  strategy == core.DispatchTerminate,
		NeedsLLMResponse: ev.NeedsLLMResponse,
	}

	e.notify(func(o core.Observer) { o.OnEventDispatched(threadID, ev) })

	reduced, err := e.reducers.Reduce(state, ev)
	if err != nil {
		e.failStep(ctx, threadID, step, err)
		e.logger.Error("reduce failed", "thread_id", threadID, "event_type", string(ev.Type), "error", err.Error())
		return nil, err
	}
	e.notify(func(o core.Observer) { o.OnReducerExecuted(threadID, ev, reduced) })

	// no-op fast path: unchanged state, empty added/removed sets
	if reduced.IsNoOp() {
		e.completeStep(ctx, threadID, step, state.ID)
		return result, nil
	}

	prov := &core.Provenance{
		EventID:   ev.ID,
		EventType: ev.Type,
		StepID:    step.ID,
		Source:    core.SourceEventDispatch,
		Timestamp: time.Now().UTC(),
	}
	if ev.SubagentThreadID != "" || ev.SpawnID != "" {
		prov.Context = map[string]any{}
		if ev.SpawnID != "" {
			prov.Context["spawn_id"] = ev.SpawnID
		}
		if ev.SubagentThreadID != "" {
			prov.Context["subagent_thread_id"] = ev.SubagentThreadID
		}
	}

	next, applied, err := core.ApplyOperations(state, reduced.Operations, reduced.NewChunks, prov)
	if err != nil {
		e.failStep(ctx, threadID, step, err)
		e.logger.Error("apply failed", "thread_id", threadID, "event_type", string(ev.Type), "error", err.Error())
		return nil, err
	}

	err = e.store.WithTx(ctx, func(tx core.Store) error {
		for _, c := range reduced.NewChunks {
			if err := tx.SaveChunk(ctx, threadID, c); err != nil {
				return err
			}
		}
		if err := tx.SaveState(ctx, next); err != nil {
			return err
		}
		return tx.UpdateThread(ctx, thread.WithCurrentState(next.ID))
	})
	if err != nil {
		e.failStep(ctx, threadID, step, err)
		return nil, fmt.Errorf("persist transition: %w", err)
	}

	e.cacheState(next)
	e.completeStep(ctx, threadID, step, next.ID)

	result.State = next
	result.AddedChunkIDs = applied.AddedChunkIDs
	result.RemovedChunkIDs = applied.RemovedChunkIDs

	e.notify(func(o core.Observer) { o.OnStateChanged(threadID, next) })
	if thread.ParentThreadID != "" {
		completed := step.Completed(next.ID)
		e.notify(func(o core.Observer) { o.OnSubagentStepped(threadID, completed) })
	}
	e.logger.Debug("event dispatched",
		"thread_id", threadID,
		"event_type", string(ev.Type),
		"state_id", next.ID,
		"duration", time.Since(started).String())

	// two-phase subagent spawn: the child thread is materialized only when
	// the spawn event is actually processed
	if ev.Type == core.EventLLMSubagentSpawn {
		if err := e.materializeSubagent(ctx, thread, next, ev); err != nil {
			e.logger.Error("subagent materialization failed", "thread_id", threadID, "subagent", ev.SubagentName, "error", err.Error())
			// no child thread exists; the spawn id correlates the failure
			// with the delegation request
			errEv := core.NewSubagentErrorEvent("", err.Error())
			errEv.SpawnID = ev.SpawnID
			if pushErr := e.store.PushEvent(ctx, threadID, errEv); pushErr != nil {
				return nil, pushErr
			}
		}
	}

	return result, nil
}

func (e *Engine) completeStep(ctx context.Context, threadID string, step core.Step, toStateID string) {
	if err := e.store.SaveStep(ctx, step.Completed(toStateID)); err != nil {
		e.logger.Warn("record step completion failed", "thread_id", threadID, "step_id", step.ID, "error", err.Error())
	}
}

func (e *Engine) failStep(ctx context.Context, threadID string, step core.Step, cause error) {
	if err := e.store.SaveStep(ctx, step.Failed(cause)); err != nil {
		e.logger.Warn("record step failure failed", "thread_id", threadID, "step_id", step.ID, "error", err.Error())
	}
}
