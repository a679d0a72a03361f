package engine

import (
	"context"

	"github.com/hupe1980/agentmem/core"
)

// EnqueueEvent pushes an event onto the thread's queue and, for auto-mode
// threads, ensures the event loop is running.
func (e *Engine) EnqueueEvent(ctx context.Context, threadID string, ev core.AgentEvent) error {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if err := e.store.PushEvent(ctx, threadID, ev); err != nil {
		return err
	}
	if e.mode(thread) == core.ModeAuto {
		e.startLoop(threadID)
	}
	return nil
}

// StepThread pops and dispatches one queued event. Intended for stepping
// mode; returns (nil, nil) when the queue is empty.
func (e *Engine) StepThread(ctx context.Context, threadID string) (*DispatchResult, error) {
	ev, err := e.store.PopEvent(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, nil
	}
	return e.Dispatch(ctx, threadID, *ev)
}

// CancelThread cancels the thread's running loop. Cancellation is
// cooperative: it takes effect at the next suspension boundary, never
// mid-dispatch.
func (e *Engine) CancelThread(threadID string) {
	e.loopsMu.Lock()
	defer e.loopsMu.Unlock()
	if lh, ok := e.loops[threadID]; ok {
		lh.cancel()
	}
}

// Wait blocks until the thread's loop has drained and exited. Test and CLI
// helper; production callers normally react to observer notifications.
func (e *Engine) Wait(threadID string) {
	e.loopsMu.Lock()
	lh, running := e.loops[threadID]
	e.loopsMu.Unlock()
	if !running {
		return
	}
	<-lh.done
}

// startLoop launches the thread's event loop unless one is already running.
func (e *Engine) startLoop(threadID string) {
	e.loopsMu.Lock()
	if _, running := e.loops[threadID]; running {
		e.loopsMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.loops[threadID] = &loopHandle{cancel: cancel, done: make(chan struct{})}
	e.loopsMu.Unlock()

	go e.runLoop(ctx, threadID)
}

// runLoop drains the thread's queue: pop, dispatch, drive a model turn when
// the event asks for one, then evaluate compaction thresholds. Exits when the
// queue is empty, the context is cancelled, or a terminate-strategy event is
// processed.
func (e *Engine) runLoop(ctx context.Context, threadID string) {
	terminated := false
	defer func() { e.stopLoop(threadID, terminated) }()

	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := e.store.PopEvent(ctx, threadID)
		if err != nil {
			e.logger.Error("event pop failed", "thread_id", threadID, "error", err.Error())
			return
		}
		if ev == nil {
			return
		}

		res, err := e.Dispatch(ctx, threadID, *ev)
		if err != nil {
			e.logger.Error("dispatch failed", "thread_id", threadID, "event_type", string(ev.Type), "error", err.Error())
			continue
		}

		if res.NeedsLLMResponse {
			if _, err := e.RunTurn(ctx, threadID); err != nil {
				e.logger.Error("model turn failed", "thread_id", threadID, "error", err.Error())
			}
		}

		// thresholds are evaluated after dispatch, never inside it
		usage, err := e.CheckCompactionNeeded(ctx, threadID)
		switch {
		case err != nil:
			e.logger.Warn("compaction check failed", "thread_id", threadID, "error", err.Error())
		case usage.NeedsTruncation:
			if _, err := e.Truncate(ctx, threadID); err != nil {
				e.logger.Error("truncation failed", "thread_id", threadID, "error", err.Error())
			}
		case usage.ForceCompaction:
			if _, err := e.Compact(ctx, threadID); err != nil {
				e.logger.Error("compaction failed", "thread_id", threadID, "error", err.Error())
			}
		}

		if res.ShouldTerminate {
			terminated = true
			e.finishThread(ctx, threadID, *ev)
			return
		}
	}
}

// stopLoop deregisters the loop. A non-terminated loop that raced a late
// enqueue is restarted so no event is stranded.
func (e *Engine) stopLoop(threadID string, terminated bool) {
	e.loopsMu.Lock()
	if lh, ok := e.loops[threadID]; ok {
		lh.cancel()
		close(lh.done)
		delete(e.loops, threadID)
	}
	e.loopsMu.Unlock()

	if terminated {
		return
	}
	ctx := context.Background()
	if n, err := e.store.QueueLength(ctx, threadID); err == nil && n > 0 {
		if thread, err := e.store.GetThread(ctx, threadID); err == nil && e.mode(thread) == core.ModeAuto {
			e.startLoop(threadID)
		}
	}
}

// finishThread handles a terminal event: remaining queued events are dropped
// and, for a subagent, the outcome is reported to the parent.
func (e *Engine) finishThread(ctx context.Context, threadID string, terminal core.AgentEvent) {
	if err := e.store.ClearEvents(ctx, threadID); err != nil {
		e.logger.Warn("clear events failed", "thread_id", threadID, "error", err.Error())
	}

	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		e.logger.Warn("thread lookup failed", "thread_id", threadID, "error", err.Error())
		return
	}
	e.logger.Info("thread finished", "thread_id", threadID, "event_type", string(terminal.Type))

	if thread.ParentThreadID != "" {
		e.reportSubagentCompletion(ctx, thread, terminal)
	}
}
