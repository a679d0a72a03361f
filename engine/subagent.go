package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentmem/core"
)

// materializeSubagent is phase two of subagent spawning: it resolves the
// child blueprint, seeds the child with an inherited-context summary built
// from the parent's retained chunks, links the threads, and injects the task
// as the child's first event. Called with the parent's dispatch lock held.
func (e *Engine) materializeSubagent(ctx context.Context, parent *core.Thread, parentState core.State, ev core.AgentEvent) error {
	bp := parent.Blueprint.Subagents[ev.SubagentName]
	if bp == nil {
		return fmt.Errorf("unknown subagent %q in blueprint %s", ev.SubagentName, parent.Blueprint.Name)
	}

	var extra []core.Chunk
	if summary := inheritedContext(parentState); summary != "" {
		extra = append(extra, core.NewChunk(core.ChunkSpec{
			Type:      core.ChunkTypeSystem,
			Subtype:   "inherited_context",
			Content:   core.Text(summary),
			Retention: core.RetentionCritical,
		}))
	}

	child, err := e.createThread(ctx, *bp, parent.ID, extra)
	if err != nil {
		return err
	}

	// link the child on the freshest parent record; the dispatch that led
	// here already advanced the current-state pointer
	latest, err := e.store.GetThread(ctx, parent.ID)
	if err != nil {
		return err
	}
	if err := e.store.UpdateThread(ctx, latest.WithChild(child.ID)); err != nil {
		return err
	}

	e.notify(func(o core.Observer) { o.OnSubagentSpawned(parent.ID, child.ID, parentState.ID) })
	e.logger.Info("subagent spawned",
		"parent_thread_id", parent.ID,
		"child_thread_id", child.ID,
		"subagent", ev.SubagentName,
		"spawn_id", ev.SpawnID)

	task := core.NewUserMessageEvent(ev.Task)
	if err := e.store.PushEvent(ctx, child.ID, task); err != nil {
		return err
	}
	if e.mode(child) == core.ModeAuto {
		e.startLoop(child.ID)
	}
	return nil
}

// reportSubagentCompletion enqueues the child's terminal outcome onto the
// parent thread. Results cross back into the parent's state only through
// these events.
func (e *Engine) reportSubagentCompletion(ctx context.Context, child *core.Thread, terminal core.AgentEvent) {
	success := terminal.Type == core.EventTaskCompleted
	var ev core.AgentEvent
	if success {
		ev = core.NewSubagentResultEvent(child.ID, terminal.Text)
	} else {
		ev = core.NewSubagentErrorEvent(child.ID, terminal.Text)
	}

	if err := e.store.PushEvent(ctx, child.ParentThreadID, ev); err != nil {
		e.logger.Error("report subagent completion failed",
			"parent_thread_id", child.ParentThreadID,
			"child_thread_id", child.ID,
			"error", err.Error())
		return
	}
	e.notify(func(o core.Observer) { o.OnSubagentCompleted(child.ParentThreadID, child.ID, success) })

	parent, err := e.store.GetThread(ctx, child.ParentThreadID)
	if err != nil {
		e.logger.Warn("parent thread lookup failed", "parent_thread_id", child.ParentThreadID, "error", err.Error())
		return
	}
	if e.mode(parent) == core.ModeAuto {
		e.startLoop(parent.ID)
	}
}

// inheritedContext summarizes the parent's retained memory for a child
// thread: system instructions plus CRITICAL conversation content.
func inheritedContext(state core.State) string {
	var lines []string
	for _, c := range state.OrderedChunks() {
		switch {
		case c.Type == core.ChunkTypeSystem:
			lines = append(lines, core.ContentText(c.Content))
		case c.Retention == core.RetentionCritical && core.ConversationChunkTypes[c.Type]:
			lines = append(lines, fmt.Sprintf("[%s] %s", c.Type, core.ContentText(c.Content)))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Context inherited from the parent agent:\n" + strings.Join(lines, "\n")
}
