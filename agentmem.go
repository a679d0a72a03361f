// Package agentmem provides a high-level façade over the core engine for
// event-sourced agent memory. Most applications interact with this package
// by:
//  1. Creating an AgentMem via New() (optionally overriding the store, model,
//     registries or compaction thresholds)
//  2. Creating one or more threads from blueprints
//  3. Sending messages and letting the per-thread event loops drive model
//     turns, tool calls, subagents and compaction
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable store and a
// structured logger.
package agentmem

import (
	"context"

	"github.com/hupe1980/agentmem/compaction"
	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/engine"
	"github.com/hupe1980/agentmem/prompt"
)

// Options configures the AgentMem instance. It mirrors engine.Options; see
// that type for field documentation.
type Options = engine.Options

// AgentMem is the façade clients use to run agents over event-sourced
// memory.
type AgentMem struct {
	engine *engine.Engine
}

// New constructs an AgentMem with optional overrides.
func New(optFns ...func(o *Options)) *AgentMem {
	return &AgentMem{engine: engine.New(optFns...)}
}

// Engine exposes the underlying orchestrator for advanced use.
func (a *AgentMem) Engine() *engine.Engine { return a.engine }

// CreateThread instantiates a root thread from a blueprint.
func (a *AgentMem) CreateThread(ctx context.Context, bp core.Blueprint) (*core.Thread, error) {
	return a.engine.CreateThread(ctx, bp, "")
}

// SendMessage enqueues a user message on the thread. In auto mode this kicks
// off the thread's event loop.
func (a *AgentMem) SendMessage(ctx context.Context, threadID, text string) error {
	return a.engine.EnqueueEvent(ctx, threadID, core.NewUserMessageEvent(text))
}

// Wait blocks until the thread's event loop has drained.
func (a *AgentMem) Wait(threadID string) { a.engine.Wait(threadID) }

// CurrentState returns the thread's current memory snapshot.
func (a *AgentMem) CurrentState(ctx context.Context, threadID string) (core.State, error) {
	return a.engine.CurrentState(ctx, threadID)
}

// BuildContext renders the thread's current state into LLM-ready messages.
func (a *AgentMem) BuildContext(ctx context.Context, threadID string, opts prompt.Options) (prompt.Result, error) {
	return a.engine.BuildContext(ctx, threadID, opts)
}

// CheckCompactionNeeded classifies the thread's memory against the compaction
// thresholds.
func (a *AgentMem) CheckCompactionNeeded(ctx context.Context, threadID string) (compaction.Usage, error) {
	return a.engine.CheckCompactionNeeded(ctx, threadID)
}

// Compact summarizes the thread's compressible memory through the model.
func (a *AgentMem) Compact(ctx context.Context, threadID string) (core.State, error) {
	return a.engine.Compact(ctx, threadID)
}

// CancelThread cancels the thread's running loop at its next suspension
// boundary.
func (a *AgentMem) CancelThread(threadID string) { a.engine.CancelThread(threadID) }
