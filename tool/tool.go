// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema described arguments. Tools are
// pure with respect to agent memory: they never touch thread state directly
// and instead emit events through their ToolContext, which the orchestrator
// feeds back through the dispatch pipeline.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentmem/core"
)

// Tool defines a callable capability exposed to the model.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define a proper JSON schema for parameters
//   - Be thread-safe if used concurrently
//   - Emit events via the ToolContext instead of mutating state
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is provided to the LLM to help it decide when to use the
	// tool.
	Description() string

	// Parameters returns a JSON schema object describing the expected input.
	Parameters() map[string]any

	// Call executes the tool. Arguments are parsed from the model's JSON.
	Call(tc *ToolContext, args map[string]any) (any, error)
}

// ToolContext carries the calling thread's identity and blueprint into a tool
// invocation and collects the events the tool emits. The orchestrator drains
// the emitted events into the thread's queue after the call returns.
type ToolContext struct {
	ThreadID  string
	CallID    string
	Blueprint *core.Blueprint

	emitted []core.AgentEvent
}

// NewToolContext builds a context for one tool invocation.
func NewToolContext(threadID, callID string, bp *core.Blueprint) *ToolContext {
	return &ToolContext{ThreadID: threadID, CallID: callID, Blueprint: bp}
}

// EmitEvent records an event for the orchestrator to enqueue on the calling
// thread.
func (tc *ToolContext) EmitEvent(ev core.AgentEvent) {
	tc.emitted = append(tc.emitted, ev)
}

// EmittedEvents returns the events recorded during the call.
func (tc *ToolContext) EmittedEvents() []core.AgentEvent {
	return tc.emitted
}

// ToolError represents an error produced while executing a tool.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the given details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
