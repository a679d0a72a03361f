package core

import "time"

// EventType discriminates the agent event tagged union.
type EventType string

const (
	// EventUserMessage is a message from the user.
	EventUserMessage EventType = "user_message"
	// EventParentMessage is a message injected by a parent agent.
	EventParentMessage EventType = "parent_message"
	// EventLLMResponse is a plain text model response.
	EventLLMResponse EventType = "llm_response"
	// EventLLMToolCall is a model-requested tool invocation.
	EventLLMToolCall EventType = "llm_tool_call"
	// EventLLMSkillCall is a model-requested skill invocation.
	EventLLMSkillCall EventType = "llm_skill_call"
	// EventLLMSubagentSpawn is a model-requested subagent delegation. It
	// carries a synthetic spawn id; the child thread is materialized only when
	// this event is processed through the dispatch pipeline.
	EventLLMSubagentSpawn EventType = "llm_subagent_spawn"
	// EventLLMSubagentMessage is a model-authored message to a running subagent.
	EventLLMSubagentMessage EventType = "llm_subagent_message"
	// EventLLMClarification is a model request for user clarification.
	EventLLMClarification EventType = "llm_clarification"
	// EventToolResult reports a successful tool execution.
	EventToolResult EventType = "tool_result"
	// EventToolError reports a failed tool execution. Failures are memory, not
	// exceptions: they reduce to a result chunk flagged success=false.
	EventToolError EventType = "tool_error"
	// EventSkillResult reports a successful skill execution.
	EventSkillResult EventType = "skill_result"
	// EventSkillError reports a failed skill execution.
	EventSkillError EventType = "skill_error"
	// EventSubagentResult reports a completed subagent's output to its parent.
	EventSubagentResult EventType = "subagent_result"
	// EventSubagentError reports a failed subagent to its parent.
	EventSubagentError EventType = "subagent_error"
	// EventTaskCompleted marks the thread's task as done.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskAbandoned marks the task as given up.
	EventTaskAbandoned EventType = "task_abandoned"
	// EventTaskTerminated marks the task as externally stopped.
	EventTaskTerminated EventType = "task_terminated"
	// EventTodoSet creates or replaces a todo item.
	EventTodoSet EventType = "todo_set"
	// EventTodoCompleted marks a todo item done.
	EventTodoCompleted EventType = "todo_completed"
	// EventTodoExpanded appends detail to a todo item.
	EventTodoExpanded EventType = "todo_expanded"
	// EventTodoUpdated rewrites a todo item's text.
	EventTodoUpdated EventType = "todo_updated"
	// EventTodoDeleted removes a todo item.
	EventTodoDeleted EventType = "todo_deleted"
	// EventMemoryMarkCritical pins a chunk against compaction.
	EventMemoryMarkCritical EventType = "memory_mark_critical"
	// EventMemoryForget removes a chunk from the current state.
	EventMemoryForget EventType = "memory_forget"
)

// DispatchStrategy tells the orchestrator how an event wants to be scheduled.
type DispatchStrategy string

const (
	// DispatchQueue processes the event in arrival order (default).
	DispatchQueue DispatchStrategy = "queue"
	// DispatchInterrupt asks the caller to preempt any in-flight model call
	// after the event is applied.
	DispatchInterrupt DispatchStrategy = "interrupt"
	// DispatchTerminate asks the caller to stop the thread's loop after the
	// event is applied.
	DispatchTerminate DispatchStrategy = "terminate"
	// DispatchSilent applies the event without driving a model continuation.
	DispatchSilent DispatchStrategy = "silent"
)

// AgentEvent is the tagged union of everything that can happen to a thread.
// Fields beyond ID/Type/Timestamp are populated per the Type discriminant.
// After construction an event should be treated as immutable.
type AgentEvent struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Strategy  DispatchStrategy `json:"strategy,omitempty"`
	// NeedsLLMResponse hints that the caller should drive a model continuation
	// after this event is applied.
	NeedsLLMResponse bool `json:"needs_llm_response,omitempty"`

	// Text carries message/clarification/summary payloads.
	Text string `json:"text,omitempty"`

	// Tool / skill fields.
	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	ErrorText string         `json:"error_text,omitempty"`

	// Subagent fields.
	SpawnID          string `json:"spawn_id,omitempty"`
	SubagentName     string `json:"subagent_name,omitempty"`
	SubagentThreadID string `json:"subagent_thread_id,omitempty"`
	Task             string `json:"task,omitempty"`

	// Todo fields.
	TodoID string `json:"todo_id,omitempty"`

	// Memory fields.
	ChunkID string `json:"chunk_id,omitempty"`
}

// NewAgentEvent creates a bare event of the given type. Prefer the typed
// constructors below.
func NewAgentEvent(t EventType) AgentEvent {
	return AgentEvent{ID: NewID(), Type: t, Timestamp: time.Now().UTC()}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(text string) AgentEvent {
	e := NewAgentEvent(EventUserMessage)
	e.Text = text
	e.NeedsLLMResponse = true
	return e
}

// NewParentMessageEvent creates a message injected by the parent thread.
func NewParentMessageEvent(text string) AgentEvent {
	e := NewAgentEvent(EventParentMessage)
	e.Text = text
	e.NeedsLLMResponse = true
	return e
}

// NewLLMResponseEvent records a plain text model response.
func NewLLMResponseEvent(text string) AgentEvent {
	e := NewAgentEvent(EventLLMResponse)
	e.Text = text
	return e
}

// NewLLMClarificationEvent records a model request for user clarification.
func NewLLMClarificationEvent(text string) AgentEvent {
	e := NewAgentEvent(EventLLMClarification)
	e.Text = text
	return e
}

// NewToolCallEvent records a model-requested tool invocation.
func NewToolCallEvent(callID, name string, args map[string]any) AgentEvent {
	e := NewAgentEvent(EventLLMToolCall)
	e.CallID = callID
	e.Name = name
	e.Arguments = args
	return e
}

// NewToolResultEvent records a successful tool execution.
func NewToolResultEvent(callID, name string, result any) AgentEvent {
	e := NewAgentEvent(EventToolResult)
	e.CallID = callID
	e.Name = name
	e.Result = result
	return e
}

// NewToolErrorEvent records a failed tool execution.
func NewToolErrorEvent(callID, name, errText string) AgentEvent {
	e := NewAgentEvent(EventToolError)
	e.CallID = callID
	e.Name = name
	e.ErrorText = errText
	return e
}

// NewSkillCallEvent records a model-requested skill invocation.
func NewSkillCallEvent(callID, name string, args map[string]any) AgentEvent {
	e := NewAgentEvent(EventLLMSkillCall)
	e.CallID = callID
	e.Name = name
	e.Arguments = args
	return e
}

// NewSkillResultEvent records a successful skill execution.
func NewSkillResultEvent(callID, name string, result any) AgentEvent {
	e := NewAgentEvent(EventSkillResult)
	e.CallID = callID
	e.Name = name
	e.Result = result
	return e
}

// NewSkillErrorEvent records a failed skill execution.
func NewSkillErrorEvent(callID, name, errText string) AgentEvent {
	e := NewAgentEvent(EventSkillError)
	e.CallID = callID
	e.Name = name
	e.ErrorText = errText
	return e
}

// NewSubagentSpawnEvent records a model-requested delegation. spawnID is a
// synthetic correlation id minted by the spawn tool; the orchestrator
// materializes the child thread when processing this event.
func NewSubagentSpawnEvent(spawnID, subagentName, task string) AgentEvent {
	e := NewAgentEvent(EventLLMSubagentSpawn)
	e.SpawnID = spawnID
	e.SubagentName = subagentName
	e.Task = task
	return e
}

// NewSubagentMessageEvent records a model-authored message to a running
// subagent.
func NewSubagentMessageEvent(subagentThreadID, text string) AgentEvent {
	e := NewAgentEvent(EventLLMSubagentMessage)
	e.SubagentThreadID = subagentThreadID
	e.Text = text
	return e
}

// NewSubagentResultEvent reports a completed subagent's output to its parent.
func NewSubagentResultEvent(subagentThreadID, result string) AgentEvent {
	e := NewAgentEvent(EventSubagentResult)
	e.SubagentThreadID = subagentThreadID
	e.Text = result
	e.NeedsLLMResponse = true
	return e
}

// NewSubagentErrorEvent reports a failed subagent to its parent.
func NewSubagentErrorEvent(subagentThreadID, errText string) AgentEvent {
	e := NewAgentEvent(EventSubagentError)
	e.SubagentThreadID = subagentThreadID
	e.ErrorText = errText
	e.NeedsLLMResponse = true
	return e
}

// NewTaskCompletedEvent marks the task done with a final output.
func NewTaskCompletedEvent(output string) AgentEvent {
	e := NewAgentEvent(EventTaskCompleted)
	e.Text = output
	e.Strategy = DispatchTerminate
	return e
}

// NewTaskAbandonedEvent marks the task given up.
func NewTaskAbandonedEvent(reason string) AgentEvent {
	e := NewAgentEvent(EventTaskAbandoned)
	e.Text = reason
	e.Strategy = DispatchTerminate
	return e
}

// NewTaskTerminatedEvent marks the task externally stopped.
func NewTaskTerminatedEvent(reason string) AgentEvent {
	e := NewAgentEvent(EventTaskTerminated)
	e.Text = reason
	e.Strategy = DispatchTerminate
	return e
}

// NewTodoSetEvent creates or replaces the todo item identified by todoID.
func NewTodoSetEvent(todoID, text string) AgentEvent {
	e := NewAgentEvent(EventTodoSet)
	e.TodoID = todoID
	e.Text = text
	return e
}

// NewTodoCompletedEvent marks a todo item done.
func NewTodoCompletedEvent(todoID string) AgentEvent {
	e := NewAgentEvent(EventTodoCompleted)
	e.TodoID = todoID
	return e
}

// NewTodoExpandedEvent appends detail to a todo item.
func NewTodoExpandedEvent(todoID, detail string) AgentEvent {
	e := NewAgentEvent(EventTodoExpanded)
	e.TodoID = todoID
	e.Text = detail
	return e
}

// NewTodoUpdatedEvent rewrites a todo item's text.
func NewTodoUpdatedEvent(todoID, text string) AgentEvent {
	e := NewAgentEvent(EventTodoUpdated)
	e.TodoID = todoID
	e.Text = text
	return e
}

// NewTodoDeletedEvent removes a todo item.
func NewTodoDeletedEvent(todoID string) AgentEvent {
	e := NewAgentEvent(EventTodoDeleted)
	e.TodoID = todoID
	return e
}

// NewMarkCriticalEvent pins the chunk against compaction.
func NewMarkCriticalEvent(chunkID string) AgentEvent {
	e := NewAgentEvent(EventMemoryMarkCritical)
	e.ChunkID = chunkID
	e.Strategy = DispatchSilent
	return e
}

// NewForgetEvent removes the chunk from the current state. Prior states still
// reference it, so the audit trail is preserved.
func NewForgetEvent(chunkID string) AgentEvent {
	e := NewAgentEvent(EventMemoryForget)
	e.ChunkID = chunkID
	e.Strategy = DispatchSilent
	return e
}

// EffectiveStrategy returns the event's dispatch strategy, defaulting to
// DispatchQueue.
func (e AgentEvent) EffectiveStrategy() DispatchStrategy {
	if e.Strategy == "" {
		return DispatchQueue
	}
	return e.Strategy
}
