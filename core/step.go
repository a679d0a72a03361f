package core

import "time"

// StepStatus tracks the lifecycle of a step record.
type StepStatus string

const (
	// StepRunning marks a step whose event is still being processed.
	StepRunning StepStatus = "running"
	// StepCompleted marks a successfully finished step.
	StepCompleted StepStatus = "completed"
	// StepFailed marks a step that ended with an error.
	StepFailed StepStatus = "failed"
)

// LLMMessage is one message of an LLM interaction transcript.
type LLMMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// LLMToolCall is one tool call of an LLM interaction transcript.
type LLMToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// LLMInteraction is the request/response transcript of one model call made
// while processing a step.
type LLMInteraction struct {
	RequestMessages   []LLMMessage  `json:"request_messages,omitempty"`
	RequestTools      []string      `json:"request_tools,omitempty"`
	ResponseContent   string        `json:"response_content,omitempty"`
	ResponseToolCalls []LLMToolCall `json:"response_tool_calls,omitempty"`
	FinishReason      string        `json:"finish_reason,omitempty"`
	PromptTokens      int           `json:"prompt_tokens,omitempty"`
	CompletionTokens  int           `json:"completion_tokens,omitempty"`
	TotalTokens       int           `json:"total_tokens,omitempty"`
}

// Step is the audit record of one event-processing cycle. It is created at
// dispatch start and completed or failed at dispatch end; immutable
// thereafter except for that one transition.
type Step struct {
	ID          string          `json:"id"`
	ThreadID    string          `json:"thread_id"`
	EventID     string          `json:"event_id"`
	EventType   EventType       `json:"event_type"`
	Event       *AgentEvent     `json:"event,omitempty"`
	LLM         *LLMInteraction `json:"llm,omitempty"`
	Status      StepStatus      `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	FromStateID string          `json:"from_state_id,omitempty"`
	ToStateID   string          `json:"to_state_id,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewStep starts a running step record for an event on a thread.
func NewStep(threadID string, ev AgentEvent, fromStateID string) Step {
	return Step{
		ID:          NewID(),
		ThreadID:    threadID,
		EventID:     ev.ID,
		EventType:   ev.Type,
		Event:       &ev,
		Status:      StepRunning,
		StartedAt:   time.Now().UTC(),
		FromStateID: fromStateID,
	}
}

// Completed returns a copy of the step marked completed with the resulting
// state id.
func (s Step) Completed(toStateID string) Step {
	now := time.Now().UTC()
	s.Status = StepCompleted
	s.CompletedAt = &now
	s.ToStateID = toStateID
	return s
}

// Failed returns a copy of the step marked failed with the error text.
func (s Step) Failed(err error) Step {
	now := time.Now().UTC()
	s.Status = StepFailed
	s.CompletedAt = &now
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// WithLLM returns a copy of the step carrying an LLM interaction transcript.
func (s Step) WithLLM(llm *LLMInteraction) Step {
	s.LLM = llm
	return s
}
