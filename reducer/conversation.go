package reducer

import "github.com/hupe1980/agentmem/core"

// ConversationReducer turns user/parent messages and plain model responses
// into message chunks appended to the working-history container. It creates
// the container on first use.
type ConversationReducer struct{}

// NewConversationReducer constructs the built-in conversation reducer.
func NewConversationReducer() *ConversationReducer { return &ConversationReducer{} }

// EventTypes implements Reducer.
func (r *ConversationReducer) EventTypes() []core.EventType {
	return []core.EventType{
		core.EventUserMessage,
		core.EventParentMessage,
		core.EventLLMResponse,
		core.EventLLMClarification,
	}
}

// CanHandle implements Reducer.
func (r *ConversationReducer) CanHandle(ev core.AgentEvent) bool {
	return ev.Text != ""
}

// Reduce implements Reducer.
func (r *ConversationReducer) Reduce(state core.State, ev core.AgentEvent) (core.ReducerResult, error) {
	spec := core.ChunkSpec{
		Content:   core.Text(ev.Text),
		Retention: core.RetentionCompressible,
	}
	switch ev.Type {
	case core.EventUserMessage:
		spec.Type = core.ChunkTypeUserMessage
	case core.EventParentMessage:
		spec.Type = core.ChunkTypeUserMessage
		spec.Subtype = "parent"
	case core.EventLLMResponse:
		spec.Type = core.ChunkTypeAssistantMessage
	case core.EventLLMClarification:
		spec.Type = core.ChunkTypeAssistantMessage
		spec.Subtype = "clarification"
	}
	return appendToHistory(state, core.NewChunk(spec)), nil
}
