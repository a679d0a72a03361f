package engine

import (
	"context"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/model"
	"github.com/hupe1980/agentmem/prompt"
	"github.com/hupe1980/agentmem/tool"
)

// RunTurn drives one model turn for the thread: render the current state into
// messages, call the completion boundary, then feed the response back through
// the dispatch pipeline. Tool calls are executed against the tool registry;
// their results and any events a tool emits are dispatched in order.
func (e *Engine) RunTurn(ctx context.Context, threadID string) (*model.Response, error) {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state, err := e.currentState(ctx, thread)
	if err != nil {
		return nil, err
	}

	built := e.builder.Build(state, prompt.Options{})
	messages := make([]model.Message, len(built.Messages))
	for i, m := range built.Messages {
		messages[i] = model.Message{Role: m.Role, Text: m.Text}
	}

	tools := e.tools.Select(thread.Blueprint.Tools)
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}

	resp, err := e.model.Complete(ctx, model.Request{
		Messages:    messages,
		Tools:       defs,
		Temperature: thread.Blueprint.LLM.Temperature,
		MaxTokens:   thread.Blueprint.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	transcript := buildTranscript(messages, resp)

	if len(resp.ToolCalls) > 0 {
		for _, call := range resp.ToolCalls {
			if err := e.handleToolCall(ctx, thread, call, transcript); err != nil {
				return nil, err
			}
		}
		return &resp, nil
	}
	if resp.Content != "" {
		res, err := e.Dispatch(ctx, threadID, core.NewLLMResponseEvent(resp.Content))
		if err != nil {
			return nil, err
		}
		e.attachTranscript(ctx, res.StepID, transcript)
	}
	return &resp, nil
}

// handleToolCall records the call, executes the tool and records the outcome.
// Tool failures are memory, not exceptions: they become TOOL_ERROR events.
func (e *Engine) handleToolCall(ctx context.Context, thread *core.Thread, call model.ToolCall, transcript *core.LLMInteraction) error {
	res, err := e.Dispatch(ctx, thread.ID, core.NewToolCallEvent(call.ID, call.Name, call.Arguments))
	if err != nil {
		return err
	}
	e.attachTranscript(ctx, res.StepID, transcript)

	t, ok := e.tools.Get(call.Name)
	if !ok {
		_, err := e.Dispatch(ctx, thread.ID, core.NewToolErrorEvent(call.ID, call.Name, "unknown tool: "+call.Name))
		return err
	}

	tc := tool.NewToolContext(thread.ID, call.ID, &thread.Blueprint)
	out, callErr := t.Call(tc, call.Arguments)
	if callErr != nil {
		if _, err := e.Dispatch(ctx, thread.ID, core.NewToolErrorEvent(call.ID, call.Name, callErr.Error())); err != nil {
			return err
		}
		return nil
	}
	if _, err := e.Dispatch(ctx, thread.ID, core.NewToolResultEvent(call.ID, call.Name, out)); err != nil {
		return err
	}
	for _, emitted := range tc.EmittedEvents() {
		if _, err := e.Dispatch(ctx, thread.ID, emitted); err != nil {
			return err
		}
	}
	return nil
}

// attachTranscript stores the model interaction on the step record.
func (e *Engine) attachTranscript(ctx context.Context, stepID string, transcript *core.LLMInteraction) {
	step, err := e.store.GetStep(ctx, stepID)
	if err != nil {
		e.logger.Warn("step lookup failed", "step_id", stepID, "error", err.Error())
		return
	}
	if err := e.store.SaveStep(ctx, step.WithLLM(transcript)); err != nil {
		e.logger.Warn("step transcript save failed", "step_id", stepID, "error", err.Error())
	}
}

func buildTranscript(messages []model.Message, resp model.Response) *core.LLMInteraction {
	transcript := &core.LLMInteraction{
		ResponseContent:  resp.Content,
		FinishReason:     resp.FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	for _, m := range messages {
		transcript.RequestMessages = append(transcript.RequestMessages, core.LLMMessage{Role: m.Role, Text: m.Text})
	}
	for _, call := range resp.ToolCalls {
		transcript.ResponseToolCalls = append(transcript.ResponseToolCalls, core.LLMToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		})
	}
	return transcript
}
