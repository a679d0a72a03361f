package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Message is one role-tagged message of a completion request.
type Message struct {
	Role string `json:"role"` // "system", "user", "assistant", "tool"
	Text string `json:"text"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider
// branching.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request captures the normalized model input produced by the context builder
// and the compaction manager.
type Request struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

// Response is the final completion produced for a request.
type Response struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        TokenUsage `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the single completion boundary the runtime depends on. Errors
// propagate unmodified; retry/backoff is a caller policy.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a deterministic in-memory Model useful for tests & examples.
// It matches canned responses by substring of the last message and falls back
// to an echo.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]Response
	requests  []Request
	err       error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]Response),
	}
}

// AddResponse registers a canned completion returned when the last request
// message contains match.
func (m *MockModel) AddResponse(match string, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[match] = resp
}

// FailWith makes every subsequent Complete call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return Response{}, m.err
	}
	var last string
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Text
	}
	for match, resp := range m.responses {
		if strings.Contains(last, match) {
			return resp, nil
		}
	}
	text := fmt.Sprintf("Mock response to: %s", last)
	return Response{
		Content:      text,
		FinishReason: "stop",
		Usage: TokenUsage{
			PromptTokens:     len(last) / 4,
			CompletionTokens: len(text) / 4,
			TotalTokens:      (len(last) + len(text)) / 4,
		},
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
