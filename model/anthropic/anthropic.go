// Package anthropic provides a model adapter for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentmem/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model by adapting the request onto the Anthropic
// Messages API and normalizing the response (text + tool use blocks).
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  buildMessages(req.Messages),
		MaxTokens: m.maxTokens(req),
	}
	temperature := m.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	params.Temperature = anthropic.Float(temperature)

	if systemBlocks := extractSystem(req.Messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var out model.Response
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				if out.Content != "" {
					out.Content += "\n"
				}
				out.Content += textBlock.Text
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := map[string]any{}
			if toolBlock.Input != nil {
				raw, merr := json.Marshal(toolBlock.Input)
				if merr == nil {
					_ = json.Unmarshal(raw, &args)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	out.FinishReason = "stop"
	if resp.StopReason != "" {
		out.FinishReason = string(resp.StopReason)
	}
	out.Usage = model.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	return out, nil
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

func (m *Model) maxTokens(req model.Request) int64 {
	if req.MaxTokens > 0 {
		return int64(req.MaxTokens)
	}
	return m.opts.MaxTokens
}

// buildMessages converts normalized messages to the Anthropic format. System
// messages are handled separately; tool messages are folded into user turns
// since the runtime's transcript carries tool output as rendered text.
func buildMessages(messages []model.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == "system" || msg.Text == "" {
			continue
		}
		switch msg.Role {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		}
	}
	return out
}

func extractSystem(messages []model.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role == "system" && msg.Text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Text})
		}
	}
	return blocks
}

func buildTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if def.Parameters != nil {
			if properties, ok := def.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			if required, ok := def.Parameters["required"]; ok {
				switch req := required.(type) {
				case []string:
					schema.Required = req
				case []interface{}:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					schema.Required = reqStrings
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(schema, def.Name)
	}
	return tools
}
