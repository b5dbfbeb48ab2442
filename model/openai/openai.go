// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (streaming + tool calling). It adapts soulchat's
// normalized Request/Response structures into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tobmae/soulchat/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so complete tool use parts can be reconstructed at finish.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
type Options struct {
	Temperature float64
	APIKey      string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements streaming generation with tool calling.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req)
		m.handleStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               req.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(req.MaxTokens),
		StreamOptions:       openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)},
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.InputSchema,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts normalized messages into OpenAI chat messages. Tool
// results become tool-role messages keyed by the originating call id.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			toolCalls := extractToolCalls(msg)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Text()))
				continue
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		default:
			results := toolResults(msg)
			if len(results) == 0 {
				messages = append(messages, openai.UserMessage(msg.Text()))
				continue
			}
			for _, tr := range results {
				messages = append(messages, openai.ToolMessage(tr.Content, tr.ToolUseID))
			}
		}
	}
	return messages
}

// extractToolCalls extracts tool use parts as OpenAI formatted tool calls in order.
func extractToolCalls(msg model.Message) []openai.ChatCompletionMessageToolCallParam {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, p := range msg.Parts {
		if tu, ok := p.(model.ToolUsePart); ok {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   tu.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tu.Name,
					Arguments: string(tu.Input),
				},
			})
		}
	}
	return toolCalls
}

func toolResults(msg model.Message) []model.ToolResultPart {
	var results []model.ToolResultPart
	for _, p := range msg.Parts {
		if tr, ok := p.(model.ToolResultPart); ok {
			results = append(results, tr)
		}
	}
	return results
}

// handleStreaming processes the stream, forwarding text deltas as partial
// responses and assembling the final message with aggregated tool calls and usage.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var fullText string
	toolAgg := map[int64]*aggCall{}
	var toolOrder []int64
	var usage model.Usage
	finished := false

	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.PromptTokens > 0 || ck.Usage.CompletionTokens > 0 {
			usage.InputTokens = ck.Usage.PromptTokens
			usage.OutputTokens = ck.Usage.CompletionTokens
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				fullText += ch.Delta.Content
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- model.Response{Partial: true, Message: model.NewTextMessage("assistant", ch.Delta.Content)}:
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					toolOrder = append(toolOrder, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					ac.args += tc.Function.Arguments
				}
			}
			if ch.FinishReason != "" {
				finished = true
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}
	if !finished && len(toolAgg) == 0 && fullText == "" {
		errCh <- fmt.Errorf("openai streaming error: empty stream")
		return
	}

	var parts []model.Part
	if fullText != "" {
		parts = append(parts, model.TextPart{Text: fullText})
	}
	for _, idx := range toolOrder {
		ac := toolAgg[idx]
		parts = append(parts, model.ToolUsePart{
			ID:    ac.id,
			Name:  ac.name,
			Input: json.RawMessage(ac.args),
		})
	}

	stopReason := "end_turn"
	if len(toolOrder) > 0 {
		stopReason = "tool_use"
	}

	select {
	case <-ctx.Done():
		errCh <- ctx.Err()
	case out <- model.Response{
		Message:    model.Message{Role: "assistant", Parts: parts},
		StopReason: stopReason,
		Usage:      &usage,
	}:
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: "openai-chat-completions", Provider: "openai"}
}
