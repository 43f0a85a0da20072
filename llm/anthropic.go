// Adapter over github.com/anthropics/anthropic-sdk-go, grounded on the
// teacher's features/model/anthropic/client.go: a narrow
// AnthropicMessagesClient interface capturing just the SDK method used, an
// Options struct, and a constructor validating required fields. Building the
// SDK client itself is left to the caller.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessagesClient captures the subset of the Anthropic SDK used by
// the adapter, so tests can substitute a fake in place of *sdk.MessageService.
type AnthropicMessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicOptions configures the Anthropic Callback adapter.
type AnthropicOptions struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// NewAnthropicCallback builds a Callback backed by msg, translating messages
// to a single Claude Messages API call and the response back into an
// AssistantMessage. System-role messages are collected into the request's
// top-level system prompt, matching the Messages API shape.
func NewAnthropicCallback(msg AnthropicMessagesClient, opts AnthropicOptions) (Callback, error) {
	if msg == nil {
		return nil, errors.New("llm: anthropic client is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("llm: anthropic model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return func(ctx context.Context, messages []Message) (AssistantMessage, error) {
		var system strings.Builder
		params := sdk.MessageNewParams{
			Model:     sdk.Model(opts.Model),
			MaxTokens: maxTokens,
		}
		if opts.Temperature > 0 {
			params.Temperature = sdk.Float(opts.Temperature)
		}

		for _, m := range messages {
			switch m.Role {
			case RoleSystem:
				if system.Len() > 0 {
					system.WriteString("\n")
				}
				system.WriteString(m.Content)
			case RoleUser, RoleTool:
				params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
			case RoleAssistant:
				params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
			}
		}
		if system.Len() > 0 {
			params.System = []sdk.TextBlockParam{{Text: system.String()}}
		}

		resp, err := msg.New(ctx, params)
		if err != nil {
			return AssistantMessage{}, fmt.Errorf("llm: anthropic messages.new: %w", err)
		}
		return translateAnthropicResponse(resp), nil
	}, nil
}

func translateAnthropicResponse(msg *sdk.Message) AssistantMessage {
	var out AssistantMessage
	var text strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(variant.Text)
		case sdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   variant.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      variant.Name,
					Arguments: string(variant.Input),
				},
			})
		}
	}
	if text.Len() > 0 {
		content := text.String()
		out.Content = &content
	}
	return out
}
