// Adapter over github.com/openai/openai-go, grounded on the teacher's
// features/model/openai/client.go shape (a narrow client interface capturing
// only the SDK call used, an Options struct, and a validating constructor;
// building the SDK client is left to the caller), rebound to openai-go's Chat Completions
// service instead of the third-party client the teacher used for that
// particular adapter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChatClient captures the subset of the OpenAI SDK used by the
// adapter.
type OpenAIChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIOptions configures the OpenAI Callback adapter.
type OpenAIOptions struct {
	Model       string
	Temperature float64
}

// NewOpenAICallback builds a Callback backed by chat, translating messages to
// a single Chat Completions call and the response back into an
// AssistantMessage.
func NewOpenAICallback(chat OpenAIChatClient, opts OpenAIOptions) (Callback, error) {
	if chat == nil {
		return nil, errors.New("llm: openai client is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("llm: openai model identifier is required")
	}

	return func(ctx context.Context, messages []Message) (AssistantMessage, error) {
		params := openai.ChatCompletionNewParams{
			Model: opts.Model,
		}
		if opts.Temperature > 0 {
			params.Temperature = openai.Float(opts.Temperature)
		}
		for _, m := range messages {
			switch m.Role {
			case RoleSystem:
				params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
			case RoleUser:
				params.Messages = append(params.Messages, openai.UserMessage(m.Content))
			case RoleAssistant:
				params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
			case RoleTool:
				params.Messages = append(params.Messages, openai.ToolMessage(m.Content, m.ToolCallID))
			}
		}

		resp, err := chat.New(ctx, params)
		if err != nil {
			return AssistantMessage{}, fmt.Errorf("llm: openai chat completion: %w", err)
		}
		return translateOpenAIResponse(resp), nil
	}, nil
}

func translateOpenAIResponse(resp *openai.ChatCompletion) AssistantMessage {
	var out AssistantMessage
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		content := choice.Message.Content
		out.Content = &content
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}
