package llm_test

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/llm"
)

type fakeAnthropicClient struct {
	resp *sdk.Message
}

func (f *fakeAnthropicClient) New(_ context.Context, _ sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, nil
}

func TestAnthropicCallbackRequiresModel(t *testing.T) {
	_, err := llm.NewAnthropicCallback(&fakeAnthropicClient{}, llm.AnthropicOptions{})
	require.Error(t, err)
}

func TestAnthropicCallbackRequiresClient(t *testing.T) {
	_, err := llm.NewAnthropicCallback(nil, llm.AnthropicOptions{Model: "claude-x"})
	require.Error(t, err)
}

type fakeOpenAIClient struct {
	resp *openai.ChatCompletion
}

func (f *fakeOpenAIClient) New(_ context.Context, _ openai.ChatCompletionNewParams, _ ...openaiopt.RequestOption) (*openai.ChatCompletion, error) {
	return f.resp, nil
}

func TestOpenAICallbackRequiresModel(t *testing.T) {
	_, err := llm.NewOpenAICallback(&fakeOpenAIClient{}, llm.OpenAIOptions{})
	require.Error(t, err)
}

func TestOpenAICallbackRequiresClient(t *testing.T) {
	_, err := llm.NewOpenAICallback(nil, llm.OpenAIOptions{Model: "gpt-x"})
	require.Error(t, err)
}

func TestOpenAICallbackTranslatesToolCalls(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Content: "",
					ToolCalls: []openai.ChatCompletionMessageToolCall{
						{
							ID: "call-1",
							Function: openai.ChatCompletionMessageToolCallFunction{
								Name:      "search",
								Arguments: `{"q":"weather"}`,
							},
						},
					},
				},
			},
		},
	}
	cb, err := llm.NewOpenAICallback(&fakeOpenAIClient{resp: resp}, llm.OpenAIOptions{Model: "gpt-x"})
	require.NoError(t, err)

	out, err := cb(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "what's the weather"}})
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	require.Equal(t, "search", out.ToolCalls[0].Function.Name)
}
