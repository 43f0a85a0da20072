package toolproc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/llm"
	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/registry"
	"github.com/chuk-ai/toolgraph/session"
	"github.com/chuk-ai/toolgraph/toolproc"
)

func noSleep(time.Duration) {}

func countingTool(name string, fail int, err error) (*registry.FuncTool, *int) {
	calls := 0
	tool := registry.NewFuncTool(name, func(_ context.Context, args any) (any, error) {
		calls++
		if calls <= fail {
			return nil, err
		}
		return map[string]any{"echoed": args}, nil
	}, nil, nil)
	return tool, &calls
}

func TestProcessOneCacheHitSkipsSecondInvocation(t *testing.T) {
	tool, calls := countingTool("search", 0, nil)
	reg := registry.New()
	reg.Register(tool)

	p := toolproc.New(reg, toolproc.Options{EnableCaching: true, Sleep: noSleep})
	sess := session.New(nil)

	call := toolproc.ToolCallRequest{ID: "call-1", Name: "search", Args: []byte(`{"q":"weather"}`)}
	first := p.ProcessOne(context.Background(), sess, call, "")
	require.Empty(t, first.Error)
	require.Equal(t, 1, *calls)

	second := p.ProcessOne(context.Background(), sess, call, "")
	require.Empty(t, second.Error)
	require.Equal(t, 1, *calls, "second call should be served from cache")

	events := sess.EventsSnapshot()
	var sawCacheHit bool
	for _, e := range events {
		if e.Type == session.TypeToolCall {
			if cached, _ := e.Metadata["cached"].(bool); cached {
				sawCacheHit = true
			}
			if msg, ok := e.Message.(map[string]any); ok {
				if cached, _ := msg["cached"].(bool); cached {
					sawCacheHit = true
				}
			}
		}
	}
	require.True(t, sawCacheHit, "expected a cached tool_call event")
}

func TestProcessOneRetriesThenSucceeds(t *testing.T) {
	tool, calls := countingTool("flaky", 2, errors.New("transient"))
	reg := registry.New()
	reg.Register(tool)

	p := toolproc.New(reg, toolproc.Options{EnableRetries: true, MaxRetries: 3, Sleep: noSleep})
	sess := session.New(nil)

	call := toolproc.ToolCallRequest{ID: "call-1", Name: "flaky", Args: []byte(`{}`)}
	result := p.ProcessOne(context.Background(), sess, call, "")
	require.Empty(t, result.Error)
	require.Equal(t, 3, *calls)

	var retryNotices int
	for _, e := range sess.EventsSnapshot() {
		if e.Type == session.TypeSummary {
			if retry, _ := e.Metadata["retry"].(bool); retry {
				retryNotices++
			}
		}
	}
	require.Equal(t, 2, retryNotices)
}

func TestProcessOneExhaustsRetriesAndFails(t *testing.T) {
	tool, _ := countingTool("always-fails", 99, errors.New("boom"))
	reg := registry.New()
	reg.Register(tool)

	p := toolproc.New(reg, toolproc.Options{EnableRetries: true, MaxRetries: 1, Sleep: noSleep})
	sess := session.New(nil)

	call := toolproc.ToolCallRequest{ID: "call-1", Name: "always-fails", Args: []byte(`{}`)}
	result := p.ProcessOne(context.Background(), sess, call, "")
	require.NotEmpty(t, result.Error)

	var sawFailed bool
	for _, e := range sess.EventsSnapshot() {
		if e.Type == session.TypeToolCall {
			if failed, _ := e.Metadata["failed"].(bool); failed {
				sawFailed = true
			}
		}
	}
	require.True(t, sawFailed, "expected a failed tool_call event")
}

func TestProcessOneStopsOnCancellation(t *testing.T) {
	tool, _ := countingTool("always-fails", 99, errors.New("boom"))
	reg := registry.New()
	reg.Register(tool)

	p := toolproc.New(reg, toolproc.Options{EnableRetries: true, MaxRetries: 5, Sleep: noSleep})
	sess := session.New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	call := toolproc.ToolCallRequest{ID: "call-1", Name: "always-fails", Args: []byte(`{}`)}
	result := p.ProcessOne(ctx, sess, call, "")
	require.Equal(t, "cancelled", result.Error)
}

func TestProcessLLMMessageDelegatesWhenToolCallsPresent(t *testing.T) {
	tool, calls := countingTool("search", 0, nil)
	reg := registry.New()
	reg.Register(tool)
	p := toolproc.New(reg, toolproc.Options{Sleep: noSleep})
	sess := session.New(nil)

	assistantMsg := llm.AssistantMessage{
		ToolCalls: []llm.ToolCall{{ID: "c1", Function: llm.FunctionCall{Name: "search", Arguments: `{}`}}},
	}
	callback := func(context.Context, []llm.Message) (llm.AssistantMessage, error) {
		t.Fatal("callback should not be invoked when tool calls are already present")
		return llm.AssistantMessage{}, nil
	}

	results, err := p.ProcessLLMMessage(context.Background(), sess, nil, assistantMsg, callback)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 1, *calls)
}

func TestProcessLLMMessageRePromptsThenSucceeds(t *testing.T) {
	tool, _ := countingTool("search", 0, nil)
	reg := registry.New()
	reg.Register(tool)
	p := toolproc.New(reg, toolproc.Options{MaxLLMRetries: 2, Sleep: noSleep})
	sess := session.New(nil)

	attempts := 0
	callback := func(_ context.Context, messages []llm.Message) (llm.AssistantMessage, error) {
		attempts++
		if attempts < 2 {
			return llm.AssistantMessage{}, nil
		}
		return llm.AssistantMessage{
			ToolCalls: []llm.ToolCall{{ID: "c1", Function: llm.FunctionCall{Name: "search", Arguments: `{}`}}},
		}, nil
	}

	results, err := p.ProcessLLMMessage(context.Background(), sess, []llm.Message{{Role: llm.RoleUser, Content: "go"}}, llm.AssistantMessage{}, callback)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, attempts)
}

func TestProcessLLMMessageExhaustsRepromptsAndFails(t *testing.T) {
	reg := registry.New()
	p := toolproc.New(reg, toolproc.Options{MaxLLMRetries: 2, Sleep: noSleep})
	sess := session.New(nil)

	callback := func(context.Context, []llm.Message) (llm.AssistantMessage, error) {
		return llm.AssistantMessage{}, nil
	}

	_, err := p.ProcessLLMMessage(context.Background(), sess, []llm.Message{{Role: llm.RoleUser, Content: "go"}}, llm.AssistantMessage{}, callback)
	require.ErrorIs(t, err, orcerr.ErrNoToolCalls)
}
