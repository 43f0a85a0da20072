package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/executor"
	"github.com/chuk-ai/toolgraph/graph"
	"github.com/chuk-ai/toolgraph/llm"
	"github.com/chuk-ai/toolgraph/orchestrator"
	"github.com/chuk-ai/toolgraph/registry"
	"github.com/chuk-ai/toolgraph/session"
	"github.com/chuk-ai/toolgraph/toolproc"
)

func strPtr(s string) *string { return &s }

func fakeCallback() llm.Callback {
	return func(_ context.Context, messages []llm.Message) (llm.AssistantMessage, error) {
		sys := messages[0].Content
		switch {
		case strings.Contains(sys, "planning assistant"):
			return llm.AssistantMessage{Content: strPtr(
				`{"title":"demo","steps":[{"title":"search the web","tool":"search","args":{"q":"weather"}}]}`,
			)}, nil
		case strings.Contains(sys, "follow-up"):
			return llm.AssistantMessage{Content: strPtr(`{"steps":[]}`)}, nil
		default:
			return llm.AssistantMessage{Content: strPtr("Found the weather and finished the plan.")}, nil
		}
	}
}

func TestRunDrivesPlanThroughExecutionToSummary(t *testing.T) {
	ctx := context.Background()
	graphStore := graph.NewInMemoryStore()

	reg := registry.New()
	var searchCalls int
	reg.Register(registry.NewFuncTool("search", func(_ context.Context, _ any) (any, error) {
		searchCalls++
		return map[string]any{"results": []string{"sunny, 72F"}}, nil
	}, nil, nil))

	processor := toolproc.New(reg, toolproc.Options{})
	exec := executor.New(graphStore, executor.Options{})

	orc := orchestrator.New(graphStore, processor, exec, nil, fakeCallback(), orchestrator.Options{
		AllowList: orchestrator.AllowList{"search": nil},
	})

	sess := session.New(nil)
	summary, err := orc.Run(ctx, sess, "what's the weather?")
	require.NoError(t, err)
	require.Equal(t, "Found the weather and finished the plan.", summary)
	require.Equal(t, 1, searchCalls)

	var sawToolCall bool
	for _, e := range sess.EventsSnapshot() {
		if e.Type == session.TypeToolCall {
			sawToolCall = true
		}
	}
	require.True(t, sawToolCall)
}

func TestRunRejectsPlanWithToolOutsideAllowList(t *testing.T) {
	ctx := context.Background()
	graphStore := graph.NewInMemoryStore()
	reg := registry.New()
	processor := toolproc.New(reg, toolproc.Options{})
	exec := executor.New(graphStore, executor.Options{})

	orc := orchestrator.New(graphStore, processor, exec, nil, fakeCallback(), orchestrator.Options{
		AllowList: orchestrator.AllowList{}, // "search" not allowed
	})

	sess := session.New(nil)
	_, err := orc.Run(ctx, sess, "what's the weather?")
	require.Error(t, err)
}

func TestRunFailsRunWhenEveryToolCallFails(t *testing.T) {
	ctx := context.Background()
	graphStore := graph.NewInMemoryStore()

	reg := registry.New()
	reg.Register(registry.NewFuncTool("search", func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("search backend unavailable")
	}, nil, nil))

	processor := toolproc.New(reg, toolproc.Options{})
	// ProceedOnPartialFailure true so a failed batch doesn't short-circuit
	// Execute before the aggregate all-failed check runs.
	exec := executor.New(graphStore, executor.Options{ProceedOnPartialFailure: true})

	orc := orchestrator.New(graphStore, processor, exec, nil, fakeCallback(), orchestrator.Options{
		AllowList: orchestrator.AllowList{"search": nil},
	})

	sess := session.New(nil)
	_, err := orc.Run(ctx, sess, "what's the weather?")
	require.Error(t, err)

	var sawFailedSummary bool
	for _, run := range sess.Runs {
		require.Equal(t, session.RunFailed, run.Status)
	}
	for _, e := range sess.EventsSnapshot() {
		msg, ok := e.Message.(map[string]any)
		if ok && msg["status"] == "failed" && msg["error"] != nil {
			sawFailedSummary = true
		}
	}
	require.True(t, sawFailedSummary)
}

func TestValidatePlanRejectsEmptyPlan(t *testing.T) {
	err := orchestrator.ValidatePlan(orchestrator.PlanSpec{Title: "empty"}, orchestrator.AllowList{})
	require.Error(t, err)
}
