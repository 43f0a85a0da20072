package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/registry"
)

func echoTool() *registry.FuncTool {
	return registry.NewFuncTool("echo", func(_ context.Context, args any) (any, error) {
		return args, nil
	}, nil, nil)
}

func TestGetUnknownToolFails(t *testing.T) {
	r := registry.New()
	_, err := r.Get("missing")
	require.ErrorIs(t, err, orcerr.ErrUnknownTool)
}

func TestInvokeCallsRegisteredTool(t *testing.T) {
	r := registry.New()
	r.Register(echoTool())

	result, err := r.Invoke(context.Background(), "echo", map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1}, result)
}

func TestInvokeWrapsToolFailure(t *testing.T) {
	r := registry.New()
	r.Register(registry.NewFuncTool("boom", func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("kaboom")
	}, nil, nil))

	_, err := r.Invoke(context.Background(), "boom", nil)
	require.ErrorIs(t, err, orcerr.ErrToolExecutionFailed)
}

func TestInvokeValidatesArgumentsAgainstSchema(t *testing.T) {
	schema, err := registry.CompileSchema("args.json", []byte(`{
		"type": "object",
		"properties": {"count": {"type": "integer"}},
		"required": ["count"]
	}`))
	require.NoError(t, err)

	r := registry.New()
	r.Register(registry.NewFuncTool("counted", func(_ context.Context, args any) (any, error) {
		return args, nil
	}, schema, nil))

	_, err = r.Invoke(context.Background(), "counted", map[string]any{"count": "not-an-int"})
	require.ErrorIs(t, err, orcerr.ErrInvalidArgs)

	result, err := r.Invoke(context.Background(), "counted", map[string]any{"count": 3})
	require.NoError(t, err)
	require.NotNil(t, result)
}
