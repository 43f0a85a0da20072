// Package registry is the tool registry consumed by the session-aware tool
// processor: it resolves a tool name to an invocable Tool, normalizing both
// synchronous and asynchronous implementations behind a single call shape,
// and validates arguments/results against optional JSON Schemas. Grounded on
// the teacher's payload-vs-schema validation helper
// (registry/service.go:validatePayloadJSONAgainstSchema) and the external
// "registry.get(name) -> Tool | UnknownTool" contract.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/chuk-ai/toolgraph/orcerr"
)

// Tool is a single invocable function the orchestrator/tool processor can
// call by name. Implementations may be synchronous (return immediately) or
// asynchronous (spawn work and block on a channel); the registry makes no
// distinction, since Go's goroutines already unify the two.
type Tool interface {
	// Name is the identifier tools are looked up by.
	Name() string
	// Call invokes the tool with args (already JSON-decoded into a
	// map[string]any or a concrete type) and returns a JSON-serializable
	// result.
	Call(ctx context.Context, args any) (any, error)
	// ArgumentsSchema returns the tool's JSON Schema for its arguments, or
	// nil if unvalidated.
	ArgumentsSchema() *Schema
	// ResultSchema returns the tool's JSON Schema for its result, or nil if
	// unvalidated.
	ResultSchema() *Schema
}

// Schema wraps a compiled JSON Schema document.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles raw JSON Schema bytes into a Schema usable for
// validation.
func CompileSchema(name string, raw []byte) (*Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("registry: unmarshal schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("registry: add schema resource %s: %w", name, err)
	}
	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("registry: compile schema %s: %w", name, err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks value (any JSON-marshalable Go value) against the schema.
func (s *Schema) Validate(value any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("registry: marshal value for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("registry: unmarshal value for validation: %w", err)
	}
	return s.compiled.Validate(doc)
}

// FuncTool adapts a plain function into a Tool, for tools with no schema
// requirements. Both synchronous and channel-based async functions satisfy
// this signature: an async tool simply blocks inside fn until its own
// goroutine-spawned work completes.
type FuncTool struct {
	name     string
	fn       func(ctx context.Context, args any) (any, error)
	argsSc   *Schema
	resultSc *Schema
}

// NewFuncTool constructs a FuncTool. argsSchema/resultSchema may be nil.
func NewFuncTool(name string, fn func(ctx context.Context, args any) (any, error), argsSchema, resultSchema *Schema) *FuncTool {
	return &FuncTool{name: name, fn: fn, argsSc: argsSchema, resultSc: resultSchema}
}

// Name implements Tool.
func (t *FuncTool) Name() string { return t.name }

// Call implements Tool.
func (t *FuncTool) Call(ctx context.Context, args any) (any, error) {
	return t.fn(ctx, args)
}

// ArgumentsSchema implements Tool.
func (t *FuncTool) ArgumentsSchema() *Schema { return t.argsSc }

// ResultSchema implements Tool.
func (t *FuncTool) ResultSchema() *Schema { return t.resultSc }

// Registry is a concurrency-safe name -> Tool lookup table.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under its own Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get resolves name to a Tool, failing with *UnknownTool if absent.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, orcerr.Newf(orcerr.CodeUnknownTool, "unknown tool %q", name)
	}
	return t, nil
}

// Invoke resolves name, validates args against its ArgumentsSchema (if any),
// calls it, then validates the result against its ResultSchema (if any).
// Schema validation failures surface as *InvalidArgs / *ToolExecutionFailed
// respectively, matching "validation failures surface as ordinary tool
// errors".
func (r *Registry) Invoke(ctx context.Context, name string, args any) (any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if sc := t.ArgumentsSchema(); sc != nil {
		if err := sc.Validate(args); err != nil {
			return nil, orcerr.Wrap(orcerr.CodeInvalidArgs, fmt.Sprintf("arguments for %q failed schema validation", name), err)
		}
	}
	result, err := t.Call(ctx, args)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.CodeToolExecutionFailed, fmt.Sprintf("tool %q failed", name), err)
	}
	if sc := t.ResultSchema(); sc != nil {
		if err := sc.Validate(result); err != nil {
			return nil, orcerr.Wrap(orcerr.CodeToolExecutionFailed, fmt.Sprintf("result of %q failed schema validation", name), err)
		}
	}
	return result, nil
}
