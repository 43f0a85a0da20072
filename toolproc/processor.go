// Package toolproc implements the session-aware tool processor: it executes
// tool-call batches with caching, retry, and hierarchical event logging, and
// drives the LLM re-prompt loop when an assistant message was expected to
// carry tool calls but didn't. Grounded on the original Python
// a2a_session_manager.session_aware_tool_processor.SessionAwareToolProcessor,
// reworked from its asyncio retry loop onto context.Context deadlines and
// time.Sleep backoff.
package toolproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chuk-ai/toolgraph/llm"
	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/registry"
	"github.com/chuk-ai/toolgraph/session"
)

// ToolResult is the outcome of processing a single tool call.
type ToolResult struct {
	Tool   string `json:"tool"`
	CallID string `json:"call_id"`
	Args   any    `json:"args"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Options configures a Processor.
type Options struct {
	EnableCaching bool
	EnableRetries bool
	MaxRetries    int
	RetryDelay    time.Duration
	MaxLLMRetries int
	// Limiter, if set, throttles tool invocations (not cache hits).
	Limiter *rate.Limiter
	// Sleep is the backoff function used between retries. Defaults to
	// time.Sleep; overridable in tests so retry timing doesn't slow the
	// suite down.
	Sleep func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 && o.EnableRetries {
		o.MaxRetries = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.MaxLLMRetries == 0 {
		o.MaxLLMRetries = 2
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// Processor executes tool calls against a registry.Registry, logging every
// step into a session.Session.
type Processor struct {
	registry *registry.Registry
	opts     Options

	mu    sync.Mutex
	cache map[string]any
}

// New constructs a Processor over reg.
func New(reg *registry.Registry, opts Options) *Processor {
	return &Processor{registry: reg, opts: opts.withDefaults(), cache: make(map[string]any)}
}

// ToolCallRequest mirrors the OpenAI-style function-call wire shape the
// processor accepts.
type ToolCallRequest struct {
	ID   string
	Name string
	Args json.RawMessage
}

func cacheKey(tool string, args any) string {
	canonical, err := canonicalJSON(args)
	if err != nil {
		canonical = fmt.Sprintf("%v", args)
	}
	sum := sha256.Sum256([]byte(tool + "\x00" + canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON re-marshals v with object keys sorted, so two
// semantically-equal argument maps hash identically regardless of
// construction order.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	return canonicalEncode(generic), nil
}

func canonicalEncode(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			kb, _ := json.Marshal(k)
			out += string(kb) + ":" + canonicalEncode(val[k])
		}
		return out + "}"
	case []any:
		out := "["
		for i, e := range val {
			if i > 0 {
				out += ","
			}
			out += canonicalEncode(e)
		}
		return out + "]"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// parseArgs decodes a JSON-encoded arguments string. On decode failure the
// raw text is preserved under "raw_arguments" rather than failing the call,
// matching the "on decode failure, preserve raw text" contract.
func parseArgs(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"raw_arguments": string(raw)}
	}
	return decoded
}

// ProcessOne executes a single tool call (the unit executor.ToolCallFunc
// wraps), applying the cache-probe / retry-with-backoff algorithm and
// appending TOOL_CALL / SUMMARY events to sess.
func (p *Processor) ProcessOne(ctx context.Context, sess *session.Session, call ToolCallRequest, parentEventID string) ToolResult {
	args := parseArgs(call.Args)

	if p.opts.EnableCaching {
		key := cacheKey(call.Name, args)
		p.mu.Lock()
		cached, hit := p.cache[key]
		p.mu.Unlock()
		if hit {
			sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeToolCall, map[string]any{
				"tool":      call.Name,
				"arguments": args,
				"result":    cached,
				"cached":    true,
			}).WithParent(parentEventID).WithMetadata("call_id", call.ID))
			return ToolResult{Tool: call.Name, CallID: call.ID, Args: args, Result: cached}
		}
	}

	maxAttempts := 1
	if p.opts.EnableRetries {
		maxAttempts = p.opts.MaxRetries + 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.opts.Limiter != nil {
			if err := p.opts.Limiter.Wait(ctx); err != nil {
				lastErr = orcerr.Wrap(orcerr.CodeCancelled, "rate limiter wait", err)
				break
			}
		}

		result, err := p.registry.Invoke(ctx, call.Name, args)
		if err == nil {
			if p.opts.EnableCaching {
				p.mu.Lock()
				p.cache[cacheKey(call.Name, args)] = result
				p.mu.Unlock()
			}
			sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeToolCall, map[string]any{
				"tool":      call.Name,
				"arguments": args,
				"result":    result,
			}).WithParent(parentEventID).WithMetadata("call_id", call.ID).WithMetadata("attempt", attempt))
			return ToolResult{Tool: call.Name, CallID: call.ID, Args: args, Result: result}
		}

		lastErr = err
		if ctx.Err() != nil {
			sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeToolCall, map[string]any{
				"tool":      call.Name,
				"arguments": args,
				"error":     "cancelled",
			}).WithParent(parentEventID).WithMetadata("call_id", call.ID))
			return ToolResult{Tool: call.Name, CallID: call.ID, Args: args, Error: "cancelled"}
		}

		if attempt < maxAttempts {
			sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeSummary,
				fmt.Sprintf("retry %d/%d for tool %s: %s", attempt, maxAttempts-1, call.Name, err.Error()),
			).WithParent(parentEventID).WithMetadata("call_id", call.ID).WithMetadata("attempt", attempt).WithMetadata("retry", true))
			p.opts.Sleep(backoff(p.opts.RetryDelay, attempt))
		}
	}

	sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeToolCall, map[string]any{
		"tool":      call.Name,
		"arguments": args,
		"error":     lastErr.Error(),
	}).WithParent(parentEventID).WithMetadata("call_id", call.ID).WithMetadata("failed", true).WithMetadata("attempt", maxAttempts))
	return ToolResult{Tool: call.Name, CallID: call.ID, Args: args, Error: lastErr.Error()}
}

// backoff scales delay by the attempt number and adds up to 20% jitter, so
// concurrent retries of the same tool don't thunder in lockstep.
func backoff(delay time.Duration, attempt int) time.Duration {
	scaled := delay * time.Duration(attempt)
	jitter := time.Duration(rand.Int64N(int64(scaled)/5 + 1))
	return scaled + jitter
}

// ProcessMessage handles a full assistant-message batch: it emits the batch
// root MESSAGE event, then processes every tool call in llmMessage.ToolCalls
// via ProcessOne, nesting each under the batch root.
func (p *Processor) ProcessMessage(ctx context.Context, sess *session.Session, llmMessage llm.AssistantMessage) []ToolResult {
	batchEvt := session.NewEvent(session.SourceLLM, session.TypeMessage, llmMessage).
		WithMetadata("contains_tool_calls", len(llmMessage.ToolCalls) > 0)
	sess.AddEvent(batchEvt)

	if len(llmMessage.ToolCalls) == 0 {
		return nil
	}

	results := make([]ToolResult, 0, len(llmMessage.ToolCalls))
	for _, tc := range llmMessage.ToolCalls {
		call := ToolCallRequest{ID: tc.ID, Name: tc.Function.Name, Args: json.RawMessage(tc.Function.Arguments)}
		results = append(results, p.ProcessOne(ctx, sess, call, batchEvt.ID))
	}
	return results
}

// retryInstruction is the fixed message sent back to the LLM when it failed
// to produce tool calls where they were expected.
const retryInstruction = "Your previous response did not include any tool calls. Please respond again, this time calling the appropriate tool(s)."

// ProcessLLMMessage drives the re-prompt loop: if assistantMsg already
// carries tool calls, it is processed directly; otherwise the LLM is
// re-prompted up to MaxLLMRetries times with retryInstruction appended to
// the conversation, emitting a SUMMARY event per attempt. Exhaustion fails
// with *NoToolCalls.
func (p *Processor) ProcessLLMMessage(ctx context.Context, sess *session.Session, messages []llm.Message, assistantMsg llm.AssistantMessage, callback llm.Callback) ([]ToolResult, error) {
	current := assistantMsg
	for attempt := 0; ; attempt++ {
		if len(current.ToolCalls) > 0 {
			return p.ProcessMessage(ctx, sess, current), nil
		}
		if attempt >= p.opts.MaxLLMRetries {
			sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeMessage, current))
			return nil, orcerr.New(orcerr.CodeNoToolCalls, "LLM did not produce tool calls after re-prompting")
		}

		sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeSummary,
			fmt.Sprintf("re-prompting LLM for tool calls, attempt %d/%d", attempt+1, p.opts.MaxLLMRetries),
		).WithMetadata("attempt", attempt+1))

		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: retryInstruction})
		next, err := callback(ctx, messages)
		if err != nil {
			return nil, orcerr.Wrap(orcerr.CodeNoToolCalls, "re-prompt callback failed", err)
		}
		current = next
	}
}
