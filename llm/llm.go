// Package llm defines the single provider-agnostic callback contract the
// orchestrator and tool processor program against, plus adapters that wrap
// concrete SDKs behind it. Grounded on the teacher's model.Client
// abstraction (features/model/{anthropic,openai}/client.go) collapsed down
// to the narrower "prompt in, assistant message (with tool calls) out"
// shape the component design calls for.
package llm

import "context"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in the prompt handed to a Callback.
type Message struct {
	Role Role `json:"role"`
	// Content is the message text. For tool-role messages this is the
	// serialized tool result.
	Content string `json:"content"`
	// ToolCallID links a tool-role message back to the ToolCall it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name identifies the tool when Role is RoleTool.
	Name string `json:"name,omitempty"`
}

// FunctionCall is the function-calling payload of a ToolCall.
type FunctionCall struct {
	Name string `json:"name"`
	// Arguments is a JSON-encoded object, matching OpenAI/Anthropic
	// function-calling wire shape.
	Arguments string `json:"arguments"`
}

// ToolCall is one requested tool invocation inside an AssistantMessage.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function" today
	Function FunctionCall `json:"function"`
}

// AssistantMessage is what a Callback returns: free text and/or tool calls.
type AssistantMessage struct {
	Content   *string    `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Callback is the LLM entry point consumed by the tool processor and
// orchestrator. Concrete adapters (Anthropic, OpenAI) wrap their respective
// SDKs behind this signature so the rest of the engine stays provider
// agnostic.
type Callback func(ctx context.Context, messages []Message) (AssistantMessage, error)
