// Package ids centralizes identifier generation so every entity in the engine
// (sessions, events, runs, plans, steps, tool calls) gets a consistent,
// human-greppable prefix in front of a random UUID.
package ids

import "github.com/google/uuid"

// New returns a new identifier of the form "<prefix>-<uuid>". The prefix is a
// short namespace tag (e.g. "sess", "evt", "run", "plan", "step", "tc") that
// makes ids self-describing in logs and event dumps without needing a lookup.
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Session generates a new session identifier.
func Session() string { return New("sess") }

// Event generates a new session event identifier.
func Event() string { return New("evt") }

// Run generates a new session run identifier.
func Run() string { return New("run") }

// Plan generates a new plan node identifier.
func Plan() string { return New("plan") }

// Step generates a new plan step node identifier.
func Step() string { return New("step") }

// ToolCall generates a new tool-call node identifier.
func ToolCall() string { return New("tc") }

// Edge generates a new graph edge identifier.
func Edge() string { return New("edge") }
