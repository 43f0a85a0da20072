// Package promptbuilder rebuilds LLM-ready prompts from a session's event
// log under a named strategy, grounded on the original
// a2a_session_manager.session_prompt_builder module (see
// examples/session_prompt_builder.py in the retrieved source for the
// strategies it demonstrates) and reworked around this engine's llm.Message
// shape instead of bare role/content maps.
package promptbuilder

import (
	"context"
	"fmt"
	"sort"

	"github.com/chuk-ai/toolgraph/llm"
	"github.com/chuk-ai/toolgraph/session"
)

// Strategy names the prompt-construction algorithm to apply.
type Strategy string

const (
	// StrategyMinimal keeps only the latest user message plus any tool
	// results that immediately preceded it.
	StrategyMinimal Strategy = "minimal"
	// StrategyConversation replays every user/assistant message in
	// timestamp order.
	StrategyConversation Strategy = "conversation"
	// StrategyHierarchical prefixes the conversation with a condensed
	// summary of each ancestor session.
	StrategyHierarchical Strategy = "hierarchical"
	// StrategyToolFocused surfaces the latest user message followed by
	// every tool call's result.
	StrategyToolFocused Strategy = "tool_focused"
)

// Builder constructs prompts from a session's event log under a Strategy.
type Builder struct {
	store session.Store
}

// New constructs a Builder. store is only consulted by StrategyHierarchical,
// to walk a session's ancestor chain; it may be nil for the other
// strategies.
func New(store session.Store) *Builder {
	return &Builder{store: store}
}

// Build renders sess's event log into a []llm.Message under strategy.
func (b *Builder) Build(ctx context.Context, sess *session.Session, strategy Strategy) ([]llm.Message, error) {
	switch strategy {
	case StrategyMinimal:
		return buildMinimal(sess), nil
	case StrategyConversation:
		return buildConversation(sess), nil
	case StrategyHierarchical:
		return b.buildHierarchical(ctx, sess)
	case StrategyToolFocused:
		return buildToolFocused(sess), nil
	default:
		return nil, fmt.Errorf("promptbuilder: unknown strategy %q", strategy)
	}
}

func messageRole(e session.Event) (llm.Role, bool) {
	switch e.Source {
	case session.SourceUser:
		return llm.RoleUser, true
	case session.SourceLLM:
		return llm.RoleAssistant, true
	default:
		return "", false
	}
}

func eventText(e session.Event) string {
	switch v := e.Message.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// buildMinimal returns the latest MESSAGE event plus any TOOL_CALL events
// nested directly under it.
func buildMinimal(sess *session.Session) []llm.Message {
	events := sess.EventsSnapshot()

	var latest *session.Event
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == session.TypeMessage {
			e := events[i]
			latest = &e
			break
		}
	}
	if latest == nil {
		return nil
	}

	out := []llm.Message{{Role: roleOrUser(*latest), Content: eventText(*latest)}}
	for _, e := range events {
		if e.Type == session.TypeToolCall && e.ParentEventID == latest.ID {
			out = append(out, toolResultMessage(e))
		}
	}
	return out
}

func roleOrUser(e session.Event) llm.Role {
	if role, ok := messageRole(e); ok {
		return role
	}
	return llm.RoleUser
}

// buildConversation replays every MESSAGE event (user/assistant) in
// timestamp order; the event log is already append-ordered by timestamp, so
// no explicit sort is needed.
func buildConversation(sess *session.Session) []llm.Message {
	var out []llm.Message
	for _, e := range sess.EventsSnapshot() {
		if e.Type != session.TypeMessage {
			continue
		}
		role, ok := messageRole(e)
		if !ok {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: eventText(e)})
	}
	return out
}

// buildHierarchical walks sess's ancestor chain via the store, collecting
// each ancestor's most recent SUMMARY event (falling back to nothing when an
// ancestor has none) as a leading system message, then appends sess's own
// conversation.
func (b *Builder) buildHierarchical(ctx context.Context, sess *session.Session) ([]llm.Message, error) {
	var ancestorSummaries []string

	if b.store != nil {
		parentID := sess.ParentID
		for parentID != "" {
			parent, err := b.store.Get(ctx, parentID)
			if err != nil {
				return nil, fmt.Errorf("promptbuilder: load ancestor session %s: %w", parentID, err)
			}
			if parent == nil {
				break
			}
			if summary, ok := latestSummary(parent); ok {
				ancestorSummaries = append([]string{summary}, ancestorSummaries...)
			}
			parentID = parent.ParentID
		}
	}

	out := make([]llm.Message, 0, len(ancestorSummaries)+4)
	for _, s := range ancestorSummaries {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: "prior context: " + s})
	}
	out = append(out, buildConversation(sess)...)
	return out, nil
}

func latestSummary(sess *session.Session) (string, bool) {
	events := sess.EventsSnapshot()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == session.TypeSummary {
			return eventText(events[i]), true
		}
	}
	return "", false
}

// buildToolFocused returns the latest user MESSAGE event followed by every
// TOOL_CALL event, each rendered as a tool-role message.
func buildToolFocused(sess *session.Session) []llm.Message {
	events := sess.EventsSnapshot()

	var latestUser *session.Event
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == session.TypeMessage && events[i].Source == session.SourceUser {
			e := events[i]
			latestUser = &e
			break
		}
	}

	var out []llm.Message
	if latestUser != nil {
		out = append(out, llm.Message{Role: llm.RoleUser, Content: eventText(*latestUser)})
	}

	toolEvents := make([]session.Event, 0)
	for _, e := range events {
		if e.Type == session.TypeToolCall {
			toolEvents = append(toolEvents, e)
		}
	}
	sort.SliceStable(toolEvents, func(i, j int) bool {
		return toolEvents[i].Timestamp.Before(toolEvents[j].Timestamp)
	})
	for _, e := range toolEvents {
		out = append(out, toolResultMessage(e))
	}
	return out
}

func toolResultMessage(e session.Event) llm.Message {
	name, _ := extractField(e.Message, "tool", "tool_name")
	return llm.Message{Role: llm.RoleTool, Name: name, Content: eventText(e)}
}

func extractField(message any, keys ...string) (string, bool) {
	m, ok := message.(map[string]any)
	if !ok {
		return "", false
	}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
