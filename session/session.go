// Package session implements the append-only session event log: the durable
// record of a conversation and its child sessions. Sessions own an ordered
// sequence of events and runs; events are never reordered or mutated once
// appended.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/chuk-ai/toolgraph/internal/ids"
	"github.com/chuk-ai/toolgraph/orcerr"
)

// EventSource identifies who produced a SessionEvent.
type EventSource string

const (
	SourceUser   EventSource = "user"
	SourceLLM    EventSource = "llm"
	SourceSystem EventSource = "system"
)

// EventType discriminates the category of a SessionEvent.
type EventType string

const (
	TypeMessage  EventType = "message"
	TypeSummary  EventType = "summary"
	TypeToolCall EventType = "tool_call"
)

// TokenUsage records token accounting for an event, when available.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event is an atomic, timestamped record appended to a session. Events are
// never mutated after Append; metadata added after construction is folded in
// via WithMetadata before the event is appended, not afterwards.
type Event struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         EventSource    `json:"source"`
	Type           EventType      `json:"type"`
	Message        any            `json:"message"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ParentEventID  string         `json:"parent_event_id,omitempty"`
	TaskID         string         `json:"task_id,omitempty"`
	TokenUsage     *TokenUsage    `json:"token_usage,omitempty"`
}

// NewEvent constructs an Event with a generated id and the current UTC time.
func NewEvent(source EventSource, typ EventType, message any) Event {
	return Event{
		ID:        ids.Event(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Type:      typ,
		Message:   message,
	}
}

// WithMetadata returns a copy of the event with the given metadata key set.
func (e Event) WithMetadata(key string, value any) Event {
	out := e
	out.Metadata = cloneMeta(out.Metadata)
	out.Metadata[key] = value
	return out
}

// WithParent returns a copy of the event with ParentEventID set.
func (e Event) WithParent(parentEventID string) Event {
	out := e
	out.ParentEventID = parentEventID
	return out
}

// WithTaskID returns a copy of the event with TaskID set.
func (e Event) WithTaskID(taskID string) Event {
	out := e
	out.TaskID = taskID
	return out
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RunStatus is the lifecycle state of a SessionRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is a lifecycle-tracked unit of work inside a session (one plan
// execution, one tool-processor batch, etc.). Terminal states freeze
// StartedAt/EndedAt.
type Run struct {
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Status    RunStatus      `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewRun constructs a pending Run with a generated id.
func NewRun() *Run {
	return &Run{ID: ids.Run(), StartedAt: time.Now().UTC(), Status: RunPending}
}

// Transition moves the run to a new status. Once in a terminal state
// (completed/failed/cancelled) further transitions are no-ops, matching the
// "terminal states remain terminal" invariant.
func (r *Run) Transition(status RunStatus) {
	if r.terminal() {
		return
	}
	r.Status = status
	if isTerminal(status) {
		now := time.Now().UTC()
		r.EndedAt = &now
	}
}

func (r *Run) terminal() bool { return isTerminal(r.Status) }

func isTerminal(s RunStatus) bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// Session is the root container of a conversation: an append-only event log
// plus a set of runs, optionally nested under a parent session.
type Session struct {
	mu sync.Mutex

	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	ParentID   string         `json:"parent_id,omitempty"`
	ChildIDs   []string       `json:"child_ids,omitempty"`
	Events     []Event        `json:"events"`
	Runs       []*Run         `json:"runs"`
	State      map[string]any `json:"state,omitempty"`
}

// New constructs a new Session with a generated id. If parent is non-nil,
// the new session's ParentID is set and the parent's ChildIDs gains the new
// session's id, keeping the bidirectional invariant in §3 satisfied for the
// in-process case. Across a Store, Factory.Create re-establishes it by saving
// the updated parent record.
func New(parent *Session) *Session {
	s := &Session{
		ID:        ids.Session(),
		CreatedAt: time.Now().UTC(),
		State:     make(map[string]any),
	}
	if parent != nil {
		s.ParentID = parent.ID
		parent.mu.Lock()
		parent.ChildIDs = append(parent.ChildIDs, s.ID)
		parent.mu.Unlock()
	}
	return s
}

// AddEvent appends ev to the session's event list, serialized behind the
// session's mutex so concurrent appends from parallel batch steps never
// interleave or reorder. It does not touch any Store; see AddEventAndSave
// for the store-synchronized variant.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
}

// AddEventAndSave appends ev and persists the session through store. This is
// the only sanctioned path for mutating a session's event log once it has
// been handed to a Store-backed component: it keeps the in-memory struct and
// the durable record consistent under concurrent callers.
func (s *Session) AddEventAndSave(ctx context.Context, store Store, ev Event) error {
	s.AddEvent(ev)
	if err := store.Save(ctx, s); err != nil {
		return orcerr.Wrap(orcerr.CodeStoreFailure, "save session after event append", err)
	}
	return nil
}

// LastUpdateTime returns the max of the session's events' timestamps, or its
// creation time when there are no events yet.
func (s *Session) LastUpdateTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.CreatedAt
	for _, e := range s.Events {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

// EventsSnapshot returns a copy of the session's events, safe to range over
// without holding the session's lock.
func (s *Session) EventsSnapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}

// AddRun appends r to the session's runs.
func (s *Session) AddRun(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Runs = append(s.Runs, r)
}
