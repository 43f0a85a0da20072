package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/session"
	"github.com/chuk-ai/toolgraph/session/inmem"
)

func TestNewSessionHasNoParentByDefault(t *testing.T) {
	s := session.New(nil)
	require.NotEmpty(t, s.ID)
	require.Empty(t, s.ParentID)
	require.Empty(t, s.ChildIDs)
}

func TestNewSessionLinksParentBidirectionally(t *testing.T) {
	parent := session.New(nil)
	child := session.New(parent)

	require.Equal(t, parent.ID, child.ParentID)
	require.Contains(t, parent.ChildIDs, child.ID)
}

func TestAddEventAndSavePersists(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	s := session.New(nil)
	require.NoError(t, store.Save(ctx, s))

	ev := session.NewEvent(session.SourceUser, session.TypeMessage, "hello")
	require.NoError(t, s.AddEventAndSave(ctx, store, ev))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Events, 1)
	require.Equal(t, "hello", loaded.Events[0].Message)
}

func TestLastUpdateTimeFallsBackToCreation(t *testing.T) {
	s := session.New(nil)
	require.Equal(t, s.CreatedAt, s.LastUpdateTime())

	ev := session.NewEvent(session.SourceSystem, session.TypeSummary, "note")
	s.AddEvent(ev)
	require.Equal(t, ev.Timestamp, s.LastUpdateTime())
}

func TestEventsNeverReordered(t *testing.T) {
	s := session.New(nil)
	first := session.NewEvent(session.SourceUser, session.TypeMessage, "first")
	second := session.NewEvent(session.SourceLLM, session.TypeMessage, "second")
	s.AddEvent(first)
	s.AddEvent(second)

	got := s.EventsSnapshot()
	require.Equal(t, []string{first.ID, second.ID}, []string{got[0].ID, got[1].ID})
}

func TestRunTransitionFreezesTerminalState(t *testing.T) {
	r := session.NewRun()
	r.Transition(session.RunRunning)
	require.Equal(t, session.RunRunning, r.Status)
	require.Nil(t, r.EndedAt)

	r.Transition(session.RunCompleted)
	require.Equal(t, session.RunCompleted, r.Status)
	require.NotNil(t, r.EndedAt)

	endedAt := *r.EndedAt
	r.Transition(session.RunFailed)
	require.Equal(t, session.RunCompleted, r.Status, "terminal states must not transition again")
	require.Equal(t, endedAt, *r.EndedAt)
}

func TestFactoryCreateSyncsParentChildIDs(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	factory := session.NewFactory(store)

	parent, err := factory.Create(ctx, "")
	require.NoError(t, err)

	child, err := factory.Create(ctx, parent.ID)
	require.NoError(t, err)

	loadedParent, err := store.Get(ctx, parent.ID)
	require.NoError(t, err)
	require.Contains(t, loadedParent.ChildIDs, child.ID)

	loadedChild, err := store.Get(ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, parent.ID, loadedChild.ParentID)
}
