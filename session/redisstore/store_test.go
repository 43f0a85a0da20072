package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/session"
	"github.com/chuk-ai/toolgraph/session/redisstore"
)

func newTestStore(t *testing.T, opts ...redisstore.Option) *redisstore.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisstore.New(rdb, opts...)
}

func TestSaveThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	s := session.New(nil)
	s.AddEvent(session.NewEvent(session.SourceUser, session.TypeMessage, "hi"))
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, s.ID, loaded.ID)
	require.Len(t, loaded.Events, 1)
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Get(context.Background(), "sess-missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	s := session.New(nil)
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Delete(ctx, s.ID))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListFiltersByPrefixUnderKeyNamespace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := session.New(nil)
	b := session.New(nil)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	ids, err := store.List(ctx, "sess-")
	require.NoError(t, err)
	require.Contains(t, ids, a.ID)
	require.Contains(t, ids, b.ID)
}
