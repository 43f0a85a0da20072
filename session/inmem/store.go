// Package inmem provides an ephemeral, process-local session.Store backed by
// a mutex-guarded map. It is the default store for tests and for demo/CLI use
// where durability across restarts is not required.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chuk-ai/toolgraph/session"
)

// Store is an in-memory session.Store. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*session.Session
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]*session.Session)}
}

var _ session.Store = (*Store)(nil)

// Get implements session.Store.
func (s *Store) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.data[id]
	if !ok {
		return nil, nil
	}
	return sess, nil
}

// Save implements session.Store.
func (s *Store) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.ID] = sess
	return nil
}

// Delete implements session.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List implements session.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := range s.data {
		if prefix == "" || strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
