// Package filestore persists sessions as one JSON document per session under
// a root directory, with an in-memory read cache in front of disk so repeat
// Gets for a hot session avoid re-parsing the file.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/session"
)

// Store is a filesystem-backed session.Store. Each session is stored as
// "<id>.json" under Dir. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string

	// autoSave mirrors every Save through to disk immediately. When false,
	// Save only updates the in-memory cache and Flush must be called to
	// persist it; this matches the write-behind mode the original file
	// store supports for batching writes.
	autoSave bool

	cache map[string]*session.Session
}

// Option configures a Store.
type Option func(*Store)

// WithAutoSave toggles whether Save writes through to disk immediately.
// Defaults to true.
func WithAutoSave(autoSave bool) Option {
	return func(s *Store) { s.autoSave = autoSave }
}

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, "create session directory", err)
	}
	s := &Store{
		dir:      dir,
		autoSave: true,
		cache:    make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ session.Store = (*Store)(nil)

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", id))
}

// Get implements session.Store.
func (s *Store) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	if cached, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, "read session file", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("decode session %s", id), err)
	}

	s.mu.Lock()
	s.cache[id] = &sess
	s.mu.Unlock()
	return &sess, nil
}

// Save implements session.Store.
func (s *Store) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	s.cache[sess.ID] = sess
	s.mu.Unlock()

	if !s.autoSave {
		return nil
	}
	return s.writeToFile(sess)
}

func (s *Store) writeToFile(sess *session.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("encode session %s", sess.ID), err)
	}
	if err := os.WriteFile(s.path(sess.ID), data, 0o644); err != nil {
		return orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("write session %s", sess.ID), err)
	}
	return nil
}

// Delete implements session.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("remove session file %s", id), err)
	}
	return nil
}

// List implements session.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, "list session directory", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if prefix == "" || strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Flush writes every cached session to disk, regardless of autoSave. Errors
// for individual sessions are collected and joined; Flush keeps going after
// one session fails to write so a single bad entry doesn't block the rest.
func (s *Store) Flush() error {
	s.mu.RLock()
	sessions := make([]*session.Session, 0, len(s.cache))
	for _, sess := range s.cache {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var errs []string
	for _, sess := range sessions {
		if err := s.writeToFile(sess); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return orcerr.New(orcerr.CodeStoreFailure, "flush: "+strings.Join(errs, "; "))
	}
	return nil
}

// ClearCache drops the in-memory read cache, forcing subsequent Gets to hit
// disk again.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*session.Session)
}
