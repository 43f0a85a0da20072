package session

import "context"

// Store is the pluggable session persistence contract. All operations are
// context-aware so remote providers (file, redis, mongo) can respect
// cancellation and deadlines. Implementations: inmem (ephemeral), filestore
// (one JSON document per session under a root directory, optional
// write-through cache), redisstore (remote key/value with optional TTL),
// mongostore (durable, queryable document store).
type Store interface {
	// Get returns the session with the given id, or (nil, nil) if absent.
	// Returns a non-nil error only for genuine storage failures.
	Get(ctx context.Context, id string) (*Session, error)
	// Save persists s, creating or overwriting the stored record.
	Save(ctx context.Context, s *Session) error
	// Delete removes the session with the given id. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, id string) error
	// List returns the ids of all sessions whose id has the given prefix.
	// An empty prefix lists every session id.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Factory creates sessions against a Store, optionally as a child of an
// existing session, keeping the parent/child hierarchy invariant in sync
// across the store boundary: after Create returns, the parent's ChildIDs
// (as loaded from the store) contains the new session's id.
type Factory struct {
	Store Store
}

// NewFactory constructs a Factory bound to store.
func NewFactory(store Store) *Factory {
	return &Factory{Store: store}
}

// Create builds a new session, optionally under parentID, and saves both the
// new session and (if parentID is set) the updated parent record so the
// bidirectional parent/child invariant holds immediately after Create
// returns.
func (f *Factory) Create(ctx context.Context, parentID string) (*Session, error) {
	var parent *Session
	if parentID != "" {
		p, err := f.Store.Get(ctx, parentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	s := New(parent)

	if parent != nil {
		if err := f.Store.Save(ctx, parent); err != nil {
			return nil, err
		}
	}
	if err := f.Store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
