// Package mongostore persists sessions as documents in MongoDB, for
// deployments that want durable, queryable session storage rather than a
// pure key/value record. Grounded on the teacher's Mongo-backed session
// store (features/session/mongo/{store,clients/mongo/client}.go), adapted
// from that package's richer CreateSession/LoadSession/UpsertRun contract
// down to the plain Get/Save/Delete/List session.Store used here.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/session"
)

const (
	defaultCollection = "toolgraph_sessions"
	defaultOpTimeout   = 5 * time.Second
)

// Options configures a Store.
type Options struct {
	// Client is a connected Mongo client.
	Client *mongo.Client
	// Database is the database name to store sessions in.
	Database string
	// Collection overrides defaultCollection.
	Collection string
	// Timeout bounds each individual operation. Defaults to defaultOpTimeout.
	Timeout time.Duration
}

// Store is a MongoDB-backed session.Store. Each document's _id is the
// session id.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// sessionDocument wraps a session.Session so Mongo's _id matches the
// session's own id without requiring bson tags on the domain type.
type sessionDocument struct {
	ID      string          `bson:"_id"`
	Session *session.Session `bson:"session"`
}

// New constructs a Store. It creates no indexes; the session id is stored as
// the document _id, which MongoDB always indexes uniquely.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	return &Store{coll: coll, timeout: timeout}, nil
}

var _ session.Store = (*Store)(nil)

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc sessionDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("mongo find session %s", id), err)
	}
	return doc.Session, nil
}

// Save implements session.Store. It upserts the document so the first Save
// for a session id creates it and later Saves overwrite it wholesale.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := sessionDocument{ID: sess.ID, Session: sess}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": sess.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("mongo save session %s", sess.ID), err)
	}
	return nil
}

// Delete implements session.Store. Deleting a missing session is not an
// error, matching the session.Store contract.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return orcerr.Wrap(orcerr.CodeStoreFailure, fmt.Sprintf("mongo delete session %s", id), err)
	}
	return nil
}

// List implements session.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if prefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexQuoteMeta(prefix)}
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, "mongo list sessions", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, orcerr.Wrap(orcerr.CodeStoreFailure, "mongo decode session id", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, orcerr.Wrap(orcerr.CodeStoreFailure, "mongo cursor", err)
	}
	return ids, nil
}

// regexQuoteMeta escapes regex metacharacters in a session id prefix so List
// can anchor a literal prefix match via Mongo's $regex operator.
func regexQuoteMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`.*+?()[]{}|^$\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
