package mongo

import (
	"context"
	"encoding/hex"
	"errors"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

const (
	defaultListPageSize = 256

	// writeConflictCode is returned when two transactions touch the same document.
	writeConflictCode = 112
)

// document is the stored form of one kv entry.
type document struct {
	ID           string     `bson:"_id"`
	Value        []byte     `bson:"value"`
	Versionstamp string     `bson:"vs"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty"`
}

// Store implements kv.Store on a single collection.
//
// Document ids are the lowercase hex form of kv.Key.Encode, which sorts like
// the raw bytes, so List is an _id range query. Commits run in a multi-document
// transaction and require a replica set or sharded cluster. Expired documents
// are hidden from reads and removed by the server's TTL monitor through the
// index created in EnsureIndexes.
type Store struct {
	coll     *mongo.Collection
	pageSize int64
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithListPageSize sets how many documents List fetches per round trip.
func WithListPageSize(n int64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces time.Now when computing expiration dates.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a Store on coll. Call EnsureIndexes once before use.
func NewStore(coll *mongo.Collection, opts ...StoreOption) *Store {
	s := &Store{
		coll:     coll,
		pageSize: defaultListPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreFromConfig creates a Store on cfg.Database / cfg.Collection.
func NewStoreFromConfig(client *mongo.Client, cfg Config, opts ...StoreOption) *Store {
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return NewStore(coll, append([]StoreOption{WithListPageSize(cfg.ListPageSize)}, opts...)...)
}

// EnsureIndexes creates the TTL index on expires_at. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetName("kv_expires_at_ttl").SetExpireAfterSeconds(0),
	})
	if err != nil {
		return errors.Join(ErrIndexFailed, err)
	}
	return nil
}

// Get returns the live entry at key.
func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.find(ctx, key)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	return &kv.Entry{Key: key, Value: doc.Value, Versionstamp: doc.Versionstamp}, nil
}

func (s *Store) find(ctx context.Context, key kv.Key) (*document, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{
		{Key: "_id", Value: documentID(key)},
		s.liveFilter(),
	}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List pages through the prefix range in key order, one query per page.
func (s *Store) List(ctx context.Context, prefix kv.Key) iter.Seq2[*kv.Entry, error] {
	return func(yield func(*kv.Entry, error) bool) {
		start, end := kv.PrefixRange(prefix)
		lower := bson.E{Key: "$gte", Value: hex.EncodeToString([]byte(start))}
		upper := bson.E{Key: "$lt", Value: hex.EncodeToString([]byte(end))}

		for {
			page, err := s.listPage(ctx, bson.D{lower, upper})
			if err != nil {
				yield(nil, err)
				return
			}
			for _, entry := range page {
				if !yield(entry.entry, nil) {
					return
				}
			}
			if int64(len(page)) < s.pageSize {
				return
			}
			lower = bson.E{Key: "$gt", Value: page[len(page)-1].id}
		}
	}
}

type listed struct {
	id    string
	entry *kv.Entry
}

func (s *Store) listPage(ctx context.Context, idRange bson.D) ([]listed, error) {
	cur, err := s.coll.Find(ctx,
		bson.D{{Key: "_id", Value: idRange}, s.liveFilter()},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(s.pageSize),
	)
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	page := make([]listed, 0, s.pageSize)
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Join(ErrReadFailed, err)
		}
		key, err := decodeDocumentID(doc.ID)
		if err != nil {
			return nil, errors.Join(ErrReadFailed, err)
		}
		page = append(page, listed{
			id:    doc.ID,
			entry: &kv.Entry{Key: key, Value: doc.Value, Versionstamp: doc.Versionstamp},
		})
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	return page, nil
}

// Commit verifies the checks and applies the mutations in one transaction.
// A failed check, a write conflict or a duplicate insert yields kv.ErrConflict.
func (s *Store) Commit(ctx context.Context, op *kv.Atomic) error {
	if err := op.Validate(); err != nil {
		return err
	}

	sess, err := s.coll.Database().Client().StartSession()
	if err != nil {
		return errors.Join(ErrCommitFailed, err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txnOpts); err != nil {
		return errors.Join(ErrCommitFailed, err)
	}

	sctx := mongo.NewSessionContext(ctx, sess)
	if err := s.apply(sctx, op); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx))
		return commitError(err)
	}

	if err := sess.CommitTransaction(sctx); err != nil {
		return commitError(err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, op *kv.Atomic) error {
	for _, check := range op.Checks {
		doc, err := s.find(ctx, check.Key)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			if check.Versionstamp != "" {
				return kv.ErrConflict
			}
		case err != nil:
			return err
		case check.Versionstamp != doc.Versionstamp:
			return kv.ErrConflict
		}
	}

	if len(op.Mutations) == 0 {
		return nil
	}

	versionstamp := bson.NewObjectID().Hex()
	now := s.now()

	for _, m := range op.Mutations {
		id := documentID(m.Key)
		switch m.Kind {
		case kv.MutationSet:
			doc := document{ID: id, Value: m.Value, Versionstamp: versionstamp}
			if m.ExpireIn > 0 {
				expiresAt := now.Add(m.ExpireIn)
				doc.ExpiresAt = &expiresAt
			}
			_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc, options.Replace().SetUpsert(true))
			if err != nil {
				return err
			}
		case kv.MutationDelete:
			if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
				return err
			}
		}
	}
	return nil
}

func commitError(err error) error {
	if errors.Is(err, kv.ErrConflict) {
		return err
	}
	if isConflict(err) {
		return errors.Join(kv.ErrConflict, err)
	}
	return errors.Join(ErrCommitFailed, err)
}

func isConflict(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var se mongo.ServerError
	return errors.As(err, &se) &&
		(se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError"))
}

// liveFilter matches documents without an expiration or with one in the future.
func (s *Store) liveFilter() bson.E {
	return bson.E{Key: "$or", Value: bson.A{
		bson.D{{Key: "expires_at", Value: nil}},
		bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: s.now()}}}},
	}}
}

func documentID(key kv.Key) string {
	return hex.EncodeToString([]byte(key.Encode()))
}

func decodeDocumentID(id string) (kv.Key, error) {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, errors.Join(kv.ErrInvalidKey, err)
	}
	return kv.DecodeKey(string(raw))
}
