package pg

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/kvsession/pkg/kv"
	"github.com/dmitrymomot/kvsession/pkg/logger"
)

const (
	defaultListPageSize = 256

	liveRow = `(expires_at IS NULL OR expires_at > now())`

	getQuery = `SELECT value, versionstamp FROM kv_entries WHERE key = $1 AND ` + liveRow

	checkQuery = `SELECT versionstamp FROM kv_entries WHERE key = $1 AND ` + liveRow

	listQuery = `SELECT key, value, versionstamp FROM kv_entries
		WHERE key >= $1 AND key < $2 AND ` + liveRow + `
		ORDER BY key LIMIT $3`

	nextVersionstampQuery = `SELECT nextval('kv_versionstamp_seq')`

	upsertQuery = `INSERT INTO kv_entries (key, value, versionstamp, expires_at)
		VALUES ($1, $2, $3, CASE WHEN $4::bigint > 0 THEN now() + $4::bigint * interval '1 microsecond' END)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, versionstamp = EXCLUDED.versionstamp, expires_at = EXCLUDED.expires_at`

	deleteQuery = `DELETE FROM kv_entries WHERE key = $1`

	purgeQuery = `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

// Store implements kv.Store on a single kv_entries table.
//
// Keys are stored as their order-preserving encoding in a BYTEA primary key,
// so prefix scans are plain range queries. Commits run in a SERIALIZABLE
// transaction. Rows past expires_at are ignored by every read and removed by
// PurgeExpired or the optional sweeper.
type Store struct {
	pool     *pgxpool.Pool
	log      *slog.Logger
	pageSize int

	sweepInterval time.Duration
	done          chan struct{}
	stopped       chan struct{}
	closeOnce     sync.Once
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used by the sweeper.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithListPageSize sets how many rows List fetches per round trip.
func WithListPageSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSweepInterval starts a goroutine that calls PurgeExpired at the given
// interval. Zero disables it.
func WithSweepInterval(interval time.Duration) StoreOption {
	return func(s *Store) {
		s.sweepInterval = interval
	}
}

// NewStore creates a Store. The schema must exist; see Migrate.
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{
		pool:     pool,
		log:      slog.New(slog.DiscardHandler),
		pageSize: defaultListPageSize,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepInterval > 0 {
		go s.sweepLoop()
	} else {
		close(s.stopped)
	}
	return s
}

// NewStoreFromConfig creates a Store using the sweep and paging settings of cfg.
func NewStoreFromConfig(pool *pgxpool.Pool, cfg Config, opts ...StoreOption) *Store {
	base := []StoreOption{
		WithSweepInterval(cfg.SweepInterval),
		WithListPageSize(cfg.ListPageSize),
	}
	return NewStore(pool, append(base, opts...)...)
}

// Get returns the live entry at key.
func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var (
		value []byte
		vs    int64
	)
	err := s.pool.QueryRow(ctx, getQuery, []byte(key.Encode())).Scan(&value, &vs)
	if IsNotFoundError(err) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	return &kv.Entry{Key: key, Value: value, Versionstamp: formatVersionstamp(vs)}, nil
}

// List pages through the prefix range in key order. Each page is a separate
// query starting after the last key seen, so no connection is held between
// yields and the caller may write to the store while iterating.
func (s *Store) List(ctx context.Context, prefix kv.Key) iter.Seq2[*kv.Entry, error] {
	return func(yield func(*kv.Entry, error) bool) {
		start, end := kv.PrefixRange(prefix)
		from := []byte(start)
		to := []byte(end)

		for {
			page, err := s.listPage(ctx, from, to)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			// Smallest key strictly greater than the last one seen.
			from = append([]byte(page[len(page)-1].Key.Encode()), 0x00)
		}
	}
}

func (s *Store) listPage(ctx context.Context, from, to []byte) ([]*kv.Entry, error) {
	rows, err := s.pool.Query(ctx, listQuery, from, to, s.pageSize)
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	defer rows.Close()

	page := make([]*kv.Entry, 0, s.pageSize)
	for rows.Next() {
		var (
			raw   []byte
			value []byte
			vs    int64
		)
		if err := rows.Scan(&raw, &value, &vs); err != nil {
			return nil, errors.Join(ErrReadFailed, err)
		}
		key, err := kv.DecodeKey(string(raw))
		if err != nil {
			return nil, errors.Join(ErrReadFailed, err)
		}
		page = append(page, &kv.Entry{Key: key, Value: value, Versionstamp: formatVersionstamp(vs)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	return page, nil
}

// Commit verifies the checks and applies the mutations in one SERIALIZABLE
// transaction. A failed check or a serialization failure yields kv.ErrConflict.
func (s *Store) Commit(ctx context.Context, op *kv.Atomic) error {
	if err := op.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Join(ErrCommitFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, check := range op.Checks {
		ok, err := checkHolds(ctx, tx, check)
		if err != nil {
			return s.commitError(err)
		}
		if !ok {
			return kv.ErrConflict
		}
	}

	if len(op.Mutations) > 0 {
		var vs int64
		if err := tx.QueryRow(ctx, nextVersionstampQuery).Scan(&vs); err != nil {
			return s.commitError(err)
		}

		for _, m := range op.Mutations {
			key := []byte(m.Key.Encode())
			switch m.Kind {
			case kv.MutationSet:
				_, err = tx.Exec(ctx, upsertQuery, key, m.Value, vs, m.ExpireIn.Microseconds())
			case kv.MutationDelete:
				_, err = tx.Exec(ctx, deleteQuery, key)
			}
			if err != nil {
				return s.commitError(err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return s.commitError(err)
	}
	return nil
}

func checkHolds(ctx context.Context, tx pgx.Tx, check kv.Check) (bool, error) {
	var vs int64
	err := tx.QueryRow(ctx, checkQuery, []byte(check.Key.Encode())).Scan(&vs)
	if IsNotFoundError(err) {
		return check.Versionstamp == "", nil
	}
	if err != nil {
		return false, err
	}
	return check.Versionstamp == formatVersionstamp(vs), nil
}

func (s *Store) commitError(err error) error {
	// A concurrent insert of the same key surfaces as a unique violation
	// rather than a serialization failure.
	if IsSerializationError(err) || IsDuplicateKeyError(err) {
		return errors.Join(kv.ErrConflict, err)
	}
	return errors.Join(ErrCommitFailed, err)
}

// PurgeExpired deletes every row whose expiration has passed and returns how
// many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, purgeQuery)
	if err != nil {
		return 0, errors.Join(ErrPurgeFailed, err)
	}
	return tag.RowsAffected(), nil
}

// Close stops the sweeper. The pool is owned by the caller.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
	return nil
}

func (s *Store) sweepLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), s.sweepInterval)
			n, err := s.PurgeExpired(ctx)
			cancel()
			if err != nil {
				s.log.Warn("kv sweep failed",
					logger.Backend("postgres"), logger.Operation("purge"), logger.Error(err))
				continue
			}
			if n > 0 {
				s.log.Debug("kv sweep removed expired rows",
					logger.Backend("postgres"), logger.Operation("purge"),
					logger.Count(int(n)), logger.Duration(time.Since(start)))
			}
		case <-s.done:
			return
		}
	}
}

func formatVersionstamp(vs int64) string {
	return fmt.Sprintf("%020x", vs)
}
