package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

const (
	fieldValue        = "v"
	fieldVersionstamp = "vs"
	counterKey        = "versionstamp"
	indexName         = "index"
)

// pruneScript removes index members whose hash no longer exists. KEYS[1] is
// the index, KEYS[2..n] the hashes, ARGV[i] the member of KEYS[i+1].
var pruneScript = redis.NewScript(`
local removed = 0
for i = 2, #KEYS do
	if redis.call('EXISTS', KEYS[i]) == 0 then
		removed = removed + redis.call('ZREM', KEYS[1], ARGV[i - 1])
	end
end
return removed
`)

// Store implements kv.Store on Redis.
//
// Every kv key is a hash holding the value and the versionstamp of the last
// commit that wrote it. Expiry uses the native key TTL. Conditional commits
// WATCH the touched keys and apply mutations in MULTI/EXEC; a failed EXEC is
// reported as kv.ErrConflict and never retried.
//
// Key order lives in a sorted set with every member at score 0, so a prefix
// listing is a ZRANGEBYLEX over that range only. Members are added and removed
// in the same MULTI as their hash. Members left behind by TTL expiry are
// dropped lazily by List and in bulk by PruneIndex.
type Store struct {
	db       redis.UniversalClient
	prefix   string
	pageSize int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix namespaces every Redis key written by the store.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithListPageSize sets how many index members one ZRANGEBYLEX call fetches.
func WithListPageSize(n int64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewStore wraps a connected client.
func NewStore(client redis.UniversalClient, opts ...StoreOption) *Store {
	s := &Store{
		db:       client,
		prefix:   "kvsession:",
		pageSize: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreFromConfig wraps a connected client using the key layout from cfg.
func NewStoreFromConfig(client redis.UniversalClient, cfg Config) *Store {
	return NewStore(client, WithKeyPrefix(cfg.KeyPrefix), WithListPageSize(cfg.ListPageSize))
}

// Get reads the value and versionstamp of key.
func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	entry, err := s.read(ctx, s.db, s.redisKey(key))
	if err != nil {
		return nil, err
	}
	entry.Key = key
	return entry, nil
}

// List reads the index range of prefix page by page and loads each hash as
// the caller iterates.
func (s *Store) List(ctx context.Context, prefix kv.Key) iter.Seq2[*kv.Entry, error] {
	return func(yield func(*kv.Entry, error) bool) {
		start, end := kv.PrefixRange(prefix)
		lo := "[" + hex.EncodeToString([]byte(start))
		hi := "(" + hex.EncodeToString([]byte(end))

		for {
			members, err := s.db.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{
				Min:   lo,
				Max:   hi,
				Count: s.pageSize,
			}).Result()
			if err != nil {
				yield(nil, errors.Join(ErrListFailed, err))
				return
			}

			var stale []string
			for _, member := range members {
				key, ok := decodeMember(member)
				if !ok {
					continue
				}
				entry, err := s.read(ctx, s.db, s.prefix+member)
				if errors.Is(err, kv.ErrNotFound) {
					stale = append(stale, member)
					continue
				}
				if err != nil {
					yield(nil, err)
					return
				}
				entry.Key = key
				if !yield(entry, nil) {
					return
				}
			}

			if len(stale) > 0 {
				// Failures are left for PruneIndex.
				_, _ = s.pruneMembers(ctx, stale)
			}
			if int64(len(members)) < s.pageSize {
				return
			}
			lo = "(" + members[len(members)-1]
		}
	}
}

// Commit applies op. Commits without checks go straight to MULTI/EXEC so
// that unconditional writes never fail on contention.
func (s *Store) Commit(ctx context.Context, op *kv.Atomic) error {
	if err := op.Validate(); err != nil {
		return err
	}

	if len(op.Checks) == 0 {
		if len(op.Mutations) == 0 {
			return nil
		}
		stamp, err := s.nextVersionstamp(ctx, s.db)
		if err != nil {
			return err
		}
		if _, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queue(ctx, pipe, op, stamp)
			return nil
		}); err != nil {
			return errors.Join(ErrCommitFailed, err)
		}
		return nil
	}

	keys := op.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.redisKey(k)
	}

	err := s.db.Watch(ctx, func(tx *redis.Tx) error {
		for _, check := range op.Checks {
			current, err := tx.HGet(ctx, s.redisKey(check.Key), fieldVersionstamp).Result()
			if errors.Is(err, redis.Nil) {
				current = ""
			} else if err != nil {
				return errors.Join(ErrReadFailed, err)
			}
			if current != check.Versionstamp {
				return kv.ErrConflict
			}
		}

		if len(op.Mutations) == 0 {
			return nil
		}

		stamp, err := s.nextVersionstamp(ctx, tx)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queue(ctx, pipe, op, stamp)
			return nil
		})
		return err
	}, names...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return kv.ErrConflict
	case errors.Is(err, ErrReadFailed), errors.Is(err, ErrCommitFailed):
		return err
	default:
		return errors.Join(ErrCommitFailed, err)
	}
}

// Close terminates the underlying client.
func (s *Store) Close() error {
	return s.db.Close()
}

// Conn returns the underlying client.
func (s *Store) Conn() redis.UniversalClient {
	return s.db
}

// PruneIndex walks the whole index and removes members whose hash has
// expired. It returns the number of members removed.
func (s *Store) PruneIndex(ctx context.Context) (int64, error) {
	var removed int64
	lo := "-"
	for {
		members, err := s.db.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{
			Min:   lo,
			Max:   "+",
			Count: s.pageSize,
		}).Result()
		if err != nil {
			return removed, errors.Join(ErrListFailed, err)
		}
		if len(members) == 0 {
			return removed, nil
		}

		n, err := s.pruneMembers(ctx, members)
		removed += n
		if err != nil {
			return removed, err
		}
		if int64(len(members)) < s.pageSize {
			return removed, nil
		}
		lo = "(" + members[len(members)-1]
	}
}

func (s *Store) queue(ctx context.Context, pipe redis.Pipeliner, op *kv.Atomic, stamp string) {
	for _, m := range op.Mutations {
		member := s.member(m.Key)
		name := s.prefix + member
		switch m.Kind {
		case kv.MutationSet:
			pipe.HSet(ctx, name, fieldValue, m.Value, fieldVersionstamp, stamp)
			if m.ExpireIn > 0 {
				pipe.PExpire(ctx, name, m.ExpireIn)
			} else {
				pipe.Persist(ctx, name)
			}
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Member: member})
		case kv.MutationDelete:
			pipe.Del(ctx, name)
			pipe.ZRem(ctx, s.indexKey(), member)
		}
	}
}

func (s *Store) pruneMembers(ctx context.Context, members []string) (int64, error) {
	keys := make([]string, 0, len(members)+1)
	keys = append(keys, s.indexKey())
	args := make([]any, len(members))
	for i, member := range members {
		keys = append(keys, s.prefix+member)
		args[i] = member
	}

	n, err := pruneScript.Run(ctx, s.db, keys, args...).Int64()
	if err != nil {
		return 0, errors.Join(ErrPruneFailed, err)
	}
	return n, nil
}

type hashReader interface {
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
}

type incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

func (s *Store) read(ctx context.Context, c hashReader, name string) (*kv.Entry, error) {
	vals, err := c.HMGet(ctx, name, fieldValue, fieldVersionstamp).Result()
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	value, okValue := vals[0].(string)
	stamp, okStamp := vals[1].(string)
	if !okValue || !okStamp {
		return nil, kv.ErrNotFound
	}
	return &kv.Entry{Value: []byte(value), Versionstamp: stamp}, nil
}

func (s *Store) nextVersionstamp(ctx context.Context, c incrementer) (string, error) {
	n, err := c.Incr(ctx, s.prefix+counterKey).Result()
	if err != nil {
		return "", errors.Join(ErrCommitFailed, err)
	}
	return fmt.Sprintf("%020x", n), nil
}

// member hex-encodes the order-preserving kv encoding. Hex keeps byte order,
// so lexical order of members equals kv key order.
func (s *Store) member(key kv.Key) string {
	return hex.EncodeToString([]byte(key.Encode()))
}

func (s *Store) redisKey(key kv.Key) string {
	return s.prefix + s.member(key)
}

func (s *Store) indexKey() string {
	return s.prefix + indexName
}

func decodeMember(member string) (kv.Key, bool) {
	enc, err := hex.DecodeString(member)
	if err != nil {
		return nil, false
	}
	key, err := kv.DecodeKey(string(enc))
	if err != nil {
		return nil, false
	}
	return key, true
}
