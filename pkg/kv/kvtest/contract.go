// Package kvtest holds a reusable suite that checks a kv.Store binding
// against the commit, scan and expiration contract.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

// Harness wires a binding into the suite.
type Harness struct {
	// Store is a fresh, empty store. Keys written by one subtest are isolated
	// from the others by a unique root part.
	Store kv.Store

	// Advance moves the store's notion of time forward. Nil skips the
	// expiration subtests.
	Advance func(d time.Duration)
}

// RunStoreContract runs every contract subtest against the harness.
func RunStoreContract(t *testing.T, h Harness) {
	t.Helper()

	ctx := context.Background()
	store := h.Store

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(ctx, kv.Key{"contract_missing", "nope"})
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		key := kv.Key{"contract_set", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("value"), 0)))

		entry, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, entry.Key)
		assert.Equal(t, []byte("value"), entry.Value)
		assert.NotEmpty(t, entry.Versionstamp)
	})

	t.Run("rewrite changes versionstamp", func(t *testing.T) {
		key := kv.Key{"contract_rewrite", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v1"), 0)))
		first, err := store.Get(ctx, key)
		require.NoError(t, err)

		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v2"), 0)))
		second, err := store.Get(ctx, key)
		require.NoError(t, err)

		assert.Equal(t, []byte("v2"), second.Value)
		assert.NotEqual(t, first.Versionstamp, second.Versionstamp)
	})

	t.Run("absent check rejects whole commit", func(t *testing.T) {
		occupied := kv.Key{"contract_absent", "occupied"}
		free := kv.Key{"contract_absent", "free"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(occupied, []byte("old"), 0)))

		err := store.Commit(ctx, kv.NewAtomic().
			Check(occupied, "").
			Check(free, "").
			Set(occupied, []byte("new"), 0).
			Set(free, []byte("new"), 0))
		assert.ErrorIs(t, err, kv.ErrConflict)

		entry, err := store.Get(ctx, occupied)
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), entry.Value)

		_, err = store.Get(ctx, free)
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("absent check passes on missing keys", func(t *testing.T) {
		a := kv.Key{"contract_absent_ok", "a"}
		b := kv.Key{"contract_absent_ok", "b"}
		err := store.Commit(ctx, kv.NewAtomic().
			Check(a, "").
			Check(b, "").
			Set(a, []byte("1"), 0).
			Set(b, []byte("2"), 0))
		require.NoError(t, err)

		ea, err := store.Get(ctx, a)
		require.NoError(t, err)
		eb, err := store.Get(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, ea.Versionstamp, eb.Versionstamp, "one commit, one versionstamp")
	})

	t.Run("versionstamp check", func(t *testing.T) {
		key := kv.Key{"contract_version", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v1"), 0)))
		entry, err := store.Get(ctx, key)
		require.NoError(t, err)

		require.NoError(t, store.Commit(ctx, kv.NewAtomic().
			Check(key, entry.Versionstamp).
			Set(key, []byte("v2"), 0)))

		err = store.Commit(ctx, kv.NewAtomic().
			Check(key, entry.Versionstamp).
			Set(key, []byte("v3"), 0))
		assert.ErrorIs(t, err, kv.ErrConflict)

		current, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), current.Value)
	})

	t.Run("versionstamp check on missing key", func(t *testing.T) {
		key := kv.Key{"contract_version_missing", "a"}
		err := store.Commit(ctx, kv.NewAtomic().
			Check(key, "00000000000000000001").
			Set(key, []byte("v"), 0))
		assert.ErrorIs(t, err, kv.ErrConflict)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		key := kv.Key{"contract_delete", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v"), 0)))

		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Delete(key)))
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Delete(key)))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("list by prefix in key order", func(t *testing.T) {
		op := kv.NewAtomic()
		for _, id := range []string{"c", "a", "b"} {
			op.Set(kv.Key{"contract_list", "u1", id}, []byte(id), 0)
		}
		op.Set(kv.Key{"contract_list", "u10", "x"}, []byte("x"), 0)
		op.Set(kv.Key{"contract_list", "u", "y"}, []byte("y"), 0)
		require.NoError(t, store.Commit(ctx, op))

		entries, err := kv.Collect(store.List(ctx, kv.Key{"contract_list", "u1"}))
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, id := range []string{"a", "b", "c"} {
			assert.Equal(t, kv.Key{"contract_list", "u1", id}, entries[i].Key)
			assert.Equal(t, []byte(id), entries[i].Value)
		}
	})

	t.Run("list is restartable and stops early", func(t *testing.T) {
		op := kv.NewAtomic()
		for i := range 5 {
			op.Set(kv.Key{"contract_restart", fmt.Sprintf("k%d", i)}, []byte("v"), 0)
		}
		require.NoError(t, store.Commit(ctx, op))

		seq := store.List(ctx, kv.Key{"contract_restart"})

		seen := 0
		for _, err := range seq {
			require.NoError(t, err)
			seen++
			if seen == 2 {
				break
			}
		}
		assert.Equal(t, 2, seen)

		all, err := kv.Collect(seq)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("list empty prefix range", func(t *testing.T) {
		entries, err := kv.Collect(store.List(ctx, kv.Key{"contract_nothing_here"}))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("invalid commit", func(t *testing.T) {
		err := store.Commit(ctx, kv.NewAtomic().Set(kv.Key{"contract_invalid"}, []byte("v"), -time.Second))
		assert.ErrorIs(t, err, kv.ErrInvalidExpiration)
	})

	t.Run("concurrent create-if-absent has one winner", func(t *testing.T) {
		key := kv.Key{"contract_race", "a"}
		const writers = 8

		var (
			wg        sync.WaitGroup
			winners   atomic.Int32
			conflicts atomic.Int32
		)
		for i := range writers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.Commit(ctx, kv.NewAtomic().
					Check(key, "").
					Set(key, fmt.Appendf(nil, "w%d", i), 0))
				switch {
				case err == nil:
					winners.Add(1)
				case errors.Is(err, kv.ErrConflict):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())
		assert.Equal(t, int32(writers-1), conflicts.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.Get(cctx, kv.Key{"contract_cancel", "a"})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, kv.ErrNotFound)
	})

	if h.Advance == nil {
		return
	}

	t.Run("ttl expires entries", func(t *testing.T) {
		short := kv.Key{"contract_ttl", "short"}
		long := kv.Key{"contract_ttl", "long"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().
			Set(short, []byte("s"), 2*time.Second).
			Set(long, []byte("l"), time.Hour)))

		_, err := store.Get(ctx, short)
		require.NoError(t, err)

		h.Advance(3 * time.Second)

		_, err = store.Get(ctx, short)
		assert.ErrorIs(t, err, kv.ErrNotFound)

		entries, err := kv.Collect(store.List(ctx, kv.Key{"contract_ttl"}))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, long, entries[0].Key)
	})

	t.Run("expired key satisfies absent check", func(t *testing.T) {
		key := kv.Key{"contract_ttl_absent", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("old"), time.Second)))

		h.Advance(2 * time.Second)

		require.NoError(t, store.Commit(ctx, kv.NewAtomic().
			Check(key, "").
			Set(key, []byte("new"), 0)))

		entry, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), entry.Value)
	})

	t.Run("rewrite re-arms ttl", func(t *testing.T) {
		key := kv.Key{"contract_ttl_rearm", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v"), 2*time.Second)))

		h.Advance(time.Second)
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v"), 10*time.Second)))
		h.Advance(5 * time.Second)

		_, err := store.Get(ctx, key)
		assert.NoError(t, err)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		key := kv.Key{"contract_ttl_zero", "a"}
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v"), 2*time.Second)))
		require.NoError(t, store.Commit(ctx, kv.NewAtomic().Set(key, []byte("v"), 0)))

		h.Advance(time.Hour)

		_, err := store.Get(ctx, key)
		assert.NoError(t, err)
	})
}
