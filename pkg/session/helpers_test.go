package session_test

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvsession/pkg/kv"
	"github.com/dmitrymomot/kvsession/pkg/kv/memory"
	"github.com/dmitrymomot/kvsession/pkg/redis"
	"github.com/dmitrymomot/kvsession/pkg/session"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// env is one kv backend plus a clock shared by the session store and the
// backend's TTL handling.
type env struct {
	kv    kv.Store
	clock *fakeClock
	// advance moves both the session clock and the backend clock.
	advance func(d time.Duration)
}

func (e *env) newStore(opts ...session.Option) *session.Store {
	return session.New(e.kv, append([]session.Option{session.WithClock(e.clock.Now)}, opts...)...)
}

type backendFactory struct {
	name string
	open func(t *testing.T) *env
}

func backends() []backendFactory {
	return []backendFactory{
		{name: "memory", open: openMemory},
		{name: "redis", open: openMiniredis},
	}
}

func openMemory(t *testing.T) *env {
	t.Helper()

	clock := newFakeClock()
	store := memory.New(memory.WithClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return &env{kv: store, clock: clock, advance: clock.Advance}
}

func openMiniredis(t *testing.T) *env {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	return &env{
		kv:    redis.NewStore(client),
		clock: clock,
		advance: func(d time.Duration) {
			clock.Advance(d)
			mr.FastForward(d)
		},
	}
}

func putUser(t *testing.T, store kv.Store, key kv.Key, payload string) {
	t.Helper()
	require.NoError(t, store.Commit(context.Background(), kv.NewAtomic().Set(key, []byte(payload), 0)))
}

func rawGet(t *testing.T, store kv.Store, key kv.Key) *kv.Entry {
	t.Helper()
	entry, err := store.Get(context.Background(), key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return entry
}

var errInjected = errors.New("injected failure")

// faultyKV wraps a kv.Store and fails selected operations.
type faultyKV struct {
	kv.Store

	// failCommit fails commits that touch a key whose last part is in the set.
	failCommit map[string]bool
	failGet    bool
	failList   bool
}

func (f *faultyKV) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if f.failGet {
		return nil, errInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *faultyKV) List(ctx context.Context, prefix kv.Key) iter.Seq2[*kv.Entry, error] {
	if f.failList {
		return func(yield func(*kv.Entry, error) bool) { yield(nil, errInjected) }
	}
	return f.Store.List(ctx, prefix)
}

func (f *faultyKV) Commit(ctx context.Context, op *kv.Atomic) error {
	for _, key := range op.Keys() {
		if len(key) > 0 && f.failCommit[key[len(key)-1]] {
			return errInjected
		}
	}
	return f.Store.Commit(ctx, op)
}

func sessionIDs(sessions []*session.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)
	return ids
}
