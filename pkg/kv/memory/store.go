// Package memory provides an in-process kv.Store backed by a sorted key index.
//
// Expired entries are invisible to reads as soon as their deadline passes and
// are physically removed either when a commit touches them or by the optional
// background sweeper (see WithSweepInterval).
package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

// Store implements kv.Store in memory.
type Store struct {
	mu      sync.RWMutex
	items   map[string]*item
	keys    []string
	version uint64

	now    func() time.Time
	ticker *time.Ticker
	done   chan struct{}
	closed sync.Once
}

type item struct {
	key          kv.Key
	value        []byte
	versionstamp string
	expiresAt    time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests that need to move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval starts a goroutine that purges expired entries at the
// given interval. Zero disables the sweeper.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.ticker = time.NewTicker(interval)
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]*item),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ticker != nil {
		go s.sweepLoop()
	}
	return s
}

// Get returns the live entry stored at key.
func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.live(key.Encode())
	if !ok {
		return nil, kv.ErrNotFound
	}
	return it.entry(), nil
}

// List snapshots the keys in the prefix range and then reads each one lazily,
// skipping keys that were deleted or expired in the meantime.
func (s *Store) List(ctx context.Context, prefix kv.Key) iter.Seq2[*kv.Entry, error] {
	return func(yield func(*kv.Entry, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		start, end := kv.PrefixRange(prefix)

		s.mu.RLock()
		lo, _ := slices.BinarySearch(s.keys, start)
		hi, _ := slices.BinarySearch(s.keys, end)
		snapshot := slices.Clone(s.keys[lo:hi])
		s.mu.RUnlock()

		for _, enc := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			s.mu.RLock()
			it, ok := s.live(enc)
			var entry *kv.Entry
			if ok {
				entry = it.entry()
			}
			s.mu.RUnlock()

			if !ok {
				continue
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// Commit applies op under the store's write lock.
func (s *Store) Commit(ctx context.Context, op *kv.Atomic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := op.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, check := range op.Checks {
		it, ok := s.live(check.Key.Encode())
		switch {
		case check.Versionstamp == "" && ok:
			return kv.ErrConflict
		case check.Versionstamp != "" && (!ok || it.versionstamp != check.Versionstamp):
			return kv.ErrConflict
		}
	}

	if len(op.Mutations) == 0 {
		return nil
	}

	s.version++
	versionstamp := fmt.Sprintf("%020x", s.version)
	now := s.now()

	for _, m := range op.Mutations {
		enc := m.Key.Encode()
		switch m.Kind {
		case kv.MutationSet:
			it := &item{
				key:          slices.Clone(m.Key),
				value:        slices.Clone(m.Value),
				versionstamp: versionstamp,
			}
			if m.ExpireIn > 0 {
				it.expiresAt = now.Add(m.ExpireIn)
			}
			s.put(enc, it)
		case kv.MutationDelete:
			s.remove(enc)
		}
	}

	return nil
}

// PurgeExpired removes every expired entry and returns how many were dropped.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	kept := s.keys[:0]
	for _, enc := range s.keys {
		if s.items[enc].expired(now) {
			delete(s.items, enc)
			purged++
			continue
		}
		kept = append(kept, enc)
	}
	s.keys = kept
	return purged
}

// Len returns the number of physically stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close stops the sweeper goroutine.
func (s *Store) Close() error {
	s.closed.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
	return nil
}

func (s *Store) sweepLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.PurgeExpired()
		case <-s.done:
			return
		}
	}
}

// live must be called with s.mu held.
func (s *Store) live(enc string) (*item, bool) {
	it, ok := s.items[enc]
	if !ok || it.expired(s.now()) {
		return nil, false
	}
	return it, true
}

// put must be called with s.mu held for writing.
func (s *Store) put(enc string, it *item) {
	if _, exists := s.items[enc]; !exists {
		i, _ := slices.BinarySearch(s.keys, enc)
		s.keys = slices.Insert(s.keys, i, enc)
	}
	s.items[enc] = it
}

// remove must be called with s.mu held for writing.
func (s *Store) remove(enc string) {
	if _, exists := s.items[enc]; !exists {
		return
	}
	delete(s.items, enc)
	if i, found := slices.BinarySearch(s.keys, enc); found {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

func (it *item) entry() *kv.Entry {
	return &kv.Entry{
		Key:          slices.Clone(it.key),
		Value:        slices.Clone(it.value),
		Versionstamp: it.versionstamp,
	}
}
