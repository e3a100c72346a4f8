package kv

import (
	"context"
	"iter"
)

// Entry is a stored value together with the versionstamp of the commit that
// last wrote it.
type Entry struct {
	Key          Key
	Value        []byte
	Versionstamp string
}

// Store is the minimum primitive set a backend must provide.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry stored at key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key Key) (*Entry, error)

	// List returns a lazy, key-ordered sequence of entries whose key starts with
	// prefix. Every call starts a fresh scan. Iteration stops after the first
	// error is yielded.
	List(ctx context.Context, prefix Key) iter.Seq2[*Entry, error]

	// Commit applies op atomically. Returns ErrConflict if any check fails,
	// in which case no mutation is applied.
	Commit(ctx context.Context, op *Atomic) error
}

// Collect drains a List sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*Entry, error]) ([]*Entry, error) {
	var entries []*Entry
	for entry, err := range seq {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
