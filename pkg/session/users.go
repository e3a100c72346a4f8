package session

import (
	"context"
	"errors"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

// UserReader resolves the owner of a session. Implementations return
// (nil, nil) when the user does not exist.
type UserReader interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}

// UserReaderFunc adapts a function to UserReader.
type UserReaderFunc func(ctx context.Context, userID string) (*User, error)

// GetUser calls f(ctx, userID).
func (f UserReaderFunc) GetUser(ctx context.Context, userID string) (*User, error) {
	return f(ctx, userID)
}

// kvUserReader reads flat user records stored under ["users", id] in the same
// kv store as the sessions. It never writes.
type kvUserReader struct {
	kv   kv.Store
	keys keyspace
}

func (r *kvUserReader) GetUser(ctx context.Context, userID string) (*User, error) {
	entry, err := r.kv.Get(ctx, r.keys.user(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return decodeUser(entry.Value)
}
