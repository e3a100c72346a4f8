package session

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Store
type Option func(*Store)

// WithLogger sets the logger used for debug and warning output
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now when computing TTLs from expiration times
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithKeyPrefix places every key under the given parts, e.g. a tenant or app name.
// Several stores can share one kv backend as long as their prefixes differ.
func WithKeyPrefix(parts ...string) Option {
	return func(s *Store) {
		s.keys.root = append(s.keys.root[:0:0], parts...)
	}
}

// WithUserReader sets a custom source for user records.
// By default users are read from ["users", id] in the session kv store.
func WithUserReader(r UserReader) Option {
	return func(s *Store) {
		s.users = r
	}
}
