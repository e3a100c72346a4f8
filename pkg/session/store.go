package session

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/kvsession/pkg/kv"
	"github.com/dmitrymomot/kvsession/pkg/logger"
)

// Store persists sessions in a kv.Store.
//
// Every session is written twice: a primary record under ["sessions", id] and
// an index record under ["sessions_by_user", userID, id] holding the same
// payload. Both records are created, renewed and deleted in a single atomic
// commit, and both carry the same TTL so that expiration is left entirely to
// the kv backend. Store holds no locks and is safe for concurrent use.
type Store struct {
	kv     kv.Store
	users  UserReader
	keys   keyspace
	logger *slog.Logger
	now    func() time.Time
}

// New creates a session store on top of kv.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.users == nil {
		s.users = &kvUserReader{kv: store, keys: s.keys}
	}
	return s
}

// GetSessionAndUser looks up the session and its owner concurrently.
//
// The user is resolved through a second, independent read of the primary
// record, so it may belong to a different snapshot than the returned session.
// When the session is absent both results are nil.
func (s *Store) GetSessionAndUser(ctx context.Context, sessionID string) (*Session, *User, error) {
	var (
		sess *Session
		user *User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sess, err = s.GetSession(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = s.userFromSessionID(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if sess == nil {
		return nil, nil, nil
	}
	return sess, user, nil
}

// GetSession reads the primary record. A missing or expired session yields
// (nil, nil).
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	entry, err := s.kv.Get(ctx, s.keys.primary(sessionID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return decodeSession(entry.Value)
}

// Sessions returns a lazy sequence over the index records of a user in key
// order. Each call performs a fresh scan.
func (s *Store) Sessions(ctx context.Context, userID string) iter.Seq2[*Session, error] {
	return func(yield func(*Session, error) bool) {
		for entry, err := range s.kv.List(ctx, s.keys.userIndex(userID)) {
			if err != nil {
				yield(nil, errors.Join(ErrStoreUnavailable, err))
				return
			}
			sess, err := decodeSession(entry.Value)
			if !yield(sess, err) || err != nil {
				return
			}
		}
	}
}

// GetUserSessions materializes Sessions into a slice.
func (s *Store) GetUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	sessions := []*Session{}
	for sess, err := range s.Sessions(ctx, userID) {
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// SetSession creates the primary and index records in one commit. It never
// overwrites: if either key is taken the commit is rejected with ErrConflict
// and nothing is written. An expiration that is not in the future is rejected
// with ErrSessionExpired.
func (s *Store) SetSession(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return ErrInvalidSession
	}

	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrSessionExpired
	}

	payload, err := encodeSession(sess)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	primary := s.keys.primary(sess.ID)
	index := s.keys.index(sess.UserID, sess.ID)

	err = s.kv.Commit(ctx, kv.NewAtomic().
		Check(primary, "").
		Check(index, "").
		Set(primary, payload, ttl).
		Set(index, payload, ttl))
	if errors.Is(err, kv.ErrConflict) {
		s.logger.DebugContext(ctx, "session id already taken",
			logger.SessionID(sess.ID), logger.UserID(sess.UserID))
		return errors.Join(ErrConflict, err)
	}
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	s.logger.DebugContext(ctx, "session created",
		logger.SessionID(sess.ID), logger.UserID(sess.UserID), logger.TTL(ttl))
	return nil
}

// UpdateSessionExpiration rewrites both records with a new expiration and
// re-arms their TTL. A missing session is a no-op. Moving the expiration to
// the past removes the session immediately.
//
// The write is unconditional: a renewal racing a delete may resurrect the
// pair, which is harmless for single-owner sessions.
func (s *Store) UpdateSessionExpiration(ctx context.Context, sessionID string, expiresAt time.Time) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		return err
	}

	sess.ExpiresAt = expiresAt
	primary := s.keys.primary(sess.ID)
	index := s.keys.index(sess.UserID, sess.ID)

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		if err := s.kv.Commit(ctx, kv.NewAtomic().Delete(primary).Delete(index)); err != nil {
			return errors.Join(ErrStoreUnavailable, err)
		}
		s.logger.DebugContext(ctx, "session expired on renewal",
			logger.SessionID(sess.ID), logger.UserID(sess.UserID))
		return nil
	}

	payload, err := encodeSession(sess)
	if err != nil {
		return errors.Join(ErrCorruptRecord, err)
	}

	if err := s.kv.Commit(ctx, kv.NewAtomic().
		Set(primary, payload, ttl).
		Set(index, payload, ttl)); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	s.logger.DebugContext(ctx, "session renewed",
		logger.SessionID(sess.ID), logger.UserID(sess.UserID), logger.TTL(ttl))
	return nil
}

// DeleteSession removes both records. Deleting a missing session is a no-op.
// A primary record that cannot be decoded is removed on its own, since the
// owner and therefore the index key are unknown.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if errors.Is(err, ErrCorruptRecord) {
		if err := s.kv.Commit(ctx, kv.NewAtomic().Delete(s.keys.primary(sessionID))); err != nil {
			return errors.Join(ErrStoreUnavailable, err)
		}
		s.logger.WarnContext(ctx, "corrupt session record deleted",
			logger.SessionID(sessionID), logger.Key(s.keys.primary(sessionID)))
		return nil
	}
	if err != nil || sess == nil {
		return err
	}

	if err := s.kv.Commit(ctx, kv.NewAtomic().
		Delete(s.keys.primary(sess.ID)).
		Delete(s.keys.index(sess.UserID, sess.ID))); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	s.logger.DebugContext(ctx, "session deleted",
		logger.SessionID(sess.ID), logger.UserID(sess.UserID))
	return nil
}

// DeleteUserSessions scans the user's index and deletes every pair it finds,
// one commit per session. A failed pair does not stop the scan; all failures
// are returned together, joined with ErrBulkDelete.
//
// Sessions created for the user after the scan has passed their key survive.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) error {
	var (
		errs    []error
		deleted int
	)

	for entry, err := range s.kv.List(ctx, s.keys.userIndex(userID)) {
		if err != nil {
			errs = append(errs, errors.Join(ErrStoreUnavailable, err))
			break
		}
		if len(entry.Key) == 0 {
			continue
		}

		sessionID := entry.Key[len(entry.Key)-1]
		err := s.kv.Commit(ctx, kv.NewAtomic().
			Delete(s.keys.primary(sessionID)).
			Delete(entry.Key))
		if err != nil {
			s.logger.WarnContext(ctx, "failed to delete user session",
				logger.SessionID(sessionID), logger.UserID(userID), logger.Error(err))
			errs = append(errs, errors.Join(ErrStoreUnavailable, err))
			continue
		}
		deleted++
	}

	s.logger.DebugContext(ctx, "user sessions deleted",
		logger.UserID(userID), logger.Count(deleted), logger.Errors(errs...))

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrBulkDelete}, errs...)...)
	}
	return nil
}

// DeleteExpiredSessions does nothing: both records carry a TTL and the kv
// backend removes them on its own.
func (s *Store) DeleteExpiredSessions(context.Context) error {
	return nil
}

func (s *Store) userFromSessionID(ctx context.Context, sessionID string) (*User, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}
	return s.users.GetUser(ctx, sess.UserID)
}
