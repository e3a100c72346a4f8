// Package session stores authentication sessions in any kv.Store and keeps a
// per-user index of them consistent without locks.
//
// # Layout
//
// Each session lives under two keys holding identical payloads:
//
//	["sessions", id]                  primary record
//	["sessions_by_user", userID, id]  index record
//
// The index key is ordered (user, session), so listing a user's sessions is a
// single prefix scan. Owners are read from ["users", userID] (or a custom
// UserReader); this package never writes user records.
//
// # Consistency
//
// Every mutation touches both keys in one kv commit:
//
//	SetSession               check both absent, set both with the same TTL
//	UpdateSessionExpiration  set both with the new TTL (no check)
//	DeleteSession            delete both (no check)
//	DeleteUserSessions       scan the index, delete each pair in its own commit
//
// SetSession never overwrites and reports ErrConflict when the id is taken;
// retrying with a fresh id is up to the caller. Renewal and deletion are
// last-writer-wins and are silent no-ops for missing sessions.
//
// # Expiration
//
// TTL is computed as ExpiresAt minus now at write time and handed to the kv
// backend for both records. There is no sweeper here and
// DeleteExpiredSessions is intentionally empty. Right after the expiration
// instant a read may still return the record or may find nothing; treat both
// as expired.
//
// # Usage
//
//	store := session.New(kvStore, session.WithLogger(log))
//
//	err := store.SetSession(ctx, &session.Session{
//	    ID:         id,
//	    UserID:     userID,
//	    ExpiresAt:  time.Now().Add(time.Hour),
//	    Attributes: map[string]any{"ip": "1.2.3.4"},
//	})
//	if errors.Is(err, session.ErrConflict) {
//	    // regenerate the id
//	}
//
//	sess, user, err := store.GetSessionAndUser(ctx, id)
//
// # Error Handling
//
//   - ErrConflict          create on an occupied id
//   - ErrSessionExpired    create with an expiration that already passed
//   - ErrInvalidSession    nil session or empty id / user id
//   - ErrStoreUnavailable  kv failure, joined with the cause
//   - ErrBulkDelete        DeleteUserSessions finished with failed pairs
package session
