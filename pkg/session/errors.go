package session

import "errors"

var (
	// ErrInvalidSession indicates a nil session or a missing id / user id
	ErrInvalidSession = errors.New("session.invalid")

	// ErrSessionExpired indicates a create with an expiration that is not in the future
	ErrSessionExpired = errors.New("session.expired")

	// ErrConflict indicates the session id or its index entry is already taken
	ErrConflict = errors.New("session.conflict")

	// ErrStoreUnavailable wraps any failure reported by the underlying kv store
	ErrStoreUnavailable = errors.New("session.store_unavailable")

	// ErrCorruptRecord indicates a stored record that cannot be decoded
	ErrCorruptRecord = errors.New("session.corrupt_record")

	// ErrBulkDelete is joined with the per-session failures of DeleteUserSessions
	ErrBulkDelete = errors.New("session.bulk_delete_failed")
)
