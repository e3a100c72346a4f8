package kv

import "errors"

var (
	// ErrNotFound indicates the key does not exist or has expired
	ErrNotFound = errors.New("kv.not_found")

	// ErrConflict indicates a commit check failed and nothing was written
	ErrConflict = errors.New("kv.conflict")

	// ErrInvalidKey indicates an empty key or a key that cannot be decoded
	ErrInvalidKey = errors.New("kv.invalid_key")

	// ErrInvalidExpiration indicates a negative ExpireIn on a set mutation
	ErrInvalidExpiration = errors.New("kv.invalid_expiration")

	// ErrInvalidMutation indicates a mutation with an unknown kind
	ErrInvalidMutation = errors.New("kv.invalid_mutation")

	// ErrNilCommit indicates Commit was called without an Atomic
	ErrNilCommit = errors.New("kv.nil_commit")
)
