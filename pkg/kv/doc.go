// Package kv defines the narrow storage contract the session layer is built on:
// point reads that return an opaque versionstamp, ordered prefix scans and an
// all-or-nothing conditional commit over a fixed set of keys.
//
// The package deliberately does not expose a general transaction API. A commit
// is described up front by an Atomic value: a list of per-key checks ("key must
// be absent" or "key must be at versionstamp V") and a list of mutations (set
// with an optional TTL, or delete). A binding either applies every mutation or
// none of them and reports ErrConflict when a check fails.
//
// # Keys
//
// A Key is a tuple of string parts. Bindings store the tuple in its encoded
// form (see Key.Encode), which is order preserving: sorting encoded keys
// bytewise sorts the tuples part by part, and every key that starts with a
// prefix tuple sorts inside the half-open range returned by PrefixRange.
//
// # Expiration
//
// Set mutations carry a relative ExpireIn duration. Zero means "never expire".
// Bindings with native TTL (memory, Redis, MongoDB) delegate removal to the
// engine; bindings without it hide expired keys on read.
//
// # Bindings
//
//   - pkg/kv/memory  in-process ordered map
//   - pkg/redis      go-redis, WATCH/MULTI
//   - pkg/pg         pgx, serializable transactions
//   - pkg/mongo      mongo-driver, multi-document transactions
//
// Every binding is verified with the shared suite in pkg/kv/kvtest.
package kv
