// Package kvsession stores authentication sessions in a key-value store and
// keeps a per-user index of them consistent through atomic multi-key commits.
//
// The module is split into small packages:
//
//   - pkg/kv defines the key-value contract: tuple keys with an
//     order-preserving encoding, versionstamped entries, prefix listing and
//     atomic commits with checks and per-key TTL.
//   - pkg/kv/memory, pkg/redis, pkg/pg and pkg/mongo implement that contract.
//   - pkg/kv/kvmetrics wraps any binding with Prometheus metrics.
//   - pkg/session is the session store itself: a primary record per session
//     and an index record per (user, session) pair, written, renewed and
//     deleted together.
//   - pkg/backend opens the binding selected by SESSION_KV_DRIVER.
//   - pkg/config and pkg/logger provide environment configuration and slog
//     setup shared by everything above.
//   - cmd/kvsession is an operator CLI for listing, inspecting and removing
//     sessions.
//
// # Quick start
//
//	b, err := backend.Open(ctx, backend.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	store := session.New(b.Store, session.WithLogger(log))
//	err = store.SetSession(ctx, &session.Session{
//	    ID:        id,
//	    UserID:    userID,
//	    ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
//	})
package kvsession
