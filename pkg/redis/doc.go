// Package redis provides the Redis binding for pkg/kv together with
// connection helpers.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which pings the server with retries using Config.
//   - Store, a kv.Store that keeps every kv key in a hash (value plus
//     versionstamp) and relies on native key TTL for expiration.
//   - Healthcheck, a probe for liveness / readiness checks.
//
// Config fields can be populated from environment variables via
// github.com/caarlos0/env (see pkg/config).
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := redis.NewStoreFromConfig(client, cfg)
//	defer store.Close()
//
// # Commit semantics
//
// Commits with checks WATCH every touched key, verify the checks, then apply
// the mutations in MULTI/EXEC. If a watched key changes before EXEC the
// commit fails with kv.ErrConflict. Commits without checks skip WATCH.
//
// Key names are the configured prefix followed by the hex form of
// kv.Key.Encode. The same hex strings are members of a sorted set under
// prefix+"index", all at score 0, which orders them lexically and turns a
// prefix listing into ZRANGEBYLEX over just that range. Hashes expire through
// their TTL and leave a stale member behind; List drops the ones it meets and
// PruneIndex sweeps the rest.
//
// # Errors
//
// Transport failures are joined with a package sentinel (ErrReadFailed,
// ErrListFailed, ErrCommitFailed, ErrPruneFailed) via errors.Join, so both
// the sentinel and the go-redis cause can be matched with errors.Is.
package redis
