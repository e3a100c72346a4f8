// Package pg provides the PostgreSQL binding for pkg/kv together with the
// pgx/v5 connection helpers it needs.
//
// # Building blocks
//
//   - Config holds pool limits, retry policy, migration settings and sweeper
//     cadence, populated from PG_* environment variables via
//     github.com/caarlos0/env.
//   - Connect opens a *pgxpool.Pool and pings it with a linear back-off.
//   - Migrate applies the embedded kv schema with goose/v3, then any extra
//     migrations found in Config.MigrationsPath. Both share one version table,
//     so extra migrations should use timestamp versions.
//   - Store is a kv.Store on the kv_entries table.
//   - Healthcheck returns a probe suitable for readiness endpoints.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//
//	store := pg.NewStoreFromConfig(pool, cfg, pg.WithLogger(log))
//	defer store.Close()
//
// # Schema
//
//	kv_entries(key BYTEA PRIMARY KEY, value BYTEA, versionstamp BIGINT, expires_at TIMESTAMPTZ)
//
// Keys hold kv.Key.Encode, whose byte order matches tuple order, so List is a
// range scan on the primary key. Versionstamps come from kv_versionstamp_seq,
// one value per commit.
//
// # Expiration
//
// Postgres has no native row TTL. Reads treat rows past expires_at as absent,
// and an absent check passes on them. The rows themselves are removed by
// PurgeExpired, which can run on a timer via WithSweepInterval or from the
// CLI purge command.
//
// # Errors
//
// Commits that lose a serializable race or fail a check return kv.ErrConflict.
// Other failures are joined with ErrReadFailed, ErrCommitFailed or
// ErrPurgeFailed. IsDuplicateKeyError, IsForeignKeyViolationError and
// IsSerializationError classify raw *pgconn.PgError values.
package pg
