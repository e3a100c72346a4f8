package backend_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvsession/pkg/backend"
	"github.com/dmitrymomot/kvsession/pkg/config"
	"github.com/dmitrymomot/kvsession/pkg/kv"
	"github.com/dmitrymomot/kvsession/pkg/kv/kvmetrics"
	"github.com/dmitrymomot/kvsession/pkg/logger"
	"github.com/dmitrymomot/kvsession/pkg/mongo"
	"github.com/dmitrymomot/kvsession/pkg/pg"
	"github.com/dmitrymomot/kvsession/pkg/redis"
	"github.com/dmitrymomot/kvsession/pkg/session"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := backend.Open(ctx, backend.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.Equal(t, backend.DriverMemory, b.Driver)
	assert.NoError(t, b.Ping(ctx))
	assert.NoError(t, b.Migrate(ctx))

	require.NoError(t, b.Store.Commit(ctx, kv.NewAtomic().Set(kv.Key{"a"}, []byte("v"), time.Nanosecond)))
	time.Sleep(time.Millisecond)

	n, err := b.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := backend.Open(context.Background(), backend.Config{Driver: "etcd"})
	assert.ErrorIs(t, err, backend.ErrUnknownDriver)
}

func TestOpen_RedisExplicitConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	b, err := backend.Open(ctx, backend.Config{
		Driver: backend.DriverRedis,
		Redis: &redis.Config{
			ConnectionURL: "redis://" + mr.Addr(),
			RetryAttempts: 1,
			KeyPrefix:     "test:",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.NoError(t, b.Ping(ctx))

	n, err := b.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	store := session.New(b.Store)
	require.NoError(t, store.SetSession(ctx, &session.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.SetSession(ctx, &session.Session{ID: "s2", UserID: "u1", ExpiresAt: time.Now().Add(time.Minute)}))

	mr.FastForward(10 * time.Minute)

	sessions, err := store.GetUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)

	// The listing above already dropped the s2 index member; the primary one remains.
	n, err = b.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.NotEmpty(t, mr.Keys())
	for _, k := range mr.Keys() {
		assert.Contains(t, k, "test:")
	}
}

func TestOpen_RedisFromEnvironment(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("REDIS_RETRY_ATTEMPTS", "1")
	config.ResetCache()
	t.Cleanup(config.ResetCache)

	b, err := backend.Open(context.Background(), backend.Config{Driver: backend.DriverRedis})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.NoError(t, b.Ping(context.Background()))
}

func TestOpen_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := backend.Open(context.Background(), backend.Config{
		Driver: backend.DriverRedis,
		Redis:  &redis.Config{ConnectionURL: "redis://" + addr, RetryAttempts: 1},
	})
	assert.ErrorIs(t, err, backend.ErrOpenFailed)
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestOpen_MissingConnectionSettings(t *testing.T) {
	ctx := context.Background()

	_, err := backend.Open(ctx, backend.Config{Driver: backend.DriverPostgres, Postgres: &pg.Config{}})
	assert.ErrorIs(t, err, backend.ErrOpenFailed)
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = backend.Open(ctx, backend.Config{Driver: backend.DriverMongo, Mongo: &mongo.Config{}})
	assert.ErrorIs(t, err, backend.ErrOpenFailed)
	assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)
}

func TestOpen_WithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := context.Background()

	b, err := backend.Open(ctx, backend.DefaultConfig(),
		backend.WithMetrics(kvmetrics.NewMetrics("kvsession", reg)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.Store.Get(ctx, kv.Key{"missing"})
	require.ErrorIs(t, err, kv.ErrNotFound)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "kvsession_kv_operations_total"))
}

func TestOpen_LogsConfig(t *testing.T) {
	var logs bytes.Buffer
	cfg := backend.DefaultConfig()
	cfg.SweepInterval = time.Second

	b, err := backend.Open(context.Background(), cfg,
		backend.WithLogger(logger.New(logger.WithOutput(&logs), logger.WithLevel(slog.LevelDebug))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	var entry struct {
		Msg     string `json:"msg"`
		Backend string `json:"backend"`
		Config  struct {
			AutoMigrate   bool          `json:"auto_migrate"`
			SweepInterval time.Duration `json:"sweep_interval"`
			Metrics       bool          `json:"metrics"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "kv backend opened", entry.Msg)
	assert.Equal(t, "memory", entry.Backend)
	assert.True(t, entry.Config.AutoMigrate)
	assert.Equal(t, time.Second, entry.Config.SweepInterval)
	assert.False(t, entry.Config.Metrics)
}

func TestClose_Idempotent(t *testing.T) {
	b, err := backend.Open(context.Background(), backend.DefaultConfig())
	require.NoError(t, err)

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
