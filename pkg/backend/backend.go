package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/kvsession/pkg/config"
	"github.com/dmitrymomot/kvsession/pkg/kv"
	"github.com/dmitrymomot/kvsession/pkg/kv/kvmetrics"
	"github.com/dmitrymomot/kvsession/pkg/kv/memory"
	"github.com/dmitrymomot/kvsession/pkg/logger"
	"github.com/dmitrymomot/kvsession/pkg/mongo"
	"github.com/dmitrymomot/kvsession/pkg/pg"
	"github.com/dmitrymomot/kvsession/pkg/redis"
)

// Backend is an opened kv binding together with its maintenance hooks.
type Backend struct {
	Driver Driver
	Store  kv.Store

	healthcheck func(context.Context) error
	migrate     func(context.Context) error
	purge       func(context.Context) (int64, error)
	closers     []func() error
	log         *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	log     *slog.Logger
	metrics *kvmetrics.Metrics
}

// WithLogger sets the logger handed to the bindings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics instruments the store with m.
func WithMetrics(m *kvmetrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Open connects the binding named by cfg.Driver.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Backend, error) {
	o := &options{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(o)
	}

	b := &Backend{Driver: cfg.Driver, log: o.log}

	var err error
	switch cfg.Driver {
	case DriverMemory:
		err = b.openMemory(cfg)
	case DriverRedis:
		err = b.openRedis(ctx, cfg)
	case DriverPostgres:
		err = b.openPostgres(ctx, cfg, o.log)
	case DriverMongo:
		err = b.openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q, want one of %v", ErrUnknownDriver, cfg.Driver, Drivers)
	}
	if err != nil {
		_ = b.Close()
		return nil, errors.Join(ErrOpenFailed, err)
	}

	if cfg.AutoMigrate && b.migrate != nil {
		if err := b.migrate(ctx); err != nil {
			_ = b.Close()
			return nil, errors.Join(ErrOpenFailed, err)
		}
	}

	if o.metrics != nil {
		b.Store = o.metrics.Wrap(b.Store, string(cfg.Driver))
	}

	o.log.DebugContext(ctx, "kv backend opened",
		logger.Backend(string(cfg.Driver)),
		logger.Group("config",
			slog.Bool("auto_migrate", cfg.AutoMigrate),
			slog.Duration("sweep_interval", cfg.SweepInterval),
			slog.Bool("metrics", o.metrics != nil),
		))
	return b, nil
}

func (b *Backend) openMemory(cfg Config) error {
	store := memory.New(memory.WithSweepInterval(cfg.SweepInterval))
	b.Store = store
	b.purge = func(context.Context) (int64, error) {
		return int64(store.PurgeExpired()), nil
	}
	b.closers = append(b.closers, store.Close)
	return nil
}

func (b *Backend) openRedis(ctx context.Context, cfg Config) error {
	rcfg, err := driverConfig(cfg.Redis)
	if err != nil {
		return err
	}

	client, err := redis.Connect(ctx, rcfg)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, client.Close)

	store := redis.NewStoreFromConfig(client, rcfg)
	b.Store = store
	b.purge = store.PruneIndex
	b.healthcheck = redis.Healthcheck(client)
	return nil
}

func (b *Backend) openPostgres(ctx context.Context, cfg Config, log *slog.Logger) error {
	pcfg, err := driverConfig(cfg.Postgres)
	if err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pcfg)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() error {
		pool.Close()
		return nil
	})

	b.migrate = func(ctx context.Context) error {
		return pg.Migrate(ctx, pool, pcfg, log)
	}
	store := pg.NewStoreFromConfig(pool, pcfg, pg.WithLogger(log))
	b.closers = append(b.closers, store.Close)

	b.Store = store
	b.purge = store.PurgeExpired
	b.healthcheck = pg.Healthcheck(pool)
	return nil
}

func (b *Backend) openMongo(ctx context.Context, cfg Config) error {
	mcfg, err := driverConfig(cfg.Mongo)
	if err != nil {
		return err
	}

	client, err := mongo.New(ctx, mcfg)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	})

	store := mongo.NewStoreFromConfig(client, mcfg)
	b.Store = store
	b.migrate = store.EnsureIndexes
	b.healthcheck = mongo.Healthcheck(client)
	return nil
}

// driverConfig returns the explicit config or loads it from the environment.
func driverConfig[T any](explicit *T) (T, error) {
	if explicit != nil {
		return *explicit, nil
	}
	var cfg T
	if err := config.Load(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Ping checks connectivity. The memory binding is always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.healthcheck == nil {
		return nil
	}
	return b.healthcheck(ctx)
}

// Migrate prepares the schema or indexes. Bindings without one return nil.
func (b *Backend) Migrate(ctx context.Context) error {
	if b.migrate == nil {
		return nil
	}
	return b.migrate(ctx)
}

// PurgeExpired physically removes expired entries. Bindings that expire
// natively return ErrNotSupported.
func (b *Backend) PurgeExpired(ctx context.Context) (int64, error) {
	if b.purge == nil {
		return 0, fmt.Errorf("%w: %s expires entries natively", ErrNotSupported, b.Driver)
	}
	return b.purge(ctx)
}

// Close releases resources in reverse order of acquisition.
func (b *Backend) Close() error {
	var errs []error
	for _, closeFn := range slices.Backward(b.closers) {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	if len(errs) > 0 {
		b.log.Warn("kv backend closed with errors", logger.Backend(string(b.Driver)), logger.Errors(errs...))
	}
	return errors.Join(errs...)
}
