package backend

import (
	"time"

	"github.com/dmitrymomot/kvsession/pkg/mongo"
	"github.com/dmitrymomot/kvsession/pkg/pg"
	"github.com/dmitrymomot/kvsession/pkg/redis"
)

// Driver names a kv binding.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
	DriverMongo    Driver = "mongo"
)

// Drivers lists every supported driver.
var Drivers = []Driver{DriverMemory, DriverRedis, DriverPostgres, DriverMongo}

// Config selects and tunes the kv binding.
//
// Driver-specific settings are read from their own REDIS_*, PG_* or MONGODB_*
// variables when Open needs them, so a memory setup does not require any
// connection URL. Tests can set Redis, Postgres or Mongo directly instead.
type Config struct {
	Driver        Driver        `env:"SESSION_KV_DRIVER" envDefault:"memory"`
	AutoMigrate   bool          `env:"SESSION_KV_AUTO_MIGRATE" envDefault:"true"` // AutoMigrate prepares the schema (postgres) or indexes (mongo) on Open.
	SweepInterval time.Duration `env:"SESSION_KV_SWEEP_INTERVAL" envDefault:"1m"` // SweepInterval drives the memory sweeper; postgres uses PG_SWEEP_INTERVAL.

	Redis    *redis.Config
	Postgres *pg.Config
	Mongo    *mongo.Config
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Driver:        DriverMemory,
		AutoMigrate:   true,
		SweepInterval: time.Minute,
	}
}
