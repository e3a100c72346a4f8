// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv (optional .env files) with
// github.com/caarlos0/env/v11 (struct tag parsing) and caches the parsed
// value per config type for the lifetime of the process.
//
// Every binding in this module ships an env-tagged Config: redis.Config
// (REDIS_*), pg.Config (PG_*), mongo.Config (MONGODB_*), session.Config
// (SESSION_*), logger.Config (LOG_*) and backend.Config, which aggregates
// them behind SESSION_KV_DRIVER.
//
// # Usage
//
//	var cfg backend.Config
//	config.MustLoad(&cfg)
//
// Tests that change the environment between loads call ResetCache, or
// LoadEnvFiles to read explicit dotenv files and reset the cache in one step.
//
// # Errors
//
//   - ErrParsingConfig   a required variable is missing or a value is malformed
//   - ErrLoadingEnvFile  an explicit dotenv file could not be read
//   - ErrNilPointer      Load was called with a nil pointer
package config
