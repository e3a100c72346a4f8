package session

import "github.com/dmitrymomot/kvsession/pkg/kv"

// Config holds session store configuration
type Config struct {
	// KeyPrefix namespaces every key written by the store (empty: no namespace)
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:""`
}

// DefaultConfig returns the default session store configuration
func DefaultConfig() Config {
	return Config{}
}

// NewFromConfig creates a Store from the provided Config.
// Options passed explicitly take precedence over cfg.
func NewFromConfig(store kv.Store, cfg Config, opts ...Option) *Store {
	var configOpts []Option
	if cfg.KeyPrefix != "" {
		configOpts = append(configOpts, WithKeyPrefix(cfg.KeyPrefix))
	}
	return New(store, append(configOpts, opts...)...)
}
