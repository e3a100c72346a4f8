package redis

import "time"

// Config describes the Redis connection and the key layout used by Store.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // ConnectionURL is the URL of the server, e.g. "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`                      // RetryAttempts is the number of ping attempts before Connect gives up.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`                     // RetryInterval is the pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`                   // ConnectTimeout bounds the whole Connect call.

	KeyPrefix    string `env:"REDIS_KEY_PREFIX" envDefault:"kvsession:"` // KeyPrefix namespaces every key written by Store.
	ListPageSize int64  `env:"REDIS_LIST_PAGE_SIZE" envDefault:"256"`    // ListPageSize is the LIMIT of each ZRANGEBYLEX page.
}
