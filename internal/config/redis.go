package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
)

// RedisConfig is optional; an empty URL selects the in-memory stores.
type RedisConfig struct {
	URL       string        `env:"REDIS_URL"`
	DeviceTTL time.Duration `env:"DEVICE_STORE_TTL" envDefault:"720h"`
}

var (
	redisConfig *RedisConfig
	redisOnce   sync.Once
)

func LoadRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		cfg := &RedisConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse redis config: %v", err)
		}
		redisConfig = cfg
	})
	return redisConfig
}
