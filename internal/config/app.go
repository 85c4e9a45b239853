package config

import (
	"log"
	"sync"

	"github.com/caarlos0/env/v10"
)

type AppConfig struct {
	Name         string `env:"APP_NAME" envDefault:"questy"`
	Env          string `env:"APP_ENV"`
	Port         string `env:"APP_PORT" envDefault:":8080"`
	BaseURL      string `env:"APP_URL"`
	DemoFallback bool   `env:"APP_DEMO_FALLBACK" envDefault:"false"`
}

var (
	appConfig *AppConfig
	appOnce   sync.Once
)

func LoadAppConfig() *AppConfig {
	appOnce.Do(func() {
		cfg := &AppConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse app config: %v", err)
		}
		if cfg.Env == "" {
			cfg.Env = "development"
			log.Printf("Warning: APP_ENV not set, defaulting to %s", cfg.Env)
		}
		appConfig = cfg
	})
	return appConfig
}

func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
