package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
)

type MatchingConfig struct {
	WebhookURL     string        `env:"MATCHING_WEBHOOK_URL"`
	StorageURL     string        `env:"MATCHING_STORAGE_URL"`
	StorageBucket  string        `env:"MATCHING_STORAGE_BUCKET" envDefault:"cv"`
	UnlockTopN     int           `env:"MATCHING_UNLOCK_TOP_N" envDefault:"3"`
	LookupTimeout  time.Duration `env:"MATCHING_LOOKUP_TIMEOUT" envDefault:"10s"`
	RequestTimeout time.Duration `env:"MATCHING_REQUEST_TIMEOUT" envDefault:"2m"`
}

var (
	matchingConfig *MatchingConfig
	matchingOnce   sync.Once
)

func LoadMatchingConfig() *MatchingConfig {
	matchingOnce.Do(func() {
		cfg := &MatchingConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse matching config: %v", err)
		}
		if cfg.WebhookURL == "" {
			log.Println("Warning: MATCHING_WEBHOOK_URL not set, candidate search will fail")
		}
		if cfg.StorageURL == "" {
			cfg.StorageURL = LoadStudentRealmConfig().URL
		}
		matchingConfig = cfg
	})
	return matchingConfig
}
