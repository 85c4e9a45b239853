package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
)

type GateConfig struct {
	// MaxAttempts applies to the session page check, which waits for a
	// sign-in that is still landing.
	MaxAttempts int           `env:"GATE_MAX_ATTEMPTS" envDefault:"20"`
	Interval    time.Duration `env:"GATE_INTERVAL" envDefault:"500ms"`
	// RouteMaxAttempts applies to gated API routes.
	RouteMaxAttempts int `env:"GATE_ROUTE_MAX_ATTEMPTS" envDefault:"2"`
}

var (
	gateConfig *GateConfig
	gateOnce   sync.Once
)

func LoadGateConfig() *GateConfig {
	gateOnce.Do(func() {
		cfg := &GateConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse gate config: %v", err)
		}
		gateConfig = cfg
	})
	return gateConfig
}
