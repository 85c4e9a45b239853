package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
)

type RelayConfig struct {
	Port             string        `env:"RELAY_PORT" envDefault:":3001"`
	StartWebhookURL  string        `env:"RELAY_START_WEBHOOK_URL" envDefault:"https://questy.app.n8n.cloud/webhook/start-interview"`
	AnswerWebhookURL string        `env:"RELAY_ANSWER_WEBHOOK_URL" envDefault:"https://questy.app.n8n.cloud/webhook/receive-answer"`
	QueueTTL         time.Duration `env:"RELAY_QUEUE_TTL" envDefault:"24h"`
	ForwardTimeout   time.Duration `env:"RELAY_FORWARD_TIMEOUT" envDefault:"15s"`
}

var (
	relayConfig *RelayConfig
	relayOnce   sync.Once
)

func LoadRelayConfig() *RelayConfig {
	relayOnce.Do(func() {
		cfg := &RelayConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse relay config: %v", err)
		}
		relayConfig = cfg
	})
	return relayConfig
}
