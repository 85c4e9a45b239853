package config

import (
	"log"
	"sync"

	"github.com/caarlos0/env/v10"
)

type JobConfig struct {
	OrphanCleanupSpec string `env:"JOB_ORPHAN_CLEANUP_SPEC" envDefault:"@every 5m"`
	OrphanBatchSize   int    `env:"JOB_ORPHAN_BATCH_SIZE" envDefault:"50"`
}

var (
	jobConfig *JobConfig
	jobOnce   sync.Once
)

func LoadJobConfig() *JobConfig {
	jobOnce.Do(func() {
		cfg := &JobConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse job config: %v", err)
		}
		jobConfig = cfg
	})
	return jobConfig
}
