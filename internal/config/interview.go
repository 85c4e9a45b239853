package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
)

type InterviewConfig struct {
	WorkflowURL         string        `env:"INTERVIEW_WORKFLOW_URL" envDefault:"https://mainquesty-question.azurewebsites.net"`
	StorageURL          string        `env:"INTERVIEW_STORAGE_URL"`
	StorageBucket       string        `env:"INTERVIEW_STORAGE_BUCKET" envDefault:"cv"`
	PollInterval        time.Duration `env:"INTERVIEW_POLL_INTERVAL" envDefault:"3s"`
	BackoffBase         time.Duration `env:"INTERVIEW_BACKOFF_BASE" envDefault:"3s"`
	BackoffMax          time.Duration `env:"INTERVIEW_BACKOFF_MAX" envDefault:"1m"`
	MaxPollWait         time.Duration `env:"INTERVIEW_MAX_POLL_WAIT" envDefault:"15m"`
	MaxQuestions        int           `env:"INTERVIEW_MAX_QUESTIONS" envDefault:"20"`
	EnforceMaxQuestions bool          `env:"INTERVIEW_ENFORCE_MAX_QUESTIONS" envDefault:"false"`
	MaxCVSize           int64         `env:"INTERVIEW_MAX_CV_SIZE" envDefault:"10485760"`
	RequestTimeout      time.Duration `env:"INTERVIEW_REQUEST_TIMEOUT" envDefault:"30s"`
}

var (
	interviewConfig *InterviewConfig
	interviewOnce   sync.Once
)

func LoadInterviewConfig() *InterviewConfig {
	interviewOnce.Do(func() {
		cfg := &InterviewConfig{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("could not parse interview config: %v", err)
		}
		if cfg.StorageURL == "" {
			cfg.StorageURL = LoadStudentRealmConfig().URL
		}
		interviewConfig = cfg
	})
	return interviewConfig
}
