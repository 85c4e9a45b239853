package config

import (
	"log"
	"sync"

	"github.com/caarlos0/env/v10"
)

// RealmConfig describes one isolated Supabase auth project.
type RealmConfig struct {
	Name           string
	Role           string
	URL            string `env:"URL"`
	AnonKey        string `env:"ANON_KEY"`
	ServiceRoleKey string `env:"SERVICE_ROLE_KEY"`
	JWTSecret      string `env:"JWT_SECRET"`
	StorageKey     string `env:"STORAGE_KEY"`
}

var (
	studentRealmConfig   *RealmConfig
	studentRealmOnce     sync.Once
	recruiterRealmConfig *RealmConfig
	recruiterRealmOnce   sync.Once
)

func LoadStudentRealmConfig() *RealmConfig {
	studentRealmOnce.Do(func() {
		studentRealmConfig = loadRealmConfig("student", "STUDENT_SUPABASE_")
	})
	return studentRealmConfig
}

func LoadRecruiterRealmConfig() *RealmConfig {
	recruiterRealmOnce.Do(func() {
		recruiterRealmConfig = loadRealmConfig("recruiter", "RECRUITER_SUPABASE_")
	})
	return recruiterRealmConfig
}

func loadRealmConfig(role, prefix string) *RealmConfig {
	cfg := &RealmConfig{Name: role, Role: role}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		log.Fatalf("could not parse %s realm config: %v", role, err)
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = role + "-auth-token"
	}
	if cfg.URL == "" || cfg.AnonKey == "" {
		log.Printf("Warning: %s Supabase configuration missing (%sURL / %sANON_KEY)", role, prefix, prefix)
	}
	return cfg
}
