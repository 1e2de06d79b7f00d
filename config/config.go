// Package config loads locator settings from .env files and the environment.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the settings a locator bootstrap needs.
type Config struct {
	Env            string // local | production | testing
	LogLevel       string
	DescriptorFile string
}

// Load reads .env (if present) and populates a Config from environment variables.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// .env may not exist outside development
	_ = godotenv.Load(files...)

	return &Config{
		Env:            env("HABITAT_ENV", "local"),
		LogLevel:       env("HABITAT_LOG_LEVEL", "info"),
		DescriptorFile: env("HABITAT_DESCRIPTORS", ""),
	}
}

// EnvBean reads the given .env files into a map usable as a backing bean for
// configured injection. Unlike Load it does not touch the process environment.
func EnvBean(envFiles ...string) (map[string]string, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	return godotenv.Read(files...)
}

// NewLogger builds a production logger when Env is "production" and a
// development logger otherwise, at the configured level.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.Env == "production" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
