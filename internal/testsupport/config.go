// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"apogee/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Database.Path = filepath.Join(base, "data", "apogee.db")
	cfg.Queue.Path = filepath.Join(base, "data", "jobs.db")
	cfg.LLM.APIKey = "test"
	cfg.Approval.PollIntervalSeconds = 1
	cfg.Queue.PollIntervalSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxScriptAttempts overrides the quality loop attempt ceiling.
func WithMaxScriptAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxScriptAttempts = attempts
	}
}

// WithSimilarityThreshold overrides the miner's duplicate cutoff.
func WithSimilarityThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.SimilarityThreshold = threshold
	}
}
