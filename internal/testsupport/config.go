// Package testsupport provides builders shared by package tests: throwaway
// configurations rooted in temp directories and a fully wired daemon stack
// with a scripted dispatcher.
package testsupport

import (
	"path/filepath"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/logging"
)

// ConfigOption mutates a test configuration before validation.
type ConfigOption func(*config.Config)

// NewConfig returns a validated configuration rooted in a temp directory,
// sized small so tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.TargetDir = filepath.Join(base, "converted")
	cfg.Pool.CoreWorkers = 1
	cfg.Pool.MaxWorkers = 2
	cfg.Pool.QueueCapacity = 4
	cfg.Pool.IdleSeconds = 1
	cfg.Convert.MaxRetries = 2
	cfg.Convert.TimeoutSeconds = 30
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// NewConfigManager wraps a test configuration in a snapshot manager.
func NewConfigManager(t testing.TB, opts ...ConfigOption) *config.Manager {
	t.Helper()
	return config.NewManager(NewConfig(t, opts...), "", logging.NewNop())
}

// WithPoolSizing overrides the worker pool dimensions.
func WithPoolSizing(core, max, queue int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pool.CoreWorkers = core
		cfg.Pool.MaxWorkers = max
		cfg.Pool.QueueCapacity = queue
	}
}

// WithRetryBudget overrides the retry and timeout settings.
func WithRetryBudget(maxRetries, timeoutSeconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Convert.MaxRetries = maxRetries
		cfg.Convert.TimeoutSeconds = timeoutSeconds
	}
}
