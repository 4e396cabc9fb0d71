package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	TargetDir string `toml:"target_dir"`
}

// Pool contains worker pool sizing.
type Pool struct {
	CoreWorkers   int `toml:"core_workers"`
	MaxWorkers    int `toml:"max_workers"`
	QueueCapacity int `toml:"queue_capacity"`
	IdleSeconds   int `toml:"idle_seconds"`
}

// Capacity returns the maximum admissible outstanding work.
func (p Pool) Capacity() int {
	return p.MaxWorkers + p.QueueCapacity
}

// Convert contains conversion behavior settings.
type Convert struct {
	MaxRetries      int    `toml:"max_retries"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	EnableSlides    bool   `toml:"enable_slides"`
	SofficeBinary   string `toml:"soffice_binary"`
	FontDir         string `toml:"font_dir"`
	StrictPreflight bool   `toml:"strict_preflight"`
}

// Scheduler contains scan timing configuration.
type Scheduler struct {
	IngestIntervalSeconds int `toml:"ingest_interval_seconds"`
	AdmitIntervalSeconds  int `toml:"admit_interval_seconds"`
	IngestParallelism     int `toml:"ingest_parallelism"`
	RecentLimit           int `toml:"recent_limit"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for inkwell.
//
// Sections by subsystem:
//   - Paths: data, log, and default conversion target directories
//   - Pool: worker pool sizing (core/max/queue/idle)
//   - Convert: retry budget, per-attempt timeout, renderer settings
//   - Scheduler: ingestion and admission scan intervals
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Pool      Pool      `toml:"pool"`
	Convert   Convert   `toml:"convert"`
	Scheduler Scheduler `toml:"scheduler"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inkwell/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. When the file does not
// exist, defaults are returned with exists == false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TargetDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the unix socket the daemon listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "inkwelld.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "inkwelld.lock")
}

// ArchiveDBPath returns the durable mission record database location.
func (c *Config) ArchiveDBPath() string {
	return filepath.Join(c.Paths.DataDir, "archive.db")
}

// WatchlistDBPath returns the watch-list database location.
func (c *Config) WatchlistDBPath() string {
	return filepath.Join(c.Paths.DataDir, "watchlist.db")
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", pathValue, err)
	}
	return abs, nil
}

// ExpandPath resolves ~ and relative segments in a user-supplied path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
