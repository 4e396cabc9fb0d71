package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"inkwell/internal/logging"
)

// Manager provides lock-free snapshot access to the active configuration and
// reloads it when the config file changes on disk. Consumers call Snapshot on
// every use rather than caching values, which is what makes pool sizing and
// retry budgets live-tunable.
type Manager struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Config]
}

// NewManager seeds a manager with an already-loaded configuration.
func NewManager(cfg *Config, path string, logger *slog.Logger) *Manager {
	m := &Manager{
		path:   path,
		logger: logging.NewComponentLogger(logger, "config"),
	}
	m.current.Store(cfg)
	return m
}

// Snapshot returns the active configuration. The returned value must be
// treated as read-only.
func (m *Manager) Snapshot() *Config {
	return m.current.Load()
}

// Replace swaps the active configuration. Used by tests and by Watch.
func (m *Manager) Replace(cfg *Config) {
	if cfg == nil {
		return
	}
	m.current.Store(cfg)
}

// Watch reloads the configuration whenever the file is rewritten, until ctx
// is canceled. A reload that fails validation keeps the previous snapshot.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return errors.New("config manager has no file path to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory rather than the file so editors that replace the
	// file (rename + create) keep the watch alive.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != m.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// Editors emit bursts of events; debounce before reloading.
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("config watcher error", logging.Error(err))
			case <-pending:
				pending = nil
				m.reload()
			}
		}
	}()
	return nil
}

func (m *Manager) reload() {
	cfg, _, exists, err := Load(m.path)
	if err != nil {
		m.logger.Warn("config reload rejected, keeping previous settings", logging.Error(err))
		return
	}
	if !exists {
		m.logger.Warn("config file removed, keeping previous settings", logging.String("path", m.path))
		return
	}
	m.current.Store(cfg)
	m.logger.Info("configuration reloaded",
		logging.String("path", m.path),
		logging.Int("max_workers", cfg.Pool.MaxWorkers),
		logging.Int("max_retries", cfg.Convert.MaxRetries),
		logging.Int("timeout_seconds", cfg.Convert.TimeoutSeconds),
	)
}
