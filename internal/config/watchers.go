package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// FileWatcher calls its callbacks whenever the watched file is written
// or recreated. The parent directory is watched so that editors and
// ConfigMap updates that replace the file are seen too.
type FileWatcher struct {
	path      string
	logger    logger.Logger
	mu        sync.RWMutex
	callbacks []func(path string)
	stopOnce  sync.Once
	stopCh    chan struct{}
}

func NewFileWatcher(path string, log logger.Logger) *FileWatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &FileWatcher{
		path:   filepath.Clean(path),
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// OnChange registers a callback for file changes
func (w *FileWatcher) OnChange(cb func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start blocks watching the file until ctx is done or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.logger.Info("File watcher started", "path", w.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Info("Watched file changed", "file", event.Name, "op", event.Op.String())
				w.notify()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("File watcher stopping", "path", w.path)
			return nil

		case <-w.stopCh:
			w.logger.Info("File watcher stopped", "path", w.path)
			return nil
		}
	}
}

// Stop stops the watcher
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// callbacks run synchronously and in registration order
func (w *FileWatcher) notify() {
	w.mu.RLock()
	callbacks := make([]func(string), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("File watcher callback panic", "path", w.path, "panic", r)
				}
			}()
			cb(w.path)
		}()
	}
}

// ConfigWatcher reloads the configuration file on change and hands the
// new Config to registered watchers. A reload that fails validation
// keeps the previous configuration.
type ConfigWatcher struct {
	files    *FileWatcher
	logger   logger.Logger
	mu       sync.RWMutex
	config   *Config
	watchers []func(*Config)
}

func NewConfigWatcher(configPath string, initial *Config, log logger.Logger) *ConfigWatcher {
	if log == nil {
		log = logger.NewNop()
	}
	w := &ConfigWatcher{
		files:  NewFileWatcher(configPath, log),
		logger: log,
		config: initial,
	}
	w.files.OnChange(func(string) { w.reload() })
	return w
}

// Start begins watching for configuration file changes
func (w *ConfigWatcher) Start(ctx context.Context) error { return w.files.Start(ctx) }

func (w *ConfigWatcher) Stop() { w.files.Stop() }

// RegisterWatcher adds a callback for configuration changes
func (w *ConfigWatcher) RegisterWatcher(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchers = append(w.watchers, callback)
}

// GetConfig returns the current configuration (thread-safe)
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *ConfigWatcher) reload() {
	cfg, err := Load()
	if err != nil {
		w.logger.Error("Failed to reload configuration", "error", err)
		return
	}

	w.mu.Lock()
	w.config = cfg
	watchers := make([]func(*Config), len(w.watchers))
	copy(watchers, w.watchers)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded successfully")
	for _, cb := range watchers {
		cb(cfg)
	}
}
