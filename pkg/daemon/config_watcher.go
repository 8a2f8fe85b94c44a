package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/sirupsen/logrus"
)

// ConfigWatcher reloads the deskd configuration when its files change.
// Services keep running with the configuration they were built from; the
// callback decides what to do with the new one.
type ConfigWatcher struct {
	dir      string
	explicit string
	adapter  *watch.FileAdapter
	logger   *logrus.Entry
	onReload func(cfg *config.Config, err error)

	ready     chan struct{}
	readyOnce sync.Once
}

// NewConfigWatcher watches dir for deskd config files. When explicit is
// set, that file is reloaded instead of searching dir. It fails when the
// watched path does not exist.
func NewConfigWatcher(dir, explicit string, debounce time.Duration, onReload func(*config.Config, error)) (*ConfigWatcher, error) {
	paths := []string{dir}
	if explicit != "" {
		paths = []string{explicit}
	}
	adapter, err := watch.NewFileAdapter("config", watch.FileOptions{
		Paths:    paths,
		Debounce: debounce,
		Filter:   IsConfigFile,
	})
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		dir:      dir,
		explicit: explicit,
		adapter:  adapter,
		logger:   logging.NewLogger("config-watcher"),
		onReload: onReload,
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once the watch is registered; changes from then on are
// reported.
func (w *ConfigWatcher) Ready() <-chan struct{} {
	return w.ready
}

// IsConfigFile reports whether path names a deskd configuration file,
// overrides included.
func IsConfigFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "deskd.") {
		return false
	}
	switch filepath.Ext(base) {
	case ".yml", ".yaml", ".toml":
		return true
	}
	return false
}

// Start watches until ctx is canceled. It blocks.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	wake := make(chan watch.Wakeup)
	done := make(chan error, 1)
	go func() {
		done <- w.adapter.Run(ctx, wake, func() {
			w.readyOnce.Do(func() { close(w.ready) })
		})
	}()

	for {
		select {
		case err := <-done:
			return err
		case wk := <-wake:
			w.logger.WithField("path", wk.Detail).Info("Config changed")
			cfg, err := w.load()
			if err != nil {
				w.logger.WithError(err).Warn("Changed config does not load")
			}
			if w.onReload != nil {
				w.onReload(cfg, err)
			}
		}
	}
}

func (w *ConfigWatcher) load() (*config.Config, error) {
	if w.explicit != "" {
		return config.Load(w.explicit)
	}
	path, err := config.FindConfigFile(w.dir)
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}
