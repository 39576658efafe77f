package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce collapses the burst of events an editor emits on save.
const DefaultDebounce = 250 * time.Millisecond

// ChangeFunc receives the previous and the newly committed configuration.
type ChangeFunc func(old, cur *Config)

// Manager holds the current configuration and reloads it when its file
// changes.
type Manager struct {
	path     string
	log      logrus.FieldLogger
	debounce time.Duration

	mu  sync.RWMutex
	cfg *Config

	subsMu sync.Mutex
	subs   []ChangeFunc
}

// NewManager creates a manager for the file at path. A nil logger uses the
// logrus standard logger.
func NewManager(path string, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		path:     path,
		log:      log.WithField("config", path),
		debounce: DefaultDebounce,
	}
}

// Load reads the configuration and commits it without notifying subscribers.
func (m *Manager) Load() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the last committed configuration, or nil before Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Subscribe registers fn to run after every committed change.
func (m *Manager) Subscribe(fn ChangeFunc) {
	if fn == nil {
		return
	}
	m.subsMu.Lock()
	m.subs = append(m.subs, fn)
	m.subsMu.Unlock()
}

// Reload reads the configuration again. An invalid file leaves the current
// configuration in place. Subscribers only run when a value changed.
func (m *Manager) Reload() (bool, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	old := m.cfg
	if old != nil && *old == *cfg {
		m.mu.Unlock()
		return false, nil
	}
	m.cfg = cfg
	m.mu.Unlock()

	m.subsMu.Lock()
	subs := append([]ChangeFunc(nil), m.subs...)
	m.subsMu.Unlock()
	for _, fn := range subs {
		fn(old, cfg)
	}
	return true, nil
}

// Watch reloads the configuration whenever its file is written, replaced or
// removed, until ctx is done. The parent directory is watched so editors
// that save through a rename are noticed.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return errors.New("config: no file to watch")
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}
	m.log.WithField("dir", dir).Debug("config watcher started")

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(m.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			changed, err := m.Reload()
			switch {
			case err != nil:
				m.log.WithError(err).Warn("config reload rejected")
			case changed:
				m.log.Info("config reloaded")
			default:
				m.log.Debug("config unchanged")
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config: watcher closed")
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config: watcher closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.WithError(err).Warn("config watch overflow, forcing reload")
				schedule()
				continue
			}
			m.log.WithError(err).Warn("config watch error")
		}
	}
}
