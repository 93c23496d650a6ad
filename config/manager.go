package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/phuslu/log"
)

const defaultDebounce = 300 * time.Millisecond

// Manager keeps config.json and the strategies file it names in sync with
// memory. Listeners fire after Update and, once Watch runs, after an external
// edit to either file. Content we wrote ourselves is recognised by digest and
// does not fire twice.
type Manager struct {
	path     string
	debounce time.Duration

	mu        sync.RWMutex
	cfg       Config
	digest    [sha256.Size]byte
	listeners []func(Config)
	watcher   *fsnotify.Watcher
	watched   map[string]bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
}

type ManagerOption func(*managerOptions)

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig seeds the file when it does not exist yet. An existing
// file always wins.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{path: path, debounce: options.debounce, watched: map[string]bool{}}
	if err := m.loadOrCreate(options.initialConfig); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadOrCreate(initial *Config) error {
	data, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		cfg, err := decodeConfig(m.path, data)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		m.cfg, m.digest = cfg, sha256.Sum256(data)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfigWithRoot(filepath.Dir(m.path))
	if initial != nil {
		cfg = initial
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	digest, err := writeConfigFile(m.path, *cfg)
	if err != nil {
		return fmt.Errorf("write initial config: %w", err)
	}
	m.cfg, m.digest = *cfg, digest
	return nil
}

// Get returns a copy that is safe to modify.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.clone()
}

func (m *Manager) Path() string {
	return m.path
}

// Update validates cfg, writes it and notifies listeners synchronously.
// Writing the config already on disk is a no-op.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if sha256.Sum256(data) == m.digest {
		m.mu.Unlock()
		return nil
	}
	digest, err := writeConfigBytes(m.path, data)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.cfg, m.digest = cfg.clone(), digest
	m.mu.Unlock()

	m.watchStrategies(cfg.StrategiesFile)
	m.notify(cfg)
	return nil
}

// Reload re-reads the file immediately, bypassing the watcher.
func (m *Manager) Reload() error {
	changed, err := m.reloadConfig()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if changed {
		m.notify(m.Get())
	}
	return nil
}

// Watch registers onChange and starts watching both files on first call.
// The watcher stops when ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	if onChange != nil {
		m.listeners = append(m.listeners, onChange)
	}
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	strategies := m.cfg.StrategiesFile
	m.mu.Unlock()

	if err := m.addDir(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	m.watchStrategies(strategies)

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) addDir(dir string) error {
	dir = filepath.Clean(dir)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil || m.watched[dir] {
		return nil
	}
	if err := m.watcher.Add(dir); err != nil {
		return err
	}
	m.watched[dir] = true
	return nil
}

func (m *Manager) watchStrategies(path string) {
	if path == "" {
		return
	}
	if err := m.addDir(filepath.Dir(path)); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cannot watch strategies file")
	}
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timerMu sync.Mutex
	timers := map[string]*time.Timer{}
	schedule := func(name string, fn func()) {
		timerMu.Lock()
		defer timerMu.Unlock()
		if t, ok := timers[name]; ok {
			t.Stop()
		}
		timers[name] = time.AfterFunc(m.debounce, fn)
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			switch filepath.Clean(evt.Name) {
			case filepath.Clean(m.path):
				schedule("config", m.reloadFromDisk)
			case filepath.Clean(m.Get().StrategiesFile):
				schedule("strategies", m.strategiesChanged)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", m.path).Msg("config watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reloadFromDisk() {
	changed, err := m.reloadConfig()
	if errors.Is(err, os.ErrNotExist) {
		// put the file back from memory rather than resetting to defaults
		cfg := m.Get()
		digest, werr := writeConfigFile(m.path, cfg)
		if werr != nil {
			log.Error().Err(werr).Str("path", m.path).Msg("config restore failed")
			return
		}
		m.mu.Lock()
		m.digest = digest
		m.mu.Unlock()
		log.Warn().Str("path", m.path).Msg("config file removed, restored from memory")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("path", m.path).Msg("config reload failed, keeping previous config")
		return
	}
	if !changed {
		return
	}

	cfg := m.Get()
	m.watchStrategies(cfg.StrategiesFile)
	log.Info().Str("path", m.path).Msg("config reloaded")
	m.notify(cfg)
}

// reloadConfig reports whether the file content differs from what is held.
func (m *Manager) reloadConfig() (bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(data)

	m.mu.RLock()
	same := digest == m.digest
	m.mu.RUnlock()
	if same {
		return false, nil
	}

	cfg, err := decodeConfig(m.path, data)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	m.cfg, m.digest = cfg, digest
	m.mu.Unlock()
	return true, nil
}

// strategiesChanged re-announces the current config so listeners rebuild
// against the edited book. A book that fails to load is not announced.
func (m *Manager) strategiesChanged() {
	cfg := m.Get()
	if _, err := LoadStrategyBook(cfg.StrategiesFile); err != nil {
		log.Error().Err(err).Str("path", cfg.StrategiesFile).Msg("strategies file invalid, keeping previous book")
		return
	}
	log.Info().Str("path", cfg.StrategiesFile).Msg("strategies reloaded")
	m.notify(cfg)
}

func (m *Manager) notify(cfg Config) {
	m.mu.RLock()
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(cfg.clone())
	}
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "CortexAdvisor", "config.json"), nil
}

func decodeConfig(path string, data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func encodeConfig(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func writeConfigFile(path string, cfg Config) ([sha256.Size]byte, error) {
	data, err := encodeConfig(cfg)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return writeConfigBytes(path, data)
}

// writeConfigBytes replaces path atomically through a temp file in the same
// directory and returns the digest of what was written.
func writeConfigBytes(path string, data []byte) ([sha256.Size]byte, error) {
	var zero [sha256.Size]byte
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return zero, fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return zero, fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return zero, fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return zero, fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zero, fmt.Errorf("replace config: %w", err)
	}
	return sha256.Sum256(data), nil
}
