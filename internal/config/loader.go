package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// EnvOverridePath is the environment variable that overrides the config
// file location.
const EnvOverridePath = "ASSISTANT_CONFIG_PATH"

// DefaultPath is used when EnvOverridePath is unset.
const DefaultPath = "config/config.yaml"

// resolvePath returns the configured path, expanding "~" to the user's
// home directory.
func resolvePath(path string) (string, error) {
	if path == "" {
		if env := os.Getenv(EnvOverridePath); env != "" {
			path = env
		} else {
			path = DefaultPath
		}
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.Auth.CredentialsPath, err = expandPath(c.Auth.CredentialsPath); err != nil {
		return err
	}
	if c.Auth.TokenPath, err = expandPath(c.Auth.TokenPath); err != nil {
		return err
	}
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return err
	}
	if c.Digest.OutputPath, err = expandPath(c.Digest.OutputPath); err != nil {
		return err
	}
	return nil
}

// Load reads, decodes, and validates the YAML config at path. It always
// reads fresh from disk; callers wanting hot-reload semantics should use
// a Manager instead.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, &triageerr.ConfigLoadError{Path: path, Err: err}
	}

	if _, err := os.Stat(resolved); err != nil {
		if os.IsNotExist(err) {
			return nil, &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("config file not found, create it by copying config.yaml.example")}
		}
		return nil, &triageerr.ConfigLoadError{Path: resolved, Err: err}
	}

	v := viper.New()
	v.SetConfigFile(resolved)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &triageerr.ConfigLoadError{Path: resolved, Err: err}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &triageerr.ConfigLoadError{Path: resolved, Err: err}
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, &triageerr.ConfigLoadError{Path: resolved, Err: err}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &triageerr.ConfigValidationError{Path: resolved, Errors: errs}
	}

	return cfg, nil
}

// Manager holds the current configuration snapshot and supports
// hot-reload on file-mtime change (spec §4.2 reload_if_changed).
// Readers take the pointer returned by Current(); a replaced snapshot
// never mutates in place, so a reader mid-cycle keeps a consistent view.
type Manager struct {
	mu      sync.RWMutex
	path    string
	current *Config
	mtime   time.Time
}

// NewManager loads path once and returns a Manager wrapping it.
func NewManager(path string) (*Manager, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, &triageerr.ConfigLoadError{Path: path, Err: err}
	}
	cfg, err := Load(resolved)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, &triageerr.ConfigLoadError{Path: resolved, Err: err}
	}
	return &Manager{path: resolved, current: cfg, mtime: info.ModTime()}, nil
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// ReloadIfChanged compares the file's mtime to the cached value. On
// change it attempts a reload; a failed reload keeps the previous
// snapshot, logs nothing itself (callers log), and still advances the
// cached mtime so the same broken file is not retried every cycle.
// Returns true only if the snapshot was actually replaced.
func (m *Manager) ReloadIfChanged() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, &triageerr.ConfigLoadError{Path: m.path, Err: err}
	}

	m.mu.RLock()
	unchanged := !info.ModTime().After(m.mtime)
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	newCfg, loadErr := Load(m.path)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mtime = info.ModTime()
	if loadErr != nil {
		return false, loadErr
	}
	m.current = newCfg
	return true, nil
}
