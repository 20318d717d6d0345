package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// WriteSafely serializes cfg to YAML, writes it to a sibling temp file,
// renames it over path, then re-loads and re-validates the result as a
// round-trip check. A timestamped backup of the prior file is kept if
// one existed. On any failure the original file is left untouched
// (spec §4.2 write_safely).
func WriteSafely(path string, cfg *Config) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return &triageerr.ConfigLoadError{Path: path, Err: err}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("marshal config: %w", err)}
	}

	dir := filepath.Dir(resolved)
	tmp, err := os.CreateTemp(dir, ".config-*.yaml.tmp")
	if err != nil {
		return &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("close temp file: %w", err)}
	}

	var backupPath string
	if _, err := os.Stat(resolved); err == nil {
		backupPath = fmt.Sprintf("%s.%s.bak", resolved, time.Now().UTC().Format("20060102-150405"))
		if err := copyFile(resolved, backupPath); err != nil {
			return &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("backup prior config: %w", err)}
		}
	}

	if err := os.Rename(tmpPath, resolved); err != nil {
		return &triageerr.ConfigLoadError{Path: resolved, Err: fmt.Errorf("rename temp file over target: %w", err)}
	}

	// Round-trip check: a bad rewrite must not be left standing.
	if _, err := Load(resolved); err != nil {
		if backupPath != "" {
			if restoreErr := copyFile(backupPath, resolved); restoreErr != nil {
				return fmt.Errorf("round-trip validation failed (%w) and restore from backup also failed: %v", err, restoreErr)
			}
		}
		return fmt.Errorf("round-trip validation failed after write, original restored: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}

// ValidateFile loads and validates path without installing it into a
// Manager, returning a short summary on success. The `validate-config`
// CLI command calls Load directly rather than this helper.
func ValidateFile(path string) (bool, string) {
	cfg, err := Load(path)
	if err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf(
		"configuration valid (schema version %d)\n  - %d projects\n  - %d areas\n  - %d auto-rules\n  - %d key contacts",
		cfg.SchemaVersion, len(cfg.Projects), len(cfg.Areas), len(cfg.AutoRules), len(cfg.KeyContacts),
	)
}
