package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("expected default config to be valid, got errors: %v", errs)
	}
}

func TestValidateCatchesBadFields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"schema version too new", func(c *Config) { c.SchemaVersion = CurrentSchemaVersion + 1 }},
		{"missing auth provider", func(c *Config) { c.Auth.Provider = "" }},
		{"interval seconds zero", func(c *Config) { c.Triage.IntervalSeconds = 0 }},
		{"confidence out of range", func(c *Config) { c.SuggestionQueue.AutoApproveConfidence = 1.5 }},
		{"critical before warning", func(c *Config) {
			c.Aging.NeedsReplyWarningHours = 100
			c.Aging.NeedsReplyCriticalHours = 10
		}},
		{"auto rule with no match", func(c *Config) {
			c.AutoRules = []AutoRule{{Action: AutoRuleAction{Folder: "Inbox"}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if errs := cfg.Validate(); len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
		})
	}
}

func writeConfigFile(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

const minimalValidYAML = `
schema_version: 1
auth:
  provider: gmail
  credentials_path: credentials.json
  token_path: token.json
models:
  classification_model: claude-3-5-haiku-20241022
  digest_model: claude-3-5-haiku-20241022
  api_key_env: ANTHROPIC_API_KEY
triage:
  interval_seconds: 300
  lookback_hours: 24
snippet:
  classification_max_length: 1000
  thread_context_max_length: 500
aging:
  needs_reply_warning_hours: 24
  needs_reply_critical_hours: 72
  waiting_for_nudge_hours: 48
  waiting_for_escalate_hours: 120
suggestion_queue:
  expire_after_days: 7
  auto_approve_confidence: 0.9
  auto_approve_delay_hours: 2
learning:
  enabled: true
  lookback_days: 14
  min_corrections_to_update: 3
  max_preferences_words: 200
llm_logging:
  enabled: true
database:
  path: triage.db
digest:
  output_path: digest.md
  run_at_hour: 7
`

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalValidYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Triage.IntervalSeconds != 300 {
		t.Errorf("expected interval_seconds=300, got %d", cfg.Triage.IntervalSeconds)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestReloadRollbackOnInvalidFile mirrors S5: an invalid rewrite must
// not replace the last-known-good snapshot.
func TestReloadRollbackOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalValidYAML)

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	before := mgr.Current()

	// Ensure a distinguishable mtime.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0600); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}

	changed, err := mgr.ReloadIfChanged()
	if err == nil {
		t.Error("expected reload to report an error for invalid YAML")
	}
	if changed {
		t.Error("expected ReloadIfChanged to report false on invalid file")
	}
	if mgr.Current() != before {
		t.Error("expected snapshot to remain the last-known-good config")
	}

	// A second call against the same broken file should not re-attempt
	// the load (mtime already advanced).
	changed, err = mgr.ReloadIfChanged()
	if changed || err != nil {
		t.Errorf("expected no-op on unchanged broken file, got changed=%v err=%v", changed, err)
	}
}

func TestReloadPicksUpValidChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalValidYAML)

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	updated := minimalValidYAML + "\n"
	if err := os.WriteFile(path, []byte(updated), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	// Force a distinct mtime on filesystems with coarse resolution.
	future := time.Now().Add(time.Second)
	os.Chtimes(path, future, future)

	changed, err := mgr.ReloadIfChanged()
	if err != nil {
		t.Fatalf("ReloadIfChanged: %v", err)
	}
	if !changed {
		t.Error("expected reload to report a change")
	}
}

func TestWriteSafelyRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalValidYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Triage.IntervalSeconds = 600

	if err := WriteSafely(path, cfg); err != nil {
		t.Fatalf("WriteSafely: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteSafely: %v", err)
	}
	if reloaded.Triage.IntervalSeconds != 600 {
		t.Errorf("expected interval_seconds=600 after rewrite, got %d", reloaded.Triage.IntervalSeconds)
	}
}
