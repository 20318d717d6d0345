// Package config loads, validates, hot-reloads, and atomically rewrites
// the agent's YAML configuration.
package config

import "time"

// CurrentSchemaVersion is the highest schema_version this build accepts.
const CurrentSchemaVersion = 1

// Config is the full validated configuration snapshot (spec §4.2).
type Config struct {
	SchemaVersion   int                   `yaml:"schema_version" mapstructure:"schema_version"`
	Auth            AuthConfig            `yaml:"auth" mapstructure:"auth"`
	Models          ModelsConfig          `yaml:"models" mapstructure:"models"`
	Triage          TriageConfig          `yaml:"triage" mapstructure:"triage"`
	Snippet         SnippetConfig         `yaml:"snippet" mapstructure:"snippet"`
	Aging           AgingConfig           `yaml:"aging" mapstructure:"aging"`
	SuggestionQueue SuggestionQueueConfig `yaml:"suggestion_queue" mapstructure:"suggestion_queue"`
	Learning        LearningConfig        `yaml:"learning" mapstructure:"learning"`
	LLMLogging      LLMLoggingConfig      `yaml:"llm_logging" mapstructure:"llm_logging"`
	Database        DatabaseConfig        `yaml:"database" mapstructure:"database"`
	Digest          DigestConfig          `yaml:"digest" mapstructure:"digest"`
	Projects        []Project             `yaml:"projects" mapstructure:"projects"`
	Areas           []Area                `yaml:"areas" mapstructure:"areas"`
	AutoRules       []AutoRule            `yaml:"auto_rules" mapstructure:"auto_rules"`
	KeyContacts     []KeyContact          `yaml:"key_contacts" mapstructure:"key_contacts"`
}

// AuthConfig names the mail provider credential locations.
type AuthConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	TokenPath       string `yaml:"token_path" mapstructure:"token_path"`
}

// ModelsConfig selects the LLM model used per task tier.
type ModelsConfig struct {
	ClassificationModel string `yaml:"classification_model" mapstructure:"classification_model"`
	DigestModel          string `yaml:"digest_model" mapstructure:"digest_model"`
	APIKeyEnv            string `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// TriageConfig drives the scheduler.
type TriageConfig struct {
	IntervalSeconds          int `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	LookbackHours            int `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	ClassificationAttemptsMax int `yaml:"classification_attempts_max" mapstructure:"classification_attempts_max"`
}

// IntervalDuration returns the triage interval as a time.Duration.
func (t TriageConfig) IntervalDuration() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// LookbackDuration returns the initial backfill window.
func (t TriageConfig) LookbackDuration() time.Duration {
	return time.Duration(t.LookbackHours) * time.Hour
}

// SnippetConfig bounds body-normalization output length.
type SnippetConfig struct {
	ClassificationMaxLength int `yaml:"classification_max_length" mapstructure:"classification_max_length"`
	ThreadContextMaxLength  int `yaml:"thread_context_max_length" mapstructure:"thread_context_max_length"`
}

// AgingConfig controls needs-reply and waiting-for staleness thresholds.
type AgingConfig struct {
	NeedsReplyWarningHours  int `yaml:"needs_reply_warning_hours" mapstructure:"needs_reply_warning_hours"`
	NeedsReplyCriticalHours int `yaml:"needs_reply_critical_hours" mapstructure:"needs_reply_critical_hours"`
	WaitingForNudgeHours    int `yaml:"waiting_for_nudge_hours" mapstructure:"waiting_for_nudge_hours"`
	WaitingForEscalateHours int `yaml:"waiting_for_escalate_hours" mapstructure:"waiting_for_escalate_hours"`
}

// SuggestionQueueConfig governs auto-approval and expiry.
type SuggestionQueueConfig struct {
	ExpireAfterDays       int     `yaml:"expire_after_days" mapstructure:"expire_after_days"`
	AutoApproveConfidence float64 `yaml:"auto_approve_confidence" mapstructure:"auto_approve_confidence"`
	AutoApproveDelayHours int     `yaml:"auto_approve_delay_hours" mapstructure:"auto_approve_delay_hours"`
}

// LearningConfig gates preference learning.
type LearningConfig struct {
	Enabled                bool `yaml:"enabled" mapstructure:"enabled"`
	LookbackDays           int  `yaml:"lookback_days" mapstructure:"lookback_days"`
	MinCorrectionsToUpdate int  `yaml:"min_corrections_to_update" mapstructure:"min_corrections_to_update"`
	MaxPreferencesWords    int  `yaml:"max_preferences_words" mapstructure:"max_preferences_words"`
}

// LLMLoggingConfig toggles persistence of full LLM round-trips.
type LLMLoggingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DigestConfig locates the daily digest output and its run time.
type DigestConfig struct {
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
	RunAtHour  int    `yaml:"run_at_hour" mapstructure:"run_at_hour"`
}

// Project is a known work project a classifier suggestion can file
// email under.
type Project struct {
	Name     string   `yaml:"name" mapstructure:"name"`
	Folder   string   `yaml:"folder" mapstructure:"folder"`
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
}

// Area is a standing area of responsibility, similar to Project but
// without an expected end date.
type Area struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Folder string `yaml:"folder" mapstructure:"folder"`
}

// AutoRule is a deterministic sender/subject match that bypasses the
// classifier entirely (spec §4.5).
type AutoRule struct {
	Name   string         `yaml:"name" mapstructure:"name"`
	Match  AutoRuleMatch  `yaml:"match" mapstructure:"match"`
	Action AutoRuleAction `yaml:"action" mapstructure:"action"`
}

// AutoRuleMatch holds the glob sender patterns and substring subject
// patterns for one rule.
type AutoRuleMatch struct {
	Senders  []string `yaml:"senders" mapstructure:"senders"`
	Subjects []string `yaml:"subjects" mapstructure:"subjects"`
}

// AutoRuleAction is the deterministic outcome applied on match.
type AutoRuleAction struct {
	Folder     string `yaml:"folder" mapstructure:"folder"`
	Priority   string `yaml:"priority" mapstructure:"priority"`
	ActionType string `yaml:"action_type" mapstructure:"action_type"`
}

// KeyContact marks a sender whose mail always gets elevated priority.
type KeyContact struct {
	Email string `yaml:"email" mapstructure:"email"`
	Name  string `yaml:"name" mapstructure:"name"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SchemaVersion: CurrentSchemaVersion,
		Auth: AuthConfig{
			Provider:        "gmail",
			CredentialsPath: "~/.config/triage-agent/credentials.json",
			TokenPath:       "~/.config/triage-agent/token.json",
		},
		Models: ModelsConfig{
			ClassificationModel: "claude-3-5-haiku-20241022",
			DigestModel:         "claude-3-5-haiku-20241022",
			APIKeyEnv:           "ANTHROPIC_API_KEY",
		},
		Triage: TriageConfig{
			IntervalSeconds:           300,
			LookbackHours:             24,
			ClassificationAttemptsMax: 3,
		},
		Snippet: SnippetConfig{
			ClassificationMaxLength: 1000,
			ThreadContextMaxLength:  500,
		},
		Aging: AgingConfig{
			NeedsReplyWarningHours:  24,
			NeedsReplyCriticalHours: 72,
			WaitingForNudgeHours:    48,
			WaitingForEscalateHours: 120,
		},
		SuggestionQueue: SuggestionQueueConfig{
			ExpireAfterDays:       7,
			AutoApproveConfidence: 0.90,
			AutoApproveDelayHours: 2,
		},
		Learning: LearningConfig{
			Enabled:                true,
			LookbackDays:           14,
			MinCorrectionsToUpdate: 3,
			MaxPreferencesWords:    200,
		},
		LLMLogging: LLMLoggingConfig{Enabled: true},
		Database:   DatabaseConfig{Path: "~/.local/share/triage-agent/triage.db"},
		Digest: DigestConfig{
			OutputPath: "~/.local/share/triage-agent/digest.md",
			RunAtHour:  7,
		},
	}
}
