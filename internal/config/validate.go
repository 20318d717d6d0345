package config

import (
	"fmt"
)

// Validate checks field-level constraints beyond what YAML decoding
// already enforces. Errors are collected so a caller can report every
// problem in one pass instead of one-at-a-time.
func (c *Config) Validate() []string {
	var errs []string

	if c.SchemaVersion < 1 {
		errs = append(errs, "schema_version must be at least 1")
	}
	if c.SchemaVersion > CurrentSchemaVersion {
		errs = append(errs, fmt.Sprintf("schema_version %d is newer than supported version %d", c.SchemaVersion, CurrentSchemaVersion))
	}

	if c.Auth.Provider == "" {
		errs = append(errs, "auth.provider is required")
	}
	if c.Auth.CredentialsPath == "" {
		errs = append(errs, "auth.credentials_path is required")
	}
	if c.Auth.TokenPath == "" {
		errs = append(errs, "auth.token_path is required")
	}

	if c.Models.ClassificationModel == "" {
		errs = append(errs, "models.classification_model is required")
	}
	if c.Models.APIKeyEnv == "" {
		errs = append(errs, "models.api_key_env is required")
	}

	if c.Triage.IntervalSeconds < 1 {
		errs = append(errs, "triage.interval_seconds must be at least 1")
	}
	if c.Triage.LookbackHours < 1 {
		errs = append(errs, "triage.lookback_hours must be at least 1")
	}

	if c.Snippet.ClassificationMaxLength < 1 {
		errs = append(errs, "snippet.classification_max_length must be at least 1")
	}
	if c.Snippet.ThreadContextMaxLength < 1 {
		errs = append(errs, "snippet.thread_context_max_length must be at least 1")
	}

	if c.Aging.NeedsReplyCriticalHours < c.Aging.NeedsReplyWarningHours {
		errs = append(errs, "aging.needs_reply_critical_hours must be >= needs_reply_warning_hours")
	}
	if c.Aging.WaitingForEscalateHours < c.Aging.WaitingForNudgeHours {
		errs = append(errs, "aging.waiting_for_escalate_hours must be >= waiting_for_nudge_hours")
	}

	if c.SuggestionQueue.ExpireAfterDays < 1 {
		errs = append(errs, "suggestion_queue.expire_after_days must be at least 1")
	}
	if c.SuggestionQueue.AutoApproveConfidence <= 0 || c.SuggestionQueue.AutoApproveConfidence > 1 {
		errs = append(errs, "suggestion_queue.auto_approve_confidence must be in (0, 1]")
	}
	if c.SuggestionQueue.AutoApproveDelayHours < 0 {
		errs = append(errs, "suggestion_queue.auto_approve_delay_hours must be >= 0")
	}

	if c.Learning.MaxPreferencesWords < 1 {
		errs = append(errs, "learning.max_preferences_words must be at least 1")
	}
	if c.Learning.MinCorrectionsToUpdate < 1 {
		errs = append(errs, "learning.min_corrections_to_update must be at least 1")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Digest.RunAtHour < 0 || c.Digest.RunAtHour > 23 {
		errs = append(errs, "digest.run_at_hour must be between 0 and 23")
	}

	for i, p := range c.Projects {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("projects[%d].name is required", i))
		}
		if p.Folder == "" {
			errs = append(errs, fmt.Sprintf("projects[%d].folder is required", i))
		}
	}
	for i, a := range c.Areas {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("areas[%d].name is required", i))
		}
		if a.Folder == "" {
			errs = append(errs, fmt.Sprintf("areas[%d].folder is required", i))
		}
	}
	for i, r := range c.AutoRules {
		if len(r.Match.Senders) == 0 && len(r.Match.Subjects) == 0 {
			errs = append(errs, fmt.Sprintf("auto_rules[%d] has no senders or subjects, rule is unreachable", i))
		}
		if r.Action.Folder == "" {
			errs = append(errs, fmt.Sprintf("auto_rules[%d].action.folder is required", i))
		}
	}
	for i, kc := range c.KeyContacts {
		if kc.Email == "" {
			errs = append(errs, fmt.Sprintf("key_contacts[%d].email is required", i))
		}
	}

	return errs
}
