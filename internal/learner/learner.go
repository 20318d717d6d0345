// Package learner periodically asks the LLM to update the natural-
// language classification preferences from the user's recent
// corrections (spec §4.8). Grounded on the gating/cooldown contract of
// original_source/classifier/preference_learner.py; the teacher's own
// internal/tracker/learner.go mines static keyword rules from a
// confidence threshold rather than calling an LLM, so only its
// db-backed, idempotent-suggestion shape carries over here.
package learner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/llm"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

// Cooldown is the minimum interval between runs (spec §4.8).
const Cooldown = 5 * time.Minute

const (
	subjectTruncateLen = 50
	senderTruncateLen  = 20
)

const toolSchema = `{
  "type": "object",
  "properties": {
    "preferences": {"type": "string"}
  },
  "required": ["preferences"]
}`

// Learner updates agent_state.classification_preferences from
// observed corrections.
type Learner struct {
	store     *store.Store
	llmClient llm.Client
	model     string
}

// New returns a Learner.
func New(s *store.Store, llmClient llm.Client, model string) *Learner {
	return &Learner{store: s, llmClient: llmClient, model: model}
}

// Result reports what Run did, for logging by the caller.
type Result struct {
	Ran               bool
	Reason            string
	CorrectionsUsed   int
	PreferencesUpdated bool
}

// Run evaluates every gate in spec §4.8 order and, if all pass, asks
// the LLM to update the stored preferences text. On any LLM failure
// the prior preferences are left untouched.
func (l *Learner) Run(ctx context.Context, cfg *config.LearningConfig) (Result, error) {
	if !cfg.Enabled {
		return Result{Reason: "learning disabled"}, nil
	}

	lastRun, found, err := l.store.GetStateUpdatedAt(ctx, store.StateKeyLastPreferenceUpdate)
	if err != nil {
		return Result{}, err
	}
	if found && time.Since(lastRun) < Cooldown {
		return Result{Reason: "within cooldown"}, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -cfg.LookbackDays)
	corrections, err := l.store.ListCorrectionsSince(ctx, since)
	if err != nil {
		return Result{}, err
	}
	if len(corrections) < cfg.MinCorrectionsToUpdate {
		return Result{Reason: fmt.Sprintf("only %d corrections, need %d", len(corrections), cfg.MinCorrectionsToUpdate)}, nil
	}

	priorPrefs, _, err := l.store.GetState(ctx, store.StateKeyClassificationPreferences)
	if err != nil {
		return Result{}, err
	}

	summaries := l.summarizeCorrections(ctx, corrections)

	updated, err := l.update(ctx, priorPrefs, summaries, cfg.MaxPreferencesWords)
	if err != nil {
		// Failure preserves prior preferences (spec §4.8).
		return Result{Ran: true, CorrectionsUsed: len(corrections), Reason: err.Error()}, nil
	}

	if err := l.store.SetState(ctx, store.StateKeyClassificationPreferences, updated); err != nil {
		return Result{}, err
	}
	if err := l.store.SetState(ctx, store.StateKeyLastPreferenceUpdate, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return Result{}, err
	}

	return Result{Ran: true, CorrectionsUsed: len(corrections), PreferencesUpdated: true}, nil
}

// correctionSummary is a PII-truncated view of one correction, ready
// for prompt inclusion.
type correctionSummary struct {
	Subject         string
	Sender          string
	SuggestedFolder string
	ApprovedFolder  string
	Status          store.SuggestionStatus
}

// summarizeCorrections truncates subject/sender fields before they
// reach the LLM prompt (spec §4.8). Emails that fail to load are
// summarized with empty subject/sender rather than dropped, since the
// folder divergence itself is still signal.
func (l *Learner) summarizeCorrections(ctx context.Context, corrections []store.Suggestion) []correctionSummary {
	out := make([]correctionSummary, 0, len(corrections))
	for _, c := range corrections {
		var subject, sender string
		if e, err := l.store.GetEmail(ctx, c.EmailID); err == nil && e != nil {
			subject = truncateSubject(e.Subject)
			sender = truncateSender(e.SenderEmail)
		}
		approvedFolder := ""
		if c.ApprovedFolder != nil {
			approvedFolder = *c.ApprovedFolder
		}
		out = append(out, correctionSummary{
			Subject: subject, Sender: sender,
			SuggestedFolder: c.SuggestedFolder, ApprovedFolder: approvedFolder, Status: c.Status,
		})
	}
	return out
}

func (l *Learner) update(ctx context.Context, priorPrefs string, corrections []correctionSummary, maxWords int) (string, error) {
	prompt := buildPrompt(priorPrefs, corrections)

	req := llm.Request{
		Model:  l.model,
		System: "You maintain a short natural-language set of email classification preferences learned from the user's corrections.",
		Messages: []llm.Message{
			{Role: "user", Content: []llm.Block{{Type: "text", Text: prompt}}},
		},
		Tools: []llm.Tool{
			{Name: "update_preferences", Description: "Record the updated preferences text.", InputSchema: []byte(toolSchema)},
		},
		ToolChoice: "update_preferences",
		MaxTokens:  512,
	}

	resp, err := l.llmClient.MessagesCreate(ctx, req)
	if err != nil {
		return "", err
	}
	block := llm.FindToolUse(resp, "update_preferences")
	if block == nil {
		return "", fmt.Errorf("no update_preferences tool_use block in response")
	}

	var out struct {
		Preferences string `json:"preferences"`
	}
	if err := json.Unmarshal(block.Input, &out); err != nil {
		return "", fmt.Errorf("malformed update_preferences output: %w", err)
	}

	return clampWords(out.Preferences, maxWords), nil
}

func buildPrompt(priorPrefs string, corrections []correctionSummary) string {
	var b strings.Builder
	b.WriteString("Existing preferences:\n")
	if priorPrefs == "" {
		b.WriteString("(none yet)\n")
	} else {
		b.WriteString(priorPrefs + "\n")
	}
	b.WriteString("\nRecent corrections (suggested vs. approved):\n")
	for _, c := range corrections {
		b.WriteString(fmt.Sprintf(
			"- subject=%q sender=%q: suggested folder=%q, user chose folder=%q (status=%s)\n",
			c.Subject, c.Sender, c.SuggestedFolder, c.ApprovedFolder, c.Status,
		))
	}
	b.WriteString("\nUpdate the preferences text so future classifications better match these corrections. Call update_preferences with the complete replacement text.")
	return b.String()
}

// truncateSubject and truncateSender are applied by callers composing
// the correction summary before it reaches buildPrompt, keeping PII out
// of the preference text (spec §4.8).
func truncateSubject(s string) string { return truncateRunes(s, subjectTruncateLen) }
func truncateSender(s string) string  { return truncateRunes(s, senderTruncateLen) }

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func clampWords(s string, maxWords int) string {
	if maxWords <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}
