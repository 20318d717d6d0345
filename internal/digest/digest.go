// Package digest implements the daily digest generator (spec §4.13):
// gather overdue replies, overdue waiting-for items, 24h activity, and
// pending/failed counts, format them with an LLM tool call, and fall
// back to a deterministic plain-text report on any LLM failure.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/llm"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

// Cooldown is the minimum gap between two digest runs, guarding
// against duplicate generation on scheduler retry.
const Cooldown = 1 * time.Hour

const systemPrompt = `You are a digest formatter for an email triage system. You receive a
JSON payload summarizing overdue items and recent activity and must call
generate_digest with plain-text sections. If every list is empty and
every count is zero, produce a brief "all clear" summary and leave the
other sections blank.`

const toolSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string", "description": "One or two sentence overview"},
    "overdue_replies_section": {"type": "string", "description": "Lines for overdue replies, blank if none"},
    "waiting_for_section": {"type": "string", "description": "Lines for overdue waiting-for items, blank if none"},
    "activity_section": {"type": "string", "description": "Lines summarizing the last 24h activity"},
    "pending_section": {"type": "string", "description": "Note on pending suggestions and failures, blank if none"}
  },
  "required": ["summary", "activity_section"]
}`

// toolOutput mirrors the generate_digest tool's structured input.
type toolOutput struct {
	Summary               string `json:"summary"`
	OverdueRepliesSection string `json:"overdue_replies_section"`
	WaitingForSection     string `json:"waiting_for_section"`
	ActivitySection       string `json:"activity_section"`
	PendingSection        string `json:"pending_section"`
}

// Result is the outcome of one Generate call.
type Result struct {
	Text                  string
	OverdueReplies        int
	OverdueWaiting        int
	PendingSuggestions    int
	FailedClassifications int
	Stats                 *store.ProcessingStats
	GeneratedAt           time.Time
}

// waitingItem is a display-ready overdue waiting-for row: PII-truncated
// and pre-leveled against the aging config, so neither the LLM prompt
// nor the plain-text formatter needs the aging thresholds themselves.
type waitingItem struct {
	Description  string  `json:"description"`
	ExpectedFrom string  `json:"expected_from"`
	HoursWaiting float64 `json:"hours_waiting"`
	Level        string  `json:"level"` // "nudge" | "critical"
}

// digestData is the JSON payload sent to the LLM and consumed by the
// plain-text fallback formatter.
type digestData struct {
	OverdueReplies        []store.OverdueReply   `json:"overdue_replies"`
	OverdueWaiting        []waitingItem          `json:"overdue_waiting"`
	Stats                 *store.ProcessingStats `json:"stats"`
	PendingSuggestions    int                    `json:"pending_suggestions"`
	FailedClassifications int                    `json:"failed_classifications"`
}

// Generator gathers digest data, formats it, and delivers it.
// Satisfies internal/triage's DigestRunner interface structurally; it
// does not import internal/triage.
type Generator struct {
	store     *store.Store
	llmClient llm.Client
	model     string
}

// New returns a Generator.
func New(s *store.Store, llmClient llm.Client, model string) *Generator {
	return &Generator{store: s, llmClient: llmClient, model: model}
}

// GenerateAndDeliverIfDue runs the full gather/format/deliver pipeline
// only when the digest is actually due: the cooldown has elapsed, no
// digest has gone out yet today, and the configured run hour has
// arrived (spec §4.13, "once per day, at most once per hour"). When no
// digest has ever run, it is due at once, whatever the hour.
func (g *Generator) GenerateAndDeliverIfDue(ctx context.Context, cfg *config.Config) error {
	due, err := g.isDue(ctx, cfg)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	result, err := g.Generate(ctx, cfg)
	if err != nil {
		return err
	}
	return g.Deliver(result, cfg.Digest.OutputPath)
}

func (g *Generator) isDue(ctx context.Context, cfg *config.Config) (bool, error) {
	last, ok, err := g.store.GetStateUpdatedAt(ctx, store.StateKeyLastDigestRun)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	now := time.Now().UTC()
	if now.Sub(last) < Cooldown {
		return false, nil
	}
	if sameDay(last, now) {
		return false, nil
	}
	return now.Hour() >= cfg.Digest.RunAtHour, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Generate gathers digest data and formats it, updating the cooldown
// timestamp on success. It does not check whether a digest is due;
// callers wanting the cooldown/schedule gate should use
// GenerateAndDeliverIfDue.
func (g *Generator) Generate(ctx context.Context, cfg *config.Config) (Result, error) {
	aging := cfg.Aging

	overdueReplies, err := g.store.ListOverdueReplies(ctx, aging.NeedsReplyWarningHours, aging.NeedsReplyCriticalHours)
	if err != nil {
		return Result{}, err
	}

	rawWaiting, err := g.store.ListOverdueWaitingFor(ctx, float64(aging.WaitingForNudgeHours))
	if err != nil {
		return Result{}, err
	}
	now := time.Now().UTC()
	overdueWaiting := make([]waitingItem, len(rawWaiting))
	for i, w := range rawWaiting {
		hours := now.Sub(w.WaitingSince).Hours()
		level := "nudge"
		if hours >= float64(aging.WaitingForEscalateHours) {
			level = "critical"
		}
		overdueWaiting[i] = waitingItem{
			Description: w.Description,
			// S2: PII truncation on the sender display field headed for
			// the LLM prompt and the plain-text fallback
			// (original_source/engine/digest.py); Description is kept
			// in full.
			ExpectedFrom: truncate(w.ExpectedFrom, 20),
			HoursWaiting: hours,
			Level:        level,
		}
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	stats, err := g.store.GetProcessingStats(ctx, since)
	if err != nil {
		return Result{}, err
	}

	pending, err := g.store.CountPendingSuggestions(ctx)
	if err != nil {
		return Result{}, err
	}

	data := digestData{
		OverdueReplies:        overdueReplies,
		OverdueWaiting:        overdueWaiting,
		Stats:                 stats,
		PendingSuggestions:    pending,
		FailedClassifications: stats.Failed,
	}

	text := g.formatWithLLM(ctx, data)
	if text == "" {
		text = plainText(data)
	}

	if err := g.store.SetState(ctx, store.StateKeyLastDigestRun, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return Result{}, err
	}

	return Result{
		Text:                  text,
		OverdueReplies:        len(overdueReplies),
		OverdueWaiting:        len(overdueWaiting),
		PendingSuggestions:    pending,
		FailedClassifications: stats.Failed,
		Stats:                 stats,
		GeneratedAt:           time.Now().UTC(),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// formatWithLLM asks the model to format data into digest sections.
// Returns "" on any failure so the caller falls back to plain text.
func (g *Generator) formatWithLLM(ctx context.Context, data digestData) string {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return ""
	}

	prompt := fmt.Sprintf(`Generate a daily digest from this email processing data:

%s

If everything is clear (no overdue items, no failures), produce a brief "all clear" summary.
Otherwise, highlight the most important items that need attention.`, string(payload))

	resp, err := g.llmClient.MessagesCreate(ctx, llm.Request{
		Model:      g.model,
		System:     systemPrompt,
		Messages:   []llm.Message{{Role: "user", Content: []llm.Block{{Type: "text", Text: prompt}}}},
		Tools:      []llm.Tool{{Name: "generate_digest", Description: "Format digest sections", InputSchema: json.RawMessage(toolSchema)}},
		ToolChoice: "generate_digest",
		MaxTokens:  1024,
	})
	if err != nil {
		return ""
	}

	block := llm.FindToolUse(resp, "generate_digest")
	if block == nil {
		return ""
	}

	var out toolOutput
	if err := json.Unmarshal(block.Input, &out); err != nil {
		return ""
	}

	var sections []string
	if out.Summary != "" {
		sections = append(sections, fmt.Sprintf("DAILY DIGEST\n%s\n%s", strings.Repeat("=", 40), out.Summary))
	}
	if out.OverdueRepliesSection != "" {
		sections = append(sections, fmt.Sprintf("\nOVERDUE REPLIES\n%s\n%s", strings.Repeat("-", 40), out.OverdueRepliesSection))
	}
	if out.WaitingForSection != "" {
		sections = append(sections, fmt.Sprintf("\nWAITING FOR\n%s\n%s", strings.Repeat("-", 40), out.WaitingForSection))
	}
	if out.ActivitySection != "" {
		sections = append(sections, fmt.Sprintf("\nACTIVITY\n%s\n%s", strings.Repeat("-", 40), out.ActivitySection))
	}
	if out.PendingSection != "" {
		sections = append(sections, fmt.Sprintf("\nPENDING REVIEW\n%s\n%s", strings.Repeat("-", 40), out.PendingSection))
	}
	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n")
}

// plainText is the deterministic fallback formatter, used whenever the
// LLM path fails for any reason.
func plainText(data digestData) string {
	var lines []string
	lines = append(lines, "DAILY DIGEST", strings.Repeat("=", 40))

	clear := len(data.OverdueReplies) == 0 && len(data.OverdueWaiting) == 0 &&
		data.PendingSuggestions == 0 && data.FailedClassifications == 0
	if clear {
		lines = append(lines, "", "All clear - no items need attention.")
		return strings.Join(lines, "\n")
	}

	if len(data.OverdueReplies) > 0 {
		lines = append(lines, "", fmt.Sprintf("OVERDUE REPLIES (%d)", len(data.OverdueReplies)), strings.Repeat("-", 40))
		for _, r := range data.OverdueReplies {
			lines = append(lines, fmt.Sprintf("  [%s] %s from %s", strings.ToUpper(r.Level), r.Subject, r.SenderEmail))
		}
	}

	if len(data.OverdueWaiting) > 0 {
		lines = append(lines, "", fmt.Sprintf("WAITING FOR (%d)", len(data.OverdueWaiting)), strings.Repeat("-", 40))
		for _, w := range data.OverdueWaiting {
			lines = append(lines, fmt.Sprintf("  [%s] %s from %s (%dh)", strings.ToUpper(w.Level), w.Description, w.ExpectedFrom, int(w.HoursWaiting)))
		}
	}

	if data.Stats != nil {
		lines = append(lines, "", "ACTIVITY (last 24h)", strings.Repeat("-", 40))
		lines = append(lines, fmt.Sprintf("  Processed: %d", data.Stats.EmailsProcessed))
		lines = append(lines, fmt.Sprintf("  Auto-approved: %d", data.Stats.AutoApproved))
		lines = append(lines, fmt.Sprintf("  Failed: %d", data.Stats.Failed))
	}

	if data.PendingSuggestions > 0 {
		lines = append(lines, "", fmt.Sprintf("PENDING REVIEW: %d suggestions awaiting review", data.PendingSuggestions))
	}
	if data.FailedClassifications > 0 {
		lines = append(lines, "", fmt.Sprintf("FAILED CLASSIFICATIONS: %d", data.FailedClassifications))
	}

	return strings.Join(lines, "\n")
}

// Deliver writes a digest to stdout (color-coded nudge/critical lines)
// or, when outputPath is set, atomically to a file via temp-file plus
// rename (spec §4.13).
func (g *Generator) Deliver(result Result, outputPath string) error {
	if outputPath == "" {
		printColored(result.Text)
		return nil
	}
	return writeAtomic(outputPath, result.Text)
}

func printColored(text string) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, "[CRITICAL]"):
			red.Println(line)
		case strings.Contains(line, "[NUDGE]"), strings.Contains(line, "[WARNING]"):
			yellow.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func writeAtomic(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".digest-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
