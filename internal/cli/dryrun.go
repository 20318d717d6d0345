package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/autorules"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/snippet"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/threadctx"
)

var (
	dryRunDays   int
	dryRunSample int
	dryRunLimit  int
)

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Classify recent mail without persisting any suggestions",
	Long: `dry-run fetches up to --days of mail, classifies a --sample of
it (or all of it, if --sample is 0), up to --limit messages total, and
prints what each message would have been filed under. No email or
suggestion is saved and no folder moves are issued; the classifier
still appends its llm_request_log audit rows.`,
	RunE: runDryRun,
}

func init() {
	dryRunCmd.Flags().IntVar(&dryRunDays, "days", 1, "lookback window in days")
	dryRunCmd.Flags().IntVar(&dryRunSample, "sample", 0, "classify only every Nth message (0 = all)")
	dryRunCmd.Flags().IntVar(&dryRunLimit, "limit", 50, "maximum messages to classify")
	rootCmd.AddCommand(dryRunCmd)
}

func runDryRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	mgr, err := loadManager(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(mgr, logger)
	if err != nil {
		return err
	}
	defer a.close()

	messages, _, err := a.mailClient.GetDelta(ctx, "", time.Duration(dryRunDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("get_delta: %w", err)
	}

	previews := previewClassify(ctx, a, mgr.Current(), messages, dryRunSample, dryRunLimit)
	printPreviews(previews)
	return nil
}

// previewResult is one message's would-be classification outcome.
type previewResult struct {
	EmailID    string
	Subject    string
	Source     string // auto_rule | classifier | error
	Folder     string
	Priority   string
	ActionType string
	Confidence float64
	Err        error
}

// previewClassify runs the same decision chain as Engine.processMessage
// (auto rules, then classifier) but never calls store.SaveEmail or
// store.CreateSuggestion and never issues a mail-client move, so the
// mailbox is left untouched and no email or suggestion row is written
// (the classifier still records its llm_request_log rows). The
// classifier gets an empty thread context. sample, if > 0, keeps only
// every sample-th message before the limit is applied.
func previewClassify(ctx context.Context, a *app, cfg *config.Config, messages []mail.Message, sample, limit int) []previewResult {
	var selected []mail.Message
	for i, m := range messages {
		if sample > 0 && i%sample != 0 {
			continue
		}
		selected = append(selected, m)
		if limit > 0 && len(selected) >= limit {
			break
		}
	}

	rules := autorules.New()
	cleaner := snippet.New(cfg.Snippet.ClassificationMaxLength)

	var out []previewResult
	for i := range selected {
		out = append(out, previewOne(ctx, a, cfg, rules, cleaner, &selected[i]))
	}
	return out
}

func previewOne(ctx context.Context, a *app, cfg *config.Config, rules *autorules.Engine, cleaner *snippet.Cleaner, m *mail.Message) previewResult {
	pr := previewResult{EmailID: m.ID, Subject: m.Subject}

	if match := rules.Match(m.From.Email, m.Subject, cfg.AutoRules); match != nil {
		pr.Source = "auto_rule"
		pr.Folder = match.Rule.Action.Folder
		pr.Priority = match.Rule.Action.Priority
		pr.ActionType = match.Rule.Action.ActionType
		pr.Confidence = 1.0
		return pr
	}

	cleaned := cleaner.Clean(m.Body, true)
	email := &store.Email{
		ID: m.ID, ConversationID: m.ConversationID, Subject: m.Subject,
		SenderEmail: m.From.Email, SenderName: m.From.Name, ReceivedAt: m.ReceivedAt,
		Snippet: cleaned.Text, ClassificationStatus: store.ClassificationPending,
	}

	r, err := a.classifier.Classify(ctx, "dry-run", email, cleaned.Text, &threadctx.Context{})
	if err != nil {
		pr.Source = "error"
		pr.Err = err
		return pr
	}
	pr.Source = "classifier"
	pr.Folder, pr.Priority, pr.ActionType, pr.Confidence = r.Folder, r.Priority, r.ActionType, r.Confidence
	return pr
}

func printPreviews(previews []previewResult) {
	if len(previews) == 0 {
		fmt.Println("no messages in range")
		return
	}
	for _, p := range previews {
		if p.Err != nil {
			fmt.Printf("%-12s %-40s ERROR: %v\n", p.EmailID, truncateForDisplay(p.Subject, 40), p.Err)
			continue
		}
		fmt.Printf("%-12s %-40s %-10s -> %-20s %-14s %-6s conf=%.2f\n",
			p.EmailID, truncateForDisplay(p.Subject, 40), p.Source, p.Folder, p.Priority, p.ActionType, p.Confidence)
	}
}

func truncateForDisplay(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
