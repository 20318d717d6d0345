package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

var bootstrapDays int

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run initial taxonomy discovery (spec categories_bootstrapped)",
	Long: `bootstrap ensures a mail-provider folder/category exists for
every configured project and area, then reports how much sent mail
falls in the --days warm-up window so an operator can judge whether
the waiting-for tracker's sent-items cache has enough history. It is
idempotent: once agent_state.categories_bootstrapped is set, a second
run is a no-op.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().IntVar(&bootstrapDays, "days", 30, "days of sent mail to report on")
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
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

	_, done, err := a.store.GetState(ctx, store.StateKeyCategoriesBootstrapped)
	if err != nil {
		return err
	}
	if done {
		fmt.Println("already bootstrapped, nothing to do")
		return nil
	}

	cfg := mgr.Current()
	if err := ensureTaxonomy(ctx, a, cfg); err != nil {
		return fmt.Errorf("taxonomy discovery: %w", err)
	}

	conversations, err := countRecentSentConversations(ctx, a, bootstrapDays)
	if err != nil {
		return fmt.Errorf("sent mail survey: %w", err)
	}

	if err := a.store.SetState(ctx, store.StateKeyCategoriesBootstrapped, "true"); err != nil {
		return err
	}
	fmt.Printf("bootstrap complete: %d folders ensured, %d sent conversations observed in the last %d days\n",
		taxonomyCount(cfg), conversations, bootstrapDays)
	return nil
}

func taxonomyCount(cfg *config.Config) int {
	return len(cfg.Projects) + len(cfg.Areas)
}

// ensureTaxonomy creates a folder/category for every configured
// project and area that the mail provider doesn't already have.
func ensureTaxonomy(ctx context.Context, a *app, cfg *config.Config) error {
	existing, err := a.mailClient.ListCategories(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	for _, p := range cfg.Projects {
		if have[p.Folder] {
			continue
		}
		if _, err := a.mailClient.GetFolderID(ctx, p.Folder); err != nil {
			return fmt.Errorf("project %q folder %q: %w", p.Name, p.Folder, err)
		}
	}
	for _, ar := range cfg.Areas {
		if have[ar.Folder] {
			continue
		}
		if _, err := a.mailClient.GetFolderID(ctx, ar.Folder); err != nil {
			return fmt.Errorf("area %q folder %q: %w", ar.Name, ar.Folder, err)
		}
	}
	return nil
}

// countRecentSentConversations reports the number of distinct
// conversations with sent mail in the given window, as a readiness
// signal for the sent-items cache (internal/sentcache) the waiting-for
// tracker depends on.
func countRecentSentConversations(ctx context.Context, a *app, days int) (int, error) {
	sent, err := a.mailClient.GetSentItems(ctx, time.Now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(sent))
	for _, s := range sent {
		seen[s.ConversationID] = true
	}
	return len(seen), nil
}
