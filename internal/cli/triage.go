package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/scheduler"
)

var (
	triageOnce   bool
	triageDryRun bool
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Run the triage engine",
	Long: `triage runs the full engine (spec §4.10): fetch new mail,
classify it, auto-apply confident suggestions, expire stale ones, and
check waiting-for obligations. Without --once it keeps running on
triage.interval_seconds until interrupted, the same loop serve runs in
the background. --dry-run classifies without saving emails or
suggestions or moving mail; the classifier's llm_request_log rows are
still written.`,
	RunE: runTriage,
}

func init() {
	triageCmd.Flags().BoolVar(&triageOnce, "once", false, "run a single cycle and exit")
	triageCmd.Flags().BoolVar(&triageDryRun, "dry-run", false, "classify without persisting suggestions or moving mail")
	rootCmd.AddCommand(triageCmd)
}

func runTriage(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	if triageDryRun {
		return runTriageDryRun(ctx, a, mgr.Current())
	}

	if triageOnce {
		result := a.engine.RunCycle(ctx)
		fmt.Printf("cycle %s: fetched=%d classified=%d auto_rule=%d inherited=%d auto_applied=%d expired=%d\n",
			result.CycleID, result.MessagesFetched, result.Classified, result.AutoRuleMatches,
			result.InheritedMatches, result.AutoApplied.Approved, result.Expired)
		return nil
	}

	sched := scheduler.New(mgr.Current().Triage.IntervalDuration(), func(runCtx context.Context) {
		a.engine.RunCycle(runCtx)
	}, logger)
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
	return nil
}

func runTriageDryRun(ctx context.Context, a *app, cfg *config.Config) error {
	messages, _, err := a.mailClient.GetDelta(ctx, "", cfg.Triage.LookbackDuration())
	if err != nil {
		return fmt.Errorf("get_delta: %w", err)
	}
	printPreviews(previewClassify(ctx, a, cfg, messages, 0, 0))
	return nil
}
