package cli

import (
	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/digest"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Inspect the daily digest",
}

var digestShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Generate and print the digest to stdout now, ignoring the cooldown",
	Long: `show renders a fresh digest straight to stdout for operator
debugging, bypassing GenerateAndDeliverIfDue's once-a-day cooldown
gate (SPEC_FULL.md §7). Like a scheduled run, it records
agent_state.last_digest_run, which restarts the cooldown.`,
	RunE: runDigestShow,
}

func init() {
	digestCmd.AddCommand(digestShowCmd)
	rootCmd.AddCommand(digestCmd)
}

func runDigestShow(cmd *cobra.Command, args []string) error {
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

	gen := digest.New(a.store, a.llmClient, mgr.Current().Models.DigestModel)
	result, err := gen.Generate(ctx, mgr.Current())
	if err != nil {
		return err
	}
	return gen.Deliver(result, "")
}
