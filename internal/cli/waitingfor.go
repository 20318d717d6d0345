package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

var waitingForCmd = &cobra.Command{
	Use:   "waiting-for",
	Short: "Inspect open waiting-for obligations",
}

var waitingForMinHours float64

var waitingForListCmd = &cobra.Command{
	Use:   "list",
	Short: "List waiting-for obligations older than --min-hours",
	RunE:  runWaitingForList,
}

func init() {
	waitingForListCmd.Flags().Float64Var(&waitingForMinHours, "min-hours", 0, "only show items waiting at least this many hours")
	waitingForCmd.AddCommand(waitingForListCmd)
	rootCmd.AddCommand(waitingForCmd)
}

func runWaitingForList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, err := loadManager(configPath)
	if err != nil {
		return err
	}
	s, err := openStoreOnly(mgr)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := mgr.Current()
	rows, err := s.ListOverdueWaitingFor(ctx, waitingForMinHours)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printNoRows("waiting-for items")
		return nil
	}

	t := newTable([]string{"ID", "EXPECTED FROM", "DESCRIPTION", "HOURS", "LEVEL"})
	for _, w := range rows {
		hours := waitingForHours(w)
		level := "nudge"
		if hours >= float64(cfg.Aging.WaitingForEscalateHours) {
			level = "critical"
		}
		t.Append([]string{
			fmt.Sprintf("%d", w.ID),
			truncateForDisplay(w.ExpectedFrom, 24),
			truncateForDisplay(w.Description, 40),
			fmt.Sprintf("%.1f", hours),
			colorizeLevel(level),
		})
	}
	return t.Render()
}

func waitingForHours(w store.WaitingFor) float64 {
	return time.Since(w.WaitingSince).Hours()
}
