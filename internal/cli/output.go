package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// newTable returns a tablewriter configured the way the rest of this
// package's list commands expect: stdout, one header row, borders on.
func newTable(header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(os.Stdout)
	t.Header(header)
	return t
}

// colorizeLevel renders a waiting-for/overdue-reply aging level the
// same way internal/digest's stdout delivery path does: red for a hard
// escalation, yellow for a soft nudge, plain otherwise.
func colorizeLevel(level string) string {
	switch level {
	case "critical", "escalate":
		return color.RedString(level)
	case "nudge", "warning":
		return color.YellowString(level)
	default:
		return level
	}
}

func printNoRows(what string) {
	fmt.Printf("no %s found\n", what)
}
