package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/solve"
)

var statsCmd = &cobra.Command{
	Use:   "stats [session]",
	Short: "Show session statistics",
	Long: `Show a session's solve count, best single, mean, best and latest
averages. Compsim sessions also report how many averages beat the target.

Examples:
  cubetime stats         # The only or first pinned session
  cubetime stats "OH"    # A session by name`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}

	return withApp(func(a *app) error {
		s, err := a.resolveSession(ref)
		if err != nil {
			return err
		}
		sum, err := a.agg.SessionSummary(context.Background(), s.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, sum)
		}

		titleColor.Fprintf(out, "=== %s ===\n", s.Name)
		fmt.Fprintf(out, "Solves:      %d (%d DNF)\n", sum.Solves, sum.DNFs)
		fmt.Fprintf(out, "Groups:      %d (%d averaged)\n", sum.Groups, sum.Completed)
		fmt.Fprintf(out, "Best single: %s\n", formatOptional(sum.BestSingle))
		fmt.Fprintf(out, "Mean:        %s\n", formatOptional(sum.Mean))
		fmt.Fprintf(out, "Best avg:    %s\n", formatGroupAverage(sum.Best))
		fmt.Fprintf(out, "Latest avg:  %s\n", formatGroupAverage(sum.Latest))
		if sum.Target > 0 {
			fmt.Fprintf(out, "Target:      %s (%d/%d hit)\n", solve.FormatDuration(sum.Target), sum.TargetHits, sum.Completed)
		}
		return nil
	})
}

func formatOptional(d *time.Duration) string {
	return solve.FormatResult(d, false)
}

func formatGroupAverage(g *aggregator.GroupAverage) string {
	if g == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", averageLine(g.Average), shortID(g.GroupID))
}
