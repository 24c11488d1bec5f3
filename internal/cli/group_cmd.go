package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/solve"
)

var groupCmd = &cobra.Command{
	Use:     "group",
	Aliases: []string{"groups"},
	Short:   "Inspect and delete solve groups",
}

var groupListCmd = &cobra.Command{
	Use:     "list [session]",
	Aliases: []string{"ls"},
	Short:   "List a session's groups with their averages",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runGroupList,
}

var groupShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Show one group's average and which solves were trimmed",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupShow,
}

var groupDeleteCmd = &cobra.Command{
	Use:     "delete <group-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete groups with their solves",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runGroupDelete,
}

func init() {
	groupCmd.AddCommand(groupListCmd, groupShowCmd, groupDeleteCmd)
	rootCmd.AddCommand(groupCmd)
}

func runGroupList(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}

	return withApp(func(a *app) error {
		s, err := a.resolveSession(ref)
		if err != nil {
			return err
		}
		groups, err := a.agg.GroupAverages(context.Background(), s.ID)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(cmd.OutOrStdout(), groups)
		}
		if len(groups) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No solves in %q\n", s.Name)
			return nil
		}

		rows := make([][]string, 0, len(groups))
		for i, g := range groups {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				shortID(g.GroupID),
				averageLine(g.Average),
				formatGroup(g.Average, a.plusTwo()),
			})
		}
		return printTable(cmd.OutOrStdout(), []string{"#", "ID", "Average", "Solves"}, rows)
	})
}

type groupDetail struct {
	aggregator.GroupAverage
	SessionID  string `json:"session_id"`
	TargetSize int    `json:"target_size"`
}

func runGroupShow(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		snap, err := a.resolveGroup(args[0])
		if err != nil {
			return err
		}
		avg, err := a.agg.GetAverage(context.Background(), snap.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, groupDetail{
				GroupAverage: aggregator.GroupAverage{GroupID: snap.ID, Version: snap.Version, Average: avg},
				SessionID:    snap.SessionID.String(),
				TargetSize:   snap.TargetSize,
			})
		}

		fmt.Fprintf(out, "Group %s (%d/%d solves)\n", snap.ID, len(avg.Considered), snap.TargetSize)
		fmt.Fprintln(out, averageLine(avg))
		return printSolveTable(cmd, a, avg)
	})
}

func printSolveTable(cmd *cobra.Command, a *app, avg *average.CalculatedAverage) error {
	rows := make([][]string, 0, len(avg.Considered))
	for i, sv := range avg.Considered {
		t := solve.FormatSolve(sv, a.plusTwo())
		if avg.IsTrimmed(sv.ID) {
			t = "(" + t + ")"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), shortID(sv.ID), t, sv.Penalty.String(), sv.Scramble})
	}
	return printTable(cmd.OutOrStdout(), []string{"#", "ID", "Time", "Penalty", "Scramble"}, rows)
}

func runGroupDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		for _, ref := range args {
			snap, err := a.resolveGroup(ref)
			if err != nil {
				return err
			}
			if err := a.store.DeleteGroup(snap.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s (%d solves)\n", shortID(snap.ID), len(snap.Solves))
		}
		return nil
	})
}
