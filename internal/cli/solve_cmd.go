package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/solve"
)

var solveCmd = &cobra.Command{
	Use:     "solve",
	Aliases: []string{"solves"},
	Short:   "Record and delete solves",
}

var solveAddCmd = &cobra.Command{
	Use:   "add <time>...",
	Short: "Record one or more solves",
	Long: `Record solves in a session. Times are seconds or m:ss.xx. A trailing "+"
records a +2 penalty on that solve and "DNF" records a did-not-finish.`,
	Example: `  cubetime solve add 12.34
  cubetime solve add -s "OH" 25.10 24.02+ DNF 23.80 1:01.20
  cubetime solve add 11.20 --penalty +2 --scramble "R U R' U'"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSolveAdd,
}

var solveDeleteCmd = &cobra.Command{
	Use:     "delete <solve-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete solves by id or id prefix",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSolveDelete,
}

var (
	solveSession  string
	solvePenalty  string
	solveScramble string
	solveComment  string
)

func init() {
	solveAddCmd.Flags().StringVarP(&solveSession, "session", "s", "", "session id or name")
	solveAddCmd.Flags().StringVar(&solvePenalty, "penalty", "", "penalty for all given times: +2 or dnf")
	solveAddCmd.Flags().StringVar(&solveScramble, "scramble", "", "scramble used")
	solveAddCmd.Flags().StringVar(&solveComment, "comment", "", "comment")

	solveCmd.AddCommand(solveAddCmd, solveDeleteCmd)
	rootCmd.AddCommand(solveCmd)
}

type solveAddResult struct {
	Solves  []solve.Solve              `json:"solves"`
	GroupID uuid.UUID                  `json:"group_id"`
	Average *average.CalculatedAverage `json:"average"`
}

func runSolveAdd(cmd *cobra.Command, args []string) error {
	penalty, err := solve.ParsePenalty(solvePenalty)
	if err != nil {
		return err
	}

	solves := make([]solve.Solve, 0, len(args))
	for _, arg := range args {
		sv, err := solve.ParseEntry(arg, penalty)
		if err != nil {
			return err
		}
		sv.Scramble = solveScramble
		sv.Comment = solveComment
		solves = append(solves, sv)
	}

	return withApp(func(a *app) error {
		s, err := a.resolveSession(solveSession)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var res solveAddResult
		for _, sv := range solves {
			snap, err := a.store.AddSolve(s.ID, sv)
			if err != nil {
				return err
			}
			res.Solves = append(res.Solves, snap.Solves[len(snap.Solves)-1])
			res.GroupID = snap.ID
		}

		res.Average, err = a.agg.GetAverage(context.Background(), res.GroupID)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(out, res)
		}
		for _, sv := range res.Solves {
			fmt.Fprintf(out, "Recorded %s (%s) in %q\n", solve.FormatSolve(sv, a.plusTwo()), shortID(sv.ID), s.Name)
		}
		fmt.Fprintf(out, "%s  [%s]\n", averageLine(res.Average), formatGroup(res.Average, a.plusTwo()))
		return nil
	})
}

func runSolveDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		for _, ref := range args {
			sv, err := a.resolveSolve(ref)
			if err != nil {
				return err
			}
			if err := a.store.DeleteSolve(sv.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted solve %s (%s)\n", shortID(sv.ID), solve.FormatSolve(sv, a.plusTwo()))
		}
		return nil
	})
}
