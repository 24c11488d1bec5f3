package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage timing sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a session",
	Example: `  cubetime session new "3x3"
  cubetime session new "OH comp sim" --type compsim --target 25.00
  cubetime session new "Multi" --type multiphase --phases 4`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionNew,
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, pinned first",
	Args:    cobra.NoArgs,
	RunE:    runSessionList,
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <session> <new-name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionRename,
}

var sessionPinCmd = &cobra.Command{
	Use:   "pin <session>",
	Short: "Pin a session to the top of the list",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionPin,
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <session>",
	Aliases: []string{"rm"},
	Short:   "Delete a session with all of its solves",
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionDelete,
}

var (
	newType      string
	newEvent     string
	newPhases    int
	newTarget    string
	newGroupSize int
	newPinned    bool
	unpin        bool
)

func init() {
	sessionNewCmd.Flags().StringVar(&newType, "type", string(session.Standard), "session type: standard, multiphase, playground, compsim")
	sessionNewCmd.Flags().StringVar(&newEvent, "event", "", "puzzle or event name, e.g. 333")
	sessionNewCmd.Flags().IntVar(&newPhases, "phases", 0, "phase count for multiphase sessions")
	sessionNewCmd.Flags().StringVar(&newTarget, "target", "", "target average for compsim sessions, e.g. 12.50")
	sessionNewCmd.Flags().IntVar(&newGroupSize, "group-size", 0, "solves per average (default averaging.group_size)")
	sessionNewCmd.Flags().BoolVar(&newPinned, "pin", false, "pin the session")
	sessionPinCmd.Flags().BoolVar(&unpin, "unpin", false, "unpin instead")

	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionRenameCmd, sessionPinCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	typ, err := session.ParseType(newType)
	if err != nil {
		return err
	}

	n := session.NewSession{
		Name:       args[0],
		Type:       typ,
		Pinned:     newPinned,
		Event:      newEvent,
		PhaseCount: newPhases,
		GroupSize:  newGroupSize,
	}
	if newTarget != "" {
		if n.Target, err = solve.ParseTime(newTarget); err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}

	return withApp(func(a *app) error {
		s, err := a.store.CreateSession(n)
		if err != nil {
			return err
		}
		a.markDirty()

		if jsonOut {
			return printJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created session %q (%s)\n", s.Name, shortID(s.ID))
		return nil
	})
}

type sessionListItem struct {
	session.Session
	Solves int `json:"solves"`
	Groups int `json:"groups"`
}

func runSessionList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		var items []sessionListItem
		for _, s := range a.store.Sessions() {
			groups, err := a.store.Groups(s.ID)
			if err != nil {
				return err
			}
			item := sessionListItem{Session: s, Groups: len(groups)}
			for _, g := range groups {
				item.Solves += len(g.Solves)
			}
			items = append(items, item)
		}

		if jsonOut {
			if items == nil {
				items = []sessionListItem{}
			}
			return printJSON(cmd.OutOrStdout(), items)
		}

		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			name := it.Name
			if it.Pinned {
				name = "* " + name
			}
			rows = append(rows, []string{shortID(it.ID), name, string(it.Type), strconv.Itoa(it.Solves), strconv.Itoa(it.Groups)})
		}
		return printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Type", "Solves", "Groups"}, rows)
	})
}

func runSessionRename(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		s, err := a.resolveSession(args[0])
		if err != nil {
			return err
		}
		if err := a.store.RenameSession(s.ID, args[1]); err != nil {
			return err
		}
		a.markDirty()
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %q to %q\n", s.Name, args[1])
		return nil
	})
}

func runSessionPin(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		s, err := a.resolveSession(args[0])
		if err != nil {
			return err
		}
		if err := a.store.SetPinned(s.ID, !unpin); err != nil {
			return err
		}
		a.markDirty()

		verb := "Pinned"
		if unpin {
			verb = "Unpinned"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", verb, s.Name)
		return nil
	})
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		s, err := a.resolveSession(args[0])
		if err != nil {
			return err
		}
		if err := a.store.DeleteSession(s.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %q\n", s.Name)
		return nil
	})
}
