package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/cubetime/internal/cli/tui"
	"github.com/haskel/cubetime/internal/logger"
)

var (
	refreshInterval time.Duration
)

var tuiCmd = &cobra.Command{
	Use:   "tui [session]",
	Short: "Launch the interactive time list",
	Long: `Launch an interactive terminal time list for one session. Full groups
show their trimmed average with the trimmed solves greyed out; selecting an
unfilled group shows its Current Average.

Examples:
  cubetime tui                   # The only or first pinned session
  cubetime tui "OH"              # A session by name
  cubetime tui --refresh 100ms   # Faster list refresh`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().DurationVar(&refreshInterval, "refresh", 0, "time list refresh interval (default tui.refresh_interval_ms)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}

	// Logging to stderr would corrupt the screen.
	a, err := openApp(logger.Discard())
	if err != nil {
		return err
	}
	a.start(cmd.Context())

	s, err := a.resolveSession(ref)
	if err != nil {
		_ = a.close()
		return err
	}

	config := tui.Config{
		RefreshInterval: a.cfg.RefreshInterval(),
		PlusTwo:         a.plusTwo(),
	}
	if refreshInterval > 0 {
		config.RefreshInterval = refreshInterval
	}

	runErr := tui.Run(cmd.Context(), config, s, a.store, a.agg, a.logger)
	if err := a.close(); runErr == nil {
		runErr = err
	}
	return runErr
}
