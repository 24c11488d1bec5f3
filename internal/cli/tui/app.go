package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/selection"
	"github.com/haskel/cubetime/internal/session"
)

// Run starts the TUI application on one session. It returns when the user
// quits or ctx is done.
func Run(ctx context.Context, cfg Config, sess session.Session, store *session.Store, agg *aggregator.Aggregator, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := selection.New(agg, store, logger)
	events, stopEvents := store.Events(64)
	defer stopEvents()

	go func() {
		if err := state.Run(ctx, events); err != nil && ctx.Err() == nil {
			logger.Error("selection loop stopped", "error", err)
		}
	}()

	model := NewModel(cfg, sess, store, agg, state)
	defer state.Unsubscribe(model.changes)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
