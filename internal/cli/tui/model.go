package tui

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/selection"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

// Config holds TUI configuration
type Config struct {
	RefreshInterval time.Duration
	PlusTwo         time.Duration
}

// Store is the part of the session store the time list reads and writes.
type Store interface {
	Groups(sessionID uuid.UUID) ([]session.Snapshot, error)
	AddSolve(sessionID uuid.UUID, sv solve.Solve) (session.Snapshot, error)
}

// Averager resolves group averages for the time list.
type Averager interface {
	GetAverage(ctx context.Context, groupID uuid.UUID) (*average.CalculatedAverage, error)
}

// row is one line of the time list.
type row struct {
	snap session.Snapshot
	avg  *average.CalculatedAverage
}

// Model represents the TUI state
type Model struct {
	config   Config
	session  session.Session
	store    Store
	averages Averager
	state    *selection.State
	changes  chan selection.Change

	rows []row

	// Displayed average panel, fed by selection changes
	displayedID uuid.UUID
	displayed   *average.CalculatedAverage

	// UI state
	width      int
	height     int
	cursor     int
	offset     int
	selectMode bool
	inputMode  bool
	input      string
	status     string
	err        error
}

// NewModel creates a new TUI model
func NewModel(cfg Config, sess session.Session, store Store, averages Averager, state *selection.State) Model {
	return Model{
		config:   cfg,
		session:  sess,
		store:    store,
		averages: averages,
		state:    state,
		changes:  state.Subscribe(),
	}
}

func (m Model) currentRow() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}
