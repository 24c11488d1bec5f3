package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/cubetime/internal/selection"
	"github.com/haskel/cubetime/internal/solve"
)

// Messages for tea.Cmd
type groupsMsg struct {
	rows []row
	err  error
}

type changeMsg struct {
	change selection.Change
	closed bool
}

type statusMsg struct {
	text   string
	err    error
	reload bool
}

type tickMsg time.Time

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadGroups reads the session's groups with their averages, newest last.
func (m Model) loadGroups() tea.Cmd {
	store, averages, sessionID := m.store, m.averages, m.session.ID
	return func() tea.Msg {
		snaps, err := store.Groups(sessionID)
		if err != nil {
			return groupsMsg{err: err}
		}
		rows := make([]row, 0, len(snaps))
		for _, snap := range snaps {
			avg, err := averages.GetAverage(context.Background(), snap.ID)
			if err != nil {
				// Deleted since listing.
				continue
			}
			rows = append(rows, row{snap: snap, avg: avg})
		}
		return groupsMsg{rows: rows}
	}
}

// waitForChange blocks until the selection state publishes.
func waitForChange(ch chan selection.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		return changeMsg{change: c, closed: !ok}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadGroups(),
		waitForChange(m.changes),
		tick(m.config.RefreshInterval),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputMode {
			return m.handleInput(msg)
		}
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case groupsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rows = msg.rows
		if m.cursor >= len(m.rows) {
			m.cursor = max(len(m.rows)-1, 0)
		}
		return m, nil

	case changeMsg:
		if msg.closed {
			return m, nil
		}
		m.displayedID = msg.change.GroupID
		m.displayed = msg.change.Average
		return m, waitForChange(m.changes)

	case statusMsg:
		m.err = msg.err
		if msg.text != "" {
			m.status = msg.text
		}
		m.selectMode = m.state.SelectMode()
		if msg.reload {
			return m, m.loadGroups()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(
			m.loadGroups(),
			tick(m.config.RefreshInterval),
		)
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.scrollToCursor()
		return m, nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.scrollToCursor()
		return m, nil

	case "enter":
		r, ok := m.currentRow()
		if !ok {
			return m, nil
		}
		return m, m.selectGroup(r)

	case "m":
		if m.state.SelectMode() {
			m.state.ExitSelectMode()
			m.status = ""
		} else {
			m.state.EnterSelectMode()
			m.status = "select mode: space marks, d deletes marked, m leaves"
		}
		m.selectMode = m.state.SelectMode()
		return m, nil

	case " ":
		r, ok := m.currentRow()
		if !ok || !m.selectMode {
			return m, nil
		}
		if _, err := m.state.ToggleMarked(r.snap.ID); err != nil {
			m.err = err
		}
		return m, nil

	case "d":
		if !m.selectMode {
			return m, nil
		}
		return m, m.deleteMarked()

	case "c":
		m.state.ClearSelection()
		return m, nil

	case "t", "a":
		m.inputMode = true
		m.input = ""
		return m, nil

	case "r":
		return m, m.loadGroups()
	}

	return m, nil
}

// handleInput edits the new-time line opened with "t".
func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = false
		return m, nil
	case tea.KeyEnter:
		m.inputMode = false
		return m, m.addSolve(m.input)
	case tea.KeyBackspace:
		if n := len(m.input); n > 0 {
			m.input = m.input[:n-1]
		}
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) scrollToCursor() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// selectGroup shows the row's average; unfilled groups show their Current
// Average snapshot. In select mode it marks the row instead.
func (m Model) selectGroup(r row) tea.Cmd {
	state := m.state
	id, full := r.snap.ID, r.snap.Full()
	return func() tea.Msg {
		var err error
		if full || state.SelectMode() {
			err = state.SelectGroup(context.Background(), id)
		} else {
			err = state.SelectCurrentInProgress(id)
		}
		switch {
		case errors.Is(err, selection.ErrGroupFull):
			// Filled up since the list was read.
			err = state.SelectGroup(context.Background(), id)
		case errors.Is(err, selection.ErrGroupNotNewest):
			// An older group that lost solves goes through the aggregator.
			err = state.SelectGroup(context.Background(), id)
		}
		return statusMsg{err: err}
	}
}

func (m Model) deleteMarked() tea.Cmd {
	state := m.state
	return func() tea.Msg {
		n, err := state.DeleteMarked()
		return statusMsg{text: fmt.Sprintf("deleted %d group(s)", n), err: err, reload: true}
	}
}

func (m Model) addSolve(entry string) tea.Cmd {
	store, sessionID, plusTwo := m.store, m.session.ID, m.config.PlusTwo
	return func() tea.Msg {
		sv, err := solve.ParseEntry(entry, solve.None)
		if err != nil {
			return statusMsg{err: err}
		}
		if _, err := store.AddSolve(sessionID, sv); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "recorded " + solve.FormatSolve(sv, plusTwo), reload: true}
	}
}
