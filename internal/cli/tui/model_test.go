package tui

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/selection"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	store *session.Store
	state *selection.State
	model Model
}

func newHarness(t *testing.T, secs ...float64) *harness {
	t.Helper()
	store := session.NewStore(5, testLogger())
	agg := aggregator.New(store, average.DefaultCalculator(), testLogger())
	store.AddListener(agg.HandleEvent)

	sess, err := store.CreateSession(session.NewSession{Name: "3x3", Type: session.Standard})
	require.NoError(t, err)
	for _, s := range secs {
		_, err := store.AddSolve(sess.ID, solve.New(solve.Seconds(s), solve.None))
		require.NoError(t, err)
	}

	state := selection.New(agg, store, testLogger())
	m := NewModel(Config{RefreshInterval: time.Second, PlusTwo: solve.DefaultPlusTwo}, sess, store, agg, state)
	t.Cleanup(func() { state.Unsubscribe(m.changes) })

	h := &harness{store: store, state: state, model: m}
	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	h.run(t, m.loadGroups())
	return h
}

// send delivers msg and returns the follow-up command without running it.
func (h *harness) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// run executes cmd synchronously and feeds its message back.
func (h *harness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	h.send(t, cmd())
}

func (h *harness) key(t *testing.T, k string) tea.Cmd {
	t.Helper()
	switch k {
	case "enter":
		return h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	case "down":
		return h.send(t, tea.KeyMsg{Type: tea.KeyDown})
	case "esc":
		return h.send(t, tea.KeyMsg{Type: tea.KeyEsc})
	default:
		return h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
}

// drainChange applies the next published selection change.
func (h *harness) drainChange(t *testing.T) {
	t.Helper()
	select {
	case c := <-h.model.changes:
		h.send(t, changeMsg{change: c})
	case <-time.After(time.Second):
		t.Fatal("expected a selection change")
	}
}

func TestModel_LoadsGroups(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13, 14, 20)

	require.Len(t, h.model.rows, 2)
	assert.Equal(t, "ao5", h.model.rows[0].avg.Label)
	assert.Equal(t, average.CurrentLabel, h.model.rows[1].avg.Label)

	view := h.model.View()
	assert.Contains(t, view, "CUBETIME · 3x3")
	assert.Contains(t, view, "ao5 12.00")
	assert.Contains(t, view, "(10.00)")
	assert.Contains(t, view, "No average selected")
}

func TestModel_EnterSelectsAverage(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13, 14, 20)

	h.run(t, h.key(t, "enter"))
	h.drainChange(t)

	require.NotNil(t, h.model.displayed)
	assert.Equal(t, "ao5", h.model.displayed.Label)
	assert.Contains(t, h.model.View(), "counted 3, trimmed 2")

	// The unfilled group shows its Current Average.
	h.key(t, "down")
	h.run(t, h.key(t, "enter"))
	h.drainChange(t)

	require.NotNil(t, h.model.displayed)
	assert.Equal(t, average.CurrentLabel, h.model.displayed.Label)
	assert.Contains(t, h.model.View(), "1 solve(s) so far")

	h.key(t, "c")
	h.drainChange(t)
	assert.Nil(t, h.model.displayed)
}

func TestModel_SelectModeDeletesMarked(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19)

	h.key(t, "m")
	assert.True(t, h.model.selectMode)
	assert.True(t, h.state.SelectMode())

	h.key(t, " ")
	assert.True(t, h.state.IsMarked(h.model.rows[0].snap.ID))
	assert.Contains(t, h.model.View(), "[x]")

	cmd := h.key(t, "d")
	require.NotNil(t, cmd)
	msg := cmd()
	h.run(t, h.send(t, msg))

	assert.False(t, h.model.selectMode)
	assert.Equal(t, "deleted 1 group(s)", h.model.status)
	require.Len(t, h.model.rows, 1)
}

func TestModel_EnterOnShrunkOlderGroup(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13, 14, 20)
	older := h.model.rows[0].snap
	require.NoError(t, h.store.DeleteSolve(older.Solves[4].ID))
	h.run(t, h.model.loadGroups())
	require.False(t, h.model.rows[0].snap.Full())

	h.run(t, h.key(t, "enter"))
	h.drainChange(t)

	assert.NoError(t, h.model.err)
	require.NotNil(t, h.model.displayed)
	assert.Equal(t, average.CurrentLabel, h.model.displayed.Label)
	assert.Len(t, h.model.displayed.Considered, 4)
}

func TestModel_DeleteKeepsGroupInProgress(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13, 14, 20)
	current := h.model.rows[1].snap.ID

	h.key(t, "m")
	h.key(t, "down")
	h.key(t, " ")
	require.True(t, h.state.IsMarked(current))

	cmd := h.key(t, "d")
	require.NotNil(t, cmd)
	h.run(t, h.send(t, cmd()))

	assert.ErrorIs(t, h.model.err, session.ErrGroupInProgress)
	assert.Equal(t, "deleted 0 group(s)", h.model.status)
	require.Len(t, h.model.rows, 2)
	assert.Equal(t, current, h.model.rows[1].snap.ID)
}

func TestModel_AddSolve(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13)

	h.key(t, "t")
	assert.True(t, h.model.inputMode)
	h.key(t, "1")
	h.key(t, "4")
	h.key(t, ".")
	h.key(t, "5")
	h.key(t, "+")
	assert.Equal(t, "14.5+", h.model.input)
	assert.Contains(t, h.model.View(), "14.5+")

	cmd := h.key(t, "enter")
	assert.False(t, h.model.inputMode)
	h.run(t, h.send(t, cmd()))

	assert.Equal(t, "recorded 16.50+", h.model.status)
	require.Len(t, h.model.rows, 1)
	assert.Equal(t, "ao5", h.model.rows[0].avg.Label)
}

func TestModel_AddSolveInvalid(t *testing.T) {
	h := newHarness(t)

	h.key(t, "t")
	h.key(t, "abc")
	h.run(t, h.key(t, "enter"))

	assert.Error(t, h.model.err)
	assert.Empty(t, h.model.rows)
}

func TestModel_InputEscape(t *testing.T) {
	h := newHarness(t, 10)

	h.key(t, "t")
	h.key(t, "9")
	h.key(t, "esc")
	assert.False(t, h.model.inputMode)

	// "q" quits again once input mode is left.
	cmd := h.key(t, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_DisplayFollowsStoreEvents(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13)

	h.run(t, h.key(t, "enter"))
	h.drainChange(t)
	require.True(t, h.model.displayed.IsCurrent())

	events, stop := h.store.Events(8)
	defer stop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.state.Run(ctx, events) }()

	_, err := h.store.AddSolve(h.model.session.ID, solve.New(solve.Seconds(14), solve.None))
	require.NoError(t, err)

	h.drainChange(t)
	require.NotNil(t, h.model.displayed.Average)
	assert.Equal(t, 12*time.Second, *h.model.displayed.Average)
}

func TestModel_CursorBounds(t *testing.T) {
	h := newHarness(t, 10, 11, 12, 13, 14, 15)

	h.key(t, "k")
	assert.Equal(t, 0, h.model.cursor)
	h.key(t, "j")
	h.key(t, "j")
	assert.Equal(t, 1, h.model.cursor)
}
