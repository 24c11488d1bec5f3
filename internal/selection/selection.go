// Package selection tracks which solve group's average is on display and the
// multi-select state used for deleting groups.
package selection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
)

var (
	ErrGroupFull      = errors.New("group is complete, select it as an average")
	ErrGroupNotNewest = errors.New("only the session's newest group has a current average")
	ErrNotSelectMode  = errors.New("not in select mode")
)

// Averager resolves a group's current average.
type Averager interface {
	GetAverage(ctx context.Context, groupID uuid.UUID) (*average.CalculatedAverage, error)
}

// GroupStore is the part of the record store selection needs.
type GroupStore interface {
	Snapshot(groupID uuid.UUID) (session.Snapshot, error)
	Groups(sessionID uuid.UUID) ([]session.Snapshot, error)
	DeleteGroup(groupID uuid.UUID) error
}

// Change is published whenever the displayed average changes. A nil
// Average means nothing is displayed.
type Change struct {
	GroupID uuid.UUID
	Average *average.CalculatedAverage
}

// State holds the displayed average. All updates to it are serialized by mu,
// and each selection bumps seq so that a slow computation for an older
// selection cannot overwrite a newer one.
type State struct {
	averages Averager
	store    GroupStore
	logger   *slog.Logger

	mu         sync.Mutex
	seq        uint64
	groupID    uuid.UUID
	displayed  *average.CalculatedAverage
	selectMode bool
	marked     map[uuid.UUID]struct{}

	subsMu sync.Mutex
	subs   map[chan Change]struct{}
}

func New(averages Averager, store GroupStore, logger *slog.Logger) *State {
	return &State{
		averages: averages,
		store:    store,
		logger:   logger,
		marked:   make(map[uuid.UUID]struct{}),
		subs:     make(map[chan Change]struct{}),
	}
}

// Subscribe returns a channel receiving display changes. Slow subscribers
// miss changes rather than block; Displayed always has the latest value.
func (s *State) Subscribe() chan Change {
	ch := make(chan Change, 16)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

func (s *State) Unsubscribe(ch chan Change) {
	s.subsMu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.subsMu.Unlock()
}

// publishLocked must be called with mu held so changes go out in order.
func (s *State) publishLocked() {
	change := Change{GroupID: s.groupID, Average: s.displayed}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- change:
		default:
			s.logger.Debug("dropping display change for slow subscriber")
		}
	}
}

// Displayed returns the displayed group and its average, if any.
func (s *State) Displayed() (uuid.UUID, *average.CalculatedAverage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID, s.displayed
}

// SelectGroup displays the group's average: the trimmed average of a full
// group, or the "Current Average" snapshot of one still filling. In select
// mode it toggles the group's mark instead.
func (s *State) SelectGroup(ctx context.Context, groupID uuid.UUID) error {
	s.mu.Lock()
	if s.selectMode {
		s.toggleLocked(groupID)
		s.mu.Unlock()
		return nil
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	avg, err := s.averages.GetAverage(ctx, groupID)
	if err != nil {
		return fmt.Errorf("select group: %w", err)
	}

	s.setIfCurrent(seq, groupID, avg)
	return nil
}

// SelectCurrentInProgress displays the unaveraged snapshot of the session's
// newest group while it has not reached its target size. An older group
// that lost solves is not in progress and is rejected.
func (s *State) SelectCurrentInProgress(groupID uuid.UUID) error {
	s.mu.Lock()
	if s.selectMode {
		s.toggleLocked(groupID)
		s.mu.Unlock()
		return nil
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	snap, err := s.store.Snapshot(groupID)
	if err != nil {
		return fmt.Errorf("select current average: %w", err)
	}
	if snap.Full() {
		return ErrGroupFull
	}
	groups, err := s.store.Groups(snap.SessionID)
	if err != nil {
		return fmt.Errorf("select current average: %w", err)
	}
	if len(groups) == 0 || groups[len(groups)-1].ID != groupID {
		return ErrGroupNotNewest
	}

	s.setIfCurrent(seq, groupID, average.Current(snap.Solves))
	return nil
}

func (s *State) setIfCurrent(seq uint64, groupID uuid.UUID, avg *average.CalculatedAverage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		s.logger.Debug("selection superseded", "group_id", groupID)
		return
	}
	s.groupID = groupID
	s.displayed = avg
	s.publishLocked()
}

// ClearSelection removes the displayed average.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.clearLocked()
}

func (s *State) clearLocked() {
	if s.displayed == nil && s.groupID == uuid.Nil {
		return
	}
	s.groupID = uuid.Nil
	s.displayed = nil
	s.publishLocked()
}

func (s *State) EnterSelectMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectMode = true
}

// ExitSelectMode leaves select mode and drops all marks. The displayed
// average is not touched.
func (s *State) ExitSelectMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectMode = false
	clear(s.marked)
}

func (s *State) SelectMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectMode
}

// ToggleMarked flips a group's mark and reports whether it is now marked.
func (s *State) ToggleMarked(groupID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selectMode {
		return false, ErrNotSelectMode
	}
	return s.toggleLocked(groupID), nil
}

func (s *State) toggleLocked(groupID uuid.UUID) bool {
	if _, ok := s.marked[groupID]; ok {
		delete(s.marked, groupID)
		return false
	}
	s.marked[groupID] = struct{}{}
	return true
}

// Marked returns the marked groups in a stable order.
func (s *State) Marked() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.marked))
	for id := range s.marked {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}

// IsMarked reports whether the group is marked for deletion.
func (s *State) IsMarked(groupID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.marked[groupID]
	return ok
}

// DeleteMarked deletes every marked group through the store and leaves
// select mode. Groups already gone are not an error. A marked group still in
// progress is kept and reported in the returned error.
func (s *State) DeleteMarked() (int, error) {
	ids := s.Marked()

	var errs []error
	deleted := 0
	for _, id := range ids {
		if err := s.store.DeleteGroup(id); err != nil {
			if errors.Is(err, session.ErrGroupNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	s.ExitSelectMode()
	s.logger.Info("deleted marked groups", "count", deleted)
	return deleted, errors.Join(errs...)
}

// HandleEvent refreshes the displayed average when its group changes and
// clears it when the group is deleted.
func (s *State) HandleEvent(ctx context.Context, ev session.Event) error {
	s.mu.Lock()
	if s.groupID == uuid.Nil || ev.GroupID != s.groupID {
		s.mu.Unlock()
		return nil
	}
	seq := s.seq
	s.mu.Unlock()

	switch ev.Kind {
	case session.GroupDeleted, session.SessionDeleted:
		s.clearIfCurrent(seq)
		return nil
	}

	avg, err := s.averages.GetAverage(ctx, ev.GroupID)
	if err != nil {
		if errors.Is(err, aggregator.ErrGroupNotFound) {
			s.clearIfCurrent(seq)
			return nil
		}
		return err
	}
	s.setIfCurrent(seq, ev.GroupID, avg)
	return nil
}

func (s *State) clearIfCurrent(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.seq {
		s.clearLocked()
	}
}

// Run is the single consumer of store events for this state. It returns
// when ctx is done or events is closed.
func (s *State) Run(ctx context.Context, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.HandleEvent(ctx, ev); err != nil {
				s.logger.Warn("failed to refresh displayed average",
					"group_id", ev.GroupID,
					"error", err,
				)
			}
		}
	}
}
