package session

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/solve"
)

// DefaultGroupSize is the competition group size.
const DefaultGroupSize = 5

type groupState struct {
	id        uuid.UUID
	sessionID uuid.UUID
	solves    []solve.Solve
	version   uint64
}

type sessionState struct {
	info   Session
	groups []*groupState
}

// Store holds sessions in memory. Every mutation bumps the affected group's
// version under the same lock that applies it, so readers never see new
// solves with an old version.
type Store struct {
	groupSize int
	logger    *slog.Logger

	mu         sync.RWMutex
	sessions   map[uuid.UUID]*sessionState
	order      []uuid.UUID
	groups     map[uuid.UUID]*groupState
	solveGroup map[uuid.UUID]uuid.UUID
	// clock is shared by all groups so a version is never reused, even
	// across Import.
	clock uint64

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

var _ Reader = (*Store)(nil)

// NewStore creates an empty store. groupSize < 1 uses DefaultGroupSize.
func NewStore(groupSize int, logger *slog.Logger) *Store {
	if groupSize < 1 {
		groupSize = DefaultGroupSize
	}
	return &Store{
		groupSize:  groupSize,
		logger:     logger,
		sessions:   make(map[uuid.UUID]*sessionState),
		groups:     make(map[uuid.UUID]*groupState),
		solveGroup: make(map[uuid.UUID]uuid.UUID),
		listeners:  make(map[int]Listener),
	}
}

// AddListener registers l and returns a function removing it.
func (s *Store) AddListener(l Listener) (remove func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Events delivers mutations on a buffered channel until cancel is called.
// Sends block while the buffer is full, so the consumer must keep reading.
func (s *Store) Events(buffer int) (events <-chan Event, cancel func()) {
	ch := make(chan Event, buffer)
	done := make(chan struct{})
	remove := s.AddListener(func(ev Event) {
		select {
		case ch <- ev:
		case <-done:
		}
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			remove()
			close(done)
		})
	}
}

func (s *Store) notify(events ...Event) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()

	for _, ev := range events {
		s.logger.Debug("store mutation",
			"kind", ev.Kind.String(),
			"group_id", ev.GroupID,
			"version", ev.Version,
		)
		for _, l := range listeners {
			l(ev)
		}
	}
}

// CreateSession validates and adds a session.
func (s *Store) CreateSession(n NewSession) (Session, error) {
	if err := n.validate(); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	size := n.GroupSize
	if size == 0 {
		size = s.groupSize
	}

	info := Session{
		ID:         uuid.New(),
		Name:       n.Name,
		Type:       n.Type,
		Pinned:     n.Pinned,
		Event:      n.Event,
		PhaseCount: n.PhaseCount,
		Target:     n.Target,
		GroupSize:  size,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &sessionState{info: info}
	s.order = append(s.order, info.ID)
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", info.ID, "name", info.Name, "type", info.Type)
	return info, nil
}

// Sessions lists sessions, pinned first, then in creation order.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.sessions[id].info)
	}
	slices.SortStableFunc(result, func(a, b Session) int {
		switch {
		case a.Pinned && !b.Pinned:
			return -1
		case !a.Pinned && b.Pinned:
			return 1
		default:
			return 0
		}
	})
	return result
}

func (s *Store) Session(id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ss.info, nil
}

// FindSession resolves a session by id string or by name.
func (s *Store) FindSession(ref string) (Session, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.Session(id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.sessions[id].info.Name == ref {
			return s.sessions[id].info, nil
		}
	}
	return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
}

func (s *Store) RenameSession(id uuid.UUID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidSession)
	}
	return s.updateSession(id, func(info *Session) { info.Name = name })
}

func (s *Store) SetPinned(id uuid.UUID, pinned bool) error {
	return s.updateSession(id, func(info *Session) { info.Pinned = pinned })
}

func (s *Store) updateSession(id uuid.UUID, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	fn(&ss.info)
	return nil
}

// DeleteSession removes a session with all of its groups and solves.
func (s *Store) DeleteSession(id uuid.UUID) error {
	s.mu.Lock()
	ss, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	events := make([]Event, 0, len(ss.groups))
	for _, g := range ss.groups {
		s.dropGroupLocked(g)
		events = append(events, Event{Kind: SessionDeleted, SessionID: id, GroupID: g.id})
	}
	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(sid uuid.UUID) bool { return sid == id })
	s.mu.Unlock()

	s.logger.Info("session deleted", "session_id", id, "groups", len(events))
	s.notify(events...)
	return nil
}

// AddSolve appends sv to the session's newest group, starting a new group
// when there is none or the newest one is full. A nil solve ID is replaced
// with a fresh one.
func (s *Store) AddSolve(sessionID uuid.UUID, sv solve.Solve) (Snapshot, error) {
	if sv.Time < 0 {
		return Snapshot{}, ErrInvalidTime
	}
	if sv.ID == uuid.Nil {
		sv.ID = uuid.New()
	}
	if sv.RecordedAt.IsZero() {
		sv.RecordedAt = time.Now()
	}

	s.mu.Lock()
	ss, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if _, dup := s.solveGroup[sv.ID]; dup {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("solve %s already recorded", sv.ID)
	}

	var g *groupState
	if n := len(ss.groups); n > 0 && len(ss.groups[n-1].solves) < ss.info.GroupSize {
		g = ss.groups[n-1]
	} else {
		g = &groupState{id: uuid.New(), sessionID: sessionID}
		ss.groups = append(ss.groups, g)
		s.groups[g.id] = g
	}

	g.solves = append(g.solves, sv)
	s.clock++
	g.version = s.clock
	s.solveGroup[sv.ID] = g.id
	snap := s.snapshotLocked(g, ss.info.GroupSize)
	s.mu.Unlock()

	s.notify(Event{Kind: SolveAdded, SessionID: sessionID, GroupID: g.id, Version: snap.Version})
	return snap, nil
}

// DeleteSolve removes one solve. A group left empty is deleted with it.
func (s *Store) DeleteSolve(solveID uuid.UUID) error {
	s.mu.Lock()
	gid, ok := s.solveGroup[solveID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSolveNotFound, solveID)
	}
	g := s.groups[gid]
	g.solves = slices.DeleteFunc(g.solves, func(sv solve.Solve) bool { return sv.ID == solveID })
	delete(s.solveGroup, solveID)
	s.clock++
	g.version = s.clock

	ev := Event{Kind: SolveDeleted, SessionID: g.sessionID, GroupID: g.id, Version: g.version}
	if len(g.solves) == 0 {
		s.removeGroupLocked(g)
		ev = Event{Kind: GroupDeleted, SessionID: g.sessionID, GroupID: g.id}
	}
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// DeleteGroup removes a group and its solves. The session's newest group
// cannot be deleted while it is still filling; its solves can be deleted
// one at a time instead.
func (s *Store) DeleteGroup(groupID uuid.UUID) error {
	s.mu.Lock()
	g, ok := s.groups[groupID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	if s.inProgressLocked(g) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGroupInProgress, groupID)
	}
	s.removeGroupLocked(g)
	s.mu.Unlock()

	s.notify(Event{Kind: GroupDeleted, SessionID: g.sessionID, GroupID: g.id})
	return nil
}

// inProgressLocked reports whether g is its session's newest group and has
// not reached the session's group size.
func (s *Store) inProgressLocked(g *groupState) bool {
	ss, ok := s.sessions[g.sessionID]
	if !ok || len(ss.groups) == 0 {
		return false
	}
	return ss.groups[len(ss.groups)-1] == g && len(g.solves) < ss.info.GroupSize
}

func (s *Store) removeGroupLocked(g *groupState) {
	s.dropGroupLocked(g)
	if ss, ok := s.sessions[g.sessionID]; ok {
		ss.groups = slices.DeleteFunc(ss.groups, func(o *groupState) bool { return o == g })
	}
}

func (s *Store) dropGroupLocked(g *groupState) {
	for _, sv := range g.solves {
		delete(s.solveGroup, sv.ID)
	}
	delete(s.groups, g.id)
}

// Snapshot returns the group's solves together with their version.
func (s *Store) Snapshot(groupID uuid.UUID) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return s.snapshotLocked(g, s.sessions[g.sessionID].info.GroupSize), nil
}

// GroupVersion returns the group's version. It increases on every mutation.
func (s *Store) GroupVersion(groupID uuid.UUID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return g.version, nil
}

// Groups returns snapshots of a session's groups, oldest first.
func (s *Store) Groups(sessionID uuid.UUID) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	result := make([]Snapshot, 0, len(ss.groups))
	for _, g := range ss.groups {
		result = append(result, s.snapshotLocked(g, ss.info.GroupSize))
	}
	return result, nil
}

// FindSolve returns the solve with id and the group holding it.
func (s *Store) FindSolve(id uuid.UUID) (solve.Solve, uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gid, ok := s.solveGroup[id]
	if !ok {
		return solve.Solve{}, uuid.Nil, fmt.Errorf("%w: %s", ErrSolveNotFound, id)
	}
	for _, sv := range s.groups[gid].solves {
		if sv.ID == id {
			return sv, gid, nil
		}
	}
	return solve.Solve{}, uuid.Nil, fmt.Errorf("%w: %s", ErrSolveNotFound, id)
}

func (s *Store) snapshotLocked(g *groupState, target int) Snapshot {
	solves := make([]solve.Solve, len(g.solves))
	copy(solves, g.solves)
	return Snapshot{
		ID:         g.id,
		SessionID:  g.sessionID,
		Solves:     solves,
		Version:    g.version,
		TargetSize: target,
	}
}
