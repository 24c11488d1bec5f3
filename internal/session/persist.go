package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/solve"
	"github.com/haskel/cubetime/internal/storage"
)

var _ storage.Source = (*Store)(nil)

// Export copies the store into a persistable snapshot.
func (s *Store) Export() *storage.Data {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := &storage.Data{Sessions: make([]storage.SessionData, 0, len(s.order))}
	for _, id := range s.order {
		ss := s.sessions[id]
		sd := storage.SessionData{
			ID:         ss.info.ID,
			Name:       ss.info.Name,
			Type:       string(ss.info.Type),
			Pinned:     ss.info.Pinned,
			Event:      ss.info.Event,
			PhaseCount: ss.info.PhaseCount,
			Target:     ss.info.Target,
			GroupSize:  ss.info.GroupSize,
			CreatedAt:  ss.info.CreatedAt,
			Groups:     make([]storage.GroupData, 0, len(ss.groups)),
		}
		for _, g := range ss.groups {
			solves := make([]solve.Solve, len(g.solves))
			copy(solves, g.solves)
			sd.Groups = append(sd.Groups, storage.GroupData{ID: g.id, Solves: solves})
		}
		data.Sessions = append(data.Sessions, sd)
	}
	return data
}

// Import replaces the store contents with data. Imported groups get fresh
// versions, so nothing cached before the import is mistaken for current.
func (s *Store) Import(data *storage.Data) error {
	sessions := make(map[uuid.UUID]*sessionState, len(data.Sessions))
	order := make([]uuid.UUID, 0, len(data.Sessions))
	groups := make(map[uuid.UUID]*groupState)
	solveGroup := make(map[uuid.UUID]uuid.UUID)

	s.mu.Lock()
	defer s.mu.Unlock()
	clock := s.clock

	for _, sd := range data.Sessions {
		typ, err := ParseType(sd.Type)
		if err != nil {
			return fmt.Errorf("session %s: %w", sd.ID, err)
		}
		if _, dup := sessions[sd.ID]; dup {
			return fmt.Errorf("duplicate session %s", sd.ID)
		}
		size := sd.GroupSize
		if size < 1 {
			size = s.groupSize
		}

		ss := &sessionState{info: Session{
			ID:         sd.ID,
			Name:       sd.Name,
			Type:       typ,
			Pinned:     sd.Pinned,
			Event:      sd.Event,
			PhaseCount: sd.PhaseCount,
			Target:     sd.Target,
			GroupSize:  size,
			CreatedAt:  sd.CreatedAt,
		}}
		for _, gd := range sd.Groups {
			if len(gd.Solves) == 0 {
				continue
			}
			if _, dup := groups[gd.ID]; dup {
				return fmt.Errorf("duplicate group %s", gd.ID)
			}
			clock++
			g := &groupState{id: gd.ID, sessionID: sd.ID, version: clock}
			g.solves = make([]solve.Solve, len(gd.Solves))
			copy(g.solves, gd.Solves)
			for _, sv := range g.solves {
				if _, dup := solveGroup[sv.ID]; dup {
					return fmt.Errorf("duplicate solve %s", sv.ID)
				}
				solveGroup[sv.ID] = g.id
			}
			groups[g.id] = g
			ss.groups = append(ss.groups, g)
		}
		sessions[sd.ID] = ss
		order = append(order, sd.ID)
	}

	s.sessions = sessions
	s.order = order
	s.groups = groups
	s.solveGroup = solveGroup
	s.clock = clock

	return nil
}
