package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/solve"
)

// Data represents the persisted data structure.
type Data struct {
	Version   int           `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	Sessions  []SessionData `json:"sessions"`
}

// SessionData is a persisted session with its solve groups in order.
type SessionData struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Pinned     bool          `json:"pinned,omitempty"`
	Event      string        `json:"event,omitempty"`
	PhaseCount int           `json:"phase_count,omitempty"`
	Target     time.Duration `json:"target,omitempty"`
	GroupSize  int           `json:"group_size"`
	CreatedAt  time.Time     `json:"created_at"`
	Groups     []GroupData   `json:"groups"`
}

// GroupData is a persisted solve group; solves are in recording order.
type GroupData struct {
	ID     uuid.UUID     `json:"id"`
	Solves []solve.Solve `json:"solves"`
}

const currentVersion = 1

func newEmptyData() *Data {
	return &Data{
		Version:   currentVersion,
		UpdatedAt: time.Now(),
		Sessions:  []SessionData{},
	}
}

// SolveCount returns the total number of solves across all sessions.
func (d *Data) SolveCount() int {
	n := 0
	for _, s := range d.Sessions {
		for _, g := range s.Groups {
			n += len(g.Solves)
		}
	}
	return n
}
