// Package session is the solve record store: sessions, their ordered solve
// groups, and the solves in each group.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/solve"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrGroupNotFound   = errors.New("solve group not found")
	ErrSolveNotFound   = errors.New("solve not found")
	ErrInvalidTime     = errors.New("solve time must be non-negative")
	ErrInvalidSession  = errors.New("invalid session")
	ErrGroupInProgress = errors.New("solve group still in progress")
)

// Type is the kind of session.
type Type string

const (
	Standard   Type = "standard"
	Multiphase Type = "multiphase"
	Playground Type = "playground"
	CompSim    Type = "compsim"
)

const (
	MinPhases = 2
	MaxPhases = 8
)

// ParseType validates a session type name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Standard, Multiphase, Playground, CompSim:
		return t, nil
	default:
		return "", fmt.Errorf("unknown session type %q (valid: standard, multiphase, playground, compsim)", s)
	}
}

// Session describes a timing session.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	Type       Type          `json:"type"`
	Pinned     bool          `json:"pinned"`
	Event      string        `json:"event,omitempty"`
	PhaseCount int           `json:"phase_count,omitempty"`
	Target     time.Duration `json:"target,omitempty"`
	GroupSize  int           `json:"group_size"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewSession holds the parameters of a session to create.
type NewSession struct {
	Name       string
	Type       Type
	Pinned     bool
	Event      string
	PhaseCount int
	Target     time.Duration
	// GroupSize of zero uses the store default.
	GroupSize int
}

func (n NewSession) validate() error {
	var errs []error
	if n.Name == "" {
		errs = append(errs, errors.New("name cannot be empty"))
	}
	if _, err := ParseType(string(n.Type)); err != nil {
		errs = append(errs, err)
	}
	if n.Type == Multiphase && (n.PhaseCount < MinPhases || n.PhaseCount > MaxPhases) {
		errs = append(errs, fmt.Errorf("phase count must be between %d and %d, got %d", MinPhases, MaxPhases, n.PhaseCount))
	}
	if n.Type == CompSim && n.Target <= 0 {
		errs = append(errs, errors.New("compsim sessions need a positive target time"))
	}
	if n.GroupSize < 0 {
		errs = append(errs, fmt.Errorf("group size must be positive, got %d", n.GroupSize))
	}
	return errors.Join(errs...)
}

// Snapshot is a consistent copy of one solve group: the solves and the
// version they belong to are read under the same lock.
type Snapshot struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  uuid.UUID     `json:"session_id"`
	Solves     []solve.Solve `json:"solves"`
	Version    uint64        `json:"version"`
	TargetSize int           `json:"target_size"`
}

// Full reports whether the group has reached its target size.
func (s Snapshot) Full() bool {
	return len(s.Solves) >= s.TargetSize
}

// EventKind identifies a store mutation.
type EventKind int

const (
	SolveAdded EventKind = iota
	SolveDeleted
	GroupDeleted
	SessionDeleted
)

func (k EventKind) String() string {
	switch k {
	case SolveAdded:
		return "solve_added"
	case SolveDeleted:
		return "solve_deleted"
	case GroupDeleted:
		return "group_deleted"
	case SessionDeleted:
		return "session_deleted"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is sent to listeners after a mutation has been applied. Version is
// the group version after the mutation; zero for deletions.
type Event struct {
	Kind      EventKind
	SessionID uuid.UUID
	GroupID   uuid.UUID
	Version   uint64
}

// Listener observes store mutations. It is called outside the store lock.
type Listener func(Event)

// Reader is the read side of the store used by averaging.
type Reader interface {
	Snapshot(groupID uuid.UUID) (Snapshot, error)
	GroupVersion(groupID uuid.UUID) (uint64, error)
	Groups(sessionID uuid.UUID) ([]Snapshot, error)
	Session(id uuid.UUID) (Session, error)
}
