// Package average computes competition trimmed means ("average of N") over
// ordered solve sequences.
package average

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/solve"
)

// ErrEmptyGroup is returned when an average is requested over zero solves.
// It indicates a caller bug, not a user error.
var ErrEmptyGroup = errors.New("average: empty solve group")

// CurrentLabel labels the provisional snapshot of an unfilled group.
const CurrentLabel = "Current Average"

// MinCompetitionSolves is the smallest group that is trimmed and averaged.
const MinCompetitionSolves = 5

// CalculatedAverage is one immutable snapshot of an average over a group.
// A changed group gets a new value; this one is never patched.
type CalculatedAverage struct {
	Label string `json:"label"`
	// Average is nil when the result is DNF or too few solves were given.
	Average *time.Duration `json:"average,omitempty"`
	// Considered holds every input solve in input order.
	Considered []solve.Solve `json:"considered_solves"`
	// Trimmed holds the solves excluded from the mean, in input order.
	Trimmed      []solve.Solve `json:"trimmed_solves"`
	TotalPenalty solve.Penalty `json:"total_penalty"`
}

// IsTrimmed reports whether the solve with id was excluded from the mean.
func (c *CalculatedAverage) IsTrimmed(id uuid.UUID) bool {
	for _, s := range c.Trimmed {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Counted returns the solves that contributed to the mean, in input order.
func (c *CalculatedAverage) Counted() []solve.Solve {
	counted := make([]solve.Solve, 0, len(c.Considered))
	for _, s := range c.Considered {
		if !c.IsTrimmed(s.ID) {
			counted = append(counted, s)
		}
	}
	return counted
}

// IsDNF reports whether the average itself is a DNF.
func (c *CalculatedAverage) IsDNF() bool {
	return c.TotalPenalty == solve.DNF
}

// IsCurrent reports whether this is an unaveraged in-progress snapshot.
func (c *CalculatedAverage) IsCurrent() bool {
	return c.Average == nil && !c.IsDNF()
}

// String renders the average value for display.
func (c *CalculatedAverage) String() string {
	return solve.FormatResult(c.Average, c.IsDNF())
}

// Current builds the "Current Average" snapshot of an unfilled group: the raw
// solves with no average and nothing trimmed.
func Current(solves []solve.Solve) *CalculatedAverage {
	return &CalculatedAverage{
		Label:        CurrentLabel,
		Considered:   cloneSolves(solves),
		Trimmed:      []solve.Solve{},
		TotalPenalty: solve.None,
	}
}

func cloneSolves(solves []solve.Solve) []solve.Solve {
	out := make([]solve.Solve, len(solves))
	copy(out, solves)
	return out
}
