// Package solve models a single timed attempt and the penalty rules that
// turn its recorded time into a scored time.
package solve

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPlusTwo is the time added by a +2 penalty.
const DefaultPlusTwo = 2 * time.Second

// Solve is a recorded attempt. Values are never modified after recording;
// two solves with the same time and penalty are still distinct by ID.
type Solve struct {
	ID         uuid.UUID     `json:"id"`
	Time       time.Duration `json:"time"`
	Penalty    Penalty       `json:"penalty"`
	Scramble   string        `json:"scramble,omitempty"`
	Comment    string        `json:"comment,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// New creates a solve with a fresh identity.
func New(t time.Duration, p Penalty) Solve {
	return Solve{
		ID:         uuid.New(),
		Time:       t,
		Penalty:    p,
		RecordedAt: time.Now(),
	}
}

// Result is the scored time of a solve. A DNF result has no time.
type Result struct {
	Time time.Duration
	DNF  bool
}

// Less orders results ascending with DNF after every finished time.
func (r Result) Less(o Result) bool {
	if r.DNF {
		return false
	}
	if o.DNF {
		return true
	}
	return r.Time < o.Time
}

// EffectiveTime applies the solve's penalty. plusTwo is the +2 increment;
// zero means DefaultPlusTwo.
func EffectiveTime(s Solve, plusTwo time.Duration) Result {
	if plusTwo <= 0 {
		plusTwo = DefaultPlusTwo
	}
	switch s.Penalty {
	case PlusTwo:
		return Result{Time: s.Time + plusTwo}
	case DNF:
		return Result{DNF: true}
	default:
		return Result{Time: s.Time}
	}
}

// Seconds builds a duration from fractional seconds, rounded to the nearest millisecond.
func Seconds(secs float64) time.Duration {
	return time.Duration(secs*1000+0.5) * time.Millisecond
}
