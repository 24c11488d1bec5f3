package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

// GroupAverage pairs a group with its calculated average.
type GroupAverage struct {
	GroupID uuid.UUID                  `json:"group_id"`
	Version uint64                     `json:"version"`
	Average *average.CalculatedAverage `json:"average"`
}

// Summary is the statistics panel of a session.
type Summary struct {
	SessionID uuid.UUID `json:"session_id"`
	Solves    int       `json:"solves"`
	DNFs      int       `json:"dnfs"`
	Groups    int       `json:"groups"`
	Completed int       `json:"completed_groups"`

	BestSingle *time.Duration `json:"best_single,omitempty"`
	// Mean is taken over finished solves only.
	Mean *time.Duration `json:"mean,omitempty"`

	Best   *GroupAverage `json:"best_average,omitempty"`
	Latest *GroupAverage `json:"latest_average,omitempty"`

	// Target and TargetHits are set for compsim sessions: completed groups
	// whose average is at or under the target.
	Target     time.Duration `json:"target,omitempty"`
	TargetHits int           `json:"target_hits"`
}

// GroupAverages returns every group of the session with its average,
// oldest first. Groups deleted while listing are skipped.
func (a *Aggregator) GroupAverages(ctx context.Context, sessionID uuid.UUID) ([]GroupAverage, error) {
	groups, err := a.source.Groups(sessionID)
	if err != nil {
		return nil, err
	}

	result := make([]GroupAverage, 0, len(groups))
	for _, g := range groups {
		avg, err := a.GetAverage(ctx, g.ID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, GroupAverage{GroupID: g.ID, Version: g.Version, Average: avg})
	}
	return result, nil
}

// SessionSummary computes the statistics of a session.
func (a *Aggregator) SessionSummary(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	sess, err := a.source.Session(sessionID)
	if err != nil {
		return nil, err
	}
	groups, err := a.source.Groups(sessionID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{SessionID: sessionID, Groups: len(groups)}
	if sess.Type == session.CompSim {
		sum.Target = sess.Target
	}

	var finished []solve.Solve
	for _, g := range groups {
		sum.Solves += len(g.Solves)
		for _, sv := range g.Solves {
			if sv.Penalty == solve.DNF {
				sum.DNFs++
				continue
			}
			finished = append(finished, sv)
		}
	}

	if best, ok := a.calc.Best(finished); ok {
		sum.BestSingle = &best.Time
	}
	if len(finished) > 0 {
		mean, _, err := a.calc.Mean(finished)
		if err != nil {
			return nil, err
		}
		sum.Mean = mean
	}

	for _, g := range groups {
		if !g.Full() {
			continue
		}
		avg, err := a.GetAverage(ctx, g.ID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				continue
			}
			return nil, err
		}
		if avg.Average == nil && !avg.IsDNF() {
			// Full groups under the competition minimum have no average.
			continue
		}

		sum.Completed++
		ga := &GroupAverage{GroupID: g.ID, Version: g.Version, Average: avg}
		sum.Latest = ga

		if avg.Average == nil {
			continue
		}
		if sum.Best == nil || *avg.Average < *sum.Best.Average.Average {
			sum.Best = ga
		}
		if sum.Target > 0 && *avg.Average <= sum.Target {
			sum.TargetHits++
		}
	}

	return sum, nil
}
