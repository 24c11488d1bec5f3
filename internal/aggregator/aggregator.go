// Package aggregator caches calculated averages per solve group, keyed by
// group identity and version.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
)

type entry struct {
	version uint64
	avg     *average.CalculatedAverage
}

// Stats counts cache activity.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Computations int64 `json:"computations"`
	Discarded    int64 `json:"discarded"`
	Entries      int   `json:"entries"`
}

// Aggregator computes averages lazily and caches them until the group's
// version moves. It only reads from the store.
type Aggregator struct {
	source session.Reader
	calc   *average.Calculator
	logger *slog.Logger

	mu    sync.Mutex
	cache map[uuid.UUID]entry

	flights singleflight.Group

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
	discarded    atomic.Int64
}

// New creates an aggregator over source.
func New(source session.Reader, calc *average.Calculator, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		calc:   calc,
		logger: logger,
		cache:  make(map[uuid.UUID]entry),
	}
}

// GetAverage returns the group's average for its current version. A group
// below its target size yields the "Current Average" snapshot. Concurrent
// callers for the same version share one computation.
func (a *Aggregator) GetAverage(ctx context.Context, groupID uuid.UUID) (*average.CalculatedAverage, error) {
	version, err := a.source.GroupVersion(groupID)
	if err != nil {
		if errors.Is(err, session.ErrGroupNotFound) {
			a.Forget(groupID)
			return nil, &GroupNotFoundError{GroupID: groupID}
		}
		return nil, err
	}

	a.mu.Lock()
	e, ok := a.cache[groupID]
	a.mu.Unlock()
	if ok && e.version >= version {
		a.hits.Add(1)
		return e.avg, nil
	}
	a.misses.Add(1)

	// The key carries the version observed above, so a caller arriving
	// after a mutation never joins a flight started on older data.
	key := groupID.String() + "@" + strconv.FormatUint(version, 10)
	ch := a.flights.DoChan(key, func() (any, error) {
		return a.load(groupID, version)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*average.CalculatedAverage), nil
	}
}

// load serves the cache when a flight that finished after the caller's miss
// already stored version, and computes otherwise.
func (a *Aggregator) load(groupID uuid.UUID, version uint64) (*average.CalculatedAverage, error) {
	a.mu.Lock()
	e, ok := a.cache[groupID]
	a.mu.Unlock()
	if ok && e.version >= version {
		return e.avg, nil
	}
	return a.compute(groupID)
}

func (a *Aggregator) compute(groupID uuid.UUID) (*average.CalculatedAverage, error) {
	snap, err := a.source.Snapshot(groupID)
	if err != nil {
		if errors.Is(err, session.ErrGroupNotFound) {
			return nil, &GroupNotFoundError{GroupID: groupID}
		}
		return nil, err
	}

	a.computations.Add(1)

	var avg *average.CalculatedAverage
	if snap.Full() {
		avg, err = a.calc.ComputeLabeled(average.Label(snap.TargetSize), snap.Solves)
	} else if len(snap.Solves) > 0 {
		avg = average.Current(snap.Solves)
	} else {
		err = average.ErrEmptyGroup
	}
	if err != nil {
		a.logger.Error("average computation failed",
			"group_id", groupID,
			"version", snap.Version,
			"error", err,
		)
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}

	if err := a.commit(snap, avg); err != nil {
		if errors.Is(err, ErrStaleComputation) {
			return nil, &GroupNotFoundError{GroupID: groupID}
		}
		return nil, err
	}
	return avg, nil
}

// commit stores avg unless the group was deleted meanwhile or a newer
// version is already cached. The existence check runs under the cache lock
// so a concurrent Forget cannot be undone by a late write.
func (a *Aggregator) commit(snap session.Snapshot, avg *average.CalculatedAverage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.source.GroupVersion(snap.ID)
	if err != nil {
		if errors.Is(err, session.ErrGroupNotFound) {
			a.discarded.Add(1)
			delete(a.cache, snap.ID)
			a.logger.Debug(ErrStaleComputation.Error(), "group_id", snap.ID, "version", snap.Version)
			return ErrStaleComputation
		}
		return err
	}

	if current != snap.Version {
		// Still a valid answer for the caller; a newer call will recompute.
		a.logger.Debug("group changed during computation, not caching",
			"group_id", snap.ID,
			"computed_version", snap.Version,
			"current_version", current,
		)
		return nil
	}

	if e, ok := a.cache[snap.ID]; ok && e.version > snap.Version {
		return nil
	}
	a.cache[snap.ID] = entry{version: snap.Version, avg: avg}
	return nil
}

// HandleEvent applies a store mutation to the cache: deletions drop the
// entry, other mutations invalidate entries older than the event.
func (a *Aggregator) HandleEvent(ev session.Event) {
	switch ev.Kind {
	case session.GroupDeleted, session.SessionDeleted:
		a.Forget(ev.GroupID)
	default:
		a.mu.Lock()
		if e, ok := a.cache[ev.GroupID]; ok && e.version < ev.Version {
			delete(a.cache, ev.GroupID)
		}
		a.mu.Unlock()
	}
}

// Forget removes the group's cache entry.
func (a *Aggregator) Forget(groupID uuid.UUID) {
	a.mu.Lock()
	delete(a.cache, groupID)
	a.mu.Unlock()
}

// Cached returns the cached average without computing.
func (a *Aggregator) Cached(groupID uuid.UUID) (*average.CalculatedAverage, uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.cache[groupID]
	return e.avg, e.version, ok
}

// Calculator returns the calculator used for averages.
func (a *Aggregator) Calculator() *average.Calculator {
	return a.calc
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	entries := len(a.cache)
	a.mu.Unlock()

	return Stats{
		Hits:         a.hits.Load(),
		Misses:       a.misses.Load(),
		Computations: a.computations.Load(),
		Discarded:    a.discarded.Load(),
		Entries:      entries,
	}
}
