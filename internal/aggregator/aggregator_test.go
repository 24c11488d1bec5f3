package aggregator

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup(t *testing.T) (*session.Store, *Aggregator, session.Session) {
	t.Helper()
	st := session.NewStore(5, testLogger())
	agg := New(st, average.DefaultCalculator(), testLogger())
	st.AddListener(agg.HandleEvent)

	sess, err := st.CreateSession(session.NewSession{Name: "3x3", Type: session.Standard})
	require.NoError(t, err)
	return st, agg, sess
}

func add(t *testing.T, st *session.Store, sessionID uuid.UUID, penalty solve.Penalty, secs float64) session.Snapshot {
	t.Helper()
	snap, err := st.AddSolve(sessionID, solve.New(solve.Seconds(secs), penalty))
	require.NoError(t, err)
	return snap
}

func fill(t *testing.T, st *session.Store, sessionID uuid.UUID, secs ...float64) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	for _, s := range secs {
		snap = add(t, st, sessionID, solve.None, s)
	}
	return snap
}

func TestGetAverage_FullGroup(t *testing.T) {
	st, agg, sess := setup(t)
	add(t, st, sess.ID, solve.None, 12.01)
	add(t, st, sess.ID, solve.None, 11.50)
	add(t, st, sess.ID, solve.None, 13.20)
	add(t, st, sess.ID, solve.PlusTwo, 10.98)
	snap := add(t, st, sess.ID, solve.None, 12.75)

	avg, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	require.NotNil(t, avg.Average)
	assert.Equal(t, solve.Seconds(12.58), *avg.Average)
	assert.Equal(t, "ao5", avg.Label)
	assert.Equal(t, solve.None, avg.TotalPenalty)
}

func TestGetAverage_InProgressGroupIsCurrent(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10, 11, 12)

	avg, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	assert.Equal(t, average.CurrentLabel, avg.Label)
	assert.Nil(t, avg.Average)
	assert.Len(t, avg.Considered, 3)
	assert.Empty(t, avg.Trimmed)
}

func TestGetAverage_Idempotent(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10, 11, 12, 13, 14)

	first, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	second, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.Computations)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestGetAverage_InvalidatedByAppend(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10, 11, 12, 13)

	before, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, before.Considered, 4)

	fill(t, st, sess.ID, 14)

	after, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, after.Considered, 5)
	require.NotNil(t, after.Average)
	assert.Equal(t, 12*time.Second, *after.Average)
	assert.Equal(t, int64(2), agg.Stats().Computations)
}

func TestGetAverage_InvalidatedByDelete(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10, 11, 12, 13, 14)

	_, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	require.NoError(t, st.DeleteSolve(snap.Solves[4].ID))

	avg, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.True(t, avg.IsCurrent())
	assert.Len(t, avg.Considered, 4)
}

func TestGetAverage_StaleWithoutEvent(t *testing.T) {
	// Without the listener the version check alone keeps reads fresh.
	st := session.NewStore(5, testLogger())
	agg := New(st, average.DefaultCalculator(), testLogger())
	sess, err := st.CreateSession(session.NewSession{Name: "a", Type: session.Standard})
	require.NoError(t, err)

	snap := fill(t, st, sess.ID, 10, 11, 12, 13)
	_, err = agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	fill(t, st, sess.ID, 14)
	avg, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, avg.Considered, 5)
}

func TestGetAverage_DeletedGroup(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10, 11, 12, 13, 14)

	_, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	require.NoError(t, st.DeleteGroup(snap.ID))
	_, _, cached := agg.Cached(snap.ID)
	assert.False(t, cached)

	_, err = agg.GetAverage(context.Background(), snap.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	var notFound *GroupNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, snap.ID, notFound.GroupID)
}

func TestGetAverage_DNFRules(t *testing.T) {
	st, agg, sess := setup(t)

	add(t, st, sess.ID, solve.DNF, 10)
	snap := fill(t, st, sess.ID, 11, 12, 13, 14)
	avg, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	require.NotNil(t, avg.Average)
	assert.Equal(t, 13*time.Second, *avg.Average)

	add(t, st, sess.ID, solve.DNF, 10)
	add(t, st, sess.ID, solve.DNF, 10)
	snap = fill(t, st, sess.ID, 12, 13, 14)
	avg, err = agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Nil(t, avg.Average)
	assert.Equal(t, solve.DNF, avg.TotalPenalty)
}

func TestGetAverage_SingleComputationInFlight(t *testing.T) {
	reader := &session.MockReader{}
	gid := uuid.New()
	release := make(chan time.Time)

	snap := session.Snapshot{ID: gid, Version: 7, TargetSize: 5}
	for i := 0; i < 5; i++ {
		snap.Solves = append(snap.Solves, solve.New(time.Duration(10+i)*time.Second, solve.None))
	}

	reader.On("GroupVersion", gid).Return(uint64(7), nil)
	reader.On("Snapshot", gid).WaitUntil(release).Return(snap, nil)

	agg := New(reader, average.DefaultCalculator(), testLogger())

	const callers = 8
	results := make([]*average.CalculatedAverage, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			avg, err := agg.GetAverage(context.Background(), gid)
			assert.NoError(t, err)
			results[i] = avg
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	reader.AssertNumberOfCalls(t, "Snapshot", 1)
	assert.Equal(t, int64(1), agg.Stats().Computations)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestLoad_ReusesEntryCachedAfterMiss(t *testing.T) {
	reader := &session.MockReader{}
	gid := uuid.New()

	snap := session.Snapshot{ID: gid, Version: 7, TargetSize: 5}
	for i := 0; i < 5; i++ {
		snap.Solves = append(snap.Solves, solve.New(time.Duration(10+i)*time.Second, solve.None))
	}
	reader.On("GroupVersion", gid).Return(uint64(7), nil)
	reader.On("Snapshot", gid).Return(snap, nil).Once()

	agg := New(reader, average.DefaultCalculator(), testLogger())
	first, err := agg.GetAverage(context.Background(), gid)
	require.NoError(t, err)

	// A caller that missed before the first flight committed starts its own
	// flight for the same version; it must not compute again.
	again, err := agg.load(gid, 7)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int64(1), agg.Stats().Computations)
	reader.AssertNumberOfCalls(t, "Snapshot", 1)
}

func TestGetAverage_DeletedDuringComputation(t *testing.T) {
	reader := &session.MockReader{}
	gid := uuid.New()

	snap := session.Snapshot{ID: gid, Version: 3, TargetSize: 5}
	for i := 0; i < 5; i++ {
		snap.Solves = append(snap.Solves, solve.New(time.Duration(10+i)*time.Second, solve.None))
	}

	reader.On("GroupVersion", gid).Return(uint64(3), nil).Once()
	reader.On("Snapshot", gid).Return(snap, nil).Once()
	reader.On("GroupVersion", gid).Return(uint64(0), session.ErrGroupNotFound)

	agg := New(reader, average.DefaultCalculator(), testLogger())

	_, err := agg.GetAverage(context.Background(), gid)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, _, cached := agg.Cached(gid)
	assert.False(t, cached)
	assert.Equal(t, int64(1), agg.Stats().Discarded)
	reader.AssertExpectations(t)
}

func TestGetAverage_ChangedDuringComputationNotCached(t *testing.T) {
	reader := &session.MockReader{}
	gid := uuid.New()

	snap := session.Snapshot{ID: gid, Version: 3, TargetSize: 5}
	for i := 0; i < 5; i++ {
		snap.Solves = append(snap.Solves, solve.New(time.Duration(10+i)*time.Second, solve.None))
	}

	reader.On("GroupVersion", gid).Return(uint64(3), nil).Once()
	reader.On("Snapshot", gid).Return(snap, nil).Once()
	reader.On("GroupVersion", gid).Return(uint64(4), nil).Once()

	agg := New(reader, average.DefaultCalculator(), testLogger())

	avg, err := agg.GetAverage(context.Background(), gid)
	require.NoError(t, err)
	assert.NotNil(t, avg.Average)

	_, _, cached := agg.Cached(gid)
	assert.False(t, cached)
	reader.AssertExpectations(t)
}

func TestGetAverage_EmptyGroupError(t *testing.T) {
	reader := &session.MockReader{}
	gid := uuid.New()

	reader.On("GroupVersion", gid).Return(uint64(1), nil)
	reader.On("Snapshot", gid).Return(session.Snapshot{ID: gid, Version: 1, TargetSize: 5}, nil)

	agg := New(reader, average.DefaultCalculator(), testLogger())

	_, err := agg.GetAverage(context.Background(), gid)
	assert.ErrorIs(t, err, average.ErrEmptyGroup)
}

func TestGetAverage_ContextCancelled(t *testing.T) {
	reader := &session.MockReader{}
	gid := uuid.New()
	release := make(chan time.Time)
	defer close(release)

	reader.On("GroupVersion", gid).Return(uint64(1), nil)
	reader.On("Snapshot", gid).WaitUntil(release).Return(session.Snapshot{}, session.ErrGroupNotFound)

	agg := New(reader, average.DefaultCalculator(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := agg.GetAverage(ctx, gid)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetAverage_UnknownGroup(t *testing.T) {
	_, agg, _ := setup(t)

	_, err := agg.GetAverage(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestHandleEvent_KeepsNewerEntries(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10, 11, 12, 13, 14)

	_, err := agg.GetAverage(context.Background(), snap.ID)
	require.NoError(t, err)

	agg.HandleEvent(session.Event{Kind: session.SolveAdded, GroupID: snap.ID, Version: snap.Version - 1})
	_, _, cached := agg.Cached(snap.ID)
	assert.True(t, cached)

	agg.HandleEvent(session.Event{Kind: session.SolveAdded, GroupID: snap.ID, Version: snap.Version + 1})
	_, _, cached = agg.Cached(snap.ID)
	assert.False(t, cached)
}

func TestGetAverage_ConcurrentWithMutations(t *testing.T) {
	st, agg, sess := setup(t)
	snap := fill(t, st, sess.ID, 10)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 4; i++ {
			_, err := st.AddSolve(sess.ID, solve.New(time.Duration(11+i)*time.Second, solve.None))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := agg.GetAverage(ctx, snap.ID)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	// Read-after-write: the final read sees every append.
	avg, err := agg.GetAverage(ctx, snap.ID)
	require.NoError(t, err)
	assert.Len(t, avg.Considered, 5)
	assert.NotNil(t, avg.Average)
}
