package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

func TestSessionSummary(t *testing.T) {
	st, agg, sess := setup(t)

	fill(t, st, sess.ID, 10, 11, 12, 13, 14) // ao5 12.00
	fill(t, st, sess.ID, 9, 10, 11, 12, 13)  // ao5 11.00
	add(t, st, sess.ID, solve.DNF, 8)
	fill(t, st, sess.ID, 15)

	sum, err := agg.SessionSummary(context.Background(), sess.ID)
	require.NoError(t, err)

	assert.Equal(t, 12, sum.Solves)
	assert.Equal(t, 1, sum.DNFs)
	assert.Equal(t, 3, sum.Groups)
	assert.Equal(t, 2, sum.Completed)
	require.NotNil(t, sum.BestSingle)
	assert.Equal(t, 9*time.Second, *sum.BestSingle)
	require.NotNil(t, sum.Mean)
	assert.Equal(t, 130*time.Second/11, *sum.Mean)
	require.NotNil(t, sum.Best)
	assert.Equal(t, 11*time.Second, *sum.Best.Average.Average)
	require.NotNil(t, sum.Latest)
	assert.Equal(t, sum.Best.GroupID, sum.Latest.GroupID)
	assert.Zero(t, sum.TargetHits)
}

func TestSessionSummary_CompSimTargets(t *testing.T) {
	st := session.NewStore(5, testLogger())
	agg := New(st, average.DefaultCalculator(), testLogger())
	sess, err := st.CreateSession(session.NewSession{Name: "comp", Type: session.CompSim, Target: 12 * time.Second})
	require.NoError(t, err)

	fill(t, st, sess.ID, 10, 11, 12, 13, 14) // 12.00, hit
	fill(t, st, sess.ID, 12, 13, 14, 15, 16) // 14.00, miss
	fill(t, st, sess.ID, 9, 10, 11, 12, 13)  // 11.00, hit

	sum, err := agg.SessionSummary(context.Background(), sess.ID)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, sum.Target)
	assert.Equal(t, 2, sum.TargetHits)
	assert.Equal(t, 3, sum.Completed)
}

func TestSessionSummary_Empty(t *testing.T) {
	_, agg, sess := setup(t)

	sum, err := agg.SessionSummary(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.Solves)
	assert.Nil(t, sum.BestSingle)
	assert.Nil(t, sum.Mean)
	assert.Nil(t, sum.Best)

	_, err = agg.SessionSummary(context.Background(), uuid.New())
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestGroupAverages(t *testing.T) {
	st, agg, sess := setup(t)
	fill(t, st, sess.ID, 10, 11, 12, 13, 14, 15, 16)

	list, err := agg.GroupAverages(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ao5", list[0].Average.Label)
	assert.Equal(t, average.CurrentLabel, list[1].Average.Label)
}
