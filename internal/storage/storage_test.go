package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cubetime/internal/solve"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleData() *Data {
	recorded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(secs float64, p solve.Penalty) solve.Solve {
		sv := solve.New(solve.Seconds(secs), p)
		sv.Scramble = "R U R' U'"
		sv.RecordedAt = recorded
		return sv
	}

	return &Data{
		Version: currentVersion,
		Sessions: []SessionData{
			{
				ID:        uuid.New(),
				Name:      "3x3",
				Type:      "standard",
				Pinned:    true,
				Event:     "333",
				GroupSize: 5,
				CreatedAt: recorded,
				Groups: []GroupData{
					{ID: uuid.New(), Solves: []solve.Solve{
						mk(10.5, solve.None), mk(11, solve.PlusTwo), mk(9.99, solve.DNF),
						mk(12, solve.None), mk(13, solve.None),
					}},
					{ID: uuid.New(), Solves: []solve.Solve{mk(8.25, solve.None)}},
				},
			},
			{
				ID:        uuid.New(),
				Name:      "comp sim",
				Type:      "compsim",
				Target:    12 * time.Second,
				GroupSize: 5,
				CreatedAt: recorded,
				Groups:    []GroupData{},
			},
		},
	}
}

func assertSameData(t *testing.T, want, got *Data) {
	t.Helper()
	require.Len(t, got.Sessions, len(want.Sessions))
	for i, ws := range want.Sessions {
		gs := got.Sessions[i]
		assert.Equal(t, ws.ID, gs.ID)
		assert.Equal(t, ws.Name, gs.Name)
		assert.Equal(t, ws.Type, gs.Type)
		assert.Equal(t, ws.Pinned, gs.Pinned)
		assert.Equal(t, ws.Event, gs.Event)
		assert.Equal(t, ws.Target, gs.Target)
		assert.Equal(t, ws.GroupSize, gs.GroupSize)
		assert.True(t, ws.CreatedAt.Equal(gs.CreatedAt))

		require.Len(t, gs.Groups, len(ws.Groups))
		for j, wg := range ws.Groups {
			gg := gs.Groups[j]
			assert.Equal(t, wg.ID, gg.ID)
			require.Len(t, gg.Solves, len(wg.Solves))
			for k, wv := range wg.Solves {
				gv := gg.Solves[k]
				assert.Equal(t, wv.ID, gv.ID)
				assert.Equal(t, wv.Time, gv.Time)
				assert.Equal(t, wv.Penalty, gv.Penalty)
				assert.Equal(t, wv.Scramble, gv.Scramble)
				assert.True(t, wv.RecordedAt.Equal(gv.RecordedAt))
			}
		}
	}
}

func TestNewEmptyData(t *testing.T) {
	data := newEmptyData()

	assert.Equal(t, currentVersion, data.Version)
	assert.NotNil(t, data.Sessions)
	assert.Zero(t, data.SolveCount())
	assert.Equal(t, 6, sampleData().SolveCount())
}

func TestBackends_RoundTrip(t *testing.T) {
	backends := map[string]func(dir string) (Backend, error){
		"json": func(dir string) (Backend, error) { return NewJSONBackend(dir, testLogger()), nil },
		"sqlite": func(dir string) (Backend, error) {
			return NewSQLiteBackend(dir, testLogger())
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			b, err := open(dir)
			require.NoError(t, err)
			assert.Equal(t, name, b.Name())

			empty, err := b.Load()
			require.NoError(t, err)
			assert.Empty(t, empty.Sessions)

			want := sampleData()
			want.UpdatedAt = time.Now()
			require.NoError(t, b.Save(want))
			require.NoError(t, b.Close())

			b, err = open(dir)
			require.NoError(t, err)
			defer b.Close()

			got, err := b.Load()
			require.NoError(t, err)
			assertSameData(t, want, got)

			// A second save replaces rather than appends.
			want.Sessions = want.Sessions[:1]
			want.Sessions[0].Groups = want.Sessions[0].Groups[1:]
			require.NoError(t, b.Save(want))

			got, err = b.Load()
			require.NoError(t, err)
			assertSameData(t, want, got)
			assert.Equal(t, 1, got.SolveCount())
		})
	}
}

func TestJSONBackend_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte("{not json"), 0644))

	data, err := NewJSONBackend(dir, testLogger()).Load()
	require.NoError(t, err)
	assert.Empty(t, data.Sessions)
}

func TestJSONBackend_NewerVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte(`{"version": 99, "sessions": []}`), 0644))

	data, err := NewJSONBackend(dir, testLogger()).Load()
	require.NoError(t, err)
	assert.Equal(t, currentVersion, data.Version)
}

func TestJSONBackend_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	b := NewJSONBackend(dir, testLogger())

	require.NoError(t, b.Save(sampleData()))

	_, err := os.Stat(filepath.Join(dir, dataFileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	_, err = os.Stat(filepath.Join(dir, dataFileName))
	assert.NoError(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open("", t.TempDir(), time.Second, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "json", s.Backend().Name())

	s, err = Open("sqlite", t.TempDir(), time.Second, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Backend().Name())
	require.NoError(t, s.Stop())

	_, err = Open("csv", t.TempDir(), time.Second, testLogger())
	assert.ErrorContains(t, err, "unsupported persistence backend")
}

type staticSource struct {
	mu    sync.Mutex
	data  *Data
	calls int
}

func (s *staticSource) Export() *Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.data
}

func (s *staticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type failingBackend struct {
	*JSONBackend
}

func (failingBackend) Save(*Data) error {
	return errors.New("disk full")
}

func TestStorage_SaveWithoutSource(t *testing.T) {
	s := New(NewJSONBackend(t.TempDir(), testLogger()), time.Second, testLogger())
	assert.NoError(t, s.Save())
}

func TestStorage_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	want := sampleData()

	s := New(NewJSONBackend(dir, testLogger()), time.Second, testLogger())
	s.Attach(&staticSource{data: want})
	s.MarkDirty()
	require.True(t, s.IsDirty())

	require.NoError(t, s.Save())
	assert.False(t, s.IsDirty())
	assert.False(t, want.UpdatedAt.IsZero(), "save stamps the snapshot")

	got, err := New(NewJSONBackend(dir, testLogger()), time.Second, testLogger()).Load()
	require.NoError(t, err)
	assertSameData(t, want, got)
}

func TestStorage_SaveErrorKeepsDirty(t *testing.T) {
	s := New(failingBackend{NewJSONBackend(t.TempDir(), testLogger())}, time.Second, testLogger())
	s.Attach(&staticSource{data: sampleData()})
	s.MarkDirty()

	assert.ErrorContains(t, s.Save(), "disk full")
	assert.True(t, s.IsDirty())
}

func TestStorage_FlushLoop(t *testing.T) {
	dir := t.TempDir()
	src := &staticSource{data: sampleData()}

	s := New(NewJSONBackend(dir, testLogger()), 20*time.Millisecond, testLogger())
	s.Attach(src)
	s.Start(context.Background())

	// Clean data is not written.
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, src.Calls())

	s.MarkDirty()
	assert.Eventually(t, func() bool { return !s.IsDirty() }, time.Second, 10*time.Millisecond)
	assert.FileExists(t, filepath.Join(dir, dataFileName))

	require.NoError(t, s.Stop())
}

func TestStorage_StopSavesFinalState(t *testing.T) {
	dir := t.TempDir()
	src := &staticSource{data: sampleData()}

	s := New(NewJSONBackend(dir, testLogger()), time.Hour, testLogger())
	s.Attach(src)
	s.Start(context.Background())
	s.MarkDirty()

	require.NoError(t, s.Stop())
	assert.Equal(t, 1, src.Calls())
	assert.FileExists(t, filepath.Join(dir, dataFileName))
}
