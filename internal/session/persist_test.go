package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cubetime/internal/storage"
)

func TestExportImport(t *testing.T) {
	st, sess := newTestStore(t)
	_, err := st.CreateSession(NewSession{Name: "comp", Type: CompSim, Target: 11 * time.Second, Pinned: true})
	require.NoError(t, err)
	snaps := addSolves(t, st, sess.ID, 10, 11, 12, 13, 14, 15)

	data := st.Export()
	require.Len(t, data.Sessions, 2)
	assert.Equal(t, 6, data.SolveCount())

	restored := NewStore(5, testLogger())
	require.NoError(t, restored.Import(data))

	list := restored.Sessions()
	require.Len(t, list, 2)
	assert.Equal(t, "comp", list[0].Name)
	assert.Equal(t, 11*time.Second, list[0].Target)

	groups, err := restored.Groups(sess.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, snaps[0].ID, groups[0].ID)
	assert.Len(t, groups[0].Solves, 5)

	sv, gid, err := restored.FindSolve(snaps[5].Solves[0].ID)
	require.NoError(t, err)
	assert.Equal(t, snaps[5].ID, gid)
	assert.Equal(t, snaps[5].Solves[0].Time, sv.Time)
}

func TestImport_VersionsAreNeverReused(t *testing.T) {
	st, sess := newTestStore(t)
	snaps := addSolves(t, st, sess.ID, 10, 11)
	before := snaps[1].Version

	require.NoError(t, st.Import(st.Export()))

	after, err := st.GroupVersion(snaps[0].ID)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestImport_Rejects(t *testing.T) {
	st := NewStore(5, testLogger())

	err := st.Import(&storage.Data{Sessions: []storage.SessionData{{Name: "x", Type: "bogus"}}})
	assert.Error(t, err)

	sd := storage.SessionData{Name: "x", Type: "standard"}
	err = st.Import(&storage.Data{Sessions: []storage.SessionData{sd, sd}})
	assert.Error(t, err)
}
