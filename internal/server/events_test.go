package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/config"
)

func dialEvents(t *testing.T, f *fixture) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestEvents_StreamsMutations(t *testing.T) {
	f := newFixture(t)
	f.createSession(t, "3x3")
	conn, ctx := dialEvents(t, f)

	res := f.addSolve(t, "3x3", AddSolveRequest{Time: "12.00"})

	var msg EventMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "solve_added", msg.Type)
	assert.Equal(t, res.GroupID, msg.GroupID)
	assert.Equal(t, res.Version, msg.Version)
	require.NotNil(t, msg.Average)
	assert.Equal(t, average.CurrentLabel, msg.Average.Label)
	assert.Len(t, msg.Average.Considered, 1)

	// Removing the only solve of the current group deletes the group.
	rec := f.do(t, http.MethodDelete, "/solves/"+res.Solve.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	msg = EventMessage{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "group_deleted", msg.Type)
	assert.Equal(t, res.GroupID, msg.GroupID)
	assert.Nil(t, msg.Average)
}

func TestEvents_ShutdownClosesStream(t *testing.T) {
	f := newFixture(t)
	conn, ctx := dialEvents(t, f)

	require.NoError(t, f.srv.Shutdown(context.Background()))

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestEvents_Origins(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	})
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dial := func(origin string) (*websocket.Conn, *http.Response, error) {
		return websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{origin}},
		})
	}

	conn, _, err := dial("http://localhost:5173")
	require.NoError(t, err)
	conn.CloseNow()

	_, resp, err := dial("http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEvents_PlainRequestRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}
