package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
)

const eventBuffer = 32

// EventMessage is pushed to websocket clients for every store mutation.
// Average is the group's average after the change; it is omitted for
// deletions of whole groups and sessions.
type EventMessage struct {
	Type      string                     `json:"type"`
	SessionID uuid.UUID                  `json:"session_id"`
	GroupID   uuid.UUID                  `json:"group_id"`
	Version   uint64                     `json:"version,omitempty"`
	Average   *average.CalculatedAverage `json:"average,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// The server timeouts would otherwise close the upgraded connection.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	// Subscribe before the upgrade completes so no mutation is missed by a
	// client that writes right after connecting.
	events := make(chan session.Event, eventBuffer)
	remove := s.store.AddListener(func(ev session.Event) {
		select {
		case events <- ev:
		default:
			s.logger.Debug("event dropped for slow client", "group_id", ev.GroupID, "kind", ev.Kind.String())
		}
	})
	defer remove()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.CloseNow()

	s.logger.Debug("event client connected", "remote", r.RemoteAddr)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev := <-events:
			msg, err := s.eventMessage(ctx, ev)
			if err != nil {
				s.logger.Error("event average failed", "group_id", ev.GroupID, "error", err)
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				s.logger.Debug("event client gone", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (s *Server) eventMessage(ctx context.Context, ev session.Event) (EventMessage, error) {
	msg := EventMessage{
		Type:      ev.Kind.String(),
		SessionID: ev.SessionID,
		GroupID:   ev.GroupID,
		Version:   ev.Version,
	}
	if ev.Kind != session.SolveAdded && ev.Kind != session.SolveDeleted {
		return msg, nil
	}

	avg, err := s.averages.GetAverage(ctx, ev.GroupID)
	switch {
	case errors.Is(err, aggregator.ErrGroupNotFound):
		return msg, nil
	case err != nil:
		return msg, err
	}
	msg.Average = avg
	return msg, nil
}
