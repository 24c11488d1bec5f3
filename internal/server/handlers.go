package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
)

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest is the body of POST /sessions. Target uses the same
// syntax as solve times.
type CreateSessionRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Event      string `json:"event,omitempty"`
	PhaseCount int    `json:"phase_count,omitempty"`
	Target     string `json:"target,omitempty"`
	GroupSize  int    `json:"group_size,omitempty"`
	Pinned     bool   `json:"pinned,omitempty"`
}

// AddSolveRequest is the body of POST /sessions/{id}/solves.
type AddSolveRequest struct {
	Time     string `json:"time"`
	Penalty  string `json:"penalty,omitempty"`
	Scramble string `json:"scramble,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type AddSolveResponse struct {
	Solve   solve.Solve                `json:"solve"`
	GroupID uuid.UUID                  `json:"group_id"`
	Version uint64                     `json:"version"`
	Average *average.CalculatedAverage `json:"average"`
}

type GroupResponse struct {
	session.Snapshot
	Average *average.CalculatedAverage `json:"average"`
}

type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, InfoResponse{
		Name:    "cubetime",
		Version: s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.averages.Stats())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Sessions())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	n := session.NewSession{
		Name:       req.Name,
		Type:       session.Type(req.Type),
		Pinned:     req.Pinned,
		Event:      req.Event,
		PhaseCount: req.PhaseCount,
		GroupSize:  req.GroupSize,
	}
	if n.Type == "" {
		n.Type = session.Standard
	}
	if req.Target != "" {
		t, err := solve.ParseTime(req.Target)
		if err != nil {
			s.writeError(w, badRequest{err})
			return
		}
		n.Target = t
	}

	sess, err := s.store.CreateSession(n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.changed()

	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.FindSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	summary, err := s.averages.SessionSummary(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Session session.Session     `json:"session"`
		Summary *aggregator.Summary `json:"summary"`
	}{sess, summary})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.FindSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteSession(sess.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.FindSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	groups, err := s.averages.GroupAverages(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if groups == nil {
		groups = []aggregator.GroupAverage{}
	}

	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleAddSolve(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.FindSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req AddSolveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Time == "" {
		s.writeError(w, badRequest{errors.New("time field is required")})
		return
	}

	penalty, err := solve.ParsePenalty(req.Penalty)
	if err != nil {
		s.writeError(w, badRequest{err})
		return
	}
	sv, err := solve.ParseEntry(req.Time, penalty)
	if err != nil {
		s.writeError(w, badRequest{err})
		return
	}
	sv.Scramble = req.Scramble
	sv.Comment = req.Comment

	snap, err := s.store.AddSolve(sess.ID, sv)
	if err != nil {
		s.writeError(w, err)
		return
	}

	avg, err := s.averages.GetAverage(r.Context(), snap.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, AddSolveResponse{
		Solve:   snap.Solves[len(snap.Solves)-1],
		GroupID: snap.ID,
		Version: snap.Version,
		Average: avg,
	})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.store.Snapshot(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	avg, err := s.averages.GetAverage(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, GroupResponse{Snapshot: snap, Average: avg})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteGroup(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteSolve(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, badRequest{errors.New("invalid id")}
	}
	return id, nil
}

// decodeBody reads a JSON request body. Bodies over the configured limit
// keep their *http.MaxBytesError.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return badRequest{errors.New("invalid request body")}
}

func statusFor(err error) int {
	var br badRequest
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &br),
		errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, session.ErrInvalidTime):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrGroupNotFound),
		errors.Is(err, session.ErrSolveNotFound),
		errors.Is(err, aggregator.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrGroupInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status,
		)
	}
}
