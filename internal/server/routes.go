package server

import (
	"net/http"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleCacheStats)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.Handle("GET /metrics", newMetricsHandler(s.store, s.averages))

	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleSessionSummary)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/groups", s.handleListGroups)
	mux.HandleFunc("POST /sessions/{id}/solves", s.handleAddSolve)

	mux.HandleFunc("GET /groups/{id}", s.handleGetGroup)
	mux.HandleFunc("DELETE /groups/{id}", s.handleDeleteGroup)
	mux.HandleFunc("DELETE /solves/{id}", s.handleDeleteSolve)

	return mux
}
