// Package server exposes sessions, solves and group averages over a local
// JSON HTTP API, for companion timers and scripts.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/config"
	"github.com/haskel/cubetime/internal/server/middleware"
	"github.com/haskel/cubetime/internal/session"
)

type Server struct {
	httpServer *http.Server
	store      *session.Store
	averages   *aggregator.Aggregator
	config     *config.Config
	logger     *slog.Logger
	version    string
	authConfig *middleware.AuthConfig
	onChange   func()

	// origins are the hosts of the allowed browser origins, matched by the
	// websocket handshake.
	origins []string

	done     chan struct{}
	stopOnce sync.Once
}

func New(cfg *config.Config, store *session.Store, agg *aggregator.Aggregator, logger *slog.Logger, version string) *Server {
	authConfig := middleware.NewAuthConfig(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password, cfg.Auth.PublicPaths)

	s := &Server{
		store:      store,
		averages:   agg,
		config:     cfg,
		logger:     logger,
		version:    version,
		authConfig: authConfig,
		origins:    originHosts(cfg.Server.AllowedOrigins),
		done:       make(chan struct{}),
	}

	handler := middleware.Chain(
		s.setupRoutes(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.SecurityHeaders(cfg.Server.AllowedOrigins),
		middleware.RateLimit(&middleware.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		}),
		middleware.Auth(authConfig),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
	)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ReloadConfig applies the settings that can change without a restart.
// Host, port and rate limits require a restart.
func (s *Server) ReloadConfig(cfg *config.Config) {
	s.logger.Info("reloading configuration")

	s.authConfig.Update(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password, cfg.Auth.PublicPaths)
	s.config = cfg

	s.logger.Info("configuration reloaded",
		"auth_enabled", cfg.Auth.Enabled,
	)
}

// OnChange registers fn to run after mutations the store emits no event
// for, such as session creation.
func (s *Server) OnChange(fn func()) {
	s.onChange = fn
}

func (s *Server) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Server) Start() error {
	s.logger.Info("server starting",
		"addr", s.httpServer.Addr,
	)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	s.stopOnce.Do(func() { close(s.done) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
