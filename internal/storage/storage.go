// Package storage persists sessions, solve groups and solves.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Backend reads and writes whole data snapshots.
type Backend interface {
	Name() string
	Load() (*Data, error)
	Save(data *Data) error
	Close() error
}

// Source produces the snapshot to be saved.
type Source interface {
	Export() *Data
}

// Storage handles persistence of the solve store through a Backend, with
// dirty tracking and a periodic flush.
type Storage struct {
	backend       Backend
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	source Source
	dirty  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Open creates the backend named by kind ("json" or "sqlite") in dataDir.
func Open(kind, dataDir string, flushInterval time.Duration, logger *slog.Logger) (*Storage, error) {
	var backend Backend
	switch kind {
	case "", "json":
		backend = NewJSONBackend(dataDir, logger)
	case "sqlite":
		b, err := NewSQLiteBackend(dataDir, logger)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unsupported persistence backend: %s (valid: json, sqlite)", kind)
	}
	return New(backend, flushInterval, logger), nil
}

// New creates a new Storage instance.
func New(backend Backend, flushInterval time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		backend:       backend,
		flushInterval: flushInterval,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Backend returns the underlying backend.
func (s *Storage) Backend() Backend {
	return s.backend
}

// Load loads the persisted snapshot.
func (s *Storage) Load() (*Data, error) {
	data, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	s.logger.Info("loaded data",
		"backend", s.backend.Name(),
		"sessions", len(data.Sessions),
		"solves", data.SolveCount(),
	)
	return data, nil
}

// Attach sets the source saved on flush.
func (s *Storage) Attach(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

// Save saves the attached source now. It is a no-op without a source.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked()
}

func (s *Storage) saveLocked() error {
	if s.source == nil {
		return nil
	}

	data := s.source.Export()
	data.Version = currentVersion
	data.UpdatedAt = time.Now()

	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("failed to save data: %w", err)
	}

	s.dirty = false
	s.logger.Debug("saved data", "backend", s.backend.Name(), "sessions", len(data.Sessions))

	return nil
}

// Start starts the periodic flush goroutine.
func (s *Storage) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.flushLoop(ctx)
}

// Stop stops the periodic flush, saves final state and closes the backend.
func (s *Storage) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	err := s.Save()
	if cerr := s.backend.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Storage) flushLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.IsDirty() {
				if err := s.Save(); err != nil {
					s.logger.Error("failed to save data", "error", err)
				}
			}
		}
	}
}

// MarkDirty marks data as needing to be saved.
func (s *Storage) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// IsDirty returns whether data has unsaved changes.
func (s *Storage) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
