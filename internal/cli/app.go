package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/cubetime/internal/aggregator"
	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/config"
	"github.com/haskel/cubetime/internal/logger"
	"github.com/haskel/cubetime/internal/session"
	"github.com/haskel/cubetime/internal/solve"
	"github.com/haskel/cubetime/internal/storage"
)

// app is the wired set of components a command works with. It is built from
// the config, loaded from storage and saved again by close.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	storage *storage.Storage
	store   *session.Store
	agg     *aggregator.Aggregator

	unsubscribe []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Persistence.DataDir = dataDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openApp wires config, logging, persistence, the session store and the
// aggregator. A nil log uses the configured stderr logger.
func openApp(log *slog.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	st, err := storage.Open(cfg.Persistence.Backend, cfg.Persistence.DataDir, cfg.FlushInterval(), log)
	if err != nil {
		return nil, err
	}

	data, err := st.Load()
	if err != nil {
		_ = st.Stop()
		return nil, err
	}

	store := session.NewStore(cfg.Averaging.GroupSize, log)
	if err := store.Import(data); err != nil {
		_ = st.Stop()
		return nil, fmt.Errorf("failed to import data: %w", err)
	}

	calc := average.NewCalculator(cfg.Averaging.TrimFraction, cfg.Averaging.MinTrim, cfg.PlusTwo())
	agg := aggregator.New(store, calc, log)

	a := &app{
		cfg:     cfg,
		logger:  log,
		storage: st,
		store:   store,
		agg:     agg,
	}

	a.unsubscribe = append(a.unsubscribe,
		store.AddListener(agg.HandleEvent),
		store.AddListener(func(session.Event) { st.MarkDirty() }),
	)
	st.Attach(store)

	return a, nil
}

// start runs the periodic flush for long-running commands.
func (a *app) start(ctx context.Context) {
	a.storage.Start(ctx)
}

// close saves pending changes and releases the backend.
func (a *app) close() error {
	for _, fn := range a.unsubscribe {
		fn()
	}
	return a.storage.Stop()
}

// markDirty records session metadata changes, which emit no store event.
func (a *app) markDirty() {
	a.storage.MarkDirty()
}

func (a *app) plusTwo() time.Duration {
	return a.agg.Calculator().PlusTwo()
}

// withApp opens the app, runs fn and saves. fn's error wins over the save
// error.
func withApp(fn func(a *app) error) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	runErr := fn(a)
	closeErr := a.close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// resolveSession accepts a session id, name or unique id prefix. An empty
// ref picks the only session, or the first pinned one.
func (a *app) resolveSession(ref string) (session.Session, error) {
	if ref == "" {
		sessions := a.store.Sessions()
		switch {
		case len(sessions) == 0:
			return session.Session{}, errors.New("no sessions yet, create one with 'cubetime session new'")
		case len(sessions) == 1 || sessions[0].Pinned:
			return sessions[0], nil
		default:
			return session.Session{}, errors.New("several sessions exist, name one")
		}
	}

	if s, err := a.store.FindSession(ref); err == nil {
		return s, nil
	}

	var match []session.Session
	for _, s := range a.store.Sessions() {
		if strings.HasPrefix(s.ID.String(), strings.ToLower(ref)) {
			match = append(match, s)
		}
	}
	return pickOne(match, ref, session.ErrSessionNotFound)
}

// resolveGroup accepts a group id or unique id prefix.
func (a *app) resolveGroup(ref string) (session.Snapshot, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return a.store.Snapshot(id)
	}

	var match []session.Snapshot
	for _, s := range a.store.Sessions() {
		groups, err := a.store.Groups(s.ID)
		if err != nil {
			continue
		}
		for _, g := range groups {
			if strings.HasPrefix(g.ID.String(), strings.ToLower(ref)) {
				match = append(match, g)
			}
		}
	}
	return pickOne(match, ref, session.ErrGroupNotFound)
}

// resolveSolve accepts a solve id or unique id prefix.
func (a *app) resolveSolve(ref string) (solve.Solve, error) {
	if id, err := uuid.Parse(ref); err == nil {
		sv, _, err := a.store.FindSolve(id)
		return sv, err
	}

	var match []solve.Solve
	for _, s := range a.store.Sessions() {
		groups, err := a.store.Groups(s.ID)
		if err != nil {
			continue
		}
		for _, g := range groups {
			for _, sv := range g.Solves {
				if strings.HasPrefix(sv.ID.String(), strings.ToLower(ref)) {
					match = append(match, sv)
				}
			}
		}
	}
	return pickOne(match, ref, session.ErrSolveNotFound)
}

func pickOne[T any](match []T, ref string, notFound error) (T, error) {
	var zero T
	switch len(match) {
	case 0:
		return zero, fmt.Errorf("%w: %s", notFound, ref)
	case 1:
		return match[0], nil
	default:
		return zero, fmt.Errorf("%q is ambiguous (%d matches)", ref, len(match))
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
