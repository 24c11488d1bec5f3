package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/haskel/cubetime/internal/solve"
)

const dbFileName = "cubetime.db"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		session_type TEXT NOT NULL,
		pinned INTEGER NOT NULL DEFAULT 0,
		event TEXT NOT NULL DEFAULT '',
		phase_count INTEGER NOT NULL DEFAULT 0,
		target_ns INTEGER NOT NULL DEFAULT 0,
		group_size INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS solve_groups (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS solves (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		time_ns INTEGER NOT NULL,
		penalty TEXT NOT NULL,
		scramble TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		recorded_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
}

// SQLiteBackend stores data in a SQLite database. Each save replaces the
// stored snapshot inside one transaction.
type SQLiteBackend struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteBackend opens (creating if needed) the database in dataDir.
func NewSQLiteBackend(dataDir string, logger *slog.Logger) (*SQLiteBackend, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database at %q: %w", dbPath, err)
	}
	// A single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteBackend{db: db, path: dbPath, logger: logger}, nil
}

func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

func (b *SQLiteBackend) Load() (*Data, error) {
	data := newEmptyData()

	var updated int64
	err := b.db.QueryRow(`SELECT value FROM meta WHERE key = 'updated_at'`).Scan(&updated)
	switch {
	case err == sql.ErrNoRows:
		b.logger.Info("no existing database snapshot, starting fresh", "path", b.path)
		return data, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	data.UpdatedAt = time.Unix(0, updated)

	rows, err := b.db.Query(`SELECT id, name, session_type, pinned, event, phase_count, target_ns, group_size, created_at
		FROM sessions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	sessionIndex := make(map[string]int)
	for rows.Next() {
		var (
			id, name, typ, event string
			pinned               bool
			phases, groupSize    int
			target, created      int64
		)
		if err := rows.Scan(&id, &name, &typ, &pinned, &event, &phases, &target, &groupSize, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sid, err := uuid.Parse(id)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("invalid session id %q: %w", id, err)
		}
		sessionIndex[id] = len(data.Sessions)
		data.Sessions = append(data.Sessions, SessionData{
			ID:         sid,
			Name:       name,
			Type:       typ,
			Pinned:     pinned,
			Event:      event,
			PhaseCount: phases,
			Target:     time.Duration(target),
			GroupSize:  groupSize,
			CreatedAt:  time.Unix(0, created),
			Groups:     []GroupData{},
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	type groupRef struct{ session, group int }
	groupIndex := make(map[string]groupRef)

	rows, err = b.db.Query(`SELECT id, session_id FROM solve_groups ORDER BY session_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	for rows.Next() {
		var id, sessionID string
		if err := rows.Scan(&id, &sessionID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		si, ok := sessionIndex[sessionID]
		if !ok {
			b.logger.Warn("skipping orphaned group", "group_id", id)
			continue
		}
		gid, err := uuid.Parse(id)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("invalid group id %q: %w", id, err)
		}
		groupIndex[id] = groupRef{session: si, group: len(data.Sessions[si].Groups)}
		data.Sessions[si].Groups = append(data.Sessions[si].Groups, GroupData{ID: gid, Solves: []solve.Solve{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = b.db.Query(`SELECT id, group_id, time_ns, penalty, scramble, comment, recorded_at
		FROM solves ORDER BY group_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query solves: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, groupID, penalty, scramble, comment string
			timeNS, recorded                        int64
		)
		if err := rows.Scan(&id, &groupID, &timeNS, &penalty, &scramble, &comment, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan solve: %w", err)
		}
		ref, ok := groupIndex[groupID]
		if !ok {
			b.logger.Warn("skipping orphaned solve", "solve_id", id)
			continue
		}
		sid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid solve id %q: %w", id, err)
		}
		pen, err := solve.ParsePenalty(penalty)
		if err != nil {
			return nil, err
		}
		g := &data.Sessions[ref.session].Groups[ref.group]
		g.Solves = append(g.Solves, solve.Solve{
			ID:         sid,
			Time:       time.Duration(timeNS),
			Penalty:    pen,
			Scramble:   scramble,
			Comment:    comment,
			RecordedAt: time.Unix(0, recorded),
		})
	}

	return data, rows.Err()
}

func (b *SQLiteBackend) Save(data *Data) (err error) {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"solves", "solve_groups", "sessions"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for si, s := range data.Sessions {
		if _, err = tx.Exec(`INSERT INTO sessions (id, position, name, session_type, pinned, event, phase_count, target_ns, group_size, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID.String(), si, s.Name, s.Type, s.Pinned, s.Event, s.PhaseCount, int64(s.Target), s.GroupSize, s.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		for gi, g := range s.Groups {
			if _, err = tx.Exec(`INSERT INTO solve_groups (id, session_id, position) VALUES (?, ?, ?)`,
				g.ID.String(), s.ID.String(), gi); err != nil {
				return fmt.Errorf("failed to insert group: %w", err)
			}
			for pi, sv := range g.Solves {
				if _, err = tx.Exec(`INSERT INTO solves (id, group_id, position, time_ns, penalty, scramble, comment, recorded_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					sv.ID.String(), g.ID.String(), pi, int64(sv.Time), sv.Penalty.String(), sv.Scramble, sv.Comment, sv.RecordedAt.UnixNano()); err != nil {
					return fmt.Errorf("failed to insert solve: %w", err)
				}
			}
		}
	}

	if _, err = tx.Exec(`INSERT INTO meta (key, value) VALUES ('updated_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, data.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
