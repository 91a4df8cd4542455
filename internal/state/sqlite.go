package state

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend keeps one row per tracked session. Each save replaces the
// table contents in a single transaction, so a crash leaves the previous
// committed state intact.
type SQLiteBackend struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens or creates the state database. A file that is not a usable
// database is moved aside and replaced by an empty one.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	b, err := openSQLite(path)
	if err == nil {
		return b, nil
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		return nil, err
	}

	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if renameErr := os.Rename(path, aside); renameErr != nil {
		return nil, fmt.Errorf("%w (move aside failed: %v)", err, renameErr)
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	logger.Warn("state database unusable, starting empty",
		slog.String("path", path),
		slog.String("moved_to", aside),
		slog.String("error", err.Error()),
	)
	return openSQLite(path)
}

func openSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	b := &SQLiteBackend{path: path, db: db}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS tracked_sessions (
			session_id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			project_path TEXT,
			last_mtime_ns INTEGER NOT NULL DEFAULT 0,
			last_line_count INTEGER NOT NULL DEFAULT 0,
			last_message_id TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Load() (map[string]TrackedSession, error) {
	rows, err := b.db.Query(`
		SELECT session_id, file_path, COALESCE(project_path, ''), last_mtime_ns, last_line_count, COALESCE(last_message_id, '')
		FROM tracked_sessions
	`)
	if err != nil {
		return nil, fmt.Errorf("query tracked sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]TrackedSession)
	for rows.Next() {
		var (
			ts      TrackedSession
			mtimeNS int64
		)
		if err := rows.Scan(&ts.SessionID, &ts.FilePath, &ts.ProjectPath, &mtimeNS, &ts.LastLineCount, &ts.LastMessageID); err != nil {
			return nil, fmt.Errorf("scan tracked session row: %w", err)
		}
		if mtimeNS != 0 {
			ts.LastMtime = time.Unix(0, mtimeNS)
		}
		out[ts.SessionID] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked sessions: %w", err)
	}
	return out, nil
}

func (b *SQLiteBackend) Save(sessions map[string]TrackedSession) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer tx.Rollback()

	// The map is the whole state; rows it no longer holds must not survive.
	if _, err := tx.Exec(`DELETE FROM tracked_sessions`); err != nil {
		return fmt.Errorf("clear tracked sessions: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tracked_sessions(session_id, file_path, project_path, last_mtime_ns, last_line_count, last_message_id)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			file_path=excluded.file_path,
			project_path=excluded.project_path,
			last_mtime_ns=excluded.last_mtime_ns,
			last_line_count=excluded.last_line_count,
			last_message_id=excluded.last_message_id
	`)
	if err != nil {
		return fmt.Errorf("prepare state upsert: %w", err)
	}
	defer stmt.Close()

	for id, ts := range sessions {
		var mtimeNS int64
		if !ts.LastMtime.IsZero() {
			mtimeNS = ts.LastMtime.UnixNano()
		}
		if _, err := stmt.Exec(id, ts.FilePath, ts.ProjectPath, mtimeNS, ts.LastLineCount, nullableString(ts.LastMessageID)); err != nil {
			return fmt.Errorf("upsert tracked session %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
