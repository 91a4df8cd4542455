// Package state persists per-log watermarks so the monitor can resume after a
// restart without re-emitting already seen messages.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrCorrupt is returned by a backend whose persisted state cannot be decoded.
var ErrCorrupt = errors.New("state: corrupt state file")

// TrackedSession is the watermark of one transcript log.
type TrackedSession struct {
	SessionID     string    `json:"session_id" yaml:"session_id"`
	FilePath      string    `json:"file_path" yaml:"file_path"`
	ProjectPath   string    `json:"project_path" yaml:"project_path"`
	LastMtime     time.Time `json:"last_mtime" yaml:"last_mtime"`
	LastLineCount int       `json:"last_line_count" yaml:"last_line_count"`
	LastMessageID string    `json:"last_message_id,omitempty" yaml:"last_message_id,omitempty"`
}

// Backend loads and saves the whole watermark map. Save must not leave a
// partially written state behind if the process dies mid-write.
type Backend interface {
	Load() (map[string]TrackedSession, error)
	Save(sessions map[string]TrackedSession) error
	Close() error
}

type Store struct {
	mu       sync.RWMutex
	backend  Backend
	sessions map[string]TrackedSession
	dirty    bool
	logger   *slog.Logger
}

func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:  backend,
		sessions: make(map[string]TrackedSession),
		logger:   logger,
	}
}

// Open picks a backend from the path: ".json" files use the JSON backend,
// anything else is a SQLite database. The returned store is already loaded.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		backend Backend
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		backend = NewJSONBackend(path)
	} else {
		backend, err = OpenSQLite(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open state %s: %w", path, err)
		}
	}
	s := NewStore(backend, logger)
	s.Load()
	return s, nil
}

// Load replaces the in-memory map with the persisted state. A state that
// cannot be read starts the store empty instead of failing.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.backend.Load()
	if err != nil {
		s.logger.Warn("failed to load monitor state, starting empty", slog.String("error", err.Error()))
		sessions = nil
	}
	if sessions == nil {
		sessions = make(map[string]TrackedSession)
	}
	s.sessions = sessions
	s.dirty = false
	s.logger.Debug("monitor state loaded", slog.Int("sessions", len(sessions)))
}

func (s *Store) Get(sessionID string) (TrackedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.sessions[sessionID]
	return ts, ok
}

// Update inserts or replaces the entry and marks the store dirty.
func (s *Store) Update(ts TrackedSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ts.SessionID] = ts
	s.dirty = true
}

func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *Store) SaveIfDirty() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}

// Save persists unconditionally.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := s.backend.Save(s.sessions); err != nil {
		return fmt.Errorf("save monitor state: %w", err)
	}
	s.dirty = false
	return nil
}

// Sessions returns a snapshot ordered by session id.
func (s *Store) Sessions() []TrackedSession {
	s.mu.RLock()
	out := make([]TrackedSession, 0, len(s.sessions))
	for _, ts := range s.sessions {
		out = append(out, ts)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (s *Store) Close() error {
	return s.backend.Close()
}
