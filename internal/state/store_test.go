package state

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingBackend struct {
	saved   map[string]TrackedSession
	saves   int
	loadErr error
	saveErr error
}

func (b *countingBackend) Load() (map[string]TrackedSession, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.saved, nil
}

func (b *countingBackend) Save(sessions map[string]TrackedSession) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves++
	b.saved = make(map[string]TrackedSession, len(sessions))
	for k, v := range sessions {
		b.saved[k] = v
	}
	return nil
}

func (b *countingBackend) Close() error { return nil }

func sample(id string, lines int) TrackedSession {
	return TrackedSession{
		SessionID:     id,
		FilePath:      "/tmp/" + id + ".jsonl",
		ProjectPath:   "/work/" + id,
		LastMtime:     time.Unix(1768473000, 123456789),
		LastLineCount: lines,
		LastMessageID: "msg-" + id,
	}
}

func TestStore_SaveIfDirty(t *testing.T) {
	b := &countingBackend{}
	s := NewStore(b, quietLogger())
	s.Load()

	require.NoError(t, s.SaveIfDirty())
	assert.Equal(t, 0, b.saves, "clean store must not persist")

	s.Update(sample("a", 3))
	assert.True(t, s.Dirty())
	require.NoError(t, s.SaveIfDirty())
	assert.Equal(t, 1, b.saves)
	assert.False(t, s.Dirty())

	require.NoError(t, s.SaveIfDirty())
	assert.Equal(t, 1, b.saves)

	require.NoError(t, s.Save())
	assert.Equal(t, 2, b.saves, "Save is unconditional")
}

func TestStore_SaveFailureKeepsDirty(t *testing.T) {
	b := &countingBackend{saveErr: errors.New("disk full")}
	s := NewStore(b, quietLogger())
	s.Update(sample("a", 1))

	err := s.SaveIfDirty()
	require.Error(t, err)
	assert.True(t, s.Dirty())
}

func TestStore_LoadFailureStartsEmpty(t *testing.T) {
	b := &countingBackend{loadErr: ErrCorrupt}
	s := NewStore(b, quietLogger())
	s.Load()

	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Empty(t, s.Sessions())
	assert.False(t, s.Dirty())
}

func TestStore_GetUpdateSessions(t *testing.T) {
	s := NewStore(&countingBackend{}, quietLogger())
	s.Update(sample("b", 2))
	s.Update(sample("a", 1))
	s.Update(sample("b", 5))

	got, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, 5, got.LastLineCount)

	all := s.Sessions()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].SessionID)
	assert.Equal(t, "b", all[1].SessionID)
}

func TestOpen_BackendRoundTrip(t *testing.T) {
	for _, name := range []string{"state.json", "state.sqlite"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			s, err := Open(path, quietLogger())
			require.NoError(t, err)
			s.Update(sample("a", 5))
			s.Update(TrackedSession{SessionID: "bare", FilePath: "/tmp/bare.jsonl"})
			require.NoError(t, s.Save())
			require.NoError(t, s.Close())

			reopened, err := Open(path, quietLogger())
			require.NoError(t, err)
			defer reopened.Close()

			got, ok := reopened.Get("a")
			require.True(t, ok)
			want := sample("a", 5)
			assert.Equal(t, want.FilePath, got.FilePath)
			assert.Equal(t, want.ProjectPath, got.ProjectPath)
			assert.Equal(t, want.LastLineCount, got.LastLineCount)
			assert.Equal(t, want.LastMessageID, got.LastMessageID)
			assert.True(t, want.LastMtime.Equal(got.LastMtime), "mtime %v != %v", got.LastMtime, want.LastMtime)

			bare, ok := reopened.Get("bare")
			require.True(t, ok)
			assert.True(t, bare.LastMtime.IsZero())
			assert.Empty(t, bare.LastMessageID)
		})
	}
}

func TestOpen_CorruptJSONDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tracked_sessions": {"a": `), 0o644))

	s, err := Open(path, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, s.Sessions())

	s.Update(sample("a", 1))
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_line_count": 1`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file %s left behind", e.Name())
	}
}

func TestJSONBackend_CorruptIsErrCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewJSONBackend(path).Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_CorruptSQLiteMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.sqlite")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("garbage ", 512)), 0o644))

	s, err := Open(path, quietLogger())
	require.NoError(t, err)
	defer s.Close()
	assert.Empty(t, s.Sessions())

	s.Update(sample("a", 2))
	require.NoError(t, s.Save())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSQLite_SaveDropsRowsNotInState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")
	b, err := OpenSQLite(path, quietLogger())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Save(map[string]TrackedSession{"a": sample("a", 3), "stale": sample("stale", 9)}))

	// A store that started empty after a failed load only knows what it re-saw.
	require.NoError(t, b.Save(map[string]TrackedSession{"a": sample("a", 4)}))

	got, err := b.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got["a"].LastLineCount)
	_, ok := got["stale"]
	assert.False(t, ok)
}
