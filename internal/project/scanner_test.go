package project

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeIndex(t *testing.T, root, project string, doc any) string {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var data []byte
	switch v := doc.(type) {
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(v)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), data, 0o644))
	return dir
}

func writeLog(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	s := NewScanner(filepath.Join(t.TempDir(), "nope"), quietLogger())
	sources, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestScan_ResolvesEntries(t *testing.T) {
	root := t.TempDir()
	logA := filepath.Join(root, "-tmp-alpha", "a.jsonl")
	writeLog(t, logA)

	writeIndex(t, root, "-tmp-alpha", map[string]any{
		"originalPath": "/tmp/alpha",
		"entries": []any{
			map[string]any{"sessionId": "a", "fullPath": logA, "fileMtime": 1768473000000},
			map[string]any{"sessionId": "", "fullPath": logA},
			map[string]any{"sessionId": "no-path"},
			map[string]any{"sessionId": "gone", "fullPath": filepath.Join(root, "missing.jsonl")},
			map[string]any{"sessionId": 42, "fullPath": logA},
			"not an object",
			map[string]any{"sessionId": "rel", "fullPath": "a.jsonl", "projectPath": "/tmp/override"},
			map[string]any{"sessionId": "blank", "fullPath": logA, "projectPath": ""},
		},
	})

	sources, err := NewScanner(root, quietLogger()).Scan()
	require.NoError(t, err)
	require.Len(t, sources, 3)
	sort.Slice(sources, func(i, j int) bool { return sources[i].SessionID < sources[j].SessionID })

	assert.Equal(t, "a", sources[0].SessionID)
	assert.Equal(t, logA, sources[0].FilePath)
	assert.Equal(t, "/tmp/alpha", sources[0].ProjectPath)
	assert.Equal(t, int64(1768473000), sources[0].IndexMtime.Unix())

	assert.Equal(t, "blank", sources[1].SessionID)
	assert.Equal(t, "/tmp/alpha", sources[1].ProjectPath, "empty projectPath falls back like a missing one")

	assert.Equal(t, "rel", sources[2].SessionID)
	assert.Equal(t, logA, sources[2].FilePath)
	assert.Equal(t, "/tmp/override", sources[2].ProjectPath)
}

func TestScan_MalformedIndexDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	writeIndex(t, root, "broken", "{not json")
	logB := filepath.Join(root, "good", "b.jsonl")
	writeLog(t, logB)
	writeIndex(t, root, "good", map[string]any{
		"entries": []any{map[string]any{"sessionId": "b", "fullPath": logB}},
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-index"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	sources, err := NewScanner(root, quietLogger()).Scan()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "b", sources[0].SessionID)
}

func TestScan_DuplicateIDsAcrossProjectsKept(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"one", "two"} {
		log := filepath.Join(root, p, "s.jsonl")
		writeLog(t, log)
		writeIndex(t, root, p, map[string]any{
			"entries": []any{map[string]any{"sessionId": "dup", "fullPath": log}},
		})
	}
	sources, err := NewScanner(root, quietLogger()).Scan()
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestListSessions(t *testing.T) {
	root := t.TempDir()
	writeIndex(t, root, "p", map[string]any{
		"entries": []any{
			map[string]any{"sessionId": "old", "modified": "2026-01-01T00:00:00Z", "projectPath": "/work/api", "messageCount": 3},
			map[string]any{"sessionId": "new", "modified": "2026-02-01T00:00:00Z", "summary": "Refactor the websocket reconnect logic"},
			map[string]any{"summary": "no id"},
		},
	})

	sessions, err := NewScanner(root, quietLogger()).ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "Refactor the websocket reco...", sessions[0].ShortSummary())
	assert.Equal(t, "old", sessions[1].ID)
	assert.Equal(t, "Untitled", sessions[1].Summary)
	assert.Equal(t, "api", sessions[1].ProjectName())
	assert.Equal(t, 3, sessions[1].MessageCount)
}
