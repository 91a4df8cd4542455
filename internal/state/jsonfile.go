package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type jsonDocument struct {
	TrackedSessions map[string]TrackedSession `json:"tracked_sessions"`
}

// JSONBackend stores the watermarks in a single JSON document replaced
// atomically on every save.
type JSONBackend struct {
	path string
}

func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{path: path}
}

func (b *JSONBackend) Load() (map[string]TrackedSession, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]TrackedSession{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, b.path, err)
	}
	out := make(map[string]TrackedSession, len(doc.TrackedSessions))
	for id, ts := range doc.TrackedSessions {
		if ts.SessionID == "" {
			ts.SessionID = id
		}
		out[id] = ts
	}
	return out, nil
}

func (b *JSONBackend) Save(sessions map[string]TrackedSession) error {
	if sessions == nil {
		sessions = map[string]TrackedSession{}
	}
	data, err := json.MarshalIndent(jsonDocument{TrackedSessions: sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return writeFileAtomic(b.path, data)
}

func (b *JSONBackend) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, fmt.Sprintf(".%s.tmp-*", filepath.Base(path)))
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmp := tmpFile.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmp)
		}
	}()

	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	cleanupTmp = false
	return nil
}
