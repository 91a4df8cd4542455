// Package project discovers Claude Code session logs from the per-project
// sessions-index.json files under the projects directory.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const IndexFileName = "sessions-index.json"

// Source is one discoverable transcript log.
type Source struct {
	SessionID   string
	FilePath    string
	ProjectPath string
	IndexMtime  time.Time
}

type indexFile struct {
	OriginalPath string            `json:"originalPath"`
	Entries      []json.RawMessage `json:"entries"`
}

type indexEntry struct {
	SessionID    string  `json:"sessionId"`
	FullPath     string  `json:"fullPath"`
	FileMtime    float64 `json:"fileMtime"`
	ProjectPath  string  `json:"projectPath"`
	Summary      string  `json:"summary"`
	FirstPrompt  string  `json:"firstPrompt"`
	MessageCount int     `json:"messageCount"`
	Modified     string  `json:"modified"`
}

type Scanner struct {
	root   string
	logger *slog.Logger
}

func NewScanner(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{root: root, logger: logger}
}

func (s *Scanner) Root() string {
	return s.root
}

// Scan returns every index entry that resolves to an existing log file. A
// missing root yields no sources. Duplicate session ids across projects are
// returned as-is.
func (s *Scanner) Scan() ([]Source, error) {
	sources := make([]Source, 0, 64)
	err := s.walkIndexes(func(projectDir string, idx indexFile, entry indexEntry) {
		if entry.SessionID == "" || entry.FullPath == "" {
			return
		}
		path := entry.FullPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(projectDir, path)
		}
		st, err := os.Stat(path)
		if err != nil || st.IsDir() {
			return
		}
		projectPath := entry.ProjectPath
		if projectPath == "" {
			projectPath = idx.OriginalPath
		}
		sources = append(sources, Source{
			SessionID:   entry.SessionID,
			FilePath:    path,
			ProjectPath: projectPath,
			IndexMtime:  mtimeFromIndex(entry.FileMtime),
		})
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func (s *Scanner) walkIndexes(fn func(projectDir string, idx indexFile, entry indexEntry)) error {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("projects directory does not exist", slog.String("path", s.root))
			return nil
		}
		return fmt.Errorf("read projects dir %s: %w", s.root, err)
	}

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		projectDir := filepath.Join(s.root, d.Name())
		indexPath := filepath.Join(projectDir, IndexFileName)
		data, err := os.ReadFile(indexPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("read session index", slog.String("path", indexPath), slog.String("error", err.Error()))
			}
			continue
		}

		var idx indexFile
		if err := json.Unmarshal(data, &idx); err != nil {
			s.logger.Warn("skip malformed session index", slog.String("path", indexPath), slog.String("error", err.Error()))
			continue
		}

		for i, raw := range idx.Entries {
			var entry indexEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				s.logger.Debug("skip malformed index entry",
					slog.String("path", indexPath),
					slog.Int("entry", i),
					slog.String("error", err.Error()),
				)
				continue
			}
			entry.SessionID = strings.TrimSpace(entry.SessionID)
			entry.FullPath = strings.TrimSpace(entry.FullPath)
			fn(projectDir, idx, entry)
		}
	}
	return nil
}

// mtimeFromIndex converts the index's fileMtime, written in milliseconds.
func mtimeFromIndex(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	if v > 1e12 {
		return time.UnixMilli(int64(v))
	}
	return time.Unix(int64(v), 0)
}

// SessionInfo is the display metadata of an index entry.
type SessionInfo struct {
	ID           string `json:"id" yaml:"id"`
	Summary      string `json:"summary" yaml:"summary"`
	ProjectPath  string `json:"project_path" yaml:"project_path"`
	FirstPrompt  string `json:"first_prompt" yaml:"first_prompt"`
	MessageCount int    `json:"message_count" yaml:"message_count"`
	Modified     string `json:"modified" yaml:"modified"`
	FilePath     string `json:"file_path" yaml:"file_path"`
}

func (s SessionInfo) ShortSummary() string {
	r := []rune(s.Summary)
	if len(r) > 30 {
		return string(r[:27]) + "..."
	}
	return s.Summary
}

func (s SessionInfo) ProjectName() string {
	if s.ProjectPath == "" {
		return ""
	}
	return filepath.Base(s.ProjectPath)
}

// ListSessions returns every indexed session, newest modification first.
// Unlike Scan it does not require the log file to exist.
func (s *Scanner) ListSessions() ([]SessionInfo, error) {
	var out []SessionInfo
	err := s.walkIndexes(func(_ string, _ indexFile, entry indexEntry) {
		if entry.SessionID == "" {
			return
		}
		summary := entry.Summary
		if summary == "" {
			summary = "Untitled"
		}
		out = append(out, SessionInfo{
			ID:           entry.SessionID,
			Summary:      summary,
			ProjectPath:  entry.ProjectPath,
			FirstPrompt:  entry.FirstPrompt,
			MessageCount: entry.MessageCount,
			Modified:     entry.Modified,
			FilePath:     entry.FullPath,
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Modified > out[j].Modified
	})
	return out, nil
}
