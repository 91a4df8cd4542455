package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ccwatch/internal/monitor"
)

// Archiver appends every received message to a per-session markdown file
// under dir/<project>/<session>.md.
type Archiver struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewArchiver(dir string) (*Archiver, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("archive directory is required")
	}
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve cwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}
	return &Archiver{dir: dir, now: time.Now}, nil
}

func (a *Archiver) HandleMessage(_ context.Context, ev monitor.Event) error {
	_, err := a.Append(ev)
	return err
}

// Append writes ev and returns the file it went to. A new file starts with
// the session header.
func (a *Archiver) Append(ev monitor.Event) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.PathFor(ev)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	var b strings.Builder
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		b.WriteString(BuildSessionHeader(ev, a.now().UTC()))
	} else if err != nil {
		return "", fmt.Errorf("stat archive file: %w", err)
	}
	b.WriteString(BuildEntryMarkdown(ev))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open archive file: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write archive file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}
	return path, nil
}

func (a *Archiver) PathFor(ev monitor.Event) string {
	project := "unknown-project"
	if base := filepath.Base(strings.TrimSpace(ev.ProjectPath)); base != "" && base != "." && base != string(filepath.Separator) {
		project = base
	}
	return filepath.Join(a.dir, safeFileName(project), safeFileName(ev.SessionID)+".md")
}

func BuildSessionHeader(ev monitor.Event, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Session " + safeValue(ev.SessionID) + "\n\n")
	b.WriteString("Archived: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("project: " + safeValue(ev.ProjectPath) + "\n")
	b.WriteString("log: " + safeValue(ev.FilePath) + "\n")
	b.WriteString("```\n\n")
	return b.String()
}

func BuildEntryMarkdown(ev monitor.Event) string {
	title := "## " + ev.Timestamp.UTC().Format(time.RFC3339)
	if ev.MessageID != "" {
		title += " · " + ev.MessageID
	}
	return title + "\n\n" + strings.TrimSpace(ev.Text) + "\n\n"
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "..", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}
