// Package monitor polls Claude Code transcript logs and emits each new
// assistant message exactly once.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ccwatch/internal/project"
	"ccwatch/internal/state"
)

var ErrRunning = errors.New("monitor already running")

type Options struct {
	ProjectsDir  string
	PollInterval time.Duration
	Store        *state.Store
	Consumer     Consumer
	Logger       *slog.Logger
}

type Monitor struct {
	scanner    *project.Scanner
	store      *state.Store
	interval   time.Duration
	dispatcher *Dispatcher
	logger     *slog.Logger

	// lastSeen holds the mtime observed on the previous tick per session. It
	// is only touched from the poll loop and is not persisted.
	lastSeen map[string]time.Time
	running  atomic.Bool
}

func New(opts Options) (*Monitor, error) {
	if opts.Store == nil {
		return nil, errors.New("monitor: store is required")
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("monitor: poll interval must be positive, got %s", opts.PollInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		scanner:    project.NewScanner(opts.ProjectsDir, logger),
		store:      opts.Store,
		interval:   opts.PollInterval,
		dispatcher: NewDispatcher(opts.Consumer, logger),
		logger:     logger,
		lastSeen:   make(map[string]time.Time),
	}, nil
}

// Poll runs one detection cycle over every discovered log and returns the new
// assistant messages in scan order. The store is saved if anything changed.
func (m *Monitor) Poll(ctx context.Context) ([]Event, error) {
	logger := m.logger.With(slog.String("cycle", uuid.NewString()))

	sources, err := m.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}

	var events []Event
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			break
		}
		found, err := m.processSource(src, logger)
		if err != nil {
			logger.Warn("skip session this cycle",
				slog.String("session_id", src.SessionID),
				slog.String("path", src.FilePath),
				slog.String("error", err.Error()),
			)
			continue
		}
		events = append(events, found...)
	}

	if err := m.store.SaveIfDirty(); err != nil {
		logger.Error("persist monitor state", slog.String("error", err.Error()))
	}
	return events, nil
}

func (m *Monitor) processSource(src project.Source, logger *slog.Logger) ([]Event, error) {
	st, err := os.Stat(src.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	mtime := st.ModTime()

	tracked, ok := m.store.Get(src.SessionID)
	if !ok {
		lines, err := countLines(src.FilePath)
		if err != nil {
			return nil, err
		}
		m.store.Update(state.TrackedSession{
			SessionID:     src.SessionID,
			FilePath:      src.FilePath,
			ProjectPath:   src.ProjectPath,
			LastMtime:     mtime,
			LastLineCount: lines,
		})
		logger.Info("started tracking session",
			slog.String("session_id", src.SessionID),
			slog.Int("baseline_lines", lines),
		)
		return nil, nil
	}

	if !mtime.After(tracked.LastMtime) {
		return nil, nil
	}
	if !m.isStable(src.SessionID, mtime) {
		logger.Debug("session file changed, waiting for stability", slog.String("session_id", src.SessionID))
		return nil, nil
	}

	records, consumed, err := readNewLines(src.FilePath, tracked.LastLineCount)
	if err != nil {
		return nil, err
	}
	tracked.LastLineCount += consumed

	var events []Event
	for _, rec := range records {
		if !rec.IsAssistant() || rec.Text == "" {
			continue
		}
		if rec.UUID != "" && rec.UUID == tracked.LastMessageID {
			continue
		}
		ts, ok := rec.Time()
		if !ok {
			ts = mtime
		}
		events = append(events, Event{
			SessionID:   src.SessionID,
			ProjectPath: src.ProjectPath,
			Text:        rec.Text,
			MessageID:   rec.UUID,
			FilePath:    src.FilePath,
			Timestamp:   ts,
		})
		if rec.UUID != "" {
			tracked.LastMessageID = rec.UUID
		}
	}

	tracked.LastMtime = mtime
	tracked.FilePath = src.FilePath
	tracked.ProjectPath = src.ProjectPath
	m.store.Update(tracked)
	return events, nil
}

// isStable reports whether mtime equals the value seen on the previous tick,
// i.e. nothing was written for a whole poll interval.
func (m *Monitor) isStable(sessionID string, mtime time.Time) bool {
	last, ok := m.lastSeen[sessionID]
	if !ok || !last.Equal(mtime) {
		m.lastSeen[sessionID] = mtime
		return false
	}
	return true
}

// RunOnce polls and dispatches the resulting events. It returns the number
// of events detected.
func (m *Monitor) RunOnce(ctx context.Context) int {
	events, err := m.Poll(ctx)
	if err != nil {
		m.logger.Error("monitor poll failed", slog.String("error", err.Error()))
		return 0
	}
	for _, ev := range events {
		m.logger.Info("new message",
			slog.String("session_id", ev.SessionID),
			slog.String("text", ev.Preview(100)),
		)
	}
	m.dispatcher.Dispatch(ctx, events)
	return len(events)
}

// RunSettled runs two cycles one interval apart, so a log that changed before
// this process started can pass the stability check within a single call.
func (m *Monitor) RunSettled(ctx context.Context) int {
	n := m.RunOnce(ctx)
	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return n
	case <-timer.C:
	}
	return n + m.RunOnce(ctx)
}

// Run polls every interval until ctx is cancelled. A cycle in progress always
// completes; on exit the state is saved unconditionally.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer m.running.Store(false)

	m.logger.Info("session monitor started",
		slog.String("projects_dir", m.scanner.Root()),
		slog.Duration("interval", m.interval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return m.shutdown()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return m.shutdown()
		}
		m.RunOnce(context.WithoutCancel(ctx))
		timer.Reset(m.interval)
	}
}

func (m *Monitor) shutdown() error {
	if err := m.store.Save(); err != nil {
		m.logger.Error("final state save failed, messages may be re-read on restart", slog.String("error", err.Error()))
		return nil
	}
	m.logger.Info("session monitor stopped and state saved")
	return nil
}
