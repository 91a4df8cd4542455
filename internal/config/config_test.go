package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CLAUDE_HOME", "")
	for _, key := range []string{"STATE_PATH", "POLL_INTERVAL", "LOG_LEVEL", "PROJECTS_DIR", "FEED_ADDR", "EXPORT_DIR"} {
		t.Setenv(EnvPrefix+"_"+key, "")
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".claude"), cfg.ClaudeHome)
	assert.Equal(t, filepath.Join(home, ".claude", "projects"), cfg.ProjectsDir)
	assert.Equal(t, filepath.Join(home, ".local", "share", "ccwatch", "state.sqlite"), cfg.StatePath)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultGlamourStyle, cfg.GlamourStyle)
	assert.Empty(t, cfg.FeedAddr)

	st, err := os.Stat(filepath.Dir(cfg.StatePath))
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestLoadFileThenEnv(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
claude_home: ~/alt-claude
poll_interval: 500ms
log_level: debug
feed_addr: 127.0.0.1:7777
state_path: ~/state/watch.json
`), 0o644))
	t.Setenv("CCWATCH_FEED_ADDR", ":9000")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "alt-claude"), cfg.ClaudeHome)
	assert.Equal(t, filepath.Join(home, "alt-claude", "projects"), cfg.ProjectsDir)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.FeedAddr)
	assert.Equal(t, filepath.Join(home, "state", "watch.json"), cfg.StatePath)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	home := isolateHome(t)
	_, err := Load(viper.New(), filepath.Join(home, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	isolateHome(t)
	v := viper.New()
	v.Set(KeyPollInterval, "0s")
	_, err := Load(v, "")
	assert.Error(t, err)
}

func TestDetectClaudeHomeFromEnv(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	t.Setenv("CLAUDE_HOME", dir)

	got, err := DetectClaudeHome("")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = DetectClaudeHome("/explicit/../claude")
	require.NoError(t, err)
	assert.Equal(t, "/claude", got)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"Error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), "level %q", in)
	}
}

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", slog.String("session_id", "s1"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "session_id=s1")
}
