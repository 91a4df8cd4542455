package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultGlamourStyle = "dark"
	DefaultPollInterval = 2 * time.Second
	DefaultLogLevel     = "info"

	EnvPrefix = "CCWATCH"
)

// Config keys, shared by the config file, CCWATCH_* variables and flag bindings.
const (
	KeyClaudeHome   = "claude_home"
	KeyProjectsDir  = "projects_dir"
	KeyStatePath    = "state_path"
	KeyPollInterval = "poll_interval"
	KeyLogLevel     = "log_level"
	KeyExportDir    = "export_dir"
	KeyFeedAddr     = "feed_addr"
	KeyGlamourStyle = "glamour_style"
)

type AppConfig struct {
	ClaudeHome   string        `mapstructure:"claude_home" yaml:"claude_home"`
	ProjectsDir  string        `mapstructure:"projects_dir" yaml:"projects_dir"`
	StatePath    string        `mapstructure:"state_path" yaml:"state_path"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	ExportDir    string        `mapstructure:"export_dir" yaml:"export_dir,omitempty"`
	FeedAddr     string        `mapstructure:"feed_addr" yaml:"feed_addr,omitempty"`
	GlamourStyle string        `mapstructure:"glamour_style" yaml:"glamour_style"`
}

// Load resolves the configuration from defaults, the YAML config file, the
// environment and whatever flags the caller bound to v, in that order of
// precedence. An empty configFile means the default location, which may be
// absent.
func Load(v *viper.Viper, configFile string) (AppConfig, error) {
	var cfg AppConfig

	v.SetDefault(KeyClaudeHome, "")
	v.SetDefault(KeyProjectsDir, "")
	v.SetDefault(KeyStatePath, "")
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyExportDir, "")
	v.SetDefault(KeyFeedAddr, "")
	v.SetDefault(KeyGlamourStyle, DefaultGlamourStyle)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		path, err := DefaultConfigPath()
		if err != nil {
			return cfg, err
		}
		configFile = path
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if explicit || !missing {
			return cfg, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	var err error
	cfg.ClaudeHome, err = DetectClaudeHome(cfg.ClaudeHome)
	if err != nil {
		return cfg, err
	}
	if cfg.ProjectsDir == "" {
		cfg.ProjectsDir = filepath.Join(cfg.ClaudeHome, "projects")
	}
	cfg.ProjectsDir, err = expandHome(cfg.ProjectsDir)
	if err != nil {
		return cfg, err
	}

	if cfg.StatePath == "" {
		cfg.StatePath, err = DefaultStatePath()
		if err != nil {
			return cfg, err
		}
	}
	cfg.StatePath, err = expandHome(cfg.StatePath)
	if err != nil {
		return cfg, err
	}
	if cfg.ExportDir != "" {
		cfg.ExportDir, err = expandHome(cfg.ExportDir)
		if err != nil {
			return cfg, err
		}
	}

	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
		return cfg, fmt.Errorf("create state dir: %w", err)
	}

	return cfg, nil
}

func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ccwatch", "config.yaml"), nil
}

func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "ccwatch", "state.sqlite"), nil
}

func DetectClaudeHome(explicit string) (string, error) {
	if explicit != "" {
		return expandHome(explicit)
	}
	if fromEnv := os.Getenv("CLAUDE_HOME"); fromEnv != "" {
		return expandHome(fromEnv)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claude"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ParseLogLevel maps a level name to a slog level. Unknown names are info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
}
