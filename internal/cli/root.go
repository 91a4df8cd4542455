package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ccwatch/internal/config"
	"ccwatch/internal/state"
)

type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.AppConfig
	logger     *slog.Logger
	logFile    io.Closer
}

// NewRootCommand builds the ccwatch command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "ccwatch",
		Short: "Watch Claude Code transcripts and report new assistant messages",
		Long: `ccwatch polls the Claude Code projects directory, waits for each transcript
log to settle, and reports every new assistant message exactly once. Progress
is persisted so restarts neither replay nor lose messages.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logFile != nil {
				return a.logFile.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ~/.config/ccwatch/config.yaml)")
	pf.String("claude-home", "", "Claude home directory (default $CLAUDE_HOME or ~/.claude)")
	pf.String("projects-dir", "", "projects directory (default <claude-home>/projects)")
	pf.String("state", "", "state file; a .json path selects the JSON backend, anything else SQLite")
	pf.Duration("interval", config.DefaultPollInterval, "poll interval")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	a.bind(pf, map[string]string{
		config.KeyClaudeHome:   "claude-home",
		config.KeyProjectsDir:  "projects-dir",
		config.KeyStatePath:    "state",
		config.KeyPollInterval: "interval",
		config.KeyLogLevel:     "log-level",
	})

	root.AddCommand(
		newWatchCommand(a),
		newPollCommand(a),
		newSessionsCommand(a),
		newStateCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx and reports a failure on stderr.
func Execute(ctx context.Context, version string) error {
	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	slog.SetDefault(a.logger)
	return nil
}

// logToFile redirects logging next to the state file, for modes that own the
// terminal.
func (a *app) logToFile() (string, error) {
	path := filepath.Join(filepath.Dir(a.cfg.StatePath), "ccwatch.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	a.logFile = f
	a.logger = config.NewLogger(f, a.cfg.LogLevel)
	slog.SetDefault(a.logger)
	return path, nil
}

func (a *app) openStore() (*state.Store, error) {
	return state.Open(a.cfg.StatePath, a.logger)
}
