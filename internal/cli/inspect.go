package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ccwatch/internal/project"
	"ccwatch/internal/state"
)

func newSessionsCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List indexed sessions, most recently modified first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := project.NewScanner(a.cfg.ProjectsDir, a.logger).ListSessions()
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}
			return writeSessions(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list (0 for all)")
	return cmd
}

func writeSessions(w io.Writer, sessions []project.SessionInfo) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODIFIED\tPROJECT\tSESSION\tMSGS\tSUMMARY")
	for _, s := range sessions {
		modified := s.Modified
		if len(modified) > 19 {
			modified = strings.Replace(modified[:19], "T", " ", 1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", modified, s.ProjectName(), s.ID, s.MessageCount, s.ShortSummary())
	}
	return tw.Flush()
}

func newStateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted per-session watermarks as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return writeYAML(cmd.OutOrStdout(), struct {
				Path     string                 `yaml:"path"`
				Sessions []state.TrackedSession `yaml:"tracked_sessions"`
			}{Path: a.cfg.StatePath, Sessions: store.Sessions()})
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeYAML(cmd.OutOrStdout(), a.cfg)
		},
	}
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}
