package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccwatch/internal/monitor"
	"ccwatch/internal/ui"
)

func newPollCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Poll once and print any new assistant messages",
		Long: `Run two poll cycles one interval apart and exit. Logs seen for the first
time are baselined without output. A changed log is read once its mtime has
held still across both cycles; a log still being written is left for the next
run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			mon, err := monitor.New(monitor.Options{
				ProjectsDir:  a.cfg.ProjectsDir,
				PollInterval: a.cfg.PollInterval,
				Store:        store,
				Consumer:     ui.NewPrinter(cmd.OutOrStdout(), a.cfg.GlamourStyle, printerWidth),
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}
			n := mon.RunSettled(cmd.Context())
			fmt.Fprintf(cmd.ErrOrStderr(), "%d new message(s)\n", n)
			return nil
		},
	}
}
