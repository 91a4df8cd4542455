package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ccwatch/internal/config"
	"ccwatch/internal/export"
	"ccwatch/internal/feed"
	"ccwatch/internal/monitor"
	"ccwatch/internal/ui"
)

const printerWidth = 100

func newWatchCommand(a *app) *cobra.Command {
	var tui bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll continuously and report new assistant messages until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWatch(cmd, tui)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&tui, "tui", false, "show the interactive live feed instead of printing")
	f.String("feed-addr", "", "serve the HTTP/WebSocket event feed on this address, e.g. 127.0.0.1:7878")
	f.String("export-dir", "", "append every message to markdown files under this directory")
	a.bind(f, map[string]string{
		config.KeyFeedAddr:  "feed-addr",
		config.KeyExportDir: "export-dir",
	})
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, tui bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tui {
		path, err := a.logToFile()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "logging to %s\n", path)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	var (
		consumers []monitor.Consumer
		program   *tea.Program
		hub       *feed.Hub
	)
	if tui {
		program = tea.NewProgram(
			ui.NewModel(ui.Options{GlamourStyle: a.cfg.GlamourStyle}),
			tea.WithAltScreen(),
			tea.WithContext(runCtx),
		)
		consumers = append(consumers, ui.NewForwarder(program))
	} else {
		consumers = append(consumers, ui.NewPrinter(cmd.OutOrStdout(), a.cfg.GlamourStyle, printerWidth))
	}
	if a.cfg.ExportDir != "" {
		archiver, err := export.NewArchiver(a.cfg.ExportDir)
		if err != nil {
			return err
		}
		consumers = append(consumers, archiver)
	}
	if a.cfg.FeedAddr != "" {
		hub = feed.NewHub(feed.DefaultBacklog, a.logger)
		consumers = append(consumers, hub)
	}

	mon, err := monitor.New(monitor.Options{
		ProjectsDir:  a.cfg.ProjectsDir,
		PollInterval: a.cfg.PollInterval,
		Store:        store,
		Consumer:     monitor.Multi(consumers...),
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	g.Go(func() error {
		return mon.Run(runCtx)
	})
	if hub != nil {
		server := feed.NewServer(hub, store, a.logger)
		g.Go(func() error {
			return server.Run(runCtx, a.cfg.FeedAddr)
		})
	}
	if program != nil {
		g.Go(func() error {
			// Quitting the live feed stops everything else.
			defer cancelRun()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("live feed: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
