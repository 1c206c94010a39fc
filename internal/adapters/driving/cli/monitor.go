package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tarxiv/tarxiv/internal/adapters/driven/mailbox/gmail"
	"github.com/tarxiv/tarxiv/internal/core/services"
	"github.com/tarxiv/tarxiv/internal/logger"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch for TNS notices and ingest announced objects",
	Long: `Runs the daemon: polls the configured mailbox for unread TNS notice
emails, extracts the announced object names, aggregates each across the
configured surveys and upserts the records into the document store.

Stops cleanly on SIGINT or SIGTERM, draining already-extracted notices.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	mailbox, err := gmail.NewMailbox(ctx, gmail.Config{
		CredentialsFile: a.cfg.Gmail.CredentialsFile,
		TokenFile:       a.cfg.Gmail.TokenFile,
	})
	if err != nil {
		return err
	}
	defer mailbox.Close()

	monitor := services.NewNoticeMonitor(mailbox, services.MonitorConfig{
		Label:        a.cfg.Gmail.Label,
		Sender:       a.cfg.TNS.Email,
		PollInterval: parseInterval(a.cfg.Gmail.PollInterval, services.DefaultPollInterval),
		QueueSize:    a.cfg.Ingest.QueueSize,
	})
	pipeline := a.pipeline(monitor.Notices())

	logger.Info("monitoring %s for notices from %s", a.cfg.Gmail.Label, a.cfg.TNS.Email)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer monitor.Stop()
		return monitor.Start(gctx)
	})
	g.Go(func() error {
		return pipeline.Run(gctx)
	})

	err = g.Wait()
	stats := pipeline.Stats()
	logger.Info("monitor stopped: %d ingested, %d failed", stats.Ingested, stats.Failed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
