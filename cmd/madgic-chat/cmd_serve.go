package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/madgic/madgic-chat/internal/config"
	"github.com/madgic/madgic-chat/internal/infrastructure/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat HTTP API",
	Long: `Serve the session API on HTTP_PORT. Turns submitted without streaming run on
a pool of WORKER_COUNT workers; streamed turns are relayed as server-sent events.`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApplication(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("build application")
		return err
	}
	defer cleanup()

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return err
	}

	log.Info().Msg("application exited cleanly")
	return nil
}
