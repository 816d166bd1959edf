package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/pickframe/pickframe/internal/auth"
	"github.com/pickframe/pickframe/internal/engine"
	"github.com/pickframe/pickframe/internal/media"
	"github.com/pickframe/pickframe/internal/picker"
	"github.com/pickframe/pickframe/internal/server"
	"github.com/pickframe/pickframe/internal/slideshow"
)

// shutdownGrace is how long in-flight HTTP requests get to drain.
const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the photo frame daemon",
		Long:  "Runs the HTTP API, session poll workers, and the slideshow loop until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)
	clock := clockwork.NewRealClock()

	provider := auth.NewProvider(cfg.CredentialsPath(), cfg.TokenPath(), cfg.Picker.OAuthPort, openBrowser, logger)
	client := picker.NewClient(cfg.Picker.BaseURL, &http.Client{}, provider, logger)

	manager, err := media.NewManager(cfg.Storage.Dir, client, logger)
	if err != nil {
		return err
	}

	viewer := slideshow.NewFehViewer(cfg.Slideshow.Display, logger)
	controller := slideshow.NewController(manager.Dir(), viewer, clock, logger)
	display := slideshow.NewX11Display(cfg.Slideshow.Display)

	eng := engine.New(client, manager, controller, clock, logger)

	srv := server.NewServer(eng, controller, viewer, display, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Start(cfg.Server.ListenAddr)
	}()

	logger.Info("pickframe started",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.String("storage", cfg.Storage.Dir),
	)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}

	// Stop order: engine first so no new completion can re-trigger the
	// slideshow, then the slideshow loop itself.
	eng.Close()
	controller.Stop()

	return nil
}
