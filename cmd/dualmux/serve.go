package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/httpapi"
	"github.com/Belphemur/DualMux/internal/metrics"
	"github.com/Belphemur/DualMux/internal/publish"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("address", "", "Listen address (server.address)")
	cmd.Flags().Int("port", 0, "Listen port (server.port)")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics (metrics.enabled)")
	bindFlag(cmd, "address", "server.address")
	bindFlag(cmd, "port", "server.port")
	bindFlag(cmd, "metrics", "metrics.enabled")

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := config.GetLogger()

	logger.Info().
		Str("server_address", cfg.Server.Address).
		Int("server_port", cfg.Server.Port).
		Str("catalog_url", cfg.Catalog.URL).
		Str("languages", cfg.Languages.Primary+"+"+cfg.Languages.Secondary).
		Str("publish_provider", cfg.Publish.Provider).
		Str("cache_provider", cfg.Cache.Provider).
		Msg("Application started with configuration")

	sentryEnabled := false
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialise Sentry")
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close client")
		}
	}()

	if version, err := p.engine.Check(ctx); err != nil {
		logger.Warn().Err(err).Str("ffmpeg", cfg.Mux.FFmpegPath).Msg("ffmpeg is not usable, packaging requests will fail")
	} else {
		logger.Info().Str("version", version).Msg("Found ffmpeg")
	}

	// Start Prometheus metrics HTTP server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Server.Address, cfg.Metrics.Port)
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Failed to serve metrics")
			}
		}()
		defer func() {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to shutdown metrics server")
			}
		}()
	}

	archives, ok := publish.LocalStore(p.publisher)
	if ok {
		logger.Info().Str("root", archives.Root()).Msg("Serving archives from the local store")
	}
	server := &http.Server{
		Handler: httpapi.NewRouter(httpapi.Deps{
			Catalog:   p.client,
			Packager:  p.packager,
			Publisher: p.publisher,
			Archives:  archives,
			FFmpeg:    p.engine,
			Logger:    logger,
			Sentry:    sentryEnabled,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	address := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	logger.Info().Str("address", address).Msg("Starting HTTP server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
	}

	logger.Info().Msg("Server stopped gracefully")
	return nil
}
