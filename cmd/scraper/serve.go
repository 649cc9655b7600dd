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

	"github.com/LavX/opensubtitles-scraper/internal/api"
	"github.com/LavX/opensubtitles-scraper/internal/client"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	grpcserver "github.com/LavX/opensubtitles-scraper/internal/grpc"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/LavX/opensubtitles-scraper/internal/provider"
	"github.com/getsentry/sentry-go"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the gRPC health probe and metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP API port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig()
	logger := config.GetLogger()

	if port := lo.Must(cmd.Flags().GetInt("port")); port != 0 {
		cfg.Server.Port = port
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     api.Version,
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Sentry, errors will not be reported")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.NewClient(cfg)
	if err != nil {
		return err
	}
	p := provider.New(c, cfg.Ranking)
	if err := p.Initialize(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize provider: %w", err)
	}
	defer p.Terminate()

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("server_address", cfg.Server.Address).
		Int("server_port", cfg.Server.Port).
		Str("version", api.Version).
		Msg("Application started with configuration")

	errs := make(chan error, 3)

	handler := api.NewHandler(c, p, cfg.API.MaxInflight, config.ParseDuration("api.retry_after", cfg.API.RetryAfter, 15*time.Second))
	httpServer := api.NewServer(cfg, handler.Router())
	go func() {
		logger.Info().Str("address", httpServer.Addr).Msg("Starting HTTP API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http api: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		// ready until the session starts failing without a token
		metricsServer = metrics.NewHTTPServer(cfg.Server.Address, cfg.Metrics.Port, func() bool {
			st := c.Status()
			return st.ChallengeValid || st.ConsecutiveFailures == 0
		})
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	var grpcServer *grpcserver.Server
	if cfg.GRPC.Enabled {
		address := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", address)
		if err != nil {
			errs <- fmt.Errorf("grpc listen on %s: %w", address, err)
		} else {
			grpcServer = grpcserver.NewGRPCServer(c)
			go grpcServer.Watch(ctx, 10*time.Second)
			go func() {
				logger.Info().Str("address", address).Msg("Starting gRPC health server")
				if err := grpcServer.Serve(listener); err != nil {
					errs <- fmt.Errorf("grpc: %w", err)
				}
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Received shutdown signal")
	case runErr = <-errs:
		logger.Error().Err(runErr).Msg("Server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shutdown HTTP API server")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown metrics server")
		}
	}
	if grpcServer != nil {
		grpcServer.Shutdown()
	}

	logger.Info().Msg("Server stopped gracefully")
	return runErr
}
