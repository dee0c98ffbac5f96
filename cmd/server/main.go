// Package main provides the entry point for the paper feed service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/researchfeed/paper-feed-service/internal/config"
	"github.com/researchfeed/paper-feed-service/internal/database"
	"github.com/researchfeed/paper-feed-service/internal/observability"
	"github.com/researchfeed/paper-feed-service/internal/papersource/core"
	"github.com/researchfeed/paper-feed-service/internal/pipeline"
	"github.com/researchfeed/paper-feed-service/internal/repository"
	"github.com/researchfeed/paper-feed-service/internal/scheduler"
	httpserver "github.com/researchfeed/paper-feed-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-feed-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create stores.
	paperStore := repository.NewPgPaperStore(db)
	statsStore := repository.NewPgStatsStore(db)

	// Create the CORE search client.
	sourceClient := core.New(core.Config{
		BaseURL:    cfg.Source.BaseURL,
		APIKey:     cfg.Source.APIKey,
		Timeout:    cfg.Source.Timeout,
		RateLimit:  cfg.Source.RateLimit,
		MaxRetries: cfg.Source.MaxRetries,
		PageSize:   cfg.Pipeline.PageSize,
	})

	// Create metrics and the fetch cycle runner.
	metrics := observability.NewMetrics("paperfeed")

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		LookbackDays:     cfg.Pipeline.LookbackDays,
		MinPageCount:     cfg.Pipeline.MinPageCount,
		MaxPages:         cfg.Pipeline.MaxPages,
		PageSize:         cfg.Pipeline.PageSize,
		RunCap:           cfg.Pipeline.RunCap,
		PromotionLimit:   cfg.Pipeline.PromotionLimit,
		RetentionEnabled: cfg.Pipeline.RetentionEnabled,
		RetentionMaxAge:  cfg.Pipeline.RetentionMaxAge,
	}, sourceClient, paperStore, statsStore, metrics, logger)

	// Schedule fetch cycles.
	sched := scheduler.New(scheduler.Config{
		CronSpec:     cfg.Scheduler.CronSpec,
		StartupRun:   cfg.Scheduler.StartupRun,
		StartupDelay: cfg.Scheduler.StartupDelay,
	}, func(runCtx context.Context) error {
		_, runErr := runner.Run(runCtx)
		return runErr
	}, logger)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// Create the HTTP read API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, paperStore, statsStore, db, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", httpCfg.Address).Msg("HTTP read API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper-feed-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-feed-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	sched.Stop()

	logger.Info().Msg("paper-feed-service shutdown complete")
	return nil
}
