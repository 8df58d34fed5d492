package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	httpserver "github.com/fyrsmithlabs/frontdesk/internal/http"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/services"
	"github.com/fyrsmithlabs/frontdesk/internal/telemetry"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
)

// run starts frontdesk and blocks until ctx is cancelled or the HTTP server
// fails.
//
// Startup order:
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Build services (storage, NATS, knowledge, router, registry, desk)
//  4. Start the timeout sweeper
//  5. Serve HTTP until shutdown
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "starting frontdesk",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("nats_embedded", cfg.NATS.Embedded),
		zap.Bool("telemetry", tel.Enabled()))

	reg, err := services.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn(context.Background(), "failed to release resources", zap.Error(err))
		}
	}()

	if err := reg.Sweeper().Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	srv, err := httpserver.NewServer(reg.Desk(), reg.Bus(), logger, &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "shutdown complete")
	return nil
}
