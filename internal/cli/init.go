// Package cli provides common process bootstrap shared by cmd/budget and
// cmd/budget-audit.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/config"
	"budget/internal/log"
)

// SetupLogger builds the process logger from a level and format name and
// installs it as the slog default. An unknown level falls back to info.
func SetupLogger(level, format, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Format = format
	cfg.Component = component
	if lvl, err := log.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// GracefulShutdown blocks until ctx is done, then runs every cleanup with a
// shared timeout. Cleanups run in order; their errors are joined.
func GracefulShutdown(ctx context.Context, logger *log.Logger, timeout time.Duration, cleanups ...func(context.Context) error) error {
	<-ctx.Done()
	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, cleanup := range cleanups {
		if err := cleanup(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if shutdownCtx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
	} else {
		logger.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}
