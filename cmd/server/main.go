package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/qrtrack/internal/application"
	"github.com/JonMunkholm/qrtrack/internal/config"
	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/JonMunkholm/qrtrack/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	closeLog := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer func() { _ = closeLog() }()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"rate_limit_backend", cfg.Rate.Backend,
		"require_auth", cfg.Security.RequireAuth,
	)

	ctx := context.Background()
	app, err := application.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	limiters, err := app.Limiters(ctx)
	if err != nil {
		slog.Error("failed to set up rate limiting", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(app.Service, cfg, web.Options{
		Limiters: limiters,
		Metrics:  app.Metrics,
		Ping:     app.Ping,
	})

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	if cfg.Maintenance.RecountInterval > 0 {
		go app.Maintenance.StartRecountScheduler(jobCtx, cfg.Maintenance.RecountInterval)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running dataset builds finish before closing the store.
		if status := app.Service.ImportLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := app.Service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return
	}
	<-done
}
