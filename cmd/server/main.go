// Command server exposes the session importer over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/kartlog/internal/config"
	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/JonMunkholm/kartlog/internal/logging"
	"github.com/JonMunkholm/kartlog/internal/metrics"
	"github.com/JonMunkholm/kartlog/internal/store/postgres"
	"github.com/JonMunkholm/kartlog/internal/web"
)

func main() {
	// Load .env if present; variables already set win
	cfg, err := config.LoadWithDotenv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"import_workers", cfg.Import.Workers,
		"auth_required", cfg.Security.RequireAPIKey,
	)

	creds, err := config.LoadCredentials(cfg.Import.CredentialsFile)
	if err != nil {
		slog.Warn("credentials file not loaded", "error", err)
	}
	dbURL, err := cfg.DatabaseURL(creds)
	if err != nil {
		slog.Error("no database url", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Import.Location()
	if err != nil {
		slog.Error("invalid time zone", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dbURL, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	m := metrics.NewManager()
	importer := core.NewImporter(
		postgres.NewReferenceStore(pool),
		postgres.NewSessionStore(pool),
		core.Options{
			BatchSize: cfg.Import.BatchSize,
			Workers:   cfg.Import.Workers,
			CacheSize: cfg.Import.CacheSize,
			SourceTag: cfg.Import.SourceTag,
			Location:  loc,
			Recorder:  m,
		},
	)

	server := web.NewServer(cfg, web.Deps{Importer: importer, DB: pool, Metrics: m})

	// Graceful shutdown; done closes once running imports have drained
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
