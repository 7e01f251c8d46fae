package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvimport/internal/config"
	"github.com/JonMunkholm/csvimport/internal/core"
	_ "github.com/JonMunkholm/csvimport/internal/core/tables" // Register built-in targets
	"github.com/JonMunkholm/csvimport/internal/logging"
	"github.com/JonMunkholm/csvimport/internal/mapping"
	"github.com/JonMunkholm/csvimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	// Extra or replacement targets from disk
	if path := cfg.Import.TargetsFile; path != "" {
		n, err := core.LoadTargetsFile(path)
		if err != nil {
			slog.Error("failed to load targets file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("targets file loaded", "path", path, "targets", n)
	}
	slog.Info("targets registered", "count", core.TargetCount())

	ctx := context.Background()

	// Template storage: PostgreSQL when configured, memory otherwise
	var templates core.TemplateStore
	if cfg.Database.Enabled() {
		pool, err := connectDatabase(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := core.NewPgTemplateStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare template storage", "error", err)
			os.Exit(1)
		}
		templates = store
	} else {
		slog.Info("no database configured, templates are kept in memory")
	}

	service := core.NewService(core.ServiceConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWaitTime:   cfg.Import.MaxWaitTime,
		SessionTTL:    cfg.Import.SessionTTL,
		PreviewRows:   cfg.Import.PreviewRows,
		Match: mapping.Options{
			IgnoreCase:  cfg.Import.MatchIgnoreCase,
			Containment: cfg.Import.MatchContainment,
		},
		AnalyzeParallelism: cfg.Import.AnalyzeParallelism,
	}, templates)

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSweeper(jobCtx, cfg.Import.SweepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight imports finish (with timeout)
		limiter := service.Limiter()
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connectDatabase opens and pings a pool sized from cfg.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
