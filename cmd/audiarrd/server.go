package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/audiarr/internal/api"
	"github.com/vmunix/audiarr/internal/cache"
	"github.com/vmunix/audiarr/internal/config"
	"github.com/vmunix/audiarr/internal/download"
	"github.com/vmunix/audiarr/internal/events"
	"github.com/vmunix/audiarr/internal/extractor"
	"github.com/vmunix/audiarr/internal/media"
	"github.com/vmunix/audiarr/internal/migrations"
	"github.com/vmunix/audiarr/internal/storage"
	"github.com/vmunix/audiarr/internal/worker"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	// Ensure data directories exist
	for _, dir := range []string{
		filepath.Dir(cfg.Database.Path),
		cfg.Cache.Path,
		cfg.Downloads.TempDir,
		cfg.Downloads.DestDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	cacheStore, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = cacheStore.Close() }()

	// === Stores ===
	downloadStore := download.NewCachedStore(download.NewStore(db), cacheStore)
	mediaStore := media.NewCachedStore(media.NewStore(db), cacheStore)
	eventLog := events.NewCachedLog(events.NewLog(db), cacheStore)

	// === Extractor ===
	extractorCfg := extractor.Config{
		BinPath: cfg.Extractor.BinPath,
		TempDir: cfg.Downloads.TempDir,
	}
	runner := extractor.NewRunner(extractorCfg, logger.With("component", "extractor"))
	prober := extractor.NewProber(extractorCfg, logger.With("component", "prober"))
	sandbox := extractor.NewSandbox(extractorCfg, logger.With("component", "sandbox"))

	// === Services ===
	manager := download.NewManager(
		downloadStore, mediaStore, eventLog, runner, prober, storage.NewProbe(),
		download.ManagerConfig{
			TempDir:              cfg.Downloads.TempDir,
			DestDir:              cfg.Downloads.DestDir,
			MinStorageGB:         cfg.Downloads.MinStorageGB,
			MaxPending:           cfg.Downloads.MaxPending,
			CleanupRetentionDays: cfg.Downloads.CleanupRetentionDays,
			LogRetentionDays:     cfg.Downloads.LogRetentionDays,
			StallTimeout:         cfg.Downloads.Timeout(),
			ProgressLogThreshold: cfg.Worker.ProgressLogThreshold,
		},
		logger.With("component", "manager"),
	)

	queueWorker := worker.New(downloadStore, manager, worker.Config{
		PollInterval:         cfg.Worker.PollInterval(),
		StalledCheckInterval: cfg.Worker.StalledCheckInterval(),
		CleanupInterval:      cfg.Worker.CleanupInterval(),
		StallTimeout:         cfg.Downloads.Timeout(),
		CleanupRetentionDays: cfg.Downloads.CleanupRetentionDays,
		LogRetentionDays:     cfg.Downloads.LogRetentionDays,
	}, logger.With("component", "worker"))

	// === Background jobs ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan error, 1)
	go func() { workerDone <- queueWorker.Run(ctx) }()

	// === HTTP ===
	apiServer := api.New(manager, downloadStore, queueWorker, sandbox, logger.With("component", "api"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting",
		"addr", addr,
		"database", cfg.Database.Path,
		"temp_dir", cfg.Downloads.TempDir,
		"dest_dir", cfg.Downloads.DestDir,
		"extractor", cfg.Extractor.BinPath,
		"log_level", cfg.Server.LogLevel,
	)

	srv := &http.Server{Addr: addr, Handler: apiServer.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	// Stop the worker; give in-flight work up to 30s to settle.
	cancel()
	select {
	case <-workerDone:
	case <-time.After(30 * time.Second):
		logger.Warn("worker did not stop in time, continuing shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
