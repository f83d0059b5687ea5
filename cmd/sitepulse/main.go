package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/sitepulse-io/sitepulse/internal/core/config"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
	"github.com/sitepulse-io/sitepulse/internal/core/storage/memory"
	"github.com/sitepulse-io/sitepulse/internal/core/storage/postgres"
	"github.com/sitepulse-io/sitepulse/internal/counters"
	"github.com/sitepulse-io/sitepulse/internal/ingestion"
	"github.com/sitepulse-io/sitepulse/internal/migrations"
	"github.com/sitepulse-io/sitepulse/internal/realtime"
	"github.com/sitepulse-io/sitepulse/internal/rollup"
	"github.com/sitepulse-io/sitepulse/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	dedupTTL, _ := cfg.Tracking.DedupDuration()
	sweepInterval, _ := cfg.Tracking.SweepDuration()
	realtimeWindow, _ := cfg.Realtime.WindowDuration()

	// Storage: postgres when a DSN is configured, in-memory otherwise.
	var (
		events    storage.EventStore
		stats     storage.StatsStore
		directory storage.Directory
		db        *sql.DB
	)
	if cfg.Database.DSN != "" {
		adapter, err := postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()

		if err := migrations.RunMigrations(adapter.DB(), cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}

		events = adapter
		stats = postgres.NewStatsAdapter(adapter.DB())
		directory = postgres.NewDirectoryAdapter(adapter.DB())
		db = adapter.DB()
		slog.Info("Storage initialized", "backend", "postgres")
	} else {
		events = memory.NewEventStore()
		stats = memory.NewStatsStore()
		directory = memory.NewDirectory()
		slog.Info("Storage initialized", "backend", "memory")
	}

	counterStore := counters.NewMemoryStore()
	sweeper := counters.NewSweeper(counterStore, sweepInterval)

	ingestionSvc := ingestion.NewService(events, stats, counterStore, ingestion.Options{
		MaxBodySizeBytes:   cfg.Server.MaxBodySizeKB * 1024,
		DedupTTL:           dedupTTL,
		RateLimitPerMinute: cfg.Tracking.RateLimitPerMinute,
	})
	rollupSvc := rollup.NewService(events, directory)
	realtimeSvc := realtime.NewService(events, realtimeWindow)

	srv := server.New(cfg.Server.Addr(), db, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	rollupSvc.RegisterRoutes(srv.Engine)
	realtimeSvc.RegisterRoutes(srv.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sweeper.Start(ctx); err != nil {
			slog.Error("Counter sweeper stopped with error", "error", err)
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}
