package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/lukashofer/reisekosten/internal/adapters/nats"
	"github.com/lukashofer/reisekosten/internal/adapters/postgres"
	"github.com/lukashofer/reisekosten/internal/adapters/valkey"
	"github.com/lukashofer/reisekosten/internal/core/ports"
	"github.com/lukashofer/reisekosten/internal/core/usecases"
	"github.com/lukashofer/reisekosten/internal/pkg/config"
	"github.com/lukashofer/reisekosten/internal/pkg/logging"
)

// The sweeper runs expiry cleanup on a fixed interval. Cleanup is idempotent,
// so overlapping or restarted runs are harmless.
func main() {
	cfg, err := config.Load("reisekosten-sweeper")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("sweeper", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var hot ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, skipping hot tier eviction", "error", err)
	} else {
		defer cache.Close()
		hot = cache
	}

	var events ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer nc.Close()
		events = nc
	}

	cacheRepo := postgres.NewDistanceCacheRepo(db)
	auditRepo := postgres.NewAuditRepo(db)
	locationRepo := postgres.NewLocationRepo(db)
	maintenance := usecases.NewMaintenanceService(cacheRepo, hot, auditRepo, locationRepo, events)

	interval := time.Duration(cfg.Sweeper.IntervalMinutes) * time.Minute
	slog.Info("sweeper started", "interval", interval.String())

	// Sweep once on startup, then on every tick.
	sweep(ctx, maintenance)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep(ctx, maintenance)
		case sig := <-quit:
			slog.Info("shutdown signal received", "signal", sig.String())
			return
		}
	}
}

func sweep(ctx context.Context, maintenance *usecases.MaintenanceService) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	deleted, err := maintenance.CleanupExpired(sweepCtx)
	if err != nil {
		slog.Error("expiry cleanup failed", "error", err)
		return
	}
	slog.Info("expiry cleanup complete", "deleted", deleted, "took", time.Since(start).String())
}
