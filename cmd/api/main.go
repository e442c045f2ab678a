package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lukashofer/reisekosten/internal/adapters/http"
	natsadapter "github.com/lukashofer/reisekosten/internal/adapters/nats"
	"github.com/lukashofer/reisekosten/internal/adapters/postgres"
	"github.com/lukashofer/reisekosten/internal/adapters/valkey"
	"github.com/lukashofer/reisekosten/internal/core/ports"
	"github.com/lukashofer/reisekosten/internal/core/usecases"
	"github.com/lukashofer/reisekosten/internal/pkg/config"
	"github.com/lukashofer/reisekosten/internal/pkg/geospatial"
	"github.com/lukashofer/reisekosten/internal/pkg/logging"
	"github.com/lukashofer/reisekosten/internal/pkg/metrics"
	"github.com/lukashofer/reisekosten/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("reisekosten-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Hot cache tier
	var hot ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running without hot tier", "error", err)
	} else {
		defer cache.Close()
		hot = cache
	}

	// NATS
	var events ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer nc.Close()
		events = nc
	}

	// Repos
	cacheRepo := postgres.NewDistanceCacheRepo(db)
	auditRepo := postgres.NewAuditRepo(db)
	locationRepo := postgres.NewLocationRepo(db)

	// Use cases
	distanceSvc := usecases.NewDistanceService(
		geospatial.HaversineKm,
		cacheRepo,
		hot,
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		cfg.Cache.HotTTLSeconds,
	)
	allowanceSvc := usecases.NewAllowanceService()
	auditSvc := usecases.NewAuditService(auditRepo)
	travelCostSvc := usecases.NewTravelCostService(distanceSvc, allowanceSvc, auditSvc, locationRepo, events)
	maintenanceSvc := usecases.NewMaintenanceService(cacheRepo, hot, auditRepo, locationRepo, events)

	deps := &http.Dependencies{
		TravelCosts: travelCostSvc,
		Audit:       auditSvc,
		Maintenance: maintenanceSvc,
		DB:          db,
		Cache:       cache,
	}

	// Periodic DB pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Reisekosten API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
