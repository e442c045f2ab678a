package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/lukashofer/reisekosten/internal/pkg/metrics"
)

// SetupRoutes registers all engine routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Engine API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Post("/calculations/distance", timeout.NewWithContext(CalculateDistanceHandler(deps), 15*time.Second))
	v1.Post("/calculations/allowance", timeout.NewWithContext(CalculateAllowanceHandler(deps), 15*time.Second))
	v1.Post("/calculations/travel-cost", timeout.NewWithContext(CalculateTravelCostHandler(deps), 15*time.Second))
	v1.Get("/audit", timeout.NewWithContext(QueryAuditHandler(deps), 15*time.Second))
	v1.Post("/cache/invalidate", timeout.NewWithContext(InvalidateCacheHandler(deps), 15*time.Second))
	v1.Post("/cache/cleanup", timeout.NewWithContext(CleanupCacheHandler(deps), 60*time.Second))
	v1.Get("/cache/stats", timeout.NewWithContext(CacheStatsHandler(deps), 15*time.Second))

	// API documentation (Swagger UI)
	SetupDocs(app)
}
