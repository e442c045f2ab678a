package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reisekosten",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Engine metrics
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "engine",
		Name:      "calculations_total",
		Help:      "Total calculations performed, by calculation type",
	}, []string{"type"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total distance cache hits, by tier",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total distance cache misses, by tier",
	}, []string{"tier"})

	CacheFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "cache",
		Name:      "fail_open_total",
		Help:      "Times the cache store was unreachable and the engine fell back to direct computation",
	})

	CacheEntriesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "cache",
		Name:      "entries_deleted_total",
		Help:      "Cache entries removed by maintenance, by reason",
	}, []string{"reason"})

	AuditWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Audit records written",
	})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reisekosten",
		Subsystem: "audit",
		Name:      "write_failures_total",
		Help:      "Audit record writes that failed",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reisekosten",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reisekosten",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reisekosten",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgx pool stats.
// A structural interface keeps pgxpool out of this package's imports.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
