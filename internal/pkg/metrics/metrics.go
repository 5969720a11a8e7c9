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
		Namespace: "taxiportal",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taxiportal",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taxiportal",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Reservation metrics
	WizardTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "wizard",
		Name:      "transitions_total",
		Help:      "Wizard navigation calls by action and result",
	}, []string{"action", "result"})

	WizardValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "wizard",
		Name:      "validation_failures_total",
		Help:      "Step validation failures by step and field",
	}, []string{"step", "field"})

	ActiveWizards = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxiportal",
		Subsystem: "wizard",
		Name:      "active",
		Help:      "Wizards currently held in memory",
	})

	GeofenceRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "geofence",
		Name:      "rejections_total",
		Help:      "Pickup locations rejected for being outside the service area",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "booking",
		Name:      "submissions_total",
		Help:      "Reservation submissions by outcome",
	}, []string{"outcome"})

	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taxiportal",
		Subsystem: "booking",
		Name:      "submission_duration_seconds",
		Help:      "Latency of reservation submission to the dispatch API",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "booking",
		Name:      "cancellations_total",
		Help:      "Reservation cancellations by outcome",
	}, []string{"outcome"})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by result",
	}, []string{"result"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxiportal",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxiportal",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxiportal",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxiportal",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taxiportal",
		Subsystem: "db",
		Name:      "pool_empty_acquires_total",
		Help:      "Total times a connection had to be established when acquiring from pool",
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
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgxpool stats.
// It takes an interface so this package does not import pgxpool.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
		EmptyAcquireCount() int64
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
		if n := s.EmptyAcquireCount(); n > lastEmptyAcquires {
			DBPoolEmptyAcquires.Add(float64(n - lastEmptyAcquires))
			lastEmptyAcquires = n
		}
	}
}

var lastEmptyAcquires int64
