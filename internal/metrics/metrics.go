// Package metrics provides Prometheus instrumentation for the arena platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "monclaw",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AgentsRegisteredTotal counts agent registrations by role.
	AgentsRegisteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "agents_registered_total",
			Help:      "Total agent registrations by role.",
		},
		[]string{"role"},
	)

	// MessagesPostedTotal counts debate messages by type.
	MessagesPostedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "messages_posted_total",
			Help:      "Total debate messages posted by type (argument/chat).",
		},
		[]string{"type"},
	)

	// VotesCastTotal counts off-chain message votes by type.
	VotesCastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "votes_cast_total",
			Help:      "Total message votes cast by type (upvote/downvote).",
		},
		[]string{"type"},
	)

	// DebatesArchivedTotal counts debates that reached the archived state.
	DebatesArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "debates_archived_total",
			Help:      "Total debates archived.",
		},
	)

	// ChainCallsTotal counts DebateArena contract calls by op and result.
	ChainCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "chain_calls_total",
			Help:      "Total DebateArena contract calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	// ChainConfirmDuration observes submit-to-confirmation latency per op.
	ChainConfirmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "monclaw",
			Name:      "chain_confirm_duration_seconds",
			Help:      "Time from transaction submission to confirmation in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"op"},
	)

	// GateChecksTotal counts spectator balance-gate outcomes.
	GateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "gate_checks_total",
			Help:      "Total spectator balance-gate checks by outcome (pass/fail/fail_open).",
		},
		[]string{"outcome"},
	)

	// MirrorRepairsTotal counts mirror records repaired from chain events.
	MirrorRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "monclaw",
			Name:      "mirror_repairs_total",
			Help:      "Total arena mirror records repaired by the reconciliation watcher.",
		},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "monclaw",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "monclaw", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "monclaw", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "monclaw", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AgentsRegisteredTotal,
		MessagesPostedTotal,
		VotesCastTotal,
		DebatesArchivedTotal,
		ChainCallsTotal,
		ChainConfirmDuration,
		GateChecksTotal,
		MirrorRepairsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
