package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by key family and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// SwapTransitions counts persisted swap request status changes.
	SwapTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_swap_transitions_total",
		Help: "Swap request status transitions by from and to status",
	}, []string{"from", "to"})

	// SwapTransitionRejections counts refused transitions by error code.
	SwapTransitionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_swap_transition_rejections_total",
		Help: "Swap request transitions refused by error code",
	}, []string{"code"})

	// Notifications counts fan-out attempts per channel (realtime, email) and outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_notifications_total",
		Help: "Notification fan-out attempts by channel and outcome",
	}, []string{"channel", "outcome"})

	// JobRuns counts scheduled job executions by outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_job_runs_total",
		Help: "Scheduled job runs by job name and outcome",
	}, []string{"job", "outcome"})

	// JobDuration records scheduled job run time.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillswap_job_duration_seconds",
		Help:    "Scheduled job duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"job"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)
