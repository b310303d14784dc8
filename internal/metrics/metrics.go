package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine Metrics
var (
	// EngineEventsTotal tracks inbound events processed by the fan-out engine
	EngineEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_total",
			Help: "Total inbound events processed by the fan-out engine by event and result",
		},
		[]string{"event", "result"},
	)

	// EngineBroadcastsTotal tracks outbound broadcasts emitted by the engine
	EngineBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_broadcasts_total",
			Help: "Total outbound broadcasts emitted by the engine by event",
		},
		[]string{"event"},
	)

	// EngineCommandChannelDepth tracks current engine command channel depth
	EngineCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_command_channel_depth",
			Help: "Current engine command channel depth",
		},
	)

	// EnginePanicsTotal tracks engine panic recoveries
	EnginePanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_panics_total",
			Help: "Total engine panic recoveries",
		},
	)

	// RegistryActiveSessions tracks sessions with at least one connected viewer
	RegistryActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_active_sessions",
			Help: "Number of sessions with at least one connected viewer",
		},
	)

	// RegistryConnections tracks total registered viewer connections
	RegistryConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_connections_total",
			Help: "Total registered viewer connections across all sessions",
		},
	)

	// ReactionsRateLimited tracks reactions dropped by the rate limiter
	ReactionsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reactions_rate_limited_total",
			Help: "Total reactions dropped by the per-connection rate limiter",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsCurrent tracks current active WebSocket connections
	WebSocketConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Current number of active WebSocket connections",
		},
	)

	// WebSocketConnectionsTotal tracks connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/error/rejected)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/per_ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// WebSocketPingFailures tracks WebSocket ping failures
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client not responding)",
		},
	)

	// WebSocketSlowClientsEvicted tracks slow clients evicted on broadcast
	WebSocketSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_clients_evicted_total",
			Help: "Total WebSocket clients evicted because their send buffer was full",
		},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// Redis Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "go_version"},
	)
)
