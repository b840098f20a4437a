// Package metrics defines the Prometheus collectors used across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redis operation metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
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

// Vote accounting metrics
var (
	// VotesTotal tracks vote requests by direction and outcome
	// (accepted, quota_exceeded, nothing_to_retract, error).
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Vote requests by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	// RestaurantsCreatedTotal counts created restaurants
	RestaurantsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurants_created_total",
			Help: "Total restaurants created",
		},
	)

	// ChangeEventsPublished counts change notifications by status
	ChangeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_published_total",
			Help: "Change notifications published by status",
		},
		[]string{"status"},
	)
)

// WebSocket hub metrics
var (
	// HubConnectedClients tracks the number of connected live-update clients
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Number of connected WebSocket clients",
		},
	)

	// HubMessagesDropped counts messages dropped due to slow clients
	HubMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_messages_dropped_total",
			Help: "Broadcast messages dropped because a client send buffer was full",
		},
	)
)
