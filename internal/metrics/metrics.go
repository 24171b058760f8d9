// Package metrics exposes the Prometheus collectors used across the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service records into.
type Metrics struct {
	Registry *prometheus.Registry

	IncomingMessages *prometheus.CounterVec
	MatcherHits      *prometheus.CounterVec
	RouteTotal       *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	AIRequests       *prometheus.CounterVec
	AILatency        *prometheus.HistogramVec
	StoreLatency     *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
	Errors           *prometheus.CounterVec
}

// New registers all collectors under namespace on a fresh registry.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors on reg.
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Registry: reg,
		IncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incoming_messages_total",
			Help:      "Inbound chat messages by channel and type.",
		}, []string{"channel", "type"}),
		MatcherHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matcher_hits_total",
			Help:      "Pipeline matches by matcher and validity.",
		}, []string{"matcher", "valid"}),
		RouteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_total",
			Help:      "Handled messages by final route.",
		}, []string{"route"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Conversation state transitions.",
		}, []string{"from", "to"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Generative AI provider calls by provider and status.",
		}, []string{"provider", "status"}),
		AILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Generative AI provider call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Latency of directory, catalog and document calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversations currently held in memory.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by component.",
		}, []string{"component"}),
	}

	reg.MustRegister(
		m.IncomingMessages,
		m.MatcherHits,
		m.RouteTotal,
		m.StateTransitions,
		m.AIRequests,
		m.AILatency,
		m.StoreLatency,
		m.ActiveSessions,
		m.Errors,
	)
	return m
}
