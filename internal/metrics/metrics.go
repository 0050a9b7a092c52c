// Package metrics defines all Prometheus metrics for athena-arpd.
// All metrics use the "athena_arpd_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "athena_arpd"

// --- Frame Metrics ---

var (
	// FramesReceived counts frames handed to the engine, by interface.
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Total frames handed to the engine, by interface.",
	}, []string{"interface"})

	// FramesSent counts frames transmitted, by interface and kind.
	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_sent_total",
		Help:      "Total frames transmitted, by interface and kind (reply, request, announce, defense, rarp).",
	}, []string{"interface", "kind"})

	// FramesDropped counts engine drops by reason.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Total frames dropped by the engine, by reason.",
	}, []string{"interface", "reason"})

	// StepDuration tracks engine step latency.
	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Engine step duration in seconds.",
		Buckets:   []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
	})
)

// --- Cache Metrics ---

var (
	// CacheEntries is a gauge of resolution cache entries per interface.
	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Resolution cache entries, by interface.",
	}, []string{"interface"})

	// NegativeEntries is a gauge of negative cache entries per interface.
	NegativeEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "negative_cache_entries",
		Help:      "Negative cache entries, by interface.",
	}, []string{"interface"})

	// PendingRequests is a gauge of outstanding requests per interface.
	PendingRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_requests",
		Help:      "Outstanding resolution requests, by interface.",
	}, []string{"interface"})

	// FloodTargets is a gauge of tracked flood-control targets.
	FloodTargets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "flood_targets",
		Help:      "Targets currently tracked by the flood limiter.",
	})

	// NeighborsLearned counts dynamic entries inserted.
	NeighborsLearned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "neighbors_learned_total",
		Help:      "Dynamic neighbors learned, by interface.",
	}, []string{"interface"})

	// NeighborsExpired counts dynamic entries aged out.
	NeighborsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "neighbors_expired_total",
		Help:      "Dynamic neighbors aged out, by interface.",
	}, []string{"interface"})
)

// --- Security Metrics ---

var (
	// PoisonBlocked counts updates rejected by static entries.
	PoisonBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poison_blocked_total",
		Help:      "Cache updates blocked by static entries, by interface.",
	}, []string{"interface"})

	// FloodSuppressed counts outbound requests suppressed by rate limiting.
	FloodSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flood_suppressed_total",
		Help:      "Outbound requests suppressed by the flood limiter.",
	})

	// Conflicts counts address conflicts observed, by interface.
	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_total",
		Help:      "Address conflicts observed, by interface.",
	}, []string{"interface"})

	// ACDTransitions counts conflict-machine transitions by target phase.
	ACDTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acd_transitions_total",
		Help:      "ACD state machine transitions, by interface and phase entered.",
	}, []string{"interface", "phase"})
)

// --- RARP Metrics ---

var (
	// RARPServed counts reverse lookups answered.
	RARPServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rarp_served_total",
		Help:      "RARP requests answered, by interface.",
	}, []string{"interface"})
)

// --- Server Metrics ---

var (
	// ServerStartTime records when the daemon started.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Unix time the daemon started.",
	})

	// EventsPublished counts events published to the bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Events published to the bus, by type.",
	}, []string{"type"})

	// EventBufferDrops counts events dropped because the bus buffer was full.
	EventBufferDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_buffer_drops_total",
		Help:      "Events dropped due to a full bus buffer.",
	})

	// APIRequests counts admin API requests.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Admin API requests, by method, path, and status.",
	}, []string{"method", "path", "status"})
)
