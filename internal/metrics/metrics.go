package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_events_total",
			Help: "Total number of webhook requests by source and outcome",
		},
		[]string{"source", "status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookbridge_event_bytes_total",
			Help: "Total bytes of webhook payloads received",
		},
	)

	// Verification metrics
	VerificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_verification_failures_total",
			Help: "Total signature verification failures by source",
		},
		[]string{"source"},
	)

	UnverifiedAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_unverified_accepted_total",
			Help: "Events accepted from sources running without a secret",
		},
		[]string{"source"},
	)

	// Idempotency metrics
	DuplicateEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_duplicate_events_total",
			Help: "Retries short-circuited by an existing claim",
		},
		[]string{"source"},
	)

	// Dead letter metrics
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_dead_letters_total",
			Help: "Dead letter entries written by reason",
		},
		[]string{"reason"},
	)

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookbridge_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	UnroutedTopics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_unrouted_topics_total",
			Help: "Events audited without a registered topic handler",
		},
		[]string{"topic"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"actor"},
	)
)
