// Package metrics holds the prometheus collectors for sync and cache activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "claimb"

var (
	// SyncRuns counts synchronizer invocations by mode (bulk, incremental) and outcome.
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Match synchronizer runs by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	// SyncRecords counts per-record outcomes inside a batch.
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Match records processed by outcome (inserted, stored, irrelevant, not_found, bad_request, failed).",
		},
		[]string{"outcome"},
	)

	// Evicted counts matches deleted by the retention cap.
	Evicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_evicted_total",
		Help:      "Matches deleted by the per-summoner retention cap.",
	})

	// CoachingCache counts cache lookups by kind and result (hit, miss, expired).
	CoachingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coaching_cache_lookups_total",
			Help:      "Coaching response cache lookups by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// CoachingSwept counts expired coaching entries removed by the sweeper.
	CoachingSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coaching_cache_swept_total",
		Help:      "Expired coaching cache entries removed by the periodic sweep.",
	})

	// CoordinatorCalls counts coordinated calls; shared=true means the caller joined an in-flight operation.
	CoordinatorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_calls_total",
			Help:      "Request coordinator calls by whether the result was shared.",
		},
		[]string{"shared"},
	)

	// ProviderRequests counts remote provider HTTP requests by endpoint and status class.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Remote game-data provider requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)
)
