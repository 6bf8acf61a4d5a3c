package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backfill outcome labels
const (
	OutcomeAlreadyHadCode = "already_had_code"
	OutcomeAssigned       = "assigned"
	OutcomeFailed         = "failed"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	CodesAllocated     prometheus.Counter
	CodeCollisions     prometheus.Counter
	CommitConflicts    prometheus.Counter
	KeyspaceExhausted  prometheus.Counter
	AllocationAttempts prometheus.Histogram
	OccupancyRatio     prometheus.Gauge
	BackfillRecords    *prometheus.CounterVec
	BackfillDuration   prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	ErrorsCount        *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CodesAllocated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_codes_allocated_total",
			Help:      "The total number of short codes handed out by the allocator",
		}),
		CodeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_code_collisions_total",
			Help:      "Generated codes rejected because they were already occupied",
		}),
		CommitConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_code_commit_conflicts_total",
			Help:      "Commits rejected by the store's uniqueness constraint",
		}),
		KeyspaceExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_code_keyspace_exhausted_total",
			Help:      "Allocations that failed because no free code was found",
		}),
		AllocationAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "short_code_allocation_attempts",
			Help:      "Number of generator draws needed per allocation",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		OccupancyRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "short_code_occupancy_ratio",
			Help:      "Fraction of the configured keyspace in use at the last allocation",
		}),
		BackfillRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_records_total",
			Help:      "Records visited by the backfill driver, by outcome",
		}, []string{"outcome"}),
		BackfillDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backfill_duration_seconds",
			Help:      "Time taken by a backfill run",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_cache_lookups_total",
			Help:      "Short code cache lookups, by result",
		}, []string{"result"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
