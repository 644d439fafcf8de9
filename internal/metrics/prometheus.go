package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	RecordsLoaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "records_loaded_total",
			Help: "Records read from input batches",
		},
	)

	RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_processed_total",
			Help: "Records processed by declared kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ChainLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_latency_seconds",
			Help:    "Time spent running one record through its chain",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_failures_total",
			Help: "Sink accept/finalize failures",
		},
		[]string{"sink", "op"},
	)
)

func init() {
	prometheus.MustRegister(RecordsLoaded, RecordsProcessed, ChainLatency, SinkFailures)
}
