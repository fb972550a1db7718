package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics registers the compiler metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		compileDurationSeconds,
		sourcesCompiledTotal,
		sourcesFailedTotal,
		sourcesSkippedTotal,
		elementsUnboundTotal,
		transactionsTotal,
		graphNodes,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

var (
	compileDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelc_compile_duration_seconds",
			Help:    "Duration of compile runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	sourcesCompiledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelc_sources_compiled_total",
			Help: "Total number of sources compiled successfully",
		},
	)

	sourcesFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelc_sources_failed_total",
			Help: "Total number of sources that failed to compile",
		},
	)

	sourcesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelc_sources_skipped_total",
			Help: "Total number of sources skipped because their content was unchanged",
		},
	)

	elementsUnboundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelc_elements_unbound_total",
			Help: "Total number of elements reverted to unbound by edits",
		},
	)

	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelc_transactions_total",
			Help: "Total number of compiler transactions per outcome",
		},
		[]string{"outcome"},
	)

	graphNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modelc_graph_nodes",
			Help: "Number of committed graph nodes per kind",
		},
		[]string{"kind"},
	)
)
