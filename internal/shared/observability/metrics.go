// # internal/shared/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rustfuse_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"crate"})

	CatalogItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustfuse_catalog_items_total",
		Help: "Total number of items in the catalog.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustfuse_graph_edges_total",
		Help: "Total number of resolved reference edges.",
	})

	UnresolvedRefs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustfuse_unresolved_refs_total",
		Help: "References that matched nothing in the catalog during the last run.",
	})

	AmbiguousRefs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustfuse_ambiguous_refs_total",
		Help: "References that matched impl members in more than one block.",
	})

	RequiredItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustfuse_required_items_total",
		Help: "Nodes marked required by the last resolution run.",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rustfuse_stage_seconds",
		Help:    "Time spent in one pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	FusionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustfuse_runs_total",
		Help: "Completed fusion runs by outcome.",
	}, []string{"outcome"})

	OperatorDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustfuse_operator_decisions_total",
		Help: "Interactive decisions by kind.",
	}, []string{"decision"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustfuse_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
