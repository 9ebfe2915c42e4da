// Package metrics provides the Prometheus collector for router dispatches,
// memory store operations, and orchestrator pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric the core emits.
type Collector struct {
	routerDispatchTotal    *prometheus.CounterVec
	routerDispatchDuration *prometheus.HistogramVec
	routerBiasedScore      *prometheus.HistogramVec

	memoryOpTotal    *prometheus.CounterVec
	memoryOpDuration *prometheus.HistogramVec
	memoryShardSize  *prometheus.GaugeVec

	pipelineRunsTotal   *prometheus.CounterVec
	pipelineRunDuration *prometheus.HistogramVec
}

// NewCollector registers every metric under namespace (typically
// "raeburn") and returns the collector.
func NewCollector(namespace string) *Collector {
	return &Collector{
		routerDispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_dispatch_total",
			Help:      "Total number of adapter dispatches issued by the router.",
		}, []string{"model", "status"}),

		routerDispatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "router_dispatch_duration_seconds",
			Help:      "Dispatch latency per candidate.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"model"}),

		routerBiasedScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "router_biased_score",
			Help:      "Distribution of biased candidate scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"model"}),

		memoryOpTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_op_total",
			Help:      "Total number of memory store operations.",
		}, []string{"op", "status"}),

		memoryOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_op_duration_seconds",
			Help:      "Memory store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		memoryShardSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_shard_entries",
			Help:      "Live entry count observed in a shard at last write.",
		}, []string{"shard"}),

		pipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of orchestrator pipeline runs.",
		}, []string{"agent_role", "status"}),

		pipelineRunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Orchestrator pipeline run duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"agent_role"}),
	}
}

func (c *Collector) RecordDispatch(model, status string, duration time.Duration, biasedScore float64) {
	c.routerDispatchTotal.WithLabelValues(model, status).Inc()
	c.routerDispatchDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.routerBiasedScore.WithLabelValues(model).Observe(biasedScore)
}

func (c *Collector) RecordMemoryOp(op, status string, duration time.Duration) {
	c.memoryOpTotal.WithLabelValues(op, status).Inc()
	c.memoryOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (c *Collector) SetShardSize(shard string, count int) {
	c.memoryShardSize.WithLabelValues(shard).Set(float64(count))
}

func (c *Collector) RecordPipelineRun(agentRole, status string, duration time.Duration) {
	c.pipelineRunsTotal.WithLabelValues(agentRole, status).Inc()
	c.pipelineRunDuration.WithLabelValues(agentRole).Observe(duration.Seconds())
}
