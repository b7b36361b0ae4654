// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates the framework's execution and routing metrics.
type Collector struct {
	nodeExecutionsTotal   *prometheus.CounterVec
	nodeExecutionDuration *prometheus.HistogramVec
	runsTotal             *prometheus.CounterVec

	routingDecisionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates a metrics collector. When reg is nil a private
// registry is created, so independent collectors never collide on metric
// registration.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of workflow node executions",
		},
		[]string{"graph", "agent_type", "success"},
	)

	c.nodeExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_execution_duration_seconds",
			Help:      "Workflow node execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"graph", "agent_type"},
	)

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of workflow runs by terminal status",
		},
		[]string{"graph", "status"},
	)

	c.routingDecisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of model routing decisions",
		},
		[]string{"provider", "tier", "cache"},
	)

	return c
}

// Registry exposes the underlying registry for scraping.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveNodeExecution records one node execution.
func (c *Collector) ObserveNodeExecution(graph, agentType string, success bool, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(graph, agentType, boolLabel(success)).Inc()
	c.nodeExecutionDuration.WithLabelValues(graph, agentType).Observe(duration.Seconds())
}

// ObserveRun records one workflow run reaching a terminal status.
func (c *Collector) ObserveRun(graph, status string) {
	c.runsTotal.WithLabelValues(graph, status).Inc()
}

// ObserveRoutingDecision records one model routing decision.
func (c *Collector) ObserveRoutingDecision(provider, tier string, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	c.routingDecisionsTotal.WithLabelValues(provider, tier, cache).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
