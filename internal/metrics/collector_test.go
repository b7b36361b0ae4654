package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObservationsAreGatherable(t *testing.T) {
	t.Parallel()
	c := NewCollector("gridflow", nil)

	c.ObserveNodeExecution("g", "echo", true, 10*time.Millisecond)
	c.ObserveNodeExecution("g", "echo", false, 5*time.Millisecond)
	c.ObserveRun("g", "succeeded")
	c.ObserveRoutingDecision("openai", "low", false)
	c.ObserveRoutingDecision("openai", "low", true)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gridflow_node_executions_total"])
	assert.True(t, names["gridflow_node_execution_duration_seconds"])
	assert.True(t, names["gridflow_runs_total"])
	assert.True(t, names["gridflow_routing_decisions_total"])

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.routingDecisionsTotal.WithLabelValues("openai", "low", "hit")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("g", "echo", "false")))
}

func TestCollector_IndependentRegistriesDoNotCollide(t *testing.T) {
	t.Parallel()
	a := NewCollector("gridflow", nil)
	b := NewCollector("gridflow", nil)

	a.ObserveRun("g", "succeeded")
	b.ObserveRun("g", "failed")

	count, err := testutil.GatherAndCount(a.Registry(), "gridflow_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
