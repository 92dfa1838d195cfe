package prometrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

func TestStandardInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := Standard(NewWithRegisterer(reg, "", ""))

	counters[observability.MInventoryAdjustments].Add(1, observability.L("op", "reserve"), observability.L("outcome", "success"))
	counters[observability.MInventoryAdjustments].Add(2, observability.L("op", "reserve"), observability.L("outcome", "success"))
	histograms[observability.MUsecaseDuration].Observe(0.2, observability.L("use_case", "order.create"))

	expected := `
# HELP inventory_adjustments_total Conditional stock updates by operation and outcome.
# TYPE inventory_adjustments_total counter
inventory_adjustments_total{op="reserve",outcome="success"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "inventory_adjustments_total"))

	n, err := testutil.GatherAndCount(reg, "usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg, "shop", "")

	a := r.Counter("events_total", "events", "kind")
	b := r.Counter("events_total", "events", "kind")
	a.Add(1, observability.L("kind", "x"))
	b.Add(1, observability.L("kind", "x"))

	n, err := testutil.GatherAndCount(reg, "shop_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
