package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type countingCounter struct{ total float64 }

func (c *countingCounter) Add(d float64, _ ...observability.Label) { c.total += d }

func TestBundleFallsBackToNop(t *testing.T) {
	c := &countingCounter{}
	tel := New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MInventoryAdjustments: c,
		observability.MHTTPRequests:         nil,
	}, nil)

	tel.Metrics().Counter(observability.MInventoryAdjustments).Add(2)
	assert.Equal(t, 2.0, c.total)

	assert.NotPanics(t, func() {
		tel.Metrics().Counter(observability.MHTTPRequests).Add(1)
		tel.Metrics().Histogram(observability.MUsecaseDuration).Observe(1)
		tel.Logger().Info("ok")
	})
	assert.NotNil(t, tel.Tracer())
}

func TestUnregisteredMetricWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tel := New(nil, zaplogger.Wrap(zap.New(core)), map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: &countingCounter{},
	}, nil)

	for i := 0; i < 3; i++ {
		tel.Metrics().Counter(observability.MExternalRequests).Add(1)
	}
	tel.Metrics().Histogram(observability.MUsecaseDuration).Observe(1)

	entries := logs.FilterMessage("metric_not_registered").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "external_requests_total", entries[0].ContextMap()["metric"])
	assert.Equal(t, "counter", entries[0].ContextMap()["kind"])
	assert.Equal(t, "histogram", entries[1].ContextMap()["kind"])
}

func TestNoInstrumentsMeansNopMetrics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tel := New(nil, zaplogger.Wrap(zap.New(core)), nil, nil)

	tel.Metrics().Counter(observability.MHTTPRequests).Add(1)
	assert.Zero(t, logs.Len())
}
