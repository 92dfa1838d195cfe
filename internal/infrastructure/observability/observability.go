package observability

import (
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type bundle struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func (b *bundle) Tracer() observability.Tracer   { return b.tracer }
func (b *bundle) Logger() observability.Logger   { return b.logger }
func (b *bundle) Metrics() observability.Metrics { return b.metrics }

// instruments resolves metric keys against what was registered at startup. An
// unknown key gets a no-op and one warning, so a wiring mistake shows up in the
// logs instead of as a silently empty dashboard.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
	log        observability.Logger
	warned     sync.Map // MetricKey -> struct{}
}

func (m *instruments) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	m.missing(name, "counter")
	return observability.NopCounter()
}

func (m *instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	m.missing(name, "histogram")
	return observability.NopHistogram()
}

func (m *instruments) missing(name observability.MetricKey, kind string) {
	if _, seen := m.warned.LoadOrStore(name, struct{}{}); seen {
		return
	}
	m.log.Warn("metric_not_registered",
		observability.F("metric", string(name)),
		observability.F("kind", kind),
	)
}

// New bundles the tracer, logger and registered instruments handed to every
// component. Nil entries are dropped; with no instruments at all metrics are no-ops.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &bundle{tracer: tracer, logger: logger, metrics: observability.NopMetrics()}
	if len(counters) == 0 && len(histograms) == 0 {
		return b
	}

	m := &instruments{
		counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
		log:        logger.With(observability.F("component", "metrics")),
	}
	for k, c := range counters {
		if c != nil {
			m.counters[k] = c
		}
	}
	for k, h := range histograms {
		if h != nil {
			m.histograms[k] = h
		}
	}
	b.metrics = m
	return b
}
