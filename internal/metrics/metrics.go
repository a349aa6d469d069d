package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/eleven-am/dbhelper/pkg/dbhelper"
	"github.com/eleven-am/dbhelper/pkg/script"
)

const namespace = "dbhelper"

// Collector holds the resolver and statement metrics. It implements
// script.Observer and provides a dbhelper.Middleware.
type Collector struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	bundleScripts *prometheus.GaugeVec
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var _ script.Observer = (*Collector)(nil)

// New creates a Collector and registers it with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_cache_hits_total",
				Help:      "Total script references served from the resolved-text cache.",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_cache_misses_total",
				Help:      "Total script references that required a bundle scan.",
			},
		),
		bundleScripts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bundle_scripts",
				Help:      "Number of script resources indexed per bundle.",
			},
			[]string{"bundle"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total statements run by operation, statement kind and status.",
			},
			[]string{"operation", "kind", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Statement latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "kind"},
		),
	}

	for _, collector := range []prometheus.Collector{c.cacheHits, c.cacheMisses, c.bundleScripts, c.operations, c.latency} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ScriptCacheHit(string) {
	c.cacheHits.Inc()
}

func (c *Collector) ScriptCacheMiss(string) {
	c.cacheMisses.Inc()
}

func (c *Collector) BundleIndexed(bundle string, scripts int) {
	c.bundleScripts.WithLabelValues(bundle).Set(float64(scripts))
}

// Middleware counts and times every operation
func (c *Collector) Middleware() dbhelper.Middleware {
	return func(next dbhelper.Handler) dbhelper.Handler {
		return func(op *dbhelper.OperationContext) error {
			err := next(op)

			kind := "unknown"
			if op.Statement != nil {
				kind = op.Statement.Kind.String()
			}
			status := "ok"
			if err != nil {
				status = "error"
			}

			c.operations.WithLabelValues(string(op.Operation), kind, status).Inc()
			c.latency.WithLabelValues(string(op.Operation), kind).Observe(op.Duration.Seconds())
			return err
		}
	}
}

// WriteText writes every metric family gathered from g in the text exposition format
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
