package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hotshot-go/hotshot/module"
)

// BuilderCollector reports the interaction with block builders.
type BuilderCollector struct {
	claimDuration prometheus.Histogram
	failures      *prometheus.CounterVec
	nullBlocks    prometheus.Counter
}

var _ module.BuilderMetrics = (*BuilderCollector)(nil)

func NewBuilderCollector(registerer prometheus.Registerer) *BuilderCollector {
	factory := promauto.With(registerer)
	return &BuilderCollector{
		claimDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:      "claim_seconds",
			Namespace: namespaceHotShot,
			Subsystem: subsystemBuilder,
			Help:      "time to obtain a block from the builders",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "failures_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemBuilder,
			Help:      "the number of failed builder requests",
		}, []string{LabelBuilder}),
		nullBlocks: factory.NewCounter(prometheus.CounterOpts{
			Name:      "null_blocks_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemBuilder,
			Help:      "the number of views proposed with a null block",
		}),
	}
}

func (c *BuilderCollector) BuilderClaimDuration(duration time.Duration) {
	c.claimDuration.Observe(duration.Seconds())
}

func (c *BuilderCollector) BuilderFailure(builder string) {
	c.failures.With(prometheus.Labels{LabelBuilder: builder}).Inc()
}

func (c *BuilderCollector) NullBlockProposed() {
	c.nullBlocks.Inc()
}

// MempoolCollector reports mempool sizes.
type MempoolCollector struct {
	entries *prometheus.GaugeVec
}

var _ module.MempoolMetrics = (*MempoolCollector)(nil)

func NewMempoolCollector(registerer prometheus.Registerer) *MempoolCollector {
	factory := promauto.With(registerer)
	return &MempoolCollector{
		entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "entries_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemMempool,
			Help:      "the number of entries in the mempool",
		}, []string{LabelResource}),
	}
}

func (c *MempoolCollector) MempoolEntries(resource string, entries uint) {
	c.entries.With(prometheus.Labels{LabelResource: resource}).Set(float64(entries))
}
