package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hotshot-go/hotshot/module"
)

// HotShotCollector reports the progress of consensus.
type HotShotCollector struct {
	curView                     prometheus.Gauge
	curEpoch                    prometheus.Gauge
	decidedView                 prometheus.Gauge
	highQCView                  prometheus.Gauge
	leavesDecided               prometheus.Counter
	timeouts                    prometheus.Counter
	timeoutDuration             prometheus.Gauge
	committeeProcessingDuration prometheus.Histogram
}

var _ module.HotShotMetrics = (*HotShotCollector)(nil)

func NewHotShotCollector(registerer prometheus.Registerer) *HotShotCollector {
	factory := promauto.With(registerer)
	return &HotShotCollector{
		curView: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "cur_view",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the current view of the view timer",
		}),
		curEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "cur_epoch",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the current epoch",
		}),
		decidedView: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "decided_view",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the view of the latest decided leaf",
		}),
		highQCView: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "high_qc_view",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the view of the highest known quorum certificate",
		}),
		leavesDecided: factory.NewCounter(prometheus.CounterOpts{
			Name:      "leaves_decided_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the number of decided leaves",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name:      "timeouts_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the number of views this node left by timing out",
		}),
		timeoutDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "timeout_seconds",
			Namespace: namespaceHotShot,
			Subsystem: subsystemConsensus,
			Help:      "the current view timeout",
		}),
		committeeProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:      "committee_processing_seconds",
			Namespace: namespaceHotShot,
			Subsystem: subsystemMembership,
			Help:      "duration of membership lookups",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}
}

func (c *HotShotCollector) SetCurView(view uint64)     { c.curView.Set(float64(view)) }
func (c *HotShotCollector) SetCurEpoch(epoch uint64)   { c.curEpoch.Set(float64(epoch)) }
func (c *HotShotCollector) SetDecidedView(view uint64) { c.decidedView.Set(float64(view)) }
func (c *HotShotCollector) SetHighQCView(view uint64)  { c.highQCView.Set(float64(view)) }
func (c *HotShotCollector) LeavesDecided(count int)    { c.leavesDecided.Add(float64(count)) }
func (c *HotShotCollector) CountTimeout()              { c.timeouts.Inc() }

func (c *HotShotCollector) SetTimeout(duration time.Duration) {
	c.timeoutDuration.Set(duration.Seconds())
}

func (c *HotShotCollector) CommitteeProcessingDuration(duration time.Duration) {
	c.committeeProcessingDuration.Observe(duration.Seconds())
}
