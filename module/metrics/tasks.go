package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hotshot-go/hotshot/module"
)

// TaskCollector reports event handling of the consensus tasks.
type TaskCollector struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	queued   *prometheus.GaugeVec
}

var _ module.TaskMetrics = (*TaskCollector)(nil)

func NewTaskCollector(registerer prometheus.Registerer) *TaskCollector {
	factory := promauto.With(registerer)
	return &TaskCollector{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "events_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemTasks,
			Help:      "the number of events processed by tasks, by outcome",
		}, []string{LabelTask, LabelEvent, LabelOutcome}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "event_processing_seconds",
			Namespace: namespaceHotShot,
			Subsystem: subsystemTasks,
			Help:      "duration of event handling by tasks",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{LabelTask, LabelEvent}),
		queued: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "inbound_queue_length",
			Namespace: namespaceHotShot,
			Subsystem: subsystemTasks,
			Help:      "the number of events waiting to be handled by a task",
		}, []string{LabelTask}),
	}
}

func (c *TaskCollector) EventProcessed(task string, event string, outcome string) {
	c.events.With(prometheus.Labels{LabelTask: task, LabelEvent: event, LabelOutcome: outcome}).Inc()
}

func (c *TaskCollector) EventProcessingDuration(task string, event string, duration time.Duration) {
	c.duration.With(prometheus.Labels{LabelTask: task, LabelEvent: event}).Observe(duration.Seconds())
}

func (c *TaskCollector) InboundQueueLength(task string, length int) {
	c.queued.With(prometheus.Labels{LabelTask: task}).Set(float64(length))
}

// CertificateCollector reports certificate formation and vote rejection.
type CertificateCollector struct {
	formed   *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

var _ module.CertificateMetrics = (*CertificateCollector)(nil)

func NewCertificateCollector(registerer prometheus.Registerer) *CertificateCollector {
	factory := promauto.With(registerer)
	return &CertificateCollector{
		formed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "formed_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemCertificates,
			Help:      "the number of certificates formed by this node",
		}, []string{LabelKind}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "votes_rejected_total",
			Namespace: namespaceHotShot,
			Subsystem: subsystemCertificates,
			Help:      "the number of rejected votes",
		}, []string{LabelKind, LabelReason}),
	}
}

func (c *CertificateCollector) CertificateFormed(kind string) {
	c.formed.With(prometheus.Labels{LabelKind: kind}).Inc()
}

func (c *CertificateCollector) VoteRejected(kind string, reason string) {
	c.rejected.With(prometheus.Labels{LabelKind: kind, LabelReason: reason}).Inc()
}
