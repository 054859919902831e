package module

import (
	"time"
)

// Task event outcomes, derived from the error a task handler returns for an event.
const (
	OutcomeHandled  = "handled"
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type HotShotMetrics interface {
	// SetCurView reports the current view of the view timer.
	SetCurView(view uint64)

	// SetCurEpoch reports the current epoch.
	SetCurEpoch(epoch uint64)

	// SetDecidedView reports the view of the latest decided leaf.
	SetDecidedView(view uint64)

	// SetHighQCView reports the view of the highest known QC.
	SetHighQCView(view uint64)

	// LeavesDecided counts decided leaves.
	LeavesDecided(count int)

	// CountTimeout counts views this node left by timing out.
	CountTimeout()

	// SetTimeout sets the current view timeout duration.
	SetTimeout(duration time.Duration)

	// CommitteeProcessingDuration measures the time spent in membership lookups.
	CommitteeProcessingDuration(duration time.Duration)
}

// TaskMetrics reports how consensus tasks handle events. Implementations must be non-blocking
// and concurrency safe.
type TaskMetrics interface {
	// EventProcessed reports that the task finished processing the event with the given outcome.
	EventProcessed(task string, event string, outcome string)

	// EventProcessingDuration measures the time the task spent handling one event.
	EventProcessingDuration(task string, event string, duration time.Duration)

	// InboundQueueLength reports the number of events queued for the task.
	InboundQueueLength(task string, length int)
}

type CertificateMetrics interface {
	// CertificateFormed counts certificates formed, per certificate kind.
	CertificateFormed(kind string)

	// VoteRejected counts rejected votes, per certificate kind and reason.
	VoteRejected(kind string, reason string)
}

type BuilderMetrics interface {
	// BuilderClaimDuration measures the time to obtain a block from builders.
	BuilderClaimDuration(duration time.Duration)

	// BuilderFailure counts failed requests to a builder.
	BuilderFailure(builder string)

	// NullBlockProposed counts views in which no builder block was available in time.
	NullBlockProposed()
}

type MempoolMetrics interface {
	MempoolEntries(resource string, entries uint)
}

// ConsensusMetrics bundles every metrics consumer of the consensus core.
type ConsensusMetrics interface {
	HotShotMetrics
	TaskMetrics
	CertificateMetrics
	BuilderMetrics
	MempoolMetrics
}
