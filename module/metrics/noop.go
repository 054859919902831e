package metrics

import (
	"time"

	"github.com/hotshot-go/hotshot/module"
)

type NoopCollector struct{}

var _ module.ConsensusMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) SetCurView(view uint64)                                             {}
func (nc *NoopCollector) SetCurEpoch(epoch uint64)                                           {}
func (nc *NoopCollector) SetDecidedView(view uint64)                                         {}
func (nc *NoopCollector) SetHighQCView(view uint64)                                          {}
func (nc *NoopCollector) LeavesDecided(count int)                                            {}
func (nc *NoopCollector) CountTimeout()                                                      {}
func (nc *NoopCollector) SetTimeout(duration time.Duration)                                  {}
func (nc *NoopCollector) CommitteeProcessingDuration(duration time.Duration)                 {}
func (nc *NoopCollector) EventProcessed(task string, event string, outcome string)           {}
func (nc *NoopCollector) EventProcessingDuration(task string, event string, d time.Duration) {}
func (nc *NoopCollector) InboundQueueLength(task string, length int)                         {}
func (nc *NoopCollector) CertificateFormed(kind string)                                      {}
func (nc *NoopCollector) VoteRejected(kind string, reason string)                            {}
func (nc *NoopCollector) BuilderClaimDuration(duration time.Duration)                        {}
func (nc *NoopCollector) BuilderFailure(builder string)                                      {}
func (nc *NoopCollector) NullBlockProposed()                                                 {}
func (nc *NoopCollector) MempoolEntries(resource string, entries uint)                       {}
