package committees

import (
	"context"
	"time"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module"
)

// MetricsWrapper implements the hotshot.Membership interface.
// It wraps a hotshot.Membership instance and measures the time which the consensus tasks
// spend in membership lookups. The measured time durations are reported as values for the
// CommitteeProcessingDuration metric.
type MetricsWrapper struct {
	membership hotshot.Membership
	metrics    module.HotShotMetrics
}

var _ hotshot.Membership = (*MetricsWrapper)(nil)

func NewMetricsWrapper(membership hotshot.Membership, metrics module.HotShotMetrics) *MetricsWrapper {
	return &MetricsWrapper{
		membership: membership,
		metrics:    metrics,
	}
}

func (w MetricsWrapper) StakeTable(epoch chain.Epoch) (chain.StakeTable, error) {
	processStart := time.Now()
	table, err := w.membership.StakeTable(epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return table, err
}

func (w MetricsWrapper) DaStakeTable(epoch chain.Epoch) (chain.StakeTable, error) {
	processStart := time.Now()
	table, err := w.membership.DaStakeTable(epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return table, err
}

func (w MetricsWrapper) Stake(nodeID chain.NodeID, epoch chain.Epoch) (chain.PeerConfig, bool, error) {
	processStart := time.Now()
	entry, ok, err := w.membership.Stake(nodeID, epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return entry, ok, err
}

func (w MetricsWrapper) DaStake(nodeID chain.NodeID, epoch chain.Epoch) (chain.PeerConfig, bool, error) {
	processStart := time.Now()
	entry, ok, err := w.membership.DaStake(nodeID, epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return entry, ok, err
}

func (w MetricsWrapper) HasStake(nodeID chain.NodeID, epoch chain.Epoch) bool {
	processStart := time.Now()
	has := w.membership.HasStake(nodeID, epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return has
}

func (w MetricsWrapper) HasDaStake(nodeID chain.NodeID, epoch chain.Epoch) bool {
	processStart := time.Now()
	has := w.membership.HasDaStake(nodeID, epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return has
}

func (w MetricsWrapper) Leader(view uint64, epoch chain.Epoch) (chain.NodeID, error) {
	processStart := time.Now()
	id, err := w.membership.Leader(view, epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return id, err
}

func (w MetricsWrapper) SuccessThreshold(epoch chain.Epoch) (uint64, error) {
	processStart := time.Now()
	threshold, err := w.membership.SuccessThreshold(epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return threshold, err
}

func (w MetricsWrapper) FailureThreshold(epoch chain.Epoch) (uint64, error) {
	processStart := time.Now()
	threshold, err := w.membership.FailureThreshold(epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return threshold, err
}

func (w MetricsWrapper) UpgradeThreshold(epoch chain.Epoch) (uint64, error) {
	processStart := time.Now()
	threshold, err := w.membership.UpgradeThreshold(epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return threshold, err
}

func (w MetricsWrapper) DaSuccessThreshold(epoch chain.Epoch) (uint64, error) {
	processStart := time.Now()
	threshold, err := w.membership.DaSuccessThreshold(epoch)
	w.metrics.CommitteeProcessingDuration(time.Since(processStart))
	return threshold, err
}

func (w MetricsWrapper) HasStakeTable(epoch chain.Epoch) bool {
	return w.membership.HasStakeTable(epoch)
}

func (w MetricsWrapper) SetFirstEpoch(epoch uint64, initialDrb chain.DrbResult) {
	w.membership.SetFirstEpoch(epoch, initialDrb)
}

func (w MetricsWrapper) FirstEpoch() (uint64, bool) {
	return w.membership.FirstEpoch()
}

func (w MetricsWrapper) AddEpochRoot(ctx context.Context, epoch uint64, root chain.Header) error {
	return w.membership.AddEpochRoot(ctx, epoch, root)
}

func (w MetricsWrapper) AddDrbResult(epoch uint64, result chain.DrbResult) error {
	return w.membership.AddDrbResult(epoch, result)
}

func (w MetricsWrapper) EpochDrb(epoch uint64) (chain.DrbResult, error) {
	return w.membership.EpochDrb(epoch)
}

func (w MetricsWrapper) EpochHeight() uint64 {
	return w.membership.EpochHeight()
}
