package hotshot

import (
	"context"

	"github.com/hotshot-go/hotshot/model/chain"
)

// Membership is the stake table oracle. It answers, for an epoch, who may vote, who leads a
// view and how much stake forms a certificate. Before epochs are active every query is made
// with chain.NoEpoch and answered from the genesis committee.
//
// Lookups for an epoch whose stake table is not known yet fail with committees.ErrNoStakeTable.
// Callers treat this as non-fatal: the action for the view is skipped and retried on a later event.
type Membership interface {

	// StakeTable returns the quorum committee for the epoch, in canonical order. The returned
	// table never contains entries with zero stake.
	StakeTable(epoch chain.Epoch) (chain.StakeTable, error)

	// DaStakeTable returns the DA committee for the epoch. The returned table never
	// contains entries with zero stake.
	DaStakeTable(epoch chain.Epoch) (chain.StakeTable, error)

	// Stake returns the quorum committee entry of the node, if it is a member.
	Stake(nodeID chain.NodeID, epoch chain.Epoch) (chain.PeerConfig, bool, error)

	// DaStake returns the DA committee entry of the node, if it is a member.
	DaStake(nodeID chain.NodeID, epoch chain.Epoch) (chain.PeerConfig, bool, error)

	// HasStake returns true if the node has non-zero quorum stake in the epoch.
	HasStake(nodeID chain.NodeID, epoch chain.Epoch) bool

	// HasDaStake returns true if the node has non-zero DA stake in the epoch.
	HasDaStake(nodeID chain.NodeID, epoch chain.Epoch) bool

	// Leader returns the leader of the view. The result is a deterministic function of the
	// view and the epoch's committee, so every honest node computes the same leader.
	Leader(view uint64, epoch chain.Epoch) (chain.NodeID, error)

	// SuccessThreshold returns floor(2*S/3)+1 of the epoch's total quorum stake S.
	SuccessThreshold(epoch chain.Epoch) (uint64, error)

	// FailureThreshold returns floor(S/3)+1 of the epoch's total quorum stake S.
	FailureThreshold(epoch chain.Epoch) (uint64, error)

	// UpgradeThreshold returns max(floor(9*S/10), floor(2*S/3)+1) of the epoch's total quorum stake S.
	UpgradeThreshold(epoch chain.Epoch) (uint64, error)

	// DaSuccessThreshold returns the success threshold of the epoch's DA committee.
	DaSuccessThreshold(epoch chain.Epoch) (uint64, error)

	// HasStakeTable returns true if the epoch's stake table is known.
	HasStakeTable(epoch chain.Epoch) bool

	// SetFirstEpoch initializes epochs when they are first activated. It registers the
	// epoch and its successor and seeds both with the given DRB result.
	SetFirstEpoch(epoch uint64, initialDrb chain.DrbResult)

	// FirstEpoch returns the epoch passed to SetFirstEpoch.
	FirstEpoch() (uint64, bool)

	// AddEpochRoot registers the stake table of the given epoch, fixed by the epoch root block.
	AddEpochRoot(ctx context.Context, epoch uint64, root chain.Header) error

	// AddDrbResult stores the DRB result of the epoch. Results are write-once.
	AddDrbResult(epoch uint64, result chain.DrbResult) error

	// EpochDrb returns the DRB result of the epoch or committees.ErrDrbMissing.
	EpochDrb(epoch uint64) (chain.DrbResult, error)

	// EpochHeight returns the number of blocks per epoch; zero when epochs are disabled.
	EpochHeight() uint64
}

// StakeTableFetcher reads the stake table that an epoch root block fixes for a future epoch,
// typically from the on-chain stake table contract.
type StakeTableFetcher interface {
	FetchStakeTable(ctx context.Context, epoch uint64, root chain.Header) (chain.StakeTable, error)
}
