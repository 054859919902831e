package hotshot

import (
	"context"

	"github.com/hotshot-go/hotshot/model/chain"
)

// Persister durably stores everything a node needs to resume consensus after a restart.
// A failed append aborts the vote or proposal that depended on it: a node never votes on data
// it has not persisted.
type Persister interface {

	// AppendDa stores a DA proposal together with its VID payload commitment.
	AppendDa(ctx context.Context, proposal *chain.Proposal[*chain.DaProposal], commitment chain.Commitment) error

	// AppendVid stores this node's VID share.
	AppendVid(ctx context.Context, share *chain.VidShare) error

	// AppendQuorumProposal stores a validated or produced quorum proposal.
	AppendQuorumProposal(ctx context.Context, proposal *chain.Proposal[*chain.QuorumProposal]) error

	// AppendDecidedLeaves stores newly decided leaves and moves the anchor to the given view.
	AppendDecidedLeaves(ctx context.Context, view uint64, leaves []*chain.Leaf) error

	// UpdateDecidedUpgradeCertificate stores the upgrade certificate once it is decided.
	UpdateDecidedUpgradeCertificate(ctx context.Context, cert *chain.UpgradeCertificate) error

	// UpdateHighQC stores the highest known quorum certificate.
	UpdateHighQC(ctx context.Context, qc *chain.QuorumCertificate) error

	// UpdateNextEpochHighQC stores the highest known next-epoch quorum certificate.
	UpdateNextEpochHighQC(ctx context.Context, qc *chain.NextEpochQuorumCertificate) error

	// UpdateStateCert stores the latest light-client state certificate.
	UpdateStateCert(ctx context.Context, cert *chain.LightClientStateUpdateCertificate) error

	// RecordActionedView stores the last view in which this node voted or proposed.
	RecordActionedView(ctx context.Context, view uint64) error

	// AddDrbResult stores a computed DRB result.
	AddDrbResult(ctx context.Context, epoch uint64, result chain.DrbResult) error

	// StoreDrbInput checkpoints an in-progress DRB computation.
	StoreDrbInput(ctx context.Context, input chain.DrbInput) error

	// LoadDrbInput returns the last checkpoint of the epoch's DRB computation.
	LoadDrbInput(ctx context.Context, epoch uint64) (chain.DrbInput, bool, error)

	// LoadConsensusState reads everything needed to build an initializer.
	// Returns nil if nothing was persisted yet.
	LoadConsensusState(ctx context.Context) (*RecoveredState, error)
}

// RecoveredState is the consensus state read back from durable storage.
type RecoveredState struct {
	AnchorLeaf          *chain.Leaf
	HighQC              *chain.QuorumCertificate
	NextEpochHighQC     *chain.NextEpochQuorumCertificate
	Proposals           map[uint64]*chain.Proposal[*chain.QuorumProposal]
	VidShares           map[uint64]*chain.VidShare
	DecidedUpgradeCert  *chain.UpgradeCertificate
	StateCert           *chain.LightClientStateUpdateCertificate
	LastActionedView    uint64
	DrbResults          map[uint64]chain.DrbResult
	SavedDaPayloads     map[uint64]chain.Commitment
	SavedDaProposalData map[uint64]*chain.Proposal[*chain.DaProposal]
}
