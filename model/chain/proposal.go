package chain

// ViewChangeEvidence justifies a proposal whose justify QC is not from the previous view.
type ViewChangeEvidence struct {
	Timeout  *TimeoutCertificate
	ViewSync *ViewSyncFinalizeCert
}

// QuorumProposal is a leader's proposal of a new leaf.
type QuorumProposal struct {
	BlockHeader        Header
	View               uint64
	Epoch              Epoch
	Justify            *QuorumCertificate
	NextEpochJustify   *NextEpochQuorumCertificate
	UpgradeCertificate *UpgradeCertificate
	ViewChangeEvidence *ViewChangeEvidence
	NextDrbResult      *DrbResult
	StateCert          *LightClientStateUpdateCertificate
}

// Leaf derives the leaf described by the proposal.
func (p *QuorumProposal) Leaf() *Leaf {
	leaf := &Leaf{
		View:               p.View,
		Justify:            p.Justify,
		NextEpochJustify:   p.NextEpochJustify,
		Header:             p.BlockHeader,
		UpgradeCertificate: p.UpgradeCertificate,
		NextDrbResult:      p.NextDrbResult,
		WithEpoch:          p.Epoch.Valid,
	}
	if p.Justify != nil {
		leaf.ParentCommitment = p.Justify.Data.LeafCommitment
	}
	return leaf
}

// Commit is the leaf commitment; leaders sign this value.
func (p *QuorumProposal) Commit() Commitment {
	return p.Leaf().Commit()
}

// DaProposal carries the full block payload to the DA committee.
type DaProposal struct {
	EncodedTransactions []byte
	Metadata            []byte
	View                uint64
	Epoch               Epoch
	// EpochTransitionIndicator marks payloads that must also reach the next epoch's committee.
	EpochTransitionIndicator bool
}

// Commit is the hash of the encoded transactions; leaders sign this value.
func (p *DaProposal) Commit() Commitment {
	return CommitmentFromBytes(p.EncodedTransactions)
}

// UpgradeProposal proposes an upgrade for the committee to vote on.
type UpgradeProposal struct {
	Data UpgradeProposalData
	View uint64
}

func (p *UpgradeProposal) Commit() Commitment {
	return VoteCommitment(p.Data.Commit(), p.View)
}

// Committable is anything with a commitment that can be signed.
type Committable interface {
	Commit() Commitment
}

// Proposal is a leader-signed message.
type Proposal[T Committable] struct {
	Data      T
	Signature []byte
}
