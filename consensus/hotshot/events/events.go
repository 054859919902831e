// Package events defines the typed events consensus tasks exchange over the in-process bus.
//
// Events ending in Recv originate from the network, events ending in Send are to be
// transmitted by the network task. All other events are local.
package events

import (
	"github.com/hotshot-go/hotshot/model/chain"
)

// Event is a message published on the bus.
type Event interface {
	Name() string
}

type (
	DaProposal      = chain.Proposal[*chain.DaProposal]
	QuorumProposal  = chain.Proposal[*chain.QuorumProposal]
	UpgradeProposal = chain.Proposal[*chain.UpgradeProposal]
)

// ViewChange announces that the node entered the view.
type ViewChange struct {
	View  uint64
	Epoch chain.Epoch
}

// Timeout is emitted when the view timer of the view expires.
type Timeout struct {
	View  uint64
	Epoch chain.Epoch
}

// TransactionsRecv delivers transactions submitted by clients.
type TransactionsRecv struct {
	Transactions []chain.Transaction
}

// PackedBundle is a block chosen for a view, either claimed from a builder or a null block.
type PackedBundle struct {
	EncodedTransactions []byte
	Metadata            []byte
	View                uint64
	Epoch               chain.Epoch
	Fee                 chain.BuilderFee
	// Null is set when no builder block was available and the bundle is empty.
	Null bool
}

// BlockRecv is emitted by the transaction task once the block for a view is known.
type BlockRecv struct {
	Bundle PackedBundle
}

// DaProposalRecv is a DA proposal received from the network.
type DaProposalRecv struct {
	Proposal *DaProposal
	Sender   chain.NodeID
}

// DaProposalValidated is a DA proposal that passed the leader and signature checks.
type DaProposalValidated struct {
	Proposal *DaProposal
	Sender   chain.NodeID
}

// DaProposalSend asks the network to send the DA proposal to the DA committee.
type DaProposalSend struct {
	Proposal *DaProposal
	Sender   chain.NodeID
}

type DaVoteRecv struct {
	Vote *chain.DaVote
}

// DaVoteSend asks the network to send the vote to the DA leader of the vote's view.
type DaVoteSend struct {
	Vote *chain.DaVote
}

// DacSend asks the network to broadcast a formed DA certificate.
type DacSend struct {
	Cert   *chain.DaCertificate
	Sender chain.NodeID
}

type DaCertificateRecv struct {
	Cert   *chain.DaCertificate
	Sender chain.NodeID
}

// DaCertificateValidated is a DA certificate whose signature was verified.
type DaCertificateValidated struct {
	Cert *chain.DaCertificate
}

// SendPayloadCommitmentAndMetadata hands the leader's payload commitment to the proposal task.
type SendPayloadCommitmentAndMetadata struct {
	PayloadCommitment chain.Commitment
	BuilderCommitment chain.Commitment
	Metadata          []byte
	View              uint64
	Epoch             chain.Epoch
	Fee               chain.BuilderFee
}

type QuorumProposalRecv struct {
	Proposal *QuorumProposal
	Sender   chain.NodeID
}

// QuorumProposalValidated is a quorum proposal that passed validation and whose leaf was
// added to the store.
type QuorumProposalValidated struct {
	Proposal   *QuorumProposal
	ParentLeaf *chain.Leaf
}

// QuorumProposalSend asks the network to broadcast the proposal.
type QuorumProposalSend struct {
	Proposal *QuorumProposal
	Sender   chain.NodeID
}

type QuorumVoteRecv struct {
	Vote *chain.QuorumVote
}

// QuorumVoteSend asks the network to send the vote to the leader of the next view.
type QuorumVoteSend struct {
	Vote *chain.QuorumVote
}

// ExtendedQuorumVoteSend asks the network to broadcast the vote to every node.
type ExtendedQuorumVoteSend struct {
	Vote *chain.QuorumVote
}

// EpochRootQuorumVote is a quorum vote on an epoch root leaf together with the voter's
// light-client state attestation.
type EpochRootQuorumVote struct {
	Vote      *chain.QuorumVote
	StateVote *chain.LightClientStateUpdateVote
}

type EpochRootQuorumVoteSend struct {
	Vote EpochRootQuorumVote
}

type EpochRootQuorumVoteRecv struct {
	Vote EpochRootQuorumVote
}

// Qc2Formed is a QC formed by the current epoch's committee.
type Qc2Formed struct {
	QC *chain.QuorumCertificate
}

// NextEpochQc2Formed is a QC formed by the next epoch's committee during a transition.
type NextEpochQc2Formed struct {
	QC *chain.NextEpochQuorumCertificate
}

// ExtendedQc2Formed is a pair of current and next epoch QCs certifying the same leaf.
type ExtendedQc2Formed struct {
	Pair chain.TransitionQCPair
}

type TimeoutVoteRecv struct {
	Vote *chain.TimeoutVote
}

// TimeoutVoteSend asks the network to send the vote to the leader of the next view.
type TimeoutVoteSend struct {
	Vote *chain.TimeoutVote
}

// TcFormed is a timeout certificate formed from timeout votes.
type TcFormed struct {
	Cert *chain.TimeoutCertificate
}

// ViewSyncFinalizeCertificateRecv is a view-sync certificate usable as view change evidence.
type ViewSyncFinalizeCertificateRecv struct {
	Cert *chain.ViewSyncFinalizeCert
}

type UpgradeProposalRecv struct {
	Proposal *UpgradeProposal
	Sender   chain.NodeID
}

type UpgradeProposalSend struct {
	Proposal *UpgradeProposal
	Sender   chain.NodeID
}

type UpgradeVoteRecv struct {
	Vote *chain.UpgradeVote
}

type UpgradeVoteSend struct {
	Vote *chain.UpgradeVote
}

// UpgradeCertificateFormed is an upgrade certificate formed by this node or received from the network.
type UpgradeCertificateFormed struct {
	Cert *chain.UpgradeCertificate
}

// UpgradeDecided is emitted when a leaf carrying the upgrade certificate is decided.
type UpgradeDecided struct {
	Cert *chain.UpgradeCertificate
}

// VidDisperseSend asks the network to send every recipient its share.
type VidDisperseSend struct {
	Disperse  *chain.VidDisperse
	Sender    chain.NodeID
	Signature []byte
}

type VidShareRecv struct {
	Share     *chain.VidShare
	Sender    chain.NodeID
	Signature []byte
}

// VidShareValidated is this node's share after its commitment and sender were checked.
type VidShareValidated struct {
	Share *chain.VidShare
}

// HighQcSend asks the network to send this node's high QCs to the leader of the next view.
type HighQcSend struct {
	QC          *chain.QuorumCertificate
	NextEpochQC *chain.NextEpochQuorumCertificate
	// View is the view the leader proposes in.
	View   uint64
	Leader chain.NodeID
	Sender chain.NodeID
}

type HighQcRecv struct {
	QC          *chain.QuorumCertificate
	NextEpochQC *chain.NextEpochQuorumCertificate
	View        uint64
	Sender      chain.NodeID
}

// HighQcWaitElapsed ends the leader's wait for high QCs from other nodes before proposing the view.
type HighQcWaitElapsed struct {
	View uint64
}

// LeavesDecided carries newly decided leaves, newest first, and the QC that decided them.
type LeavesDecided struct {
	Leaves []*chain.Leaf
	QC     *chain.QuorumCertificate
}

// LockedViewUpdated is emitted when the locked view advances.
type LockedViewUpdated struct {
	View uint64
}

// LastDecidedViewUpdated is emitted when the decided view advances.
type LastDecidedViewUpdated struct {
	View uint64
}

// StateCertificateFormed is a light-client state certificate assembled from epoch root votes.
type StateCertificateFormed struct {
	Cert *chain.LightClientStateUpdateCertificate
}

// DrbResultComputed is the DRB result of an epoch computed by this node.
type DrbResultComputed struct {
	Epoch  uint64
	Result chain.DrbResult
}

func (ViewChange) Name() string                       { return "view_change" }
func (Timeout) Name() string                          { return "timeout" }
func (TransactionsRecv) Name() string                 { return "transactions_recv" }
func (BlockRecv) Name() string                        { return "block_recv" }
func (DaProposalRecv) Name() string                   { return "da_proposal_recv" }
func (DaProposalValidated) Name() string              { return "da_proposal_validated" }
func (DaProposalSend) Name() string                   { return "da_proposal_send" }
func (DaVoteRecv) Name() string                       { return "da_vote_recv" }
func (DaVoteSend) Name() string                       { return "da_vote_send" }
func (DacSend) Name() string                          { return "dac_send" }
func (DaCertificateRecv) Name() string                { return "da_certificate_recv" }
func (DaCertificateValidated) Name() string           { return "da_certificate_validated" }
func (SendPayloadCommitmentAndMetadata) Name() string { return "send_payload_commitment_and_metadata" }
func (QuorumProposalRecv) Name() string               { return "quorum_proposal_recv" }
func (QuorumProposalValidated) Name() string          { return "quorum_proposal_validated" }
func (QuorumProposalSend) Name() string               { return "quorum_proposal_send" }
func (QuorumVoteRecv) Name() string                   { return "quorum_vote_recv" }
func (QuorumVoteSend) Name() string                   { return "quorum_vote_send" }
func (ExtendedQuorumVoteSend) Name() string           { return "extended_quorum_vote_send" }
func (EpochRootQuorumVoteSend) Name() string          { return "epoch_root_quorum_vote_send" }
func (EpochRootQuorumVoteRecv) Name() string          { return "epoch_root_quorum_vote_recv" }
func (Qc2Formed) Name() string                        { return "qc2_formed" }
func (NextEpochQc2Formed) Name() string               { return "next_epoch_qc2_formed" }
func (ExtendedQc2Formed) Name() string                { return "extended_qc2_formed" }
func (TimeoutVoteRecv) Name() string                  { return "timeout_vote_recv" }
func (TimeoutVoteSend) Name() string                  { return "timeout_vote_send" }
func (TcFormed) Name() string                         { return "tc_formed" }
func (ViewSyncFinalizeCertificateRecv) Name() string  { return "view_sync_finalize_certificate_recv" }
func (UpgradeProposalRecv) Name() string              { return "upgrade_proposal_recv" }
func (UpgradeProposalSend) Name() string              { return "upgrade_proposal_send" }
func (UpgradeVoteRecv) Name() string                  { return "upgrade_vote_recv" }
func (UpgradeVoteSend) Name() string                  { return "upgrade_vote_send" }
func (UpgradeCertificateFormed) Name() string         { return "upgrade_certificate_formed" }
func (UpgradeDecided) Name() string                   { return "upgrade_decided" }
func (VidDisperseSend) Name() string                  { return "vid_disperse_send" }
func (VidShareRecv) Name() string                     { return "vid_share_recv" }
func (VidShareValidated) Name() string                { return "vid_share_validated" }
func (HighQcSend) Name() string                       { return "high_qc_send" }
func (HighQcRecv) Name() string                       { return "high_qc_recv" }
func (HighQcWaitElapsed) Name() string                { return "high_qc_wait_elapsed" }
func (LeavesDecided) Name() string                    { return "leaves_decided" }
func (LockedViewUpdated) Name() string                { return "locked_view_updated" }
func (LastDecidedViewUpdated) Name() string           { return "last_decided_view_updated" }
func (StateCertificateFormed) Name() string           { return "state_certificate_formed" }
func (DrbResultComputed) Name() string                { return "drb_result_computed" }
