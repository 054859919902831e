package chain

import (
	"encoding/binary"
	"fmt"
)

// VoteData is the payload a vote signs over. Every vote data kind carries the epoch
// whose stake table is authoritative for the votes.
type VoteData interface {
	Commit() Commitment
	DataEpoch() Epoch
}

// QuorumData is voted on to certify a proposed leaf.
type QuorumData struct {
	LeafCommitment Commitment
	Epoch          Epoch
	BlockNumber    uint64
}

func (d QuorumData) Commit() Commitment {
	return MakeCommitment(struct {
		Kind string
		Data QuorumData
	}{"quorum", d})
}

func (d QuorumData) DataEpoch() Epoch { return d.Epoch }

// NextEpochQuorumData is QuorumData certified by the next epoch's committee during an
// epoch transition. Both committees sign the same bytes, so the commitment is shared.
type NextEpochQuorumData QuorumData

func (d NextEpochQuorumData) Commit() Commitment { return QuorumData(d).Commit() }

// DataEpoch returns the epoch of the committee that signs this data.
func (d NextEpochQuorumData) DataEpoch() Epoch { return d.Epoch.Next() }

// DaData is voted on by the DA committee after receiving a block payload.
type DaData struct {
	PayloadCommitment Commitment
	// NextEpochPayloadCommitment is set during epoch transitions, when the payload is
	// dispersed to both committees.
	NextEpochPayloadCommitment *Commitment
	Epoch                      Epoch
}

func (d DaData) Commit() Commitment {
	return MakeCommitment(struct {
		Kind string
		Data DaData
	}{"da", d})
}

func (d DaData) DataEpoch() Epoch { return d.Epoch }

// TimeoutData is voted on when a view fails to make progress.
type TimeoutData struct {
	View  uint64
	Epoch Epoch
}

func (d TimeoutData) Commit() Commitment {
	return MakeCommitment(struct {
		Kind string
		Data TimeoutData
	}{"timeout", d})
}

func (d TimeoutData) DataEpoch() Epoch { return d.Epoch }

// ViewSyncFinalizeData is voted on during the final view-sync round.
type ViewSyncFinalizeData struct {
	Relay uint64
	Round uint64
	Epoch Epoch
}

func (d ViewSyncFinalizeData) Commit() Commitment {
	return MakeCommitment(struct {
		Kind string
		Data ViewSyncFinalizeData
	}{"view_sync_finalize", d})
}

func (d ViewSyncFinalizeData) DataEpoch() Epoch { return d.Epoch }

// UpgradeProposalData describes a scheduled protocol version change.
type UpgradeProposalData struct {
	OldVersion Version
	NewVersion Version
	// NewVersionHash identifies the exact software being upgraded to.
	NewVersionHash []byte
	// OldVersionLastView is the last view that runs on the old version.
	OldVersionLastView uint64
	// NewVersionFirstView is the first view that runs on the new version.
	NewVersionFirstView uint64
	// DecideBy is the view by which the upgrade certificate must be decided.
	DecideBy uint64
	Epoch    Epoch
}

func (d UpgradeProposalData) Commit() Commitment {
	return MakeCommitment(struct {
		Kind string
		Data UpgradeProposalData
	}{"upgrade", d})
}

func (d UpgradeProposalData) DataEpoch() Epoch { return d.Epoch }

// VoteCommitment binds a data commitment to the view it is voted in. Signatures cover this value.
func VoteCommitment(data Commitment, view uint64) Commitment {
	var viewBytes [8]byte
	binary.BigEndian.PutUint64(viewBytes[:], view)
	return CommitmentFromBytes(append(data[:], viewBytes[:]...))
}

// SimpleVote is a single member's signature over data in a view.
type SimpleVote[D VoteData] struct {
	View      uint64
	Data      D
	Signer    NodeID
	Signature []byte
}

// DataCommitment returns the commitment of the voted data.
func (v *SimpleVote[D]) DataCommitment() Commitment {
	return v.Data.Commit()
}

// Commitment returns the value the signature covers.
func (v *SimpleVote[D]) Commitment() Commitment {
	return VoteCommitment(v.Data.Commit(), v.View)
}

// Epoch returns the epoch whose stake table weighs the vote.
func (v *SimpleVote[D]) Epoch() Epoch {
	return v.Data.DataEpoch()
}

func (v *SimpleVote[D]) String() string {
	return fmt.Sprintf("vote(view=%d, signer=%s, data=%s)", v.View, v.Signer, v.DataCommitment())
}

// SimpleCertificate is a threshold of stake-weighted signatures over the same vote commitment.
type SimpleCertificate[D VoteData] struct {
	View uint64
	Data D
	// Signers lists the signing members. Each appears at most once.
	Signers []NodeID
	// Signature is the aggregation of all signers' signatures over Commitment().
	Signature []byte
}

// DataCommitment returns the commitment of the certified data.
func (c *SimpleCertificate[D]) DataCommitment() Commitment {
	return c.Data.Commit()
}

// Commitment returns the vote commitment the aggregated signature covers.
func (c *SimpleCertificate[D]) Commitment() Commitment {
	return VoteCommitment(c.Data.Commit(), c.View)
}

// Epoch returns the epoch whose stake table verifies the certificate.
func (c *SimpleCertificate[D]) Epoch() Epoch {
	return c.Data.DataEpoch()
}

// IsGenesis returns true for the unsigned certificate of view 0.
func (c *SimpleCertificate[D]) IsGenesis() bool {
	return c.View == 0 && len(c.Signers) == 0
}

type (
	QuorumVote                 = SimpleVote[QuorumData]
	QuorumCertificate          = SimpleCertificate[QuorumData]
	NextEpochQuorumCertificate = SimpleCertificate[NextEpochQuorumData]
	DaVote                     = SimpleVote[DaData]
	DaCertificate              = SimpleCertificate[DaData]
	TimeoutVote                = SimpleVote[TimeoutData]
	TimeoutCertificate         = SimpleCertificate[TimeoutData]
	ViewSyncFinalizeVote       = SimpleVote[ViewSyncFinalizeData]
	ViewSyncFinalizeCert       = SimpleCertificate[ViewSyncFinalizeData]
	UpgradeVote                = SimpleVote[UpgradeProposalData]
	UpgradeCertificate         = SimpleCertificate[UpgradeProposalData]
)

// ToNextEpoch reinterprets a quorum vote as a vote for the next epoch's accumulator.
func ToNextEpoch(vote *QuorumVote) *SimpleVote[NextEpochQuorumData] {
	return &SimpleVote[NextEpochQuorumData]{
		View:      vote.View,
		Data:      NextEpochQuorumData(vote.Data),
		Signer:    vote.Signer,
		Signature: vote.Signature,
	}
}

// UpgradeInterim returns true if the view lies between the upgrade's decide-by view and
// its first new-version view. Leaders propose empty blocks during this interval.
func UpgradeInterim(cert *UpgradeCertificate, view uint64) bool {
	if cert == nil {
		return false
	}
	return view > cert.Data.OldVersionLastView && view < cert.Data.NewVersionFirstView
}

// UpgradeIsRelevant returns true if the certificate's new version has not yet activated at the view.
func UpgradeIsRelevant(cert *UpgradeCertificate, view uint64) bool {
	return cert != nil && view < cert.Data.NewVersionFirstView
}
