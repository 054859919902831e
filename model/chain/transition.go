package chain

import "fmt"

// TransitionQCPair holds a quorum certificate from the current epoch's committee together with
// one from the next epoch's committee for the same leaf in the same view. It lets a leader
// extend the chain across an epoch boundary. The pair can only be built through its constructor.
type TransitionQCPair struct {
	qc     *QuorumCertificate
	nextQC *NextEpochQuorumCertificate
}

// NewTransitionQCPair pairs the two certificates.
// Expected errors:
//   - ErrInconsistentTransitionQCs if views or leaf commitments differ, or either is missing
func NewTransitionQCPair(qc *QuorumCertificate, nextQC *NextEpochQuorumCertificate) (TransitionQCPair, error) {
	if qc == nil || nextQC == nil {
		return TransitionQCPair{}, fmt.Errorf("%w: both certificates are required", ErrInconsistentTransitionQCs)
	}
	if qc.View != nextQC.View {
		return TransitionQCPair{}, fmt.Errorf("%w: views %d and %d differ", ErrInconsistentTransitionQCs, qc.View, nextQC.View)
	}
	if qc.Data.LeafCommitment != nextQC.Data.LeafCommitment {
		return TransitionQCPair{}, fmt.Errorf("%w: leaf %s vs %s", ErrInconsistentTransitionQCs, qc.Data.LeafCommitment, nextQC.Data.LeafCommitment)
	}
	return TransitionQCPair{qc: qc, nextQC: nextQC}, nil
}

// QC returns the current-epoch certificate.
func (p TransitionQCPair) QC() *QuorumCertificate { return p.qc }

// NextEpochQC returns the next-epoch certificate.
func (p TransitionQCPair) NextEpochQC() *NextEpochQuorumCertificate { return p.nextQC }

// View returns the certified view.
func (p TransitionQCPair) View() uint64 { return p.qc.View }

// LeafCommitment returns the certified leaf.
func (p TransitionQCPair) LeafCommitment() Commitment { return p.qc.Data.LeafCommitment }

// IsEmpty returns true for the zero value.
func (p TransitionQCPair) IsEmpty() bool { return p.qc == nil }
