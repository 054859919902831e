package chain

import "fmt"

// Leaf is a node of the consensus chain: a header plus the certificates justifying it.
type Leaf struct {
	View             uint64
	Justify          *QuorumCertificate
	NextEpochJustify *NextEpochQuorumCertificate
	ParentCommitment Commitment
	Header           Header
	// UpgradeCertificate is carried forward by every leaf until the upgrade is decided.
	UpgradeCertificate *UpgradeCertificate
	NextDrbResult      *DrbResult
	// WithEpoch is set once the epoch-enabled protocol version is active.
	WithEpoch bool

	// Payload is the block's transactions, if known. It is not part of the leaf commitment.
	Payload *Payload
}

type leafCommitFields struct {
	Kind               string
	View               uint64
	Justify            *Commitment
	NextEpochJustify   *Commitment
	ParentCommitment   Commitment
	Header             Commitment
	UpgradeCertificate *Commitment
	NextDrbResult      *DrbResult
	WithEpoch          bool
}

// Commit returns the leaf commitment. Certificates contribute through their vote commitments.
func (l *Leaf) Commit() Commitment {
	fields := leafCommitFields{
		Kind:             "leaf",
		View:             l.View,
		ParentCommitment: l.ParentCommitment,
		Header:           l.Header.Commit(),
		NextDrbResult:    l.NextDrbResult,
		WithEpoch:        l.WithEpoch,
	}
	if l.Justify != nil {
		c := l.Justify.Commitment()
		fields.Justify = &c
	}
	if l.NextEpochJustify != nil {
		c := l.NextEpochJustify.Commitment()
		fields.NextEpochJustify = &c
	}
	if l.UpgradeCertificate != nil {
		c := l.UpgradeCertificate.Commitment()
		fields.UpgradeCertificate = &c
	}
	return MakeCommitment(fields)
}

// Height returns the block height.
func (l *Leaf) Height() uint64 {
	return l.Header.Height
}

// Epoch returns the epoch the leaf belongs to, or NoEpoch before epochs are active.
func (l *Leaf) Epoch(epochHeight uint64) Epoch {
	if !l.WithEpoch {
		return NoEpoch
	}
	return EpochOf(EpochFromBlockNumber(l.Header.Height, epochHeight))
}

// PayloadCommitment returns the payload commitment from the header.
func (l *Leaf) PayloadCommitment() Commitment {
	return l.Header.PayloadCommitment
}

// FillPayload attaches the block payload after checking it against the header.
func (l *Leaf) FillPayload(payload *Payload, commitment Commitment) error {
	if commitment != l.Header.PayloadCommitment {
		return fmt.Errorf("payload commitment %s does not match header %s", commitment, l.Header.PayloadCommitment)
	}
	l.Payload = payload
	return nil
}

// ExtendsUpgrade checks that the leaf carries its parent's pending upgrade certificate forward.
// decided is the upgrade certificate already decided by this node, if any.
// Expected errors:
//   - ErrUpgradeCertificateMismatch if the certificate was dropped or replaced while still pending
func (l *Leaf) ExtendsUpgrade(parent *Leaf, decided *UpgradeCertificate) error {
	parentCert := parent.UpgradeCertificate
	if parentCert == nil {
		return nil
	}
	expired := l.View > parentCert.Data.DecideBy
	isDecided := decided != nil && decided.Commitment() == parentCert.Commitment()
	if l.UpgradeCertificate == nil {
		if expired || isDecided {
			return nil
		}
		return fmt.Errorf("%w: certificate of view %d was dropped before view %d", ErrUpgradeCertificateMismatch, parentCert.View, parentCert.Data.DecideBy)
	}
	if l.UpgradeCertificate.Commitment() == parentCert.Commitment() {
		return nil
	}
	if expired && isDecided {
		return nil
	}
	return fmt.Errorf("%w: certificate replaced in view %d", ErrUpgradeCertificateMismatch, l.View)
}

// GenesisLeaf returns the leaf of view 0 for the given genesis header.
func GenesisLeaf(header Header, payload *Payload) *Leaf {
	return &Leaf{
		View:    0,
		Header:  header,
		Payload: payload,
	}
}

// GenesisQuorumCertificate returns the unsigned certificate justifying the genesis leaf's children.
func GenesisQuorumCertificate(genesis *Leaf, epoch Epoch) *QuorumCertificate {
	return &QuorumCertificate{
		View: 0,
		Data: QuorumData{
			LeafCommitment: genesis.Commit(),
			Epoch:          epoch,
			BlockNumber:    genesis.Height(),
		},
	}
}
