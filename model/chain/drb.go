package chain

import "encoding/hex"

// DrbSeed is the input to the DRB computation, fixed by the epoch root block.
type DrbSeed [32]byte

// DrbResult is the output of the DRB computation. It seeds committee selection for an epoch.
type DrbResult [32]byte

func (r DrbResult) String() string {
	return hex.EncodeToString(r[:])
}

// DrbSeedFromQC derives the DRB seed from the signature of a quorum certificate for the epoch root.
func DrbSeedFromQC(qc *QuorumCertificate) DrbSeed {
	return DrbSeed(CommitmentFromBytes(qc.Signature))
}

// DrbInput is the persisted intermediate state of a DRB computation.
type DrbInput struct {
	Epoch     uint64
	Iteration uint64
	Value     [32]byte
}

// InitialDrbResult seeds the first two epochs when epochs are activated by an upgrade.
var InitialDrbResult = DrbResult{}
