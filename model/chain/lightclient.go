package chain

// LightClientState is the consensus state a light client tracks.
type LightClientState struct {
	ViewNumber    uint64
	BlockHeight   uint64
	BlockCommRoot Commitment
}

// StakeTableState commits to a stake table so light clients can follow committee rotation.
type StakeTableState struct {
	ThresholdStake uint64
	BlsKeyComm     Commitment
	SchnorrKeyComm Commitment
	AmountComm     Commitment
}

// NewStakeTableState commits to the given table.
func NewStakeTableState(table StakeTable, threshold uint64) StakeTableState {
	var bls, schnorr, amounts [][]byte
	for _, entry := range table {
		bls = append(bls, entry.StakingKey)
		schnorr = append(schnorr, entry.StateKey)
		amounts = append(amounts, Fingerprint(entry.Stake))
	}
	return StakeTableState{
		ThresholdStake: threshold,
		BlsKeyComm:     MakeCommitment(bls),
		SchnorrKeyComm: MakeCommitment(schnorr),
		AmountComm:     MakeCommitment(amounts),
	}
}

// LightClientStateUpdateData is what members attest to at the end of an epoch.
type LightClientStateUpdateData struct {
	Epoch               Epoch
	State               LightClientState
	NextStakeTableState StakeTableState
}

func (d LightClientStateUpdateData) Commit() Commitment {
	return MakeCommitment(struct {
		Kind string
		Data LightClientStateUpdateData
	}{"light_client_state", d})
}

// StateSignature is a single member's Schnorr attestation.
type StateSignature struct {
	Signer    NodeID
	Signature []byte
}

// LightClientStateUpdateVote is a member's attestation of the light-client state.
type LightClientStateUpdateVote struct {
	Data      LightClientStateUpdateData
	Signer    NodeID
	Signature []byte
}

// LightClientStateUpdateCertificate collects enough attestations for a light client to follow
// the committee handoff into the next epoch.
type LightClientStateUpdateCertificate struct {
	Data       LightClientStateUpdateData
	Signatures []StateSignature
}
