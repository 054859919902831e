package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/hotshot-go/hotshot/crypto"
)

// Commitment is a binding 32-byte digest of a consensus object (leaf, payload, vote data, ...).
type Commitment [32]byte

// ZeroCommitment is the lowest value in the 32-byte commitment space.
var ZeroCommitment = Commitment{}

func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero returns true if the commitment is the zero value.
func (c Commitment) IsZero() bool {
	return c == ZeroCommitment
}

// NodeID identifies a committee member. It is derived from the member's staking public key.
type NodeID [32]byte

// ZeroNodeID is the empty node identifier.
var ZeroNodeID = NodeID{}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// NodeIDFromStakingKey derives the node identifier of the member owning the given staking key.
func NodeIDFromStakingKey(stakingKey []byte) NodeID {
	return NodeID(crypto.Hash256(stakingKey))
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create deterministic cbor encoder: %v", err))
	}
}

// Fingerprint returns the canonical (deterministic CBOR) encoding of the given entity.
// Two entities with equal field values always produce identical fingerprints.
func Fingerprint(entity interface{}) []byte {
	data, err := encMode.Marshal(entity)
	if err != nil {
		// all types hashed through this function are plain data structures; failure here is a programming error
		panic(fmt.Sprintf("could not encode entity for commitment: %v", err))
	}
	return data
}

// MakeCommitment hashes the canonical encoding of the entity into a Commitment.
func MakeCommitment(entity interface{}) Commitment {
	return Commitment(crypto.Hash256(Fingerprint(entity)))
}

// CommitmentFromBytes hashes raw bytes into a commitment.
func CommitmentFromBytes(data []byte) Commitment {
	return Commitment(crypto.Hash256(data))
}
