package hotshot

import (
	"context"

	"github.com/hotshot-go/hotshot/model/chain"
)

// InstanceState holds the static configuration of the chain shared by every block.
type InstanceState interface {
	ChainID() string

	// EpochHeight is the number of blocks per epoch; zero when epochs are disabled.
	EpochHeight() uint64

	// StateFromHeader reconstructs the validated state a header commits to. It is used for
	// leaves fetched from peers whose ancestors are not available locally.
	StateFromHeader(header chain.Header) ValidatedState

	// BuildHeader returns the header of a new block on top of the parent leaf.
	BuildHeader(parent *chain.Leaf, input BlockInput) chain.Header
}

// BlockInput is what a leader contributes to the header of its block.
type BlockInput struct {
	Version           chain.Version
	PayloadCommitment chain.Commitment
	BuilderCommitment chain.Commitment
	Metadata          []byte
	Fee               chain.BuilderFee
}

// StateDelta describes the effect of applying a block to a validated state.
type StateDelta interface{}

// ValidatedState is the application state after applying a chain of blocks.
type ValidatedState interface {
	// Validate applies the proposed header on top of this state, which must be the state of
	// the parent leaf. It returns the resulting state and its delta.
	Validate(ctx context.Context, instance InstanceState, parent *chain.Leaf, proposed *chain.Header) (ValidatedState, StateDelta, error)

	// Commit returns the state commitment.
	Commit() chain.Commitment

	// BlockHeight returns the height of the last applied block.
	BlockHeight() uint64
}

// StateProverHandoff passes finalized light-client state certificates to the external prover.
type StateProverHandoff interface {
	HandOff(ctx context.Context, cert *chain.LightClientStateUpdateCertificate, table chain.StakeTable) error
}

// Signer signs on behalf of the local node.
type Signer interface {
	NodeID() chain.NodeID

	// Sign produces a staking (BLS) signature.
	Sign(msg []byte) ([]byte, error)

	// StateSign produces a light-client state (Schnorr) signature.
	StateSign(msg []byte) ([]byte, error)
}
