package hotshot

import (
	"context"

	"github.com/hotshot-go/hotshot/model/chain"
)

// AvailableBlockInfo is a builder's offer of a block for a view.
type AvailableBlockInfo struct {
	BlockHash  chain.Commitment
	BlockSize  uint64
	OfferedFee uint64
	// Sender is the builder's encoded staking public key.
	Sender    []byte
	Signature []byte
}

// SigningMessage returns the bytes the builder signs to vouch for the offer.
func (i AvailableBlockInfo) SigningMessage() []byte {
	return chain.Fingerprint(struct {
		Kind       string
		BlockHash  chain.Commitment
		BlockSize  uint64
		OfferedFee uint64
	}{"block_info", i.BlockHash, i.BlockSize, i.OfferedFee})
}

// AvailableBlockData is the content of a claimed block.
type AvailableBlockData struct {
	Payload   *chain.Payload
	Metadata  []byte
	Sender    []byte
	Signature []byte
}

// AvailableBlockHeaderInput carries what the leader needs to reference the block in its header.
type AvailableBlockHeaderInput struct {
	FeeSignature []byte
	Sender       []byte
}

// BuilderClient talks to a single external block builder. Requests carry this node's
// identity and a signature over the request so builders can authenticate the leader.
type BuilderClient interface {
	// URL identifies the builder endpoint in logs and metrics.
	URL() string

	// AvailableBlocks lists the blocks the builder offers on top of the parent payload.
	AvailableBlocks(ctx context.Context, parent chain.Commitment, view uint64, sender chain.NodeID, signature []byte) ([]AvailableBlockInfo, error)

	// ClaimBlock fetches the payload of an offered block.
	ClaimBlock(ctx context.Context, blockHash chain.Commitment, view uint64, sender chain.NodeID, signature []byte) (*AvailableBlockData, error)

	// ClaimBlockHeaderInput fetches the fee information of an offered block.
	ClaimBlockHeaderInput(ctx context.Context, blockHash chain.Commitment, view uint64, sender chain.NodeID, signature []byte) (*AvailableBlockHeaderInput, error)
}
