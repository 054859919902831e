package verification

import (
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
)

// StakingSigner signs votes and proposals with the node's BLS staking key, and light-client
// state attestations with its Schnorr state key. The staking signatures are aggregatable.
type StakingSigner struct {
	nodeID  chain.NodeID
	staking *crypto.StakingPrivateKey
	state   *crypto.StatePrivateKey
}

var _ hotshot.Signer = (*StakingSigner)(nil)

// NewStakingSigner instantiates a StakingSigner. state may be nil for nodes that never attest
// light-client state.
func NewStakingSigner(staking *crypto.StakingPrivateKey, state *crypto.StatePrivateKey) *StakingSigner {
	return &StakingSigner{
		nodeID:  chain.NodeIDFromStakingKey(staking.PublicKey().Encode()),
		staking: staking,
		state:   state,
	}
}

func (s *StakingSigner) NodeID() chain.NodeID {
	return s.nodeID
}

func (s *StakingSigner) Sign(msg []byte) ([]byte, error) {
	return s.staking.Sign(msg)
}

func (s *StakingSigner) StateSign(msg []byte) ([]byte, error) {
	if s.state == nil {
		return nil, fmt.Errorf("node %v has no state key", s.nodeID)
	}
	return s.state.Sign(msg)
}

// CreateVote signs the data for the view.
func CreateVote[D chain.VoteData](signer hotshot.Signer, view uint64, data D) (*chain.SimpleVote[D], error) {
	vote := &chain.SimpleVote[D]{
		View:   view,
		Data:   data,
		Signer: signer.NodeID(),
	}
	commitment := vote.Commitment()
	sig, err := signer.Sign(commitment[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign vote for view %d: %w", view, err)
	}
	vote.Signature = sig
	return vote, nil
}

// CreateProposal signs the commitment of the proposal data.
func CreateProposal[T chain.Committable](signer hotshot.Signer, data T) (*chain.Proposal[T], error) {
	commitment := data.Commit()
	sig, err := signer.Sign(commitment[:])
	if err != nil {
		return nil, fmt.Errorf("signing my proposal failed: %w", err)
	}
	return &chain.Proposal[T]{Data: data, Signature: sig}, nil
}

// CreateStateVote attests the light-client state update with the state key.
func CreateStateVote(signer hotshot.Signer, data chain.LightClientStateUpdateData) (*chain.LightClientStateUpdateVote, error) {
	commitment := data.Commit()
	sig, err := signer.StateSign(commitment[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign light client state: %w", err)
	}
	return &chain.LightClientStateUpdateVote{Data: data, Signer: signer.NodeID(), Signature: sig}, nil
}
