package hotshot

import (
	"context"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/model/chain"
)

// Message is a consensus event exchanged between nodes.
type Message struct {
	Sender chain.NodeID
	Event  events.Event
}

// MessageHandler receives messages delivered by the network.
type MessageHandler func(msg *Message)

// Network is the transport between nodes. Wire formats are up to the implementation.
type Network interface {

	// Broadcast sends the message to every node.
	Broadcast(ctx context.Context, msg *Message) error

	// DaBroadcast sends the message to the given DA committee members.
	DaBroadcast(ctx context.Context, msg *Message, recipients []chain.NodeID) error

	// Direct sends the message to a single node.
	Direct(ctx context.Context, msg *Message, recipient chain.NodeID) error

	// RequestProposal fetches a quorum proposal for the view whose leaf has the given commitment.
	RequestProposal(ctx context.Context, view uint64, leaf chain.Commitment) (*chain.Proposal[*chain.QuorumProposal], error)

	// Subscribe registers the handler for messages addressed to this node.
	Subscribe(handler MessageHandler)

	// IsPrimaryDown returns true if the primary transport is unavailable. Nodes then compute
	// VID shares locally instead of waiting for the leader's dispersal.
	IsPrimaryDown() bool
}
