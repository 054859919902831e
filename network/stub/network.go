// Package stub implements an in-memory network for clusters that run in a single process,
// such as tests and local devnets. Every node owns a Network plugged into a shared Hub.
// Messages are queued at the recipient and handed to its subscribers by a worker, so a
// sender never runs the recipient's handlers.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/engine"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/component"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
)

const defaultInboxCapacity = 10_000

var (
	// ErrUnknownRecipient is returned when a direct message is sent to a node that is not plugged.
	ErrUnknownRecipient = errors.New("unknown recipient")
	// ErrProposalNotFound is returned when no peer serves the requested proposal.
	ErrProposalNotFound = errors.New("proposal not found")
)

// ProposalSource looks up a quorum proposal this node knows, for serving proposal requests.
type ProposalSource = func(view uint64, leaf chain.Commitment) (*chain.Proposal[*chain.QuorumProposal], bool)

// Network is the in-memory network of one node.
type Network struct {
	*component.ComponentManager
	log         zerolog.Logger
	hub         *Hub
	nodeID      chain.NodeID
	inbox       *engine.FifoQueue[*hotshot.Message]
	notifier    engine.Notifier
	primaryDown *atomic.Bool

	mu       sync.RWMutex
	handlers []hotshot.MessageHandler
	source   ProposalSource
}

var _ hotshot.Network = (*Network)(nil)
var _ component.Component = (*Network)(nil)

// NewNetwork creates the network of the node and plugs it into the hub.
func NewNetwork(log zerolog.Logger, hub *Hub, nodeID chain.NodeID) (*Network, error) {
	inbox, err := engine.NewFifoQueue[*hotshot.Message](engine.WithCapacity(defaultInboxCapacity))
	if err != nil {
		return nil, fmt.Errorf("could not create inbox: %w", err)
	}
	n := &Network{
		log:         log.With().Str("component", "stub_network").Str("node_id", nodeID.String()).Logger(),
		hub:         hub,
		nodeID:      nodeID,
		inbox:       inbox,
		notifier:    engine.NewNotifier(),
		primaryDown: atomic.NewBool(false),
	}
	n.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(n.deliveryLoop).
		Build()
	hub.Plug(n)
	return n, nil
}

// NodeID returns the node owning the network.
func (n *Network) NodeID() chain.NodeID {
	return n.nodeID
}

// ServeProposals sets the lookup used to answer proposal requests of other nodes.
func (n *Network) ServeProposals(source ProposalSource) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.source = source
}

// SetPrimaryDown marks the primary transport as unavailable or available again.
func (n *Network) SetPrimaryDown(down bool) {
	n.primaryDown.Store(down)
}

func (n *Network) IsPrimaryDown() bool {
	return n.primaryDown.Load()
}

func (n *Network) Subscribe(handler hotshot.MessageHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// Broadcast queues the message at every plugged node, this node included.
func (n *Network) Broadcast(ctx context.Context, msg *hotshot.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, peer := range n.hub.Networks() {
		peer.enqueue(msg)
	}
	return nil
}

// DaBroadcast queues the message at the recipients. Recipients that are not plugged are skipped.
func (n *Network) DaBroadcast(ctx context.Context, msg *hotshot.Message, recipients []chain.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, recipient := range recipients {
		if peer, ok := n.hub.GetNetwork(recipient); ok {
			peer.enqueue(msg)
		}
	}
	return nil
}

// Direct queues the message at the recipient.
func (n *Network) Direct(ctx context.Context, msg *hotshot.Message, recipient chain.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	peer, ok := n.hub.GetNetwork(recipient)
	if !ok {
		return fmt.Errorf("could not send %s to %v: %w", msg.Event.Name(), recipient, ErrUnknownRecipient)
	}
	peer.enqueue(msg)
	return nil
}

// RequestProposal asks every other node for the proposal and returns the first answer.
func (n *Network) RequestProposal(ctx context.Context, view uint64, leaf chain.Commitment) (*chain.Proposal[*chain.QuorumProposal], error) {
	for _, peer := range n.hub.Networks() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if peer.nodeID == n.nodeID {
			continue
		}
		if proposal, ok := peer.serve(view, leaf); ok {
			return proposal, nil
		}
	}
	return nil, fmt.Errorf("no peer knows the proposal of view %d for leaf %v: %w", view, leaf, ErrProposalNotFound)
}

func (n *Network) serve(view uint64, leaf chain.Commitment) (*chain.Proposal[*chain.QuorumProposal], bool) {
	n.mu.RLock()
	source := n.source
	n.mu.RUnlock()
	if source == nil {
		return nil, false
	}
	return source(view, leaf)
}

func (n *Network) enqueue(msg *hotshot.Message) {
	if !n.inbox.Push(msg) {
		n.log.Warn().Str("event", msg.Event.Name()).Msg("inbox full, dropping message")
		return
	}
	n.notifier.Notify()
}

func (n *Network) deliveryLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.notifier.Channel():
			for {
				if ctx.Err() != nil {
					return
				}
				msg, ok := n.inbox.Pop()
				if !ok {
					break
				}
				n.deliver(msg)
			}
		}
	}
}

func (n *Network) deliver(msg *hotshot.Message) {
	n.mu.RLock()
	handlers := n.handlers
	n.mu.RUnlock()
	for _, handler := range handlers {
		handler(msg)
	}
}
