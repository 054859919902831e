package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/logging"
)

const bridgeName = "network"

// Bridge connects the event bus to the network. As a task it turns the outgoing events of
// the other tasks into network messages for the right recipients. Messages from the network
// are published on the bus as the matching received events.
type Bridge struct {
	log         zerolog.Logger
	self        chain.NodeID
	network     hotshot.Network
	membership  hotshot.Membership
	upgradeLock *helpers.UpgradeLock
	epochHeight uint64
	publisher   events.Publisher
}

func NewBridge(log zerolog.Logger, deps helpers.Dependencies) *Bridge {
	return &Bridge{
		log:         log.With().Str("task", bridgeName).Logger(),
		self:        deps.Signer.NodeID(),
		network:     deps.Network,
		membership:  deps.Membership,
		upgradeLock: deps.UpgradeLock,
		epochHeight: deps.Consensus.EpochHeight(),
		publisher:   deps.Publisher,
	}
}

func (b *Bridge) Name() string { return bridgeName }

// Handle sends the outgoing event, if it is one.
func (b *Bridge) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.DaProposalSend:
		table, err := b.membership.DaStakeTable(e.Proposal.Data.Epoch)
		if err != nil {
			return helpers.SkipIfNoStakeTable(err, "could not read da committee")
		}
		recipients := make([]chain.NodeID, 0, len(table))
		for _, peer := range table {
			recipients = append(recipients, peer.NodeID)
		}
		return b.network.DaBroadcast(ctx, b.message(events.DaProposalRecv{Proposal: e.Proposal, Sender: b.self}), recipients)
	case events.DaVoteSend:
		return b.toLeader(ctx, events.DaVoteRecv{Vote: e.Vote}, e.Vote.View, e.Vote.Epoch())
	case events.DacSend:
		return b.network.Broadcast(ctx, b.message(events.DaCertificateRecv{Cert: e.Cert, Sender: b.self}))
	case events.QuorumProposalSend:
		return b.network.Broadcast(ctx, b.message(events.QuorumProposalRecv{Proposal: e.Proposal, Sender: b.self}))
	case events.QuorumVoteSend:
		return b.toLeader(ctx, events.QuorumVoteRecv{Vote: e.Vote}, e.Vote.View+1, b.epochAfter(e.Vote))
	case events.ExtendedQuorumVoteSend:
		// in the transition window every node aggregates the votes
		return b.network.Broadcast(ctx, b.message(events.QuorumVoteRecv{Vote: e.Vote}))
	case events.EpochRootQuorumVoteSend:
		return b.toLeader(ctx, events.EpochRootQuorumVoteRecv{Vote: e.Vote}, e.Vote.Vote.View+1, b.epochAfter(e.Vote.Vote))
	case events.TimeoutVoteSend:
		return b.toLeader(ctx, events.TimeoutVoteRecv{Vote: e.Vote}, e.Vote.View+1, e.Vote.Epoch())
	case events.HighQcSend:
		return b.network.Direct(ctx, b.message(events.HighQcRecv{QC: e.QC, NextEpochQC: e.NextEpochQC, View: e.View, Sender: b.self}), e.Leader)
	case events.UpgradeProposalSend:
		return b.network.Broadcast(ctx, b.message(events.UpgradeProposalRecv{Proposal: e.Proposal, Sender: b.self}))
	case events.UpgradeVoteSend:
		return b.toLeader(ctx, events.UpgradeVoteRecv{Vote: e.Vote}, e.Vote.View, e.Vote.Epoch())
	case events.VidDisperseSend:
		return b.disperse(ctx, e)
	}
	return nil
}

func (b *Bridge) message(event events.Event) *hotshot.Message {
	return &hotshot.Message{Sender: b.self, Event: event}
}

func (b *Bridge) toLeader(ctx context.Context, event events.Event, view uint64, epoch chain.Epoch) error {
	leader, err := b.membership.Leader(view, epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, fmt.Sprintf("could not determine leader of view %d", view))
	}
	return b.network.Direct(ctx, b.message(event), leader)
}

// epochAfter returns the epoch of the view following the voted block.
func (b *Bridge) epochAfter(vote *chain.QuorumVote) chain.Epoch {
	return helpers.EpochAfterQC(b.upgradeLock, &chain.QuorumCertificate{View: vote.View, Data: vote.Data}, b.epochHeight)
}

// disperse sends every recipient its own share. The leader keeps its share locally.
func (b *Bridge) disperse(ctx context.Context, e events.VidDisperseSend) error {
	var failed int
	for recipient, share := range e.Disperse.Shares {
		if recipient == b.self {
			continue
		}
		msg := b.message(events.VidShareRecv{Share: share, Sender: b.self, Signature: e.Signature})
		if err := b.network.Direct(ctx, msg, recipient); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			b.log.Debug().Err(err).Uint64("view", e.Disperse.View).Hex("recipient", logging.NodeID(recipient)).Msg("could not send vid share")
		}
	}
	if failed > 0 {
		return model.NewSkipErrorf("%d of %d vid shares of view %d not delivered", failed, len(e.Disperse.Shares), e.Disperse.View)
	}
	return nil
}

// Receive publishes a message from the network on the bus. Only received events are
// accepted, and their sender is the authenticated sender of the message.
func (b *Bridge) Receive(msg *hotshot.Message) {
	event, ok := b.inbound(msg)
	if !ok {
		b.log.Warn().Str("event", msg.Event.Name()).Hex("sender", logging.NodeID(msg.Sender)).Msg("dropping unexpected message")
		return
	}
	if event == nil {
		return
	}
	b.publisher.Publish(event)
}

// inbound returns the event to publish for the message. A nil event with ok set means the
// message is dropped on purpose.
func (b *Bridge) inbound(msg *hotshot.Message) (events.Event, bool) {
	switch e := msg.Event.(type) {
	case events.DaProposalRecv:
		e.Sender = msg.Sender
		return e, true
	case events.DaCertificateRecv:
		if msg.Sender == b.self {
			// the DA leader already used its own certificate
			return nil, true
		}
		e.Sender = msg.Sender
		return e, true
	case events.QuorumProposalRecv:
		e.Sender = msg.Sender
		return e, true
	case events.HighQcRecv:
		e.Sender = msg.Sender
		return e, true
	case events.UpgradeProposalRecv:
		e.Sender = msg.Sender
		return e, true
	case events.VidShareRecv:
		e.Sender = msg.Sender
		return e, true
	case events.DaVoteRecv, events.QuorumVoteRecv, events.EpochRootQuorumVoteRecv, events.TimeoutVoteRecv,
		events.UpgradeVoteRecv, events.TransactionsRecv, events.ViewSyncFinalizeCertificateRecv:
		// votes carry their own signer, certificates their own signatures
		return e, true
	}
	return nil, false
}
