package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/tasktest"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func newBridge(t *testing.T) (*tasktest.Node, *Bridge) {
	node := tasktest.NewNode(t, 4, 0)
	return node, NewBridge(unittest.Logger(), node.Deps())
}

func sentBy(sender chain.NodeID, check func(events.Event) bool) interface{} {
	return mock.MatchedBy(func(msg *hotshot.Message) bool {
		return msg.Sender == sender && check(msg.Event)
	})
}

func TestProposalIsBroadcast(t *testing.T) {
	node, bridge := newBridge(t)
	genesis, _ := unittest.GenesisLeafFixture()
	leaves, _ := unittest.LeafChainFixture(t, node.Fixtures, genesis, node.GenesisQC, 4)
	proposal := unittest.ProposalFixture(t, node.Self, leaves[3], chain.NoEpoch)

	self := node.Self.ID
	node.Network.On("Broadcast", mock.Anything, sentBy(self, func(e events.Event) bool {
		recv, ok := e.(events.QuorumProposalRecv)
		return ok && recv.Proposal == proposal && recv.Sender == self
	})).Return(nil).Once()

	require.NoError(t, bridge.Handle(context.Background(), events.QuorumProposalSend{Proposal: proposal, Sender: self}))
}

func TestVotesGoToNextLeader(t *testing.T) {
	node, bridge := newBridge(t)
	vote := unittest.SignVote(t, node.Self, 4, chain.QuorumData{LeafCommitment: unittest.CommitmentFixture(), BlockNumber: 4})

	node.Network.On("Direct", mock.Anything, sentBy(node.Self.ID, func(e events.Event) bool {
		recv, ok := e.(events.QuorumVoteRecv)
		return ok && recv.Vote == vote
	}), node.Leader(5).ID).Return(nil).Once()

	require.NoError(t, bridge.Handle(context.Background(), events.QuorumVoteSend{Vote: vote}))
}

func TestTimeoutVotesGoToNextLeader(t *testing.T) {
	node, bridge := newBridge(t)
	vote := unittest.SignVote(t, node.Self, 6, chain.TimeoutData{View: 6})

	node.Network.On("Direct", mock.Anything, mock.Anything, node.Leader(7).ID).Return(nil).Once()

	require.NoError(t, bridge.Handle(context.Background(), events.TimeoutVoteSend{Vote: vote}))
}

func TestDaVotesGoToCurrentLeader(t *testing.T) {
	node, bridge := newBridge(t)
	vote := unittest.SignVote(t, node.Self, 6, chain.DaData{PayloadCommitment: unittest.CommitmentFixture()})

	node.Network.On("Direct", mock.Anything, mock.Anything, node.Leader(6).ID).Return(nil).Once()

	require.NoError(t, bridge.Handle(context.Background(), events.DaVoteSend{Vote: vote}))
}

func TestDisperseSkipsSelf(t *testing.T) {
	node, bridge := newBridge(t)
	disperse := &chain.VidDisperse{View: 3, Shares: make(map[chain.NodeID]*chain.VidShare)}
	for _, fixture := range node.Fixtures {
		disperse.Shares[fixture.ID] = &chain.VidShare{View: 3, Recipient: fixture.ID}
	}
	for _, fixture := range node.Fixtures[1:] {
		recipient := fixture.ID
		node.Network.On("Direct", mock.Anything, sentBy(node.Self.ID, func(e events.Event) bool {
			recv, ok := e.(events.VidShareRecv)
			return ok && recv.Share.Recipient == recipient
		}), recipient).Return(nil).Once()
	}

	require.NoError(t, bridge.Handle(context.Background(), events.VidDisperseSend{Disperse: disperse, Sender: node.Self.ID}))
	node.Network.AssertNotCalled(t, "Direct", mock.Anything, mock.Anything, node.Self.ID)
}

func TestFailedDisperseIsSkipped(t *testing.T) {
	node, bridge := newBridge(t)
	disperse := &chain.VidDisperse{View: 3, Shares: map[chain.NodeID]*chain.VidShare{
		node.Fixtures[1].ID: {View: 3, Recipient: node.Fixtures[1].ID},
		node.Fixtures[2].ID: {View: 3, Recipient: node.Fixtures[2].ID},
	}}
	node.Network.On("Direct", mock.Anything, mock.Anything, node.Fixtures[1].ID).Return(errors.New("unreachable")).Once()
	node.Network.On("Direct", mock.Anything, mock.Anything, node.Fixtures[2].ID).Return(nil).Once()

	err := bridge.Handle(context.Background(), events.VidDisperseSend{Disperse: disperse})
	assert.True(t, model.IsSkipError(err))
}

func TestLocalEventsAreNotSent(t *testing.T) {
	_, bridge := newBridge(t)
	// the mock network fails the test on any call
	require.NoError(t, bridge.Handle(context.Background(), events.ViewChange{View: 3}))
	require.NoError(t, bridge.Handle(context.Background(), events.Timeout{View: 3}))
}

func TestReceiveUsesAuthenticatedSender(t *testing.T) {
	node, bridge := newBridge(t)
	genesis, _ := unittest.GenesisLeafFixture()
	leaves, _ := unittest.LeafChainFixture(t, node.Fixtures, genesis, node.GenesisQC, 2)
	proposal := unittest.ProposalFixture(t, node.Leader(2), leaves[1], chain.NoEpoch)

	forged := node.Fixtures[3].ID
	bridge.Receive(&hotshot.Message{
		Sender: node.Leader(2).ID,
		Event:  events.QuorumProposalRecv{Proposal: proposal, Sender: forged},
	})

	received := tasktest.Published[events.QuorumProposalRecv](node.Recorder)
	require.Len(t, received, 1)
	assert.Equal(t, node.Leader(2).ID, received[0].Sender)
}

func TestReceiveDropsUnexpectedEvents(t *testing.T) {
	node, bridge := newBridge(t)
	peer := node.Fixtures[1].ID

	// local events cannot be injected from the network
	bridge.Receive(&hotshot.Message{Sender: peer, Event: events.ViewChange{View: 100}})
	bridge.Receive(&hotshot.Message{Sender: peer, Event: events.QuorumProposalSend{}})
	// the DA leader does not process its own certificate twice
	bridge.Receive(&hotshot.Message{Sender: node.Self.ID, Event: events.DaCertificateRecv{Cert: &chain.DaCertificate{View: 2}}})
	assert.Empty(t, node.Recorder.Events())

	bridge.Receive(&hotshot.Message{Sender: peer, Event: events.DaCertificateRecv{Cert: &chain.DaCertificate{View: 2}}})
	certs := tasktest.Published[events.DaCertificateRecv](node.Recorder)
	require.Len(t, certs, 1)
	assert.Equal(t, peer, certs[0].Sender)
}
