package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/mocks"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/pacemaker/timeout"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/tasktest"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func timerConfig(t *testing.T, min time.Duration) timeout.Config {
	cfg, err := timeout.NewConfig(min, 10*min, 1.5, 3)
	require.NoError(t, err)
	return cfg
}

func newTask(t *testing.T, self int, opts ...tasktest.Option) (*tasktest.Node, *Task) {
	node := tasktest.NewNode(t, 4, self, opts...)
	node.PersistAll()
	return node, New(node.Deps(), Config{Timeout: timerConfig(t, time.Hour)})
}

func epochsFromGenesis(t *testing.T, self int) (*tasktest.Node, *Task) {
	versions := chain.DefaultVersions()
	versions.Base = chain.EpochVersion
	node, task := newTask(t, self, tasktest.WithEpochHeight(10), tasktest.WithVersions(versions))
	node.Membership.SetFirstEpoch(1, unittest.DrbResultFixture())
	return node, task
}

func quorumVotes(t *testing.T, nodes []unittest.NodeFixture, view uint64, data chain.QuorumData) []*chain.QuorumVote {
	votes := make([]*chain.QuorumVote, 0, len(nodes))
	for _, node := range nodes {
		votes = append(votes, unittest.SignVote(t, node, view, data))
	}
	return votes
}

func TestQcFormedAtNextLeader(t *testing.T) {
	node, task := newTask(t, 2)
	ctx := context.Background()
	leaves, _ := unittest.LeafChainFixture(t, node.Fixtures, node.Genesis, node.GenesisQC, 1)
	data := chain.QuorumData{LeafCommitment: leaves[0].Commit(), BlockNumber: 1}
	votes := quorumVotes(t, node.Fixtures[:3], 1, data)

	for _, vote := range votes[:2] {
		require.NoError(t, task.Handle(ctx, events.QuorumVoteRecv{Vote: vote}))
	}
	assert.Empty(t, tasktest.Published[events.Qc2Formed](node.Recorder))
	// re-delivery of a counted vote does not complete the certificate
	require.NoError(t, task.Handle(ctx, events.QuorumVoteRecv{Vote: votes[1]}))
	assert.Empty(t, tasktest.Published[events.Qc2Formed](node.Recorder))

	require.NoError(t, task.Handle(ctx, events.QuorumVoteRecv{Vote: votes[2]}))
	formed := tasktest.Published[events.Qc2Formed](node.Recorder)
	require.Len(t, formed, 1)
	qc := formed[0].QC
	assert.Equal(t, uint64(1), qc.View)
	assert.Len(t, qc.Signers, 3)
	require.NoError(t, node.Verifier.VerifyQC(qc))
	assert.Equal(t, qc, node.Consensus.HighQC())
	node.Persister.AssertCalled(t, "UpdateHighQC", mock.Anything, qc)

	changes := tasktest.Published[events.ViewChange](node.Recorder)
	require.Len(t, changes, 1)
	assert.Equal(t, events.ViewChange{View: 2, Epoch: chain.NoEpoch}, changes[0])
	assert.Equal(t, uint64(2), node.Consensus.CurView())
}

func TestVoteForOtherLeaderIsSkipped(t *testing.T) {
	node, task := newTask(t, 1)
	leaves, _ := unittest.LeafChainFixture(t, node.Fixtures, node.Genesis, node.GenesisQC, 1)
	vote := unittest.SignVote(t, node.Fixtures[0], 1, chain.QuorumData{LeafCommitment: leaves[0].Commit(), BlockNumber: 1})

	err := task.Handle(context.Background(), events.QuorumVoteRecv{Vote: vote})
	require.ErrorIs(t, err, model.ErrNotLeader)
	assert.True(t, model.IsSkipError(err))
}

func TestVoteWithInvalidSignatureIsRejected(t *testing.T) {
	node, task := newTask(t, 2)
	leaves, _ := unittest.LeafChainFixture(t, node.Fixtures, node.Genesis, node.GenesisQC, 1)
	vote := unittest.SignVote(t, node.Fixtures[0], 1, chain.QuorumData{LeafCommitment: leaves[0].Commit(), BlockNumber: 1})
	vote.Signer = node.Fixtures[1].ID

	err := task.Handle(context.Background(), events.QuorumVoteRecv{Vote: vote})
	require.True(t, model.IsInvalidVoteError(err))
	assert.True(t, model.IsRejection(err))
}

func TestTimeoutCertificateFormed(t *testing.T) {
	node, task := newTask(t, 2)
	ctx := context.Background()
	for _, fixture := range node.Fixtures[:3] {
		vote := unittest.SignVote(t, fixture, 1, chain.TimeoutData{View: 1})
		require.NoError(t, task.Handle(ctx, events.TimeoutVoteRecv{Vote: vote}))
	}

	formed := tasktest.Published[events.TcFormed](node.Recorder)
	require.Len(t, formed, 1)
	require.NoError(t, node.Verifier.VerifyTimeoutCertificate(formed[0].Cert))
	assert.Equal(t, uint64(2), node.Consensus.CurView())
	assert.Equal(t, []events.ViewChange{{View: 2, Epoch: chain.NoEpoch}}, tasktest.Published[events.ViewChange](node.Recorder))
}

func TestTimeoutVoteForAnotherViewIsRejected(t *testing.T) {
	node, task := newTask(t, 2)
	vote := unittest.SignVote(t, node.Fixtures[0], 1, chain.TimeoutData{View: 0})

	err := task.Handle(context.Background(), events.TimeoutVoteRecv{Vote: vote})
	require.True(t, model.IsInvalidVoteError(err))
}

func TestTimeoutSendsVoteAndHighQC(t *testing.T) {
	node, task := newTask(t, 0)
	ctx := context.Background()

	require.NoError(t, task.Handle(ctx, events.Timeout{View: 0}))
	votes := tasktest.Published[events.TimeoutVoteSend](node.Recorder)
	require.Len(t, votes, 1)
	assert.Equal(t, chain.TimeoutData{View: 0}, votes[0].Vote.Data)
	require.NoError(t, verification.VerifyVote(node.Verifier, votes[0].Vote))

	sent := tasktest.Published[events.HighQcSend](node.Recorder)
	require.Len(t, sent, 1)
	assert.Equal(t, node.GenesisQC, sent[0].QC)
	assert.Equal(t, node.Fixtures[1].ID, sent[0].Leader)
	assert.Equal(t, uint64(1), sent[0].View)
	assert.Equal(t, node.Self.ID, sent[0].Sender)
	assert.Nil(t, sent[0].NextEpochQC)
	// a timeout alone does not leave the view
	assert.Equal(t, uint64(0), node.Consensus.CurView())

	err := task.Handle(ctx, events.Timeout{View: 5})
	require.ErrorIs(t, err, model.ErrStaleView)
}

func TestViewAdvancesAfterOwnVote(t *testing.T) {
	node, task := newTask(t, 0)
	ctx := context.Background()
	vote := unittest.SignVote(t, node.Self, 3, chain.QuorumData{LeafCommitment: unittest.CommitmentFixture(), BlockNumber: 3})

	require.NoError(t, task.Handle(ctx, events.QuorumVoteSend{Vote: vote}))
	require.NoError(t, task.Handle(ctx, events.QuorumVoteSend{Vote: vote}))
	assert.Equal(t, []events.ViewChange{{View: 4, Epoch: chain.NoEpoch}}, tasktest.Published[events.ViewChange](node.Recorder))

	// an older proposal does not move the view back
	leaves, _ := unittest.LeafChainFixture(t, node.Fixtures, node.Genesis, node.GenesisQC, 1)
	proposal := unittest.ProposalFixture(t, node.Leader(1), leaves[0], chain.NoEpoch)
	require.NoError(t, task.Handle(ctx, events.QuorumProposalValidated{Proposal: proposal, ParentLeaf: node.Genesis}))
	assert.Equal(t, uint64(4), node.Consensus.CurView())
}

// Votes for the last block of an epoch are aggregated by every node against both committees.
// The pair of certificates moves the node into the next epoch.
func TestTransitionVotesFormBothCertificates(t *testing.T) {
	node, task := epochsFromGenesis(t, 0)
	ctx := context.Background()
	data := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture(), Epoch: chain.EpochOf(1), BlockNumber: 10}

	// node 0 does not lead view 11 but aggregates the broadcast votes
	for _, vote := range quorumVotes(t, node.Fixtures[1:4], 10, data) {
		require.NoError(t, task.Handle(ctx, events.QuorumVoteRecv{Vote: vote}))
	}
	require.Len(t, tasktest.Published[events.Qc2Formed](node.Recorder), 1)
	require.Len(t, tasktest.Published[events.NextEpochQc2Formed](node.Recorder), 1)
	pairs := tasktest.Published[events.ExtendedQc2Formed](node.Recorder)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint64(10), pairs[0].Pair.View())
	assert.Equal(t, uint64(10), node.Consensus.TransitionQC().View())
	require.NoError(t, node.Verifier.VerifyNextEpochQC(pairs[0].Pair.NextEpochQC()))

	assert.Equal(t, []events.ViewChange{{View: 11, Epoch: chain.EpochOf(2)}}, tasktest.Published[events.ViewChange](node.Recorder))
	assert.Equal(t, chain.EpochOf(2), node.Consensus.CurEpoch())
}

func TestEpochRootVotesFormStateCertificate(t *testing.T) {
	node, _ := epochsFromGenesis(t, 2)
	handoff := mocks.NewStateProverHandoff(t)
	task := New(node.Deps(), Config{Timeout: timerConfig(t, time.Hour), Handoff: handoff})
	ctx := context.Background()

	leaf := &chain.Leaf{View: 5, Header: unittest.HeaderFixture(5), WithEpoch: true}
	data := chain.QuorumData{LeafCommitment: leaf.Commit(), Epoch: chain.EpochOf(1), BlockNumber: 5}
	state := chain.LightClientStateUpdateData{
		Epoch:               chain.EpochOf(1),
		State:               chain.LightClientState{ViewNumber: 5, BlockHeight: 5, BlockCommRoot: unittest.CommitmentFixture()},
		NextStakeTableState: chain.NewStakeTableState(node.Table, 3),
	}
	for i, fixture := range node.Fixtures[:3] {
		stateVote, err := verification.CreateStateVote(tasktest.Signer(fixture), state)
		require.NoError(t, err)
		vote := events.EpochRootQuorumVote{Vote: unittest.SignVote(t, fixture, 5, data), StateVote: stateVote}
		require.NoError(t, task.Handle(ctx, events.EpochRootQuorumVoteRecv{Vote: vote}))
		if i < 2 {
			assert.Empty(t, tasktest.Published[events.StateCertificateFormed](node.Recorder))
		}
	}

	formed := tasktest.Published[events.StateCertificateFormed](node.Recorder)
	require.Len(t, formed, 1)
	cert := formed[0].Cert
	assert.Equal(t, state, cert.Data)
	assert.Len(t, cert.Signatures, 3)
	assert.Equal(t, cert, node.Consensus.StateCert())
	node.Persister.AssertCalled(t, "UpdateStateCert", mock.Anything, cert)
	require.Len(t, tasktest.Published[events.Qc2Formed](node.Recorder), 1)

	handoff.On("HandOff", mock.Anything, cert, mock.Anything).Return(nil).Once()
	require.NoError(t, task.Handle(ctx, events.LeavesDecided{Leaves: []*chain.Leaf{leaf}}))
}

func TestEpochRootVoteWithForgedStateSignature(t *testing.T) {
	node, task := epochsFromGenesis(t, 2)
	leaf := &chain.Leaf{View: 5, Header: unittest.HeaderFixture(5), WithEpoch: true}
	state := chain.LightClientStateUpdateData{
		Epoch: chain.EpochOf(1),
		State: chain.LightClientState{ViewNumber: 5, BlockHeight: 5},
	}
	stateVote, err := verification.CreateStateVote(tasktest.Signer(node.Fixtures[1]), state)
	require.NoError(t, err)
	stateVote.Signer = node.Fixtures[0].ID
	vote := events.EpochRootQuorumVote{
		Vote:      unittest.SignVote(t, node.Fixtures[0], 5, chain.QuorumData{LeafCommitment: leaf.Commit(), Epoch: chain.EpochOf(1), BlockNumber: 5}),
		StateVote: stateVote,
	}

	err = task.Handle(context.Background(), events.EpochRootQuorumVoteRecv{Vote: vote})
	require.True(t, model.IsInvalidVoteError(err))
}

func TestViewTimerPublishesTimeout(t *testing.T) {
	node := tasktest.NewNode(t, 4, 0)
	task := New(node.Deps(), Config{Timeout: timerConfig(t, 10*time.Millisecond)})
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		task.runTimer(ctx, func() { close(ready) })
	}()
	unittest.RequireCloseBefore(t, ready, time.Second, "timer worker did not start")

	require.Eventually(t, func() bool {
		return len(tasktest.Published[events.Timeout](node.Recorder)) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(0), tasktest.Published[events.Timeout](node.Recorder)[0].View)

	cancel()
	unittest.RequireCloseBefore(t, done, time.Second, "timer worker did not stop")
}
