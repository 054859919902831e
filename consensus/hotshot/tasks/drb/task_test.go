package drb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/tasktest"
	beacon "github.com/hotshot-go/hotshot/drb"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

var testConfig = Config{Difficulty: 64, CheckpointInterval: 16}

func newTask(t *testing.T) (*tasktest.Node, *Task) {
	versions := chain.DefaultVersions()
	versions.Base = chain.EpochVersion
	node := tasktest.NewNode(t, 4, 0, tasktest.WithEpochHeight(10), tasktest.WithVersions(versions))
	node.Membership.SetFirstEpoch(1, unittest.DrbResultFixture())
	return node, New(node.Deps(), testConfig)
}

// epochRoot returns the decided epoch root of epoch 1, block 5 with epoch height 10.
func epochRoot(t *testing.T, node *tasktest.Node) *chain.Leaf {
	justify := unittest.SignCertificate(t, node.Fixtures[:3], 4, chain.QuorumData{
		LeafCommitment: unittest.CommitmentFixture(),
		Epoch:          chain.EpochOf(1),
		BlockNumber:    4,
	})
	return &chain.Leaf{View: 5, Justify: justify, Header: unittest.HeaderFixture(5), WithEpoch: true}
}

// run starts the computation loop and returns a function that stops it.
func run(t *testing.T, task *Task) func() {
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		task.computeLoop(ctx, func() { close(ready) })
	}()
	unittest.RequireCloseBefore(t, ready, time.Second, "drb worker did not start")
	return func() {
		cancel()
		unittest.RequireCloseBefore(t, done, time.Second, "drb worker did not stop")
	}
}

func awaitResult(t *testing.T, node *tasktest.Node) events.DrbResultComputed {
	require.Eventually(t, func() bool {
		return len(tasktest.Published[events.DrbResultComputed](node.Recorder)) > 0
	}, time.Second, 5*time.Millisecond)
	return tasktest.Published[events.DrbResultComputed](node.Recorder)[0]
}

func TestEpochRootSchedulesDrbTwoEpochsAhead(t *testing.T) {
	node, task := newTask(t)
	leaf := epochRoot(t, node)
	seed := chain.DrbSeedFromQC(leaf.Justify)
	expected, err := beacon.Compute(context.Background(), beacon.InitialInput(3, seed), testConfig.Difficulty, testConfig.CheckpointInterval, nil)
	require.NoError(t, err)

	node.Persister.On("LoadDrbInput", mock.Anything, uint64(3)).Return(chain.DrbInput{}, false, nil).Once()
	// checkpoints at 16, 32 and 48 iterations
	node.Persister.On("StoreDrbInput", mock.Anything, mock.MatchedBy(func(in chain.DrbInput) bool {
		return in.Epoch == 3 && in.Iteration%16 == 0 && in.Iteration < 64
	})).Return(nil).Times(3)
	node.Persister.On("AddDrbResult", mock.Anything, uint64(3), expected).Return(nil).Once()

	stop := run(t, task)
	defer stop()
	require.NoError(t, task.Handle(context.Background(), events.LeavesDecided{Leaves: []*chain.Leaf{leaf}}))
	assert.True(t, node.Membership.HasStakeTable(chain.EpochOf(3)))

	computed := awaitResult(t, node)
	assert.Equal(t, uint64(3), computed.Epoch)
	assert.Equal(t, expected, computed.Result)
	stored, err := node.Membership.EpochDrb(3)
	require.NoError(t, err)
	assert.Equal(t, expected, stored)
}

func TestDrbResumesFromCheckpoint(t *testing.T) {
	node, task := newTask(t)
	leaf := epochRoot(t, node)
	seed := chain.DrbSeedFromQC(leaf.Justify)

	var checkpoint chain.DrbInput
	expected, err := beacon.Compute(context.Background(), beacon.InitialInput(3, seed), testConfig.Difficulty, testConfig.CheckpointInterval, func(in chain.DrbInput) error {
		if in.Iteration == 32 {
			checkpoint = in
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(32), checkpoint.Iteration)

	node.Persister.On("LoadDrbInput", mock.Anything, uint64(3)).Return(checkpoint, true, nil).Once()
	// only the checkpoint at 48 is left
	node.Persister.On("StoreDrbInput", mock.Anything, mock.Anything).Return(nil).Once()
	node.Persister.On("AddDrbResult", mock.Anything, uint64(3), expected).Return(nil).Once()

	stop := run(t, task)
	defer stop()
	require.NoError(t, task.Handle(context.Background(), events.LeavesDecided{Leaves: []*chain.Leaf{leaf}}))
	assert.Equal(t, expected, awaitResult(t, node).Result)
}

func TestLeavesOtherThanEpochRootAreIgnored(t *testing.T) {
	node, task := newTask(t)
	leaf := epochRoot(t, node)
	leaf.Header = unittest.HeaderFixture(6)

	require.NoError(t, task.Handle(context.Background(), events.LeavesDecided{Leaves: []*chain.Leaf{leaf}}))
	assert.False(t, node.Membership.HasStakeTable(chain.EpochOf(3)))
	assert.Empty(t, task.requests)

	// without epochs
	leaf = epochRoot(t, node)
	leaf.WithEpoch = false
	require.NoError(t, task.Handle(context.Background(), events.LeavesDecided{Leaves: []*chain.Leaf{leaf}}))
	assert.Empty(t, task.requests)
}

func TestKnownDrbIsNotRecomputed(t *testing.T) {
	node, task := newTask(t)
	require.NoError(t, node.Membership.AddDrbResult(3, unittest.DrbResultFixture()))

	require.NoError(t, task.Handle(context.Background(), events.LeavesDecided{Leaves: []*chain.Leaf{epochRoot(t, node)}}))
	assert.Empty(t, task.requests)
}

func TestScheduleDeduplicatesAndBounds(t *testing.T) {
	_, task := newTask(t)
	seed := chain.DrbSeed(unittest.CommitmentFixture())

	require.NoError(t, task.Schedule(3, seed))
	require.NoError(t, task.Schedule(3, seed))
	assert.Len(t, task.requests, 1)

	for epoch := uint64(4); epoch < 3+queueCapacity; epoch++ {
		require.NoError(t, task.Schedule(epoch, seed))
	}
	err := task.Schedule(100, seed)
	assert.True(t, model.IsSkipError(err))
}

func TestFailedCheckpointAbortsComputation(t *testing.T) {
	node, task := newTask(t)
	node.Persister.On("LoadDrbInput", mock.Anything, uint64(3)).Return(chain.DrbInput{}, false, nil).Once()
	node.Persister.On("StoreDrbInput", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	err := task.compute(context.Background(), request{epoch: 3, seed: chain.DrbSeed(unittest.CommitmentFixture())})
	require.Error(t, err)
	_, err = node.Membership.EpochDrb(3)
	assert.Error(t, err)
	assert.Empty(t, node.Recorder.Events())
}
