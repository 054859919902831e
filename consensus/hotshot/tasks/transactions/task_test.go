package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/mocks"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/tasktest"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func testConfig() Config {
	return Config{
		BuilderTimeout:   200 * time.Millisecond,
		RetryDelay:       10 * time.Millisecond,
		DecidedCacheSize: 100,
	}
}

// builderFixture is an external builder offering a single block.
type builderFixture struct {
	key     unittest.NodeFixture
	payload *chain.Payload
	fee     uint64
}

func newBuilderFixture(t *testing.T, index int, fee uint64) builderFixture {
	// keys beyond the committee fixtures
	key := unittest.NodeFixtures(t, 4+index)[3+index]
	return builderFixture{key: key, payload: unittest.PayloadFixture(3), fee: fee}
}

func (b builderFixture) offer(t *testing.T) hotshot.AvailableBlockInfo {
	info := hotshot.AvailableBlockInfo{
		BlockHash:  b.payload.BuilderCommitment(),
		BlockSize:  uint64(len(b.payload.Encode())),
		OfferedFee: b.fee,
		Sender:     b.key.StakingKey.PublicKey().Encode(),
	}
	sig, err := b.key.Sign(info.SigningMessage())
	require.NoError(t, err)
	info.Signature = sig
	return info
}

func (b builderFixture) client(t *testing.T, url string) *mocks.BuilderClient {
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return(url).Maybe()
	client.On("AvailableBlocks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]hotshot.AvailableBlockInfo{b.offer(t)}, nil).Maybe()
	client.On("ClaimBlock", mock.Anything, b.payload.BuilderCommitment(), mock.Anything, mock.Anything, mock.Anything).
		Return(&hotshot.AvailableBlockData{Payload: b.payload, Metadata: b.payload.Metadata()}, nil).Maybe()
	client.On("ClaimBlockHeaderInput", mock.Anything, b.payload.BuilderCommitment(), mock.Anything, mock.Anything, mock.Anything).
		Return(&hotshot.AvailableBlockHeaderInput{FeeSignature: []byte("fee")}, nil).Maybe()
	return client
}

// node 1 of 4 leads view 1
func newTask(t *testing.T, node *tasktest.Node, builders ...hotshot.BuilderClient) *Task {
	task, err := New(node.Deps(), testConfig(), builders)
	require.NoError(t, err)
	return task
}

func TestNonLeaderProducesNoBlock(t *testing.T) {
	node := tasktest.NewNode(t, 4, 2)
	task := newTask(t, node)

	err := task.Handle(context.Background(), events.ViewChange{View: 1})
	require.ErrorIs(t, err, model.ErrNotLeader)
	assert.Empty(t, tasktest.Published[events.BlockRecv](node.Recorder))
}

func TestStaleViewChangeIsDiscarded(t *testing.T) {
	node := tasktest.NewNode(t, 4, 0)
	task := newTask(t, node)
	ctx := context.Background()

	require.NoError(t, task.Handle(ctx, events.ViewChange{View: 100}))
	node.Recorder.Reset()
	err := task.Handle(ctx, events.ViewChange{View: 99})
	require.True(t, model.IsSkipError(err))
	assert.Equal(t, uint64(100), task.tracker.View())
	assert.Empty(t, node.Recorder.Events())
}

func TestLeaderBuildsFromMempool(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	task := newTask(t, node)
	ctx := context.Background()

	txs := []chain.Transaction{unittest.TransactionFixture(), unittest.TransactionFixture()}
	require.NoError(t, task.Handle(ctx, events.TransactionsRecv{Transactions: txs}))
	require.NoError(t, task.Handle(ctx, events.ViewChange{View: 1}))

	blocks := tasktest.Published[events.BlockRecv](node.Recorder)
	require.Len(t, blocks, 1)
	payload, err := chain.DecodePayload(blocks[0].Bundle.EncodedTransactions)
	require.NoError(t, err)
	assert.Equal(t, txs, payload.Transactions)
	assert.Equal(t, uint64(1), blocks[0].Bundle.View)
	assert.False(t, blocks[0].Bundle.Null)
}

func TestDecidedLeavesPruneMempool(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	task := newTask(t, node)
	ctx := context.Background()

	tx := unittest.TransactionFixture()
	require.NoError(t, task.Handle(ctx, events.TransactionsRecv{Transactions: []chain.Transaction{tx}}))
	leaf := &chain.Leaf{View: 3, Payload: &chain.Payload{Transactions: []chain.Transaction{tx}}}
	require.NoError(t, task.Handle(ctx, events.LeavesDecided{Leaves: []*chain.Leaf{leaf}}))

	assert.Equal(t, 0, task.Mempool().Pending())
	assert.True(t, task.Mempool().IsDecided(tx))
}

func TestLeaderClaimsHighestFeeBlock(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	cheap := newBuilderFixture(t, 1, 5)
	rich := newBuilderFixture(t, 2, 10)
	task := newTask(t, node, cheap.client(t, "http://cheap"), rich.client(t, "http://rich"))

	require.NoError(t, task.Handle(context.Background(), events.ViewChange{View: 1}))

	blocks := tasktest.Published[events.BlockRecv](node.Recorder)
	require.Len(t, blocks, 1)
	bundle := blocks[0].Bundle
	assert.Equal(t, rich.payload.Encode(), bundle.EncodedTransactions)
	assert.Equal(t, uint64(10), bundle.Fee.Amount)
	assert.Equal(t, []byte("fee"), bundle.Fee.Signature)
	assert.False(t, bundle.Null)
}

func TestBuilderRequestsCarryParentCommitment(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	b := newBuilderFixture(t, 1, 1)
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://builder").Maybe()
	client.On("AvailableBlocks", mock.Anything, node.Genesis.PayloadCommitment(), uint64(1), node.Self.ID, mock.Anything).
		Return([]hotshot.AvailableBlockInfo{b.offer(t)}, nil).Once()
	client.On("ClaimBlock", mock.Anything, mock.Anything, uint64(1), node.Self.ID, mock.Anything).
		Return(&hotshot.AvailableBlockData{Payload: b.payload}, nil).Once()
	client.On("ClaimBlockHeaderInput", mock.Anything, mock.Anything, uint64(1), node.Self.ID, mock.Anything).
		Return(&hotshot.AvailableBlockHeaderInput{}, nil).Once()
	task := newTask(t, node, client)

	require.NoError(t, task.Handle(context.Background(), events.ViewChange{View: 1}))
	require.Len(t, tasktest.Published[events.BlockRecv](node.Recorder), 1)
}

func TestFailingBuildersFallBackToNullBlock(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://down").Maybe()
	client.On("AvailableBlocks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("unavailable"))
	task := newTask(t, node, client)

	start := time.Now()
	require.NoError(t, task.Handle(context.Background(), events.ViewChange{View: 1}))
	assert.GreaterOrEqual(t, time.Since(start), testConfig().BuilderTimeout)

	blocks := tasktest.Published[events.BlockRecv](node.Recorder)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Bundle.Null)
	assert.Empty(t, blocks[0].Bundle.EncodedTransactions)
	// more than one attempt within the timeout
	assert.Greater(t, len(client.Calls), 2)
}

func TestOffersWithInvalidSignatureAreIgnored(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	b := newBuilderFixture(t, 1, 100)
	forged := b.offer(t)
	forged.OfferedFee = 1_000
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://forger").Maybe()
	client.On("AvailableBlocks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]hotshot.AvailableBlockInfo{forged}, nil)
	task := newTask(t, node, client)

	require.NoError(t, task.Handle(context.Background(), events.ViewChange{View: 1}))
	blocks := tasktest.Published[events.BlockRecv](node.Recorder)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Bundle.Null)
	client.AssertNotCalled(t, "ClaimBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClaimMismatchFallsBackToNextOffer(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	liar := newBuilderFixture(t, 1, 50)
	honest := newBuilderFixture(t, 2, 10)
	lying := mocks.NewBuilderClient(t)
	lying.On("URL").Return("http://liar").Maybe()
	lying.On("AvailableBlocks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]hotshot.AvailableBlockInfo{liar.offer(t)}, nil)
	// delivers a payload other than the one offered
	lying.On("ClaimBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&hotshot.AvailableBlockData{Payload: unittest.PayloadFixture(1)}, nil)
	lying.On("ClaimBlockHeaderInput", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&hotshot.AvailableBlockHeaderInput{}, nil)
	task := newTask(t, node, lying, honest.client(t, "http://honest"))

	require.NoError(t, task.Handle(context.Background(), events.ViewChange{View: 1}))
	blocks := tasktest.Published[events.BlockRecv](node.Recorder)
	require.Len(t, blocks, 1)
	assert.Equal(t, honest.payload.Encode(), blocks[0].Bundle.EncodedTransactions)
}

// With epoch height 10 and a high QC for block 9, the next block is part of the epoch
// transition and is empty even though a builder offers a block.
func TestEpochTransitionForcesEmptyBlock(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1, tasktest.WithEpochHeight(10))
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://builder").Maybe()
	task := newTask(t, node, client)

	qc := unittest.SignCertificate(t, node.Fixtures[:3], 9, chain.QuorumData{
		LeafCommitment: unittest.CommitmentFixture(),
		Epoch:          chain.EpochOf(1),
		BlockNumber:    9,
	})
	require.NoError(t, node.Consensus.UpdateHighQC(qc))
	require.True(t, node.Consensus.IsHighQCForEpochTransition())

	require.NoError(t, task.Handle(context.Background(), events.ViewChange{View: 13}))
	blocks := tasktest.Published[events.BlockRecv](node.Recorder)
	require.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].Bundle.EncodedTransactions)
	assert.False(t, blocks[0].Bundle.Null)
	client.AssertNotCalled(t, "AvailableBlocks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBuildersRequireRetryDelay(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	config := testConfig()
	config.RetryDelay = 0

	_, err := New(node.Deps(), config, []hotshot.BuilderClient{mocks.NewBuilderClient(t)})
	require.Error(t, err)

	// the mempool path never retries
	_, err = New(node.Deps(), config, nil)
	require.NoError(t, err)
}

// The parent payload search stops at the last decided view: entries left below the anchor
// are never used as the parent.
func TestParentPayloadSearchStopsAtDecidedView(t *testing.T) {
	node := tasktest.NewNode(t, 4, 1)
	leaves, qcs := unittest.LeafChainFixture(t, node.Fixtures, node.Genesis, node.GenesisQC, 5)
	anchor := leaves[4]
	node.Consensus = store.New(unittest.Logger(), metrics.NewNoopCollector(), 0, store.Anchor{Leaf: anchor, HighQC: qcs[4]})
	task := newTask(t, node)

	commitment, err := task.parentPayloadCommitment(9)
	require.NoError(t, err)
	assert.Equal(t, anchor.PayloadCommitment(), commitment)

	node.Consensus.CollectGarbage(anchor.View, anchor.View+1)
	require.NoError(t, node.Consensus.UpdateValidatedStateMap(2, store.View{Inner: chain.ViewInner{
		Kind:              chain.ViewDa,
		PayloadCommitment: unittest.CommitmentFixture(),
	}}))
	_, err = task.parentPayloadCommitment(9)
	require.Error(t, err)
}
