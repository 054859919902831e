package transactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func newMempool(t *testing.T, size int) *Mempool {
	m, err := NewMempool(metrics.NewNoopCollector(), size)
	require.NoError(t, err)
	return m
}

func TestMempool_ReceiveDeduplicates(t *testing.T) {
	m := newMempool(t, 10)
	tx1, tx2 := unittest.TransactionFixture(), unittest.TransactionFixture()

	assert.Equal(t, 2, m.ReceiveTransactions([]chain.Transaction{tx1, tx2, tx1}))
	assert.Equal(t, 0, m.ReceiveTransactions([]chain.Transaction{tx2}))
	assert.Equal(t, 2, m.Pending())
}

func TestMempool_DecidedTransactionsAreNotReaccepted(t *testing.T) {
	m := newMempool(t, 10)
	tx := unittest.TransactionFixture()
	m.ReceiveTransactions([]chain.Transaction{tx})

	m.DecideBlock(&chain.Payload{Transactions: []chain.Transaction{tx}})
	assert.Equal(t, 0, m.Pending())
	assert.True(t, m.IsDecided(tx))
	assert.Equal(t, 0, m.ReceiveTransactions([]chain.Transaction{tx}))
}

func TestMempool_DecidedCacheIsBounded(t *testing.T) {
	m := newMempool(t, 2)
	txs := []chain.Transaction{unittest.TransactionFixture(), unittest.TransactionFixture(), unittest.TransactionFixture()}
	m.DecideBlock(&chain.Payload{Transactions: txs})

	// the oldest decided transaction was evicted and is accepted again
	assert.False(t, m.IsDecided(txs[0]))
	assert.Equal(t, 1, m.ReceiveTransactions(txs))
}

func TestMempool_BlocksDoNotShareTransactions(t *testing.T) {
	m := newMempool(t, 10)
	txs := []chain.Transaction{unittest.TransactionFixture(), unittest.TransactionFixture(), unittest.TransactionFixture()}
	m.ReceiveTransactions(txs)

	first := m.ReceiveBlock(4, 2)
	require.Equal(t, txs[:2], first.Transactions)
	// repeated requests for the same view are stable
	assert.Equal(t, first.Transactions, m.ReceiveBlock(4, 2).Transactions)

	second := m.ReceiveBlock(5, 0)
	assert.Equal(t, txs[2:], second.Transactions)

	// pruning view 4 without a decide releases its transactions
	m.PruneViews(5)
	assert.Equal(t, txs[:2], m.ReceiveBlock(6, 0).Transactions)
}

func TestMempool_DecideRemovesFromBlocks(t *testing.T) {
	m := newMempool(t, 10)
	txs := []chain.Transaction{unittest.TransactionFixture(), unittest.TransactionFixture()}
	m.ReceiveTransactions(txs)
	block := m.ReceiveBlock(1, 0)
	m.DecideBlock(block)
	m.PruneViews(2)

	assert.True(t, m.ReceiveBlock(2, 0).IsEmpty())
	assert.Equal(t, 0, m.Pending())
}

// A transaction is never placed in two blocks that are retained at the same time.
func TestMempool_NoDoubleInclusion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m, err := NewMempool(metrics.NewNoopCollector(), 100)
		require.NoError(rt, err)
		count := rapid.IntRange(1, 30).Draw(rt, "count")
		txs := make([]chain.Transaction, count)
		for i := range txs {
			txs[i] = chain.Transaction{byte(i), byte(i >> 8), 0xaa}
		}
		m.ReceiveTransactions(txs)

		seen := make(map[string]uint64)
		views := rapid.IntRange(1, 10).Draw(rt, "views")
		for view := uint64(1); view <= uint64(views); view++ {
			max := rapid.IntRange(0, 5).Draw(rt, "max")
			for _, tx := range m.ReceiveBlock(view, max).Transactions {
				prior, ok := seen[string(tx)]
				require.False(rt, ok, "transaction in views %d and %d", prior, view)
				seen[string(tx)] = view
			}
		}
	})
}
