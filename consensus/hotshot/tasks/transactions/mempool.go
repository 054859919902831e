package transactions

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module"
	"github.com/hotshot-go/hotshot/module/metrics"
)

// Mempool holds the transactions submitted to this node that were not decided yet.
//
// Decided transactions are remembered in a bounded LRU so that re-submissions are dropped.
// Transactions put into a block for a view are kept out of blocks of later views until the
// view is decided or pruned, so a transaction is not included twice in the same chain.
//
// Concurrency safe.
type Mempool struct {
	mu       sync.Mutex
	metrics  module.MempoolMetrics
	pending  map[chain.Commitment]chain.Transaction
	order    []chain.Commitment
	decided  *lru.Cache[chain.Commitment, struct{}]
	proposed map[uint64][]chain.Commitment
	inBlock  map[chain.Commitment]uint64
}

// NewMempool creates a mempool remembering up to decidedCacheSize decided transactions.
func NewMempool(metrics module.MempoolMetrics, decidedCacheSize int) (*Mempool, error) {
	decided, err := lru.New[chain.Commitment, struct{}](decidedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create decided transactions cache: %w", err)
	}
	return &Mempool{
		metrics:  metrics,
		pending:  make(map[chain.Commitment]chain.Transaction),
		decided:  decided,
		proposed: make(map[uint64][]chain.Commitment),
		inBlock:  make(map[chain.Commitment]uint64),
	}, nil
}

func txCommitment(tx chain.Transaction) chain.Commitment {
	return chain.CommitmentFromBytes(tx)
}

// ReceiveTransactions adds the transactions that are neither pending nor recently decided and
// returns how many were added.
func (m *Mempool) ReceiveTransactions(txs []chain.Transaction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, tx := range txs {
		id := txCommitment(tx)
		if _, ok := m.pending[id]; ok {
			continue
		}
		if m.decided.Contains(id) {
			continue
		}
		m.pending[id] = tx
		m.order = append(m.order, id)
		added++
	}
	m.reportSizes()
	return added
}

// ReceiveBlock builds the block of the view from up to max pending transactions in arrival
// order, skipping transactions already placed in a block of another view. A repeated call for
// the same view returns the same transactions.
func (m *Mempool) ReceiveBlock(view uint64, max int) *chain.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload := chain.EmptyPayload()
	if ids, ok := m.proposed[view]; ok {
		for _, id := range ids {
			if tx, ok := m.pending[id]; ok {
				payload.Transactions = append(payload.Transactions, tx)
			}
		}
		return payload
	}
	var ids []chain.Commitment
	for _, id := range m.order {
		if max > 0 && len(ids) >= max {
			break
		}
		if _, taken := m.inBlock[id]; taken {
			continue
		}
		ids = append(ids, id)
		m.inBlock[id] = view
		payload.Transactions = append(payload.Transactions, m.pending[id])
	}
	m.proposed[view] = ids
	return payload
}

// DecideBlock removes the transactions of a decided payload and remembers them as decided.
func (m *Mempool) DecideBlock(payload *chain.Payload) {
	if payload == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range payload.Transactions {
		id := txCommitment(tx)
		m.decided.Add(id, struct{}{})
		delete(m.pending, id)
		delete(m.inBlock, id)
	}
	m.compact()
	m.reportSizes()
}

// PruneViews forgets block assignments of views below the given view. Transactions of blocks
// that were never decided become available for new blocks again.
func (m *Mempool) PruneViews(below uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for view, ids := range m.proposed {
		if view >= below {
			continue
		}
		for _, id := range ids {
			if assigned, ok := m.inBlock[id]; ok && assigned == view {
				delete(m.inBlock, id)
			}
		}
		delete(m.proposed, view)
	}
}

// IsDecided returns true if the transaction was decided recently.
func (m *Mempool) IsDecided(tx chain.Transaction) bool {
	return m.decided.Contains(txCommitment(tx))
}

// Pending returns the number of pending transactions.
func (m *Mempool) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// compact drops decided transactions from the arrival order.
func (m *Mempool) compact() {
	order := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.pending[id]; ok {
			order = append(order, id)
		}
	}
	m.order = order
}

func (m *Mempool) reportSizes() {
	m.metrics.MempoolEntries(metrics.ResourcePendingTransactions, uint(len(m.pending)))
	m.metrics.MempoolEntries(metrics.ResourceDecidedTransactions, uint(m.decided.Len()))
}
