package node

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/pacemaker/timeout"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/tasktest"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/network/stub"
	"github.com/hotshot-go/hotshot/state/sequencer"
	storage "github.com/hotshot-go/hotshot/storage/badger"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

// startCluster starts count nodes with equal stake on one stub network hub.
func startCluster(t *testing.T, ctx irrecoverable.SignalerContext, count int) []*SystemContext {
	log := unittest.Logger()
	fixtures := unittest.NodeFixtures(t, count)
	table := unittest.StakeTableFixture(fixtures, 1)
	hub := stub.NewNetworkHub()
	genesis := unittest.HeaderFixture(0)

	cfg := DefaultConfig()
	var err error
	cfg.Timeout, err = timeout.NewConfig(500*time.Millisecond, 2*time.Second, 1.5, 3)
	require.NoError(t, err)

	systems := make([]*SystemContext, 0, len(fixtures))
	for _, fixture := range fixtures {
		membership, err := committees.NewStaticCommittee(log, table, table, 0)
		require.NoError(t, err)
		net, err := stub.NewNetwork(log, hub, fixture.ID)
		require.NoError(t, err)
		instance := sequencer.NewInstance("test", 0, time.Hour)
		dir := unittest.TempDir(t)
		db := unittest.BadgerDB(t, dir)
		t.Cleanup(func() {
			_ = db.Close()
			_ = os.RemoveAll(dir)
		})
		persister := storage.NewPersister(log, db)

		initializer, err := Load(ctx, log, persister, instance, genesis)
		require.NoError(t, err)
		system, err := New(ctx, Params{
			Log:         log,
			Config:      cfg,
			Signer:      tasktest.Signer(fixture),
			Membership:  membership,
			Persister:   persister,
			Network:     net,
			Instance:    instance,
			Metrics:     metrics.NewNoopCollector(),
			Initializer: initializer,
		})
		require.NoError(t, err)
		systems = append(systems, system)
	}
	return systems
}

func stopCluster(t *testing.T, cancel context.CancelFunc, systems []*SystemContext) {
	cancel()
	for _, system := range systems {
		unittest.RequireCloseBefore(t, system.Done(), 5*time.Second, "node did not stop")
	}
}

func TestSystemStartsAndStops(t *testing.T) {
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()
	systems := startCluster(t, ctx, 4)

	for _, system := range systems {
		system.Start(ctx)
	}
	for _, system := range systems {
		unittest.RequireCloseBefore(t, system.Ready(), 5*time.Second, "node did not start")
	}
	for _, system := range systems {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, system.WaitForView(waitCtx, 1))
		waitCancel()
		require.Equal(t, chain.NoEpoch, system.Consensus().CurEpoch())
	}

	stopCluster(t, cancel, systems)
}

// decisions records the leaves a node decided.
type decisions struct {
	mu      sync.Mutex
	byView  map[uint64]chain.Commitment
	heights []uint64
	events  int
}

func newDecisions() *decisions {
	return &decisions{byView: make(map[uint64]chain.Commitment)}
}

func (d *decisions) onLeavesDecided(leaves []*chain.Leaf, _ *chain.QuorumCertificate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events++
	for _, leaf := range leaves {
		d.byView[leaf.View] = leaf.Commit()
		d.heights = append(d.heights, leaf.Height())
	}
}

func (d *decisions) highestView() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	highest := uint64(0)
	for view := range d.byView {
		highest = max(highest, view)
	}
	return highest
}

func (d *decisions) snapshot() (map[uint64]chain.Commitment, []uint64, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byView := make(map[uint64]chain.Commitment, len(d.byView))
	for view, commitment := range d.byView {
		byView[view] = commitment
	}
	return byView, append([]uint64(nil), d.heights...), d.events
}

// Four honest nodes keep deciding, and every view decided by two nodes is decided with the
// same leaf.
func TestNodesDecideConsistentChain(t *testing.T) {
	const target = uint64(6)
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()
	systems := startCluster(t, ctx, 4)

	recorded := make([]*decisions, len(systems))
	for i, system := range systems {
		recorded[i] = newDecisions()
		system.Distributor().AddOnLeavesDecidedConsumer(recorded[i].onLeavesDecided)
	}
	for _, system := range systems {
		system.Start(ctx)
	}
	for _, system := range systems {
		unittest.RequireCloseBefore(t, system.Ready(), 5*time.Second, "node did not start")
	}

	require.Eventually(t, func() bool {
		for _, record := range recorded {
			if record.highestView() < target {
				return false
			}
		}
		return true
	}, 30*time.Second, 20*time.Millisecond, "nodes did not decide view %d", target)
	stopCluster(t, cancel, systems)

	reference, _, _ := recorded[0].snapshot()
	for i, record := range recorded {
		byView, heights, count := record.snapshot()
		assert.Positive(t, count, "node %d published no decide", i)
		assert.GreaterOrEqual(t, systems[i].Consensus().LastDecidedView(), target)

		// every block height is decided exactly once, without gaps
		seen := make(map[uint64]struct{}, len(heights))
		for _, height := range heights {
			_, dup := seen[height]
			assert.False(t, dup, "node %d decided height %d twice", i, height)
			seen[height] = struct{}{}
		}
		for height := uint64(1); height <= uint64(len(heights)); height++ {
			assert.Contains(t, seen, height, "node %d skipped height %d", i, height)
		}

		for view, commitment := range byView {
			if other, ok := reference[view]; ok {
				assert.Equal(t, other, commitment, "nodes 0 and %d decided different leaves in view %d", i, view)
			}
		}
	}
}
