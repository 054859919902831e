package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

// heightState is a validated state that only tracks the block height.
type heightState uint64

func (s heightState) Validate(_ context.Context, _ hotshot.InstanceState, _ *chain.Leaf, proposed *chain.Header) (hotshot.ValidatedState, hotshot.StateDelta, error) {
	return heightState(proposed.Height), struct{}{}, nil
}
func (s heightState) Commit() chain.Commitment { return chain.MakeCommitment(uint64(s)) }
func (s heightState) BlockHeight() uint64      { return uint64(s) }

func newConsensus(t *testing.T) (*Consensus, *chain.Leaf, *chain.QuorumCertificate) {
	genesis, genesisQC := unittest.GenesisLeafFixture()
	c := New(unittest.Logger(), metrics.NewNoopCollector(), 0, Anchor{
		Leaf:   genesis,
		State:  heightState(0),
		HighQC: genesisQC,
	})
	return c, genesis, genesisQC
}

func TestConsensus_MonotonicPointers(t *testing.T) {
	c, _, genesisQC := newConsensus(t)

	require.NoError(t, c.UpdateView(5))
	assert.ErrorIs(t, c.UpdateView(5), ErrStaleUpdate)
	assert.ErrorIs(t, c.UpdateView(4), ErrStaleUpdate)
	assert.Equal(t, uint64(5), c.CurView())

	require.NoError(t, c.UpdateEpoch(chain.EpochOf(1)))
	assert.ErrorIs(t, c.UpdateEpoch(chain.NoEpoch), ErrStaleUpdate)
	assert.ErrorIs(t, c.UpdateEpoch(chain.EpochOf(1)), ErrStaleUpdate)
	require.NoError(t, c.UpdateEpoch(chain.EpochOf(2)))

	require.NoError(t, c.UpdateLastActionedView(3))
	assert.ErrorIs(t, c.UpdateLastActionedView(3), ErrStaleUpdate)

	// re-submitting the current high QC is fine, an older one is not
	require.NoError(t, c.UpdateHighQC(genesisQC))
	nodes := unittest.NodeFixtures(t, 4)
	leaf := &chain.Leaf{View: 3, Justify: genesisQC, Header: unittest.HeaderFixture(1)}
	qc := unittest.QCFixture(t, nodes, leaf, chain.NoEpoch)
	require.NoError(t, c.UpdateHighQC(qc))
	assert.ErrorIs(t, c.UpdateHighQC(genesisQC), ErrStaleUpdate)
	assert.Equal(t, qc, c.HighQC())
}

func TestConsensus_ValidatedStateMap(t *testing.T) {
	c, genesis, genesisQC := newConsensus(t)
	nodes := unittest.NodeFixtures(t, 4)
	leaves, _ := unittest.LeafChainFixture(t, nodes, genesis, genesisQC, 1)
	leaf := leaves[0]

	require.NoError(t, c.UpdateValidatedStateMap(leaf.View, View{Inner: chain.ViewInner{Kind: chain.ViewDa}}))
	require.NoError(t, c.UpdateLeaf(leaf, heightState(1), struct{}{}))

	t.Run("leaf entry is not replaced by da entry", func(t *testing.T) {
		err := c.UpdateValidatedStateMap(leaf.View, View{Inner: chain.ViewInner{Kind: chain.ViewDa}})
		assert.ErrorIs(t, err, ErrViewOverride)
	})

	t.Run("leaf entry keeps its delta", func(t *testing.T) {
		err := c.UpdateValidatedStateMap(leaf.View, View{Inner: chain.ViewInner{Kind: chain.ViewLeaf}})
		assert.ErrorIs(t, err, ErrViewOverride)
	})

	stored, ok := c.LeafForView(leaf.View)
	require.True(t, ok)
	assert.Equal(t, leaf.Commit(), stored.Commit())
	state, ok := c.State(leaf.View)
	require.True(t, ok)
	assert.Equal(t, uint64(1), state.BlockHeight())

	parent, ok := c.ParentLeafInfo(leaf)
	require.True(t, ok)
	assert.Equal(t, genesis.Commit(), parent.Leaf.Commit())
}

func TestConsensus_SavedPayloads(t *testing.T) {
	c, _, _ := newConsensus(t)
	payload := unittest.PayloadFixture(2)
	saved := &SavedPayload{Payload: payload, Encoded: payload.Encode(), Metadata: payload.Metadata()}

	require.NoError(t, c.UpdateSavedPayloads(4, saved))
	require.NoError(t, c.UpdateSavedPayloads(4, saved))

	other := unittest.PayloadFixture(2)
	err := c.UpdateSavedPayloads(4, &SavedPayload{Payload: other, Encoded: other.Encode(), Metadata: other.Metadata()})
	assert.ErrorIs(t, err, ErrPayloadExists)
}

func TestConsensus_CollectGarbage(t *testing.T) {
	c, genesis, genesisQC := newConsensus(t)
	nodes := unittest.NodeFixtures(t, 4)
	leaves, _ := unittest.LeafChainFixture(t, nodes, genesis, genesisQC, 4)
	for _, leaf := range leaves {
		require.NoError(t, c.UpdateLeaf(leaf, heightState(leaf.Height()), struct{}{}))
		payload := unittest.PayloadFixture(1)
		require.NoError(t, c.UpdateSavedPayloads(leaf.View, &SavedPayload{Payload: payload, Encoded: payload.Encode()}))
		c.UpdateVidShares(&chain.VidShare{View: leaf.View, Recipient: nodes[0].ID})
	}

	c.CollectGarbage(0, 3)

	for _, view := range []uint64{0, 1, 2} {
		_, ok := c.ValidatedView(view)
		assert.False(t, ok, "view %d", view)
		_, ok = c.SavedPayload(view)
		assert.False(t, ok, "view %d", view)
		_, ok = c.VidShare(view, nodes[0].ID)
		assert.False(t, ok, "view %d", view)
	}
	for _, view := range []uint64{3, 4} {
		_, ok := c.LeafForView(view)
		assert.True(t, ok, "view %d", view)
		_, ok = c.SavedPayload(view)
		assert.True(t, ok, "view %d", view)
	}
}
