package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

/*****************************************************************************
 * NOTATION:                                                                 *
 * A leaf is denoted as [(◄<qc_view>) <leaf_view>].                          *
 * For example, [(◄1) 2] means: a leaf of view 2 that has a QC for view 1.   *
 *****************************************************************************/

// leafBuilder builds leaf chains with arbitrary view gaps.
type leafBuilder struct {
	t      *testing.T
	nodes  []unittest.NodeFixture
	c      *Consensus
	byView map[uint64]*chain.Leaf
}

func newLeafBuilder(t *testing.T) *leafBuilder {
	c, genesis, _ := newConsensus(t)
	return &leafBuilder{
		t:      t,
		nodes:  unittest.NodeFixtures(t, 4),
		c:      c,
		byView: map[uint64]*chain.Leaf{0: genesis},
	}
}

// add stores the leaf [(◄qcView) view] in the consensus state.
func (b *leafBuilder) add(qcView, view uint64) *chain.Leaf {
	parent, ok := b.byView[qcView]
	require.True(b.t, ok, "no leaf at view %d", qcView)
	leaf := &chain.Leaf{
		View:             view,
		Justify:          unittest.QCFixture(b.t, b.nodes, parent, chain.NoEpoch),
		ParentCommitment: parent.Commit(),
		Header:           unittest.HeaderFixture(parent.Height() + 1),
	}
	require.NoError(b.t, b.c.UpdateLeaf(leaf, heightState(leaf.Height()), struct{}{}))
	b.byView[view] = leaf
	return leaf
}

// proposal returns the proposal of view whose justify QC certifies the leaf of qcView.
func (b *leafBuilder) proposal(qcView, view uint64) *chain.QuorumProposal {
	parent := b.byView[qcView]
	return &chain.QuorumProposal{
		View:        view,
		Justify:     unittest.QCFixture(b.t, b.nodes, parent, chain.NoEpoch),
		BlockHeader: unittest.HeaderFixture(parent.Height() + 1),
	}
}

func decidedViews(res LeafChainTraversalOutcome) []uint64 {
	views := make([]uint64, 0, len(res.LeafViews))
	for _, info := range res.LeafViews {
		views = append(views, info.Leaf.View)
	}
	return views
}

// TestDecide_ThreeChain tests the three-chain rule.
// receives [(◄0) 1] [(◄1) 2] [(◄2) 3] and a proposal [(◄3) 4]
// it should lock [(◄1) 2] and decide [(◄0) 1]
func TestDecide_ThreeChain(t *testing.T) {
	b := newLeafBuilder(t)
	b.add(0, 1)
	b.add(1, 2)
	b.add(2, 3)

	res := b.c.DecideFromProposal(b.proposal(3, 4), nil)
	require.True(t, res.Decided)
	assert.Equal(t, uint64(1), res.NewDecidedView)
	assert.True(t, res.LockedUpdated)
	assert.Equal(t, uint64(2), res.NewLockedView)
	assert.Equal(t, []uint64{1}, decidedViews(res))
	assert.Equal(t, uint64(1), res.NewDecideQC.View)

	old, err := b.c.Decide(res)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), old)
	assert.Equal(t, uint64(1), b.c.LastDecidedView())
	assert.Equal(t, uint64(2), b.c.LockedView())
	assert.Equal(t, uint64(1), b.c.DecidedLeaf().View)

	_, err = b.c.Decide(res)
	assert.ErrorIs(t, err, ErrStaleUpdate)
}

// TestDecide_ThreeChainWithGap tests that a view gap breaks the three-chain.
// receives [(◄0) 1] [(◄1) 3] [(◄3) 4] and a proposal [(◄4) 5]
// it should not decide anything
func TestDecide_ThreeChainWithGap(t *testing.T) {
	b := newLeafBuilder(t)
	b.add(0, 1)
	b.add(1, 3)
	b.add(3, 4)

	res := b.c.DecideFromProposal(b.proposal(4, 5), nil)
	assert.False(t, res.Decided)
	assert.True(t, res.LockedUpdated)
	assert.Equal(t, uint64(3), res.NewLockedView)
	assert.Nil(t, res.NewDecideQC)
}

// TestDecide_ThreeChainDecidesAncestors tests that a decide includes all undecided ancestors.
// receives [(◄0) 1] [(◄1) 3] [(◄3) 4] [(◄4) 5] and a proposal [(◄5) 6]
// it should decide [(◄3) 4], [(◄1) 3] and [(◄0) 1]
func TestDecide_ThreeChainDecidesAncestors(t *testing.T) {
	b := newLeafBuilder(t)
	b.add(0, 1)
	b.add(1, 3)
	b.add(3, 4)
	b.add(4, 5)

	res := b.c.DecideFromProposal(b.proposal(5, 6), nil)
	require.True(t, res.Decided)
	assert.Equal(t, uint64(3), res.NewDecidedView)
	assert.Equal(t, []uint64{3, 1}, decidedViews(res))
}

// TestDecide_TwoChain tests the two-chain rule.
// receives [(◄0) 1] [(◄1) 2] and a proposal [(◄2) 3]
// it should lock [(◄1) 2] and decide [(◄0) 1]
func TestDecide_TwoChain(t *testing.T) {
	b := newLeafBuilder(t)
	b.add(0, 1)
	b.add(1, 2)

	res := b.c.DecideFromProposal2(b.proposal(2, 3), nil)
	require.True(t, res.Decided)
	assert.Equal(t, uint64(1), res.NewDecidedView)
	assert.Equal(t, uint64(2), res.NewLockedView)
	assert.Equal(t, []uint64{1}, decidedViews(res))
}

// TestDecide_TwoChainWithGap tests that the two-chain rule needs consecutive views.
// receives [(◄0) 1] [(◄1) 3] and a proposal [(◄3) 4]
// it should lock [(◄1) 3] without deciding
func TestDecide_TwoChainWithGap(t *testing.T) {
	b := newLeafBuilder(t)
	b.add(0, 1)
	b.add(1, 3)

	res := b.c.DecideFromProposal2(b.proposal(3, 4), nil)
	assert.False(t, res.Decided)
	assert.True(t, res.LockedUpdated)
	assert.Equal(t, uint64(3), res.NewLockedView)
}

// TestDecide_PrefixProperty tests that consecutive decides never skip an ancestor: every leaf on the
// chain is part of exactly one decide and decides happen in chain order.
func TestDecide_PrefixProperty(t *testing.T) {
	b := newLeafBuilder(t)
	views := []uint64{1, 2, 4, 5, 6, 8, 9, 10, 11}
	parent := uint64(0)
	for _, view := range views {
		b.add(parent, view)
		parent = view
	}

	decided := make([]uint64, 0)
	for i, view := range views {
		next := view + 1
		if i+1 < len(views) {
			next = views[i+1]
		}
		res := b.c.DecideFromProposal2(b.proposal(view, next), nil)
		if !res.Decided {
			continue
		}
		_, err := b.c.Decide(res)
		require.NoError(t, err)
		// newest first, so prepend in reverse
		for j := len(res.LeafViews) - 1; j >= 0; j-- {
			decided = append(decided, res.LeafViews[j].Leaf.View)
		}
	}

	require.NotEmpty(t, decided)
	for i, view := range decided {
		assert.Equal(t, views[i], view, "leaf %d decided out of order", i)
	}
}

// TestDecide_UpgradeCertificate tests that an upgrade certificate carried by a decided leaf is reported
// once and ignored when its decide-by view has passed.
func TestDecide_UpgradeCertificate(t *testing.T) {
	b := newLeafBuilder(t)
	cert := unittest.SignCertificate(t, b.nodes, 1, chain.UpgradeProposalData{
		OldVersion:          chain.LegacyVersion,
		NewVersion:          chain.EpochVersion,
		OldVersionLastView:  20,
		NewVersionFirstView: 25,
		DecideBy:            10,
	})
	leaf := b.add(0, 1)
	leaf.UpgradeCertificate = cert
	require.NoError(t, b.c.UpdateLeaf(leaf, heightState(1), struct{}{}))
	b.byView[1] = leaf
	b.add(1, 2)

	res := b.c.DecideFromProposal2(b.proposal(2, 3), nil)
	require.True(t, res.Decided)
	assert.Equal(t, cert, res.DecidedUpgradeCert)

	res = b.c.DecideFromProposal2(b.proposal(2, 3), cert)
	assert.Nil(t, res.DecidedUpgradeCert)
}
