package committees

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func TestZeroStakeMembersAreExcluded(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 4)
	table := unittest.WeightedStakeTableFixture(nodes, []uint64{1, 0, 1, 1})
	committee, err := NewStaticCommittee(unittest.Logger(), table, table, 0)
	require.NoError(t, err)

	quorum, err := committee.StakeTable(chain.NoEpoch)
	require.NoError(t, err)
	da, err := committee.DaStakeTable(chain.NoEpoch)
	require.NoError(t, err)
	assert.Len(t, quorum, 3)
	assert.Len(t, da, 3)
	assert.False(t, committee.HasStake(nodes[1].ID, chain.NoEpoch))
	assert.True(t, committee.HasStake(nodes[2].ID, chain.NoEpoch))

	for view := uint64(0); view < 12; view++ {
		leader, err := committee.Leader(view, chain.NoEpoch)
		require.NoError(t, err)
		assert.NotEqual(t, nodes[1].ID, leader)
	}

	_, err = NewStaticCommittee(unittest.Logger(), unittest.StakeTableFixture(nodes, 0), nil, 0)
	assert.Error(t, err)
}

func TestThresholdsOfEqualStake(t *testing.T) {
	table := unittest.StakeTableFixture(unittest.NodeFixtures(t, 4), 1)
	committee, err := NewStaticCommittee(unittest.Logger(), table, table[:2], 0)
	require.NoError(t, err)

	success, err := committee.SuccessThreshold(chain.NoEpoch)
	require.NoError(t, err)
	failure, err := committee.FailureThreshold(chain.NoEpoch)
	require.NoError(t, err)
	upgrade, err := committee.UpgradeThreshold(chain.NoEpoch)
	require.NoError(t, err)
	da, err := committee.DaSuccessThreshold(chain.NoEpoch)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), success)
	assert.Equal(t, uint64(2), failure)
	assert.Equal(t, uint64(3), upgrade)
	assert.Equal(t, uint64(2), da)
}

func TestUnknownEpoch(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 4)
	table := unittest.StakeTableFixture(nodes, 1)
	committee, err := NewStaticCommittee(unittest.Logger(), table, table, 10)
	require.NoError(t, err)

	_, err = committee.StakeTable(chain.EpochOf(3))
	assert.True(t, IsNoStakeTableError(err))
	_, err = committee.Leader(7, chain.EpochOf(3))
	assert.True(t, IsNoStakeTableError(err))
	_, err = committee.DaStakeTable(chain.EpochOf(3))
	assert.True(t, IsNoStakeTableError(err))
	assert.False(t, committee.HasStakeTable(chain.EpochOf(3)))
	assert.False(t, committee.HasStake(nodes[0].ID, chain.EpochOf(3)))

	require.NoError(t, committee.AddEpochRoot(context.Background(), 3, unittest.HeaderFixture(15)))
	assert.True(t, committee.HasStakeTable(chain.EpochOf(3)))
	assert.True(t, committee.HasDaStake(nodes[0].ID, chain.EpochOf(3)))
}

func TestSetFirstEpoch(t *testing.T) {
	table := unittest.StakeTableFixture(unittest.NodeFixtures(t, 4), 1)
	committee, err := NewStaticCommittee(unittest.Logger(), table, table, 10)
	require.NoError(t, err)
	_, ok := committee.FirstEpoch()
	assert.False(t, ok)

	drb := unittest.DrbResultFixture()
	committee.SetFirstEpoch(2, drb)
	first, ok := committee.FirstEpoch()
	require.True(t, ok)
	assert.Equal(t, uint64(2), first)

	// the next epoch is seeded with the same result
	for _, epoch := range []uint64{2, 3} {
		stored, err := committee.EpochDrb(epoch)
		require.NoError(t, err)
		assert.Equal(t, drb, stored)
		assert.True(t, committee.HasStakeTable(chain.EpochOf(epoch)))
	}
	_, err = committee.EpochDrb(4)
	assert.ErrorIs(t, err, ErrDrbMissing)

	// a second activation is ignored
	committee.SetFirstEpoch(5, unittest.DrbResultFixture())
	first, _ = committee.FirstEpoch()
	assert.Equal(t, uint64(2), first)
}

func TestDrbResultsAreWriteOnce(t *testing.T) {
	table := unittest.StakeTableFixture(unittest.NodeFixtures(t, 4), 1)
	committee, err := NewStaticCommittee(unittest.Logger(), table, table, 10)
	require.NoError(t, err)

	drb := unittest.DrbResultFixture()
	require.NoError(t, committee.AddDrbResult(4, drb))
	require.NoError(t, committee.AddDrbResult(4, drb))
	assert.ErrorIs(t, committee.AddDrbResult(4, unittest.DrbResultFixture()), ErrDrbAlreadySet)

	stored, err := committee.EpochDrb(4)
	require.NoError(t, err)
	assert.Equal(t, drb, stored)
}

func TestRandomizedCommittee(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 10)
	table := unittest.StakeTableFixture(nodes, 1)
	newCommittee := func() *Committee {
		committee, err := NewRandomizedCommittee(unittest.Logger(), table, table, 10, 4)
		require.NoError(t, err)
		require.NoError(t, committee.AddEpochRoot(context.Background(), 3, unittest.HeaderFixture(15)))
		return committee
	}
	first, second := newCommittee(), newCommittee()

	// the committee is only known once the DRB result is
	_, err := first.StakeTable(chain.EpochOf(3))
	assert.True(t, IsNoStakeTableError(err))

	drb := unittest.DrbResultFixture()
	require.NoError(t, first.AddDrbResult(3, drb))
	require.NoError(t, second.AddDrbResult(3, drb))

	members, err := first.StakeTable(chain.EpochOf(3))
	require.NoError(t, err)
	require.Len(t, members, 4)
	others, err := second.StakeTable(chain.EpochOf(3))
	require.NoError(t, err)
	assert.Equal(t, members.NodeIDs(), others.NodeIDs())

	for view := uint64(0); view < 20; view++ {
		leader, err := first.Leader(view, chain.EpochOf(3))
		require.NoError(t, err)
		_, ok := members.Lookup(leader)
		assert.True(t, ok, "leader of view %d is not a committee member", view)
		same, err := second.Leader(view, chain.EpochOf(3))
		require.NoError(t, err)
		assert.Equal(t, leader, same)
	}

	// before epochs, the whole genesis table is eligible
	leader, err := first.Leader(1, chain.NoEpoch)
	require.NoError(t, err)
	_, ok := table.Lookup(leader)
	assert.True(t, ok)
}
