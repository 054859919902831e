package leader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/model/chain"
)

func committee(stakes ...uint64) chain.StakeTable {
	table := make(chain.StakeTable, 0, len(stakes))
	for i, stake := range stakes {
		table = append(table, chain.PeerConfig{NodeID: chain.NodeID{byte(i + 1)}, Stake: stake})
	}
	return table
}

func TestSelectLeaderDeterministic(t *testing.T) {
	seed := [32]byte{42}
	members := committee(1, 2, 3, 4)
	for view := uint64(0); view < 50; view++ {
		l1, err := SelectLeader(seed, view, members)
		require.NoError(t, err)
		l2, err := SelectLeader(seed, view, members)
		require.NoError(t, err)
		assert.Equal(t, l1, l2)
	}
}

func TestSelectLeaderSkipsZeroStake(t *testing.T) {
	seed := [32]byte{1}
	members := committee(0, 5, 0, 5)
	for view := uint64(0); view < 1000; view++ {
		leader, err := SelectLeader(seed, view, members)
		require.NoError(t, err)
		assert.NotEqual(t, members[0].NodeID, leader)
		assert.NotEqual(t, members[2].NodeID, leader)
	}

	_, err := SelectLeader(seed, 1, committee(0, 0))
	require.Error(t, err)
}

// TestSelectLeaderProportional checks that a member with most of the stake leads most views.
func TestSelectLeaderProportional(t *testing.T) {
	seed := [32]byte{7}
	members := committee(1, 9)
	counts := map[chain.NodeID]int{}
	for view := uint64(0); view < 10000; view++ {
		leader, err := SelectLeader(seed, view, members)
		require.NoError(t, err)
		counts[leader]++
	}
	assert.InDelta(t, 9000, counts[members[1].NodeID], 300)
}

func TestRoundRobinLeader(t *testing.T) {
	members := committee(1, 0, 1, 1)
	leader, err := RoundRobinLeader(0, members)
	require.NoError(t, err)
	assert.Equal(t, members[0].NodeID, leader)
	leader, err = RoundRobinLeader(1, members)
	require.NoError(t, err)
	assert.Equal(t, members[2].NodeID, leader)
	leader, err = RoundRobinLeader(3, members)
	require.NoError(t, err)
	assert.Equal(t, members[0].NodeID, leader)
}

func TestBinarySearchStrictlyBigger(t *testing.T) {
	arr := []uint64{1, 3, 3, 7}
	assert.Equal(t, 0, binarySearchStrictlyBigger(0, arr))
	assert.Equal(t, 1, binarySearchStrictlyBigger(1, arr))
	assert.Equal(t, 1, binarySearchStrictlyBigger(2, arr))
	assert.Equal(t, 3, binarySearchStrictlyBigger(3, arr))
	assert.Equal(t, 3, binarySearchStrictlyBigger(6, arr))
	assert.Equal(t, 0, binarySearchStrictlyBigger(0, []uint64{5}))
}
