package unittest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
)

// SeedFixture returns a deterministic key seed for the i-th test node.
func SeedFixture(i int, domain byte) []byte {
	seed := make([]byte, crypto.KeyGenSeedMinLen)
	seed[0] = domain
	binary.BigEndian.PutUint64(seed[8:], uint64(i))
	return seed
}

// NodeFixture bundles the keys of a test node.
type NodeFixture struct {
	ID         chain.NodeID
	StakingKey *crypto.StakingPrivateKey
	StateKey   *crypto.StatePrivateKey
}

// Sign signs msg with the node's staking key.
func (n NodeFixture) Sign(msg []byte) ([]byte, error) {
	return n.StakingKey.Sign(msg)
}

// NodeFixtures returns count nodes with deterministic keys. Node i is the same in every call.
func NodeFixtures(t testing.TB, count int) []NodeFixture {
	nodes := make([]NodeFixture, 0, count)
	for i := 0; i < count; i++ {
		staking, err := crypto.GenerateStakingKey(SeedFixture(i, 0x01))
		require.NoError(t, err)
		state, err := crypto.GenerateStateKey(SeedFixture(i, 0x02))
		require.NoError(t, err)
		nodes = append(nodes, NodeFixture{
			ID:         chain.NodeIDFromStakingKey(staking.PublicKey().Encode()),
			StakingKey: staking,
			StateKey:   state,
		})
	}
	return nodes
}

// StakeTableFixture gives every node the same stake.
func StakeTableFixture(nodes []NodeFixture, stake uint64) chain.StakeTable {
	stakes := make([]uint64, len(nodes))
	for i := range stakes {
		stakes[i] = stake
	}
	return WeightedStakeTableFixture(nodes, stakes)
}

// WeightedStakeTableFixture assigns stakes[i] to nodes[i].
func WeightedStakeTableFixture(nodes []NodeFixture, stakes []uint64) chain.StakeTable {
	table := make(chain.StakeTable, 0, len(nodes))
	for i, node := range nodes {
		table = append(table, chain.PeerConfig{
			NodeID:     node.ID,
			StakingKey: node.StakingKey.PublicKey().Encode(),
			Stake:      stakes[i],
			StateKey:   node.StateKey.PublicKey().Encode(),
		})
	}
	return table
}

// NodeByID returns the fixture with the given id.
func NodeByID(t testing.TB, nodes []NodeFixture, id chain.NodeID) NodeFixture {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
	}
	require.Failf(t, "unknown node", "node %v is not part of the fixture", id)
	return NodeFixture{}
}
