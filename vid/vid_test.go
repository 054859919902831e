package vid

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/model/chain"
)

func table(stakes ...uint64) chain.StakeTable {
	t := make(chain.StakeTable, 0, len(stakes))
	for i, stake := range stakes {
		t = append(t, chain.PeerConfig{NodeID: chain.NodeID{byte(i + 1)}, Stake: stake})
	}
	return t
}

func TestDisperseAndRecover(t *testing.T) {
	payload := bytes.Repeat([]byte("transactions"), 100)
	committee := table(1, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	disperse, err := Disperse(payload, []byte("meta"), committee, 4, chain.EpochOf(1), chain.EpochOf(1))
	require.NoError(t, err)
	require.Len(t, disperse.Shares, 10)

	commitment, err := PayloadCommitment(payload, []byte("meta"), committee)
	require.NoError(t, err)
	assert.Equal(t, commitment, disperse.PayloadCommitment)

	for _, share := range disperse.Shares {
		require.NoError(t, VerifyShare(share))
	}

	// a third of the shards is enough
	var subset []*chain.VidShare
	for _, id := range committee.NodeIDs()[7:] {
		subset = append(subset, disperse.Shares[id])
	}
	recovered, err := Recover(subset)
	require.NoError(t, err)
	assert.Equal(t, payload, recovered)

	_, err = Recover(subset[:2])
	require.ErrorIs(t, err, ErrNotEnoughShares)
}

func TestEmptyPayload(t *testing.T) {
	committee := table(3, 2)
	disperse, err := Disperse(nil, nil, committee, 1, chain.NoEpoch, chain.NoEpoch)
	require.NoError(t, err)

	var shares []*chain.VidShare
	for _, share := range disperse.Shares {
		shares = append(shares, share)
	}
	recovered, err := Recover(shares)
	require.NoError(t, err)
	assert.Empty(t, recovered)
}

func TestStakeWeightedAssignment(t *testing.T) {
	committee := table(1000, 3000, 0, 6000)
	assignments, err := assignShards(committee)
	require.NoError(t, err)
	require.Len(t, assignments, 3, "zero-stake members receive no shards")

	total := uint32(0)
	for _, a := range assignments {
		assert.Equal(t, total, a.first)
		total += a.count
	}
	assert.LessOrEqual(t, total, uint32(MaxShards))
	assert.Greater(t, assignments[2].count, assignments[0].count)

	_, err = assignShards(table(0, 0))
	require.ErrorIs(t, err, ErrEmptyCommittee)
}

func TestAssignmentWithLargeStakes(t *testing.T) {
	const unit = uint64(100_000_000_000_000_000)
	total := func(assignments []assignment) uint32 {
		sum := uint32(0)
		for _, a := range assignments {
			sum += a.count
		}
		return sum
	}

	assignments, err := assignShards(table(unit, unit, unit, unit))
	require.NoError(t, err)
	require.Len(t, assignments, 4)
	for _, a := range assignments {
		assert.Equal(t, uint32(64), a.count)
	}
	assert.Equal(t, uint32(MaxShards), total(assignments))

	assignments, err = assignShards(table(unit, 2*unit))
	require.NoError(t, err)
	assert.Equal(t, uint32(85), assignments[0].count)
	assert.Equal(t, uint32(170), assignments[1].count)
	assert.LessOrEqual(t, total(assignments), uint32(MaxShards))

	payload := bytes.Repeat([]byte{0xAB}, 1000)
	disperse, err := Disperse(payload, nil, table(unit, unit, unit, unit), 1, chain.NoEpoch, chain.NoEpoch)
	require.NoError(t, err)
	var shares []*chain.VidShare
	for _, share := range disperse.Shares {
		shares = append(shares, share)
	}
	recovered, err := Recover(shares[:2])
	require.NoError(t, err)
	assert.Equal(t, payload, recovered)
}

func TestTamperedShare(t *testing.T) {
	committee := table(1, 1, 1)
	disperse, err := Disperse([]byte("payload"), nil, committee, 1, chain.NoEpoch, chain.NoEpoch)
	require.NoError(t, err)

	share := disperse.Shares[committee[0].NodeID]
	tampered := *share
	tampered.Shards = [][]byte{append([]byte{}, share.Shards[0]...)}
	tampered.Shards[0][0] ^= 0xFF
	require.ErrorIs(t, VerifyShare(&tampered), ErrInvalidShare)

	tampered = *share
	tampered.PayloadCommitment = chain.Commitment{7}
	require.ErrorIs(t, VerifyShare(&tampered), ErrInvalidShare)
}

func TestCommitmentDependsOnCommittee(t *testing.T) {
	payload := []byte("same payload")
	c1, err := PayloadCommitment(payload, nil, table(1, 1, 1))
	require.NoError(t, err)
	c2, err := PayloadCommitment(payload, nil, table(1, 1, 1, 1))
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}
