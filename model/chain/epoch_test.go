package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochFromBlockNumber(t *testing.T) {
	assert.Equal(t, uint64(0), EpochFromBlockNumber(0, 10))
	assert.Equal(t, uint64(1), EpochFromBlockNumber(1, 10))
	assert.Equal(t, uint64(1), EpochFromBlockNumber(10, 10))
	assert.Equal(t, uint64(2), EpochFromBlockNumber(11, 10))
	assert.Equal(t, uint64(0), EpochFromBlockNumber(11, 0))
}

func TestEpochBoundaries(t *testing.T) {
	t.Run("last block", func(t *testing.T) {
		assert.True(t, IsLastBlock(10, 10))
		assert.True(t, IsLastBlock(20, 10))
		assert.False(t, IsLastBlock(9, 10))
		assert.False(t, IsLastBlock(0, 10))
	})
	t.Run("transition", func(t *testing.T) {
		assert.False(t, IsEpochTransition(7, 10))
		assert.True(t, IsEpochTransition(8, 10))
		assert.True(t, IsEpochTransition(9, 10))
		assert.True(t, IsEpochTransition(10, 10))
		assert.False(t, IsEpochTransition(11, 10))
	})
	t.Run("root", func(t *testing.T) {
		assert.True(t, IsEpochRoot(5, 10))
		assert.True(t, IsEpochRoot(15, 10))
		assert.False(t, IsEpochRoot(6, 10))
		assert.False(t, IsEpochRoot(1, 5))
	})
	t.Run("first block", func(t *testing.T) {
		assert.Equal(t, uint64(1), FirstBlockOfEpoch(1, 10))
		assert.Equal(t, uint64(11), FirstBlockOfEpoch(2, 10))
	})
}

func TestEpochOption(t *testing.T) {
	assert.Equal(t, NoEpoch, NoEpoch.Next())
	assert.Equal(t, EpochOf(4), EpochOf(3).Next())
	assert.True(t, NoEpoch.Before(EpochOf(0)))
	assert.True(t, EpochOf(1).Before(EpochOf(2)))
	assert.False(t, EpochOf(2).Before(EpochOf(2)))
	assert.False(t, EpochOf(2).Before(NoEpoch))
	assert.Equal(t, "none", NoEpoch.String())
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("0.3.0")
	assert.NoError(t, err)
	assert.Equal(t, EpochVersion, v)
	assert.True(t, LegacyVersion.Less(v))
	assert.True(t, v.AtLeast(MarketplaceVersion))

	_, err = ParseVersion("not-a-version")
	assert.Error(t, err)
}
