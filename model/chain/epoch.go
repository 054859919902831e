package chain

import "fmt"

// Epoch is an optional epoch number. Before the epoch-enabled protocol version is active
// all messages carry NoEpoch, and the membership oracle answers with the genesis committee.
type Epoch struct {
	Number uint64
	Valid  bool
}

// NoEpoch denotes the absence of an epoch.
var NoEpoch = Epoch{}

// EpochOf wraps an epoch number.
func EpochOf(number uint64) Epoch {
	return Epoch{Number: number, Valid: true}
}

// Next returns the following epoch. The successor of NoEpoch is NoEpoch.
func (e Epoch) Next() Epoch {
	if !e.Valid {
		return NoEpoch
	}
	return EpochOf(e.Number + 1)
}

// Before returns true if e is strictly older than other. NoEpoch precedes every valid epoch.
func (e Epoch) Before(other Epoch) bool {
	if !other.Valid {
		return false
	}
	if !e.Valid {
		return true
	}
	return e.Number < other.Number
}

func (e Epoch) String() string {
	if !e.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", e.Number)
}

// EpochFromBlockNumber returns the epoch containing the given block height.
// Epoch e contains heights (e-1)*epochHeight+1 ... e*epochHeight; height 0 belongs to epoch 0.
func EpochFromBlockNumber(blockNumber uint64, epochHeight uint64) uint64 {
	if epochHeight == 0 {
		return 0
	}
	if blockNumber%epochHeight == 0 {
		return blockNumber / epochHeight
	}
	return blockNumber/epochHeight + 1
}

// IsLastBlock returns true if the block is the final block of its epoch.
func IsLastBlock(blockNumber uint64, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return blockNumber%epochHeight == 0
}

// IsEpochTransition returns true for the last three heights of an epoch. During these heights
// the next epoch's committee votes alongside the current one.
func IsEpochTransition(blockNumber uint64, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight < 3 {
		return false
	}
	rem := blockNumber % epochHeight
	return rem == 0 || rem >= epochHeight-2
}

// IsEpochRoot returns true if the block fixes the stake table and DRB seed for epoch+2.
func IsEpochRoot(blockNumber uint64, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight <= 5 {
		return false
	}
	return (blockNumber+5)%epochHeight == 0
}

// FirstBlockOfEpoch returns the first height of the given epoch.
func FirstBlockOfEpoch(epoch uint64, epochHeight uint64) uint64 {
	if epoch == 0 {
		return 0
	}
	return (epoch-1)*epochHeight + 1
}
