package leader

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hotshot-go/hotshot/crypto/random"
	"github.com/hotshot-go/hotshot/model/chain"
)

// SelectLeader picks the leader of a view from the committee, with probability proportional
// to stake. The choice is a deterministic function of the seed, the view and the committee:
// the seed keys a chacha20 stream and the view selects the stream.
// Members with zero stake are never selected.
func SelectLeader(seed [32]byte, view uint64, committee chain.StakeTable) (chain.NodeID, error) {
	var customizer [8]byte
	binary.BigEndian.PutUint64(customizer[:], view)
	rng, err := random.NewChacha20PRG(seed[:], customizer[:])
	if err != nil {
		return chain.ZeroNodeID, fmt.Errorf("could not create leader selection rng: %w", err)
	}

	leaders, err := weightedRandomSelection(rng, 1, committee.Weights())
	if err != nil {
		return chain.ZeroNodeID, fmt.Errorf("could not select leader for view %d: %w", view, err)
	}
	return committee[leaders[0]].NodeID, nil
}

// RoundRobinLeader picks the leader of a view by rotating over the members with non-zero stake.
func RoundRobinLeader(view uint64, committee chain.StakeTable) (chain.NodeID, error) {
	eligible := committee.Eligible()
	if len(eligible) == 0 {
		return chain.ZeroNodeID, fmt.Errorf("no eligible leaders")
	}
	return eligible[view%uint64(len(eligible))].NodeID, nil
}

// weightedRandomSelection - given a random source and a given count, pre-generate the indices of leader.
// The chance to be selected as leader is proportional to its weight.
// If an identity has 0 weight, it won't be selected as leader.
// This algorithm is essentially Fitness proportionate selection:
// See https://en.wikipedia.org/wiki/Fitness_proportionate_selection
func weightedRandomSelection(
	rng random.Rand,
	count int,
	weights []uint64,
) ([]uint16, error) {

	if len(weights) == 0 {
		return nil, fmt.Errorf("weights is empty")
	}

	if len(weights) >= math.MaxUint16 {
		return nil, fmt.Errorf("number of possible leaders (%d) exceeds maximum (2^16-1)", len(weights))
	}

	// create an array of weight ranges for each identity.
	// an i-th identity is selected as the leader if the random number falls into its weight range.
	weightSums := make([]uint64, 0, len(weights))

	// cumulative sum of weights; the sum is the range of the random number.
	var cumsum uint64
	for _, weight := range weights {
		if cumsum+weight < cumsum {
			return nil, fmt.Errorf("total weight overflows")
		}
		cumsum += weight
		weightSums = append(weightSums, cumsum)
	}

	if cumsum == 0 {
		return nil, fmt.Errorf("total weight must be greater than 0")
	}

	leaders := make([]uint16, 0, count)
	for i := 0; i < count; i++ {
		// pick a random number from 0 (inclusive) to cumsum (exclusive). Or [0, cumsum)
		randomness := rng.UintN(cumsum)

		// binary search to find the leader index by the random number
		leader := binarySearchStrictlyBigger(randomness, weightSums)

		leaders = append(leaders, uint16(leader))
	}
	return leaders, nil
}

// binarySearchStrictlyBigger finds the index of the first item in the given array that is
// strictly bigger to the given value.
// There are a few assumptions on inputs:
// - `arr` must be non-empty
// - items in `arr` must be in non-decreasing order
// - `value` must be less than the last item in `arr`
func binarySearchStrictlyBigger(value uint64, arr []uint64) int {
	left := 0
	arrayLen := len(arr)
	right := arrayLen - 1
	mid := arrayLen >> 1
	for {
		if arr[mid] <= value {
			left = mid + 1
		} else {
			right = mid
		}

		if left >= right {
			return left
		}

		mid = int(left+right) >> 1
	}
}
