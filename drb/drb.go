// Package drb computes the distributed random beacon that seeds committee selection.
//
// The beacon is a sequential hash chain over a seed fixed by the epoch root block. It is
// slow by construction, so computations checkpoint their progress and can be resumed after
// a restart.
package drb

import (
	"context"
	"fmt"

	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
)

const (
	// DefaultDifficulty is the number of hash iterations of a beacon computation.
	DefaultDifficulty = 1 << 20
	// DefaultCheckpointInterval is the number of iterations between checkpoints.
	DefaultCheckpointInterval = 1 << 14
)

// CheckpointFunc persists intermediate state. A nil CheckpointFunc disables checkpointing.
type CheckpointFunc func(input chain.DrbInput) error

// InitialInput returns the starting state of the beacon computation for an epoch.
func InitialInput(epoch uint64, seed chain.DrbSeed) chain.DrbInput {
	return chain.DrbInput{Epoch: epoch, Iteration: 0, Value: seed}
}

// Compute runs the hash chain from input until difficulty iterations are reached.
// The context is checked at every checkpoint interval.
// Expected errors:
//   - context.Canceled / context.DeadlineExceeded if the context ends first
func Compute(ctx context.Context, input chain.DrbInput, difficulty uint64, interval uint64, checkpoint CheckpointFunc) (chain.DrbResult, error) {
	if interval == 0 {
		interval = DefaultCheckpointInterval
	}
	value := input.Value
	for i := input.Iteration; i < difficulty; i++ {
		value = crypto.Hash256(value[:])

		done := i + 1
		if done%interval != 0 || done == difficulty {
			continue
		}
		if err := ctx.Err(); err != nil {
			return chain.DrbResult{}, err
		}
		if checkpoint != nil {
			err := checkpoint(chain.DrbInput{Epoch: input.Epoch, Iteration: done, Value: value})
			if err != nil {
				return chain.DrbResult{}, fmt.Errorf("could not checkpoint drb computation at iteration %d: %w", done, err)
			}
		}
	}
	return chain.DrbResult(value), nil
}

// Verify recomputes the beacon and compares it to the claimed result.
func Verify(ctx context.Context, seed chain.DrbSeed, difficulty uint64, claimed chain.DrbResult) (bool, error) {
	result, err := Compute(ctx, InitialInput(0, seed), difficulty, DefaultCheckpointInterval, nil)
	if err != nil {
		return false, err
	}
	return result == claimed, nil
}
