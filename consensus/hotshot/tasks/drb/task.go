// Package drb implements the task that computes the random beacon of future epochs. When the
// epoch root of epoch e is decided, the stake table of epoch e+2 is registered and its DRB is
// computed from the root's justify QC. Computations run outside the event loop and checkpoint
// their progress, so a restarted node resumes where it stopped.
package drb

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	beacon "github.com/hotshot-go/hotshot/drb"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/component"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
)

const (
	TaskName = "drb"

	// epochs between an epoch root and the epoch whose DRB it seeds
	lookahead = 2

	queueCapacity = 16
)

// Config configures the beacon computation.
type Config struct {
	Difficulty         uint64
	CheckpointInterval uint64
}

func DefaultConfig() Config {
	return Config{
		Difficulty:         beacon.DefaultDifficulty,
		CheckpointInterval: beacon.DefaultCheckpointInterval,
	}
}

type request struct {
	epoch uint64
	seed  chain.DrbSeed
}

// Task is the DRB task of one node.
type Task struct {
	helpers.Dependencies
	log      zerolog.Logger
	config   Config
	requests chan request

	mu      sync.Mutex
	pending map[uint64]struct{}
}

func New(deps helpers.Dependencies, config Config) *Task {
	return &Task{
		Dependencies: deps,
		log:          deps.Log.With().Str("task", TaskName).Logger(),
		config:       config,
		requests:     make(chan request, queueCapacity),
		pending:      make(map[uint64]struct{}),
	}
}

func (t *Task) Name() string { return TaskName }

// Workers returns the loop that runs the scheduled computations one at a time.
func (t *Task) Workers() []component.ComponentWorker {
	return []component.ComponentWorker{t.computeLoop}
}

func (t *Task) Handle(ctx context.Context, event events.Event) error {
	if e, ok := event.(events.LeavesDecided); ok {
		return t.onLeavesDecided(ctx, e.Leaves)
	}
	return nil
}

func (t *Task) onLeavesDecided(ctx context.Context, leaves []*chain.Leaf) error {
	epochHeight := t.Consensus.EpochHeight()
	for _, leaf := range leaves {
		if !leaf.WithEpoch || !chain.IsEpochRoot(leaf.Height(), epochHeight) || leaf.Justify == nil {
			continue
		}
		target := chain.EpochFromBlockNumber(leaf.Height(), epochHeight) + lookahead
		if err := t.Membership.AddEpochRoot(ctx, target, leaf.Header); err != nil {
			return fmt.Errorf("could not register epoch root of epoch %d: %w", target, err)
		}
		if _, err := t.Membership.EpochDrb(target); err == nil {
			continue
		}
		if err := t.Schedule(target, chain.DrbSeedFromQC(leaf.Justify)); err != nil {
			return err
		}
	}
	return nil
}

// Schedule queues the DRB computation of the epoch. Scheduling an epoch that is already
// being computed is a no-op.
// Expected errors:
//   - model.SkipError if the queue is full
func (t *Task) Schedule(epoch uint64, seed chain.DrbSeed) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[epoch]; ok {
		return nil
	}
	select {
	case t.requests <- request{epoch: epoch, seed: seed}:
		t.pending[epoch] = struct{}{}
		t.log.Debug().Uint64("epoch", epoch).Msg("drb computation scheduled")
		return nil
	default:
		return model.NewSkipErrorf("drb queue full, dropping computation for epoch %d", epoch)
	}
}

func (t *Task) computeLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-t.requests:
			err := t.compute(ctx, req)
			t.mu.Lock()
			delete(t.pending, req.epoch)
			t.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				t.log.Error().Err(err).Uint64("epoch", req.epoch).Msg("drb computation failed")
			}
		}
	}
}

// compute runs the beacon for the request, resuming from the last checkpoint if one exists.
func (t *Task) compute(ctx context.Context, req request) error {
	input := beacon.InitialInput(req.epoch, req.seed)
	saved, ok, err := t.Persister.LoadDrbInput(ctx, req.epoch)
	if err != nil {
		return fmt.Errorf("could not load drb checkpoint: %w", err)
	}
	if ok && saved.Iteration <= t.config.Difficulty {
		input = saved
		t.log.Info().Uint64("epoch", req.epoch).Uint64("iteration", saved.Iteration).Msg("resuming drb computation")
	}

	result, err := beacon.Compute(ctx, input, t.config.Difficulty, t.config.CheckpointInterval, func(checkpoint chain.DrbInput) error {
		return t.Persister.StoreDrbInput(ctx, checkpoint)
	})
	if err != nil {
		return fmt.Errorf("could not compute drb: %w", err)
	}
	if err := t.Membership.AddDrbResult(req.epoch, result); err != nil {
		return fmt.Errorf("could not store drb result: %w", err)
	}
	if err := t.Persister.AddDrbResult(ctx, req.epoch, result); err != nil {
		return fmt.Errorf("could not persist drb result: %w", err)
	}
	t.log.Info().Uint64("epoch", req.epoch).Str("result", result.String()).Msg("drb result computed")
	t.Publisher.Publish(events.DrbResultComputed{Epoch: req.epoch, Result: result})
	return nil
}
