// Package transactions implements the transaction task: it keeps the local mempool and, when
// this node leads a view, obtains the block for the view from external builders.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/logging"
)

const TaskName = "transactions"

var errNoOffers = errors.New("builder offered no valid blocks")

// Config configures block production.
type Config struct {
	// BuilderTimeout bounds the time a leader spends obtaining a block from builders.
	BuilderTimeout time.Duration
	// RetryDelay is the fixed delay between requests to a failing builder.
	RetryDelay time.Duration
	// MaxBlockTransactions caps mempool blocks. Zero means no limit.
	MaxBlockTransactions int
	// DecidedCacheSize is the number of decided transactions remembered for deduplication.
	DecidedCacheSize int
}

func DefaultConfig() Config {
	return Config{
		BuilderTimeout:       4 * time.Second,
		RetryDelay:           100 * time.Millisecond,
		MaxBlockTransactions: 10_000,
		DecidedCacheSize:     100_000,
	}
}

// Task is the transaction task of one node.
type Task struct {
	helpers.Dependencies
	log      zerolog.Logger
	config   Config
	builders []hotshot.BuilderClient
	mempool  *Mempool
	tracker  helpers.ViewTracker
}

// New creates the transaction task. Without builders, leaders build blocks from the local mempool.
func New(deps helpers.Dependencies, config Config, builders []hotshot.BuilderClient) (*Task, error) {
	if len(builders) > 0 && config.RetryDelay <= 0 {
		return nil, fmt.Errorf("builder retry delay must be positive, got %s", config.RetryDelay)
	}
	mempool, err := NewMempool(deps.Metrics, config.DecidedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Task{
		Dependencies: deps,
		log:          deps.Log.With().Str("task", TaskName).Logger(),
		config:       config,
		builders:     builders,
		mempool:      mempool,
		tracker:      helpers.NewViewTracker(deps.Consensus.CurView(), deps.Consensus.CurEpoch()),
	}, nil
}

func (t *Task) Name() string { return TaskName }

// Mempool returns the task's mempool.
func (t *Task) Mempool() *Mempool { return t.mempool }

func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.TransactionsRecv:
		added := t.mempool.ReceiveTransactions(e.Transactions)
		t.log.Debug().Int("received", len(e.Transactions)).Int("added", added).Msg("transactions received")
		return nil
	case events.LeavesDecided:
		for _, leaf := range e.Leaves {
			t.mempool.DecideBlock(leaf.Payload)
		}
		if len(e.Leaves) > 0 {
			t.mempool.PruneViews(e.Leaves[0].View + 1)
		}
		return nil
	case events.ViewChange:
		return t.onViewChange(ctx, e)
	}
	return nil
}

func (t *Task) onViewChange(ctx context.Context, e events.ViewChange) error {
	if err := t.tracker.Update(e.View, e.Epoch); err != nil {
		return err
	}
	view, epoch := e.View, e.Epoch
	leader, err := t.Membership.Leader(view, epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine leader")
	}
	if leader != t.Signer.NodeID() {
		return model.NewSkipErrorf("not the leader of view %d: %w", view, model.ErrNotLeader)
	}
	log := t.log.With().Uint64("view", view).Str("epoch", epoch.String()).Logger()

	// blocks in the transition window carry no transactions, whatever builders offer
	if t.Consensus.IsHighQCForEpochTransition() {
		log.Info().Msg("high qc is in the epoch transition window, proposing empty block")
		t.publishBlock(view, epoch, chain.EmptyPayload(), chain.BuilderFee{}, false)
		return nil
	}

	if len(t.builders) == 0 {
		payload := t.mempool.ReceiveBlock(view, t.config.MaxBlockTransactions)
		t.publishBlock(view, epoch, payload, chain.BuilderFee{}, false)
		log.Debug().Int("transactions", len(payload.Transactions)).Msg("built block from mempool")
		return nil
	}

	parent, err := t.parentPayloadCommitment(view)
	if err == nil {
		var bundle *events.PackedBundle
		bundle, err = t.waitForBlock(ctx, view, epoch, parent)
		if err == nil {
			t.Publisher.Publish(events.BlockRecv{Bundle: *bundle})
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Warn().Err(err).Msg("no builder block available, proposing null block")
	t.Metrics.NullBlockProposed()
	t.publishBlock(view, epoch, chain.EmptyPayload(), chain.BuilderFee{}, true)
	return nil
}

func (t *Task) publishBlock(view uint64, epoch chain.Epoch, payload *chain.Payload, fee chain.BuilderFee, null bool) {
	t.Publisher.Publish(events.BlockRecv{Bundle: events.PackedBundle{
		EncodedTransactions: payload.Encode(),
		Metadata:            payload.Metadata(),
		View:                view,
		Epoch:               epoch,
		Fee:                 fee,
		Null:                null,
	}})
}

// parentPayloadCommitment walks back from the previous view across failed views to the
// closest view with a known payload and returns that payload's commitment.
func (t *Task) parentPayloadCommitment(view uint64) (chain.Commitment, error) {
	for v := view; v > 0; {
		v--
		if v < t.Consensus.LastDecidedView() {
			break
		}
		entry, ok := t.Consensus.ValidatedView(v)
		if !ok {
			continue
		}
		switch entry.Inner.Kind {
		case chain.ViewDa, chain.ViewLeaf:
			return entry.Inner.PayloadCommitment, nil
		}
	}
	return chain.Commitment{}, fmt.Errorf("no payload known for any view before %d", view)
}

type offer struct {
	builder hotshot.BuilderClient
	info    hotshot.AvailableBlockInfo
}

// waitForBlock asks every builder for blocks on top of the parent payload and claims the
// offered block with the highest fee. Failing builders are retried with a fixed delay until
// the builder timeout elapses.
func (t *Task) waitForBlock(parentCtx context.Context, view uint64, epoch chain.Epoch, parent chain.Commitment) (*events.PackedBundle, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parentCtx, t.config.BuilderTimeout)
	defer cancel()

	self := t.Signer.NodeID()
	signature, err := t.Signer.Sign(parent[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign parent commitment: %w", err)
	}

	var (
		mu     sync.Mutex
		offers []offer
		errs   *multierror.Error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, builder := range t.builders {
		builder := builder
		group.Go(func() error {
			backoff := retry.NewConstant(t.config.RetryDelay)
			err := retry.Do(groupCtx, backoff, func(ctx context.Context) error {
				infos, err := builder.AvailableBlocks(ctx, parent, view, self, signature)
				if err != nil {
					t.Metrics.BuilderFailure(builder.URL())
					return retry.RetryableError(err)
				}
				valid := t.validOffers(builder, infos)
				if len(valid) == 0 {
					return retry.RetryableError(errNoOffers)
				}
				mu.Lock()
				offers = append(offers, valid...)
				mu.Unlock()
				return nil
			})
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("builder %s: %w", builder.URL(), err))
				mu.Unlock()
			}
			// one failing builder must not cancel the others
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].info.OfferedFee > offers[j].info.OfferedFee
	})
	// offers may arrive just before the deadline, claims get their own budget
	claimCtx, cancelClaim := context.WithTimeout(parentCtx, t.config.BuilderTimeout)
	defer cancelClaim()
	for _, o := range offers {
		bundle, err := t.claim(claimCtx, o, view, epoch, signature)
		if err != nil {
			t.Metrics.BuilderFailure(o.builder.URL())
			errs = multierror.Append(errs, fmt.Errorf("claim from builder %s: %w", o.builder.URL(), err))
			continue
		}
		t.Metrics.BuilderClaimDuration(time.Since(start))
		t.log.Debug().
			Uint64("view", view).
			Str("builder", o.builder.URL()).
			Uint64("fee", o.info.OfferedFee).
			Hex("block_hash", logging.Commitment(o.info.BlockHash)).
			Msg("claimed builder block")
		return bundle, nil
	}
	if errs == nil {
		return nil, errNoOffers
	}
	return nil, errs.ErrorOrNil()
}

// validOffers drops offers whose signature does not verify under the builder key they name.
func (t *Task) validOffers(builder hotshot.BuilderClient, infos []hotshot.AvailableBlockInfo) []offer {
	valid := make([]offer, 0, len(infos))
	for _, info := range infos {
		key, err := crypto.DecodeStakingPublicKey(info.Sender)
		if err == nil {
			err = key.Verify(info.SigningMessage(), info.Signature)
		}
		if err != nil {
			t.log.Warn().Err(err).Str("builder", builder.URL()).Msg("dropping block offer with invalid signature")
			continue
		}
		valid = append(valid, offer{builder: builder, info: info})
	}
	return valid
}

func (t *Task) claim(ctx context.Context, o offer, view uint64, epoch chain.Epoch, signature []byte) (*events.PackedBundle, error) {
	self := t.Signer.NodeID()
	var (
		data  *hotshot.AvailableBlockData
		input *hotshot.AvailableBlockHeaderInput
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		data, err = o.builder.ClaimBlock(groupCtx, o.info.BlockHash, view, self, signature)
		return err
	})
	group.Go(func() error {
		var err error
		input, err = o.builder.ClaimBlockHeaderInput(groupCtx, o.info.BlockHash, view, self, signature)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if data == nil || data.Payload == nil || input == nil {
		return nil, fmt.Errorf("builder returned an incomplete block")
	}
	if data.Payload.BuilderCommitment() != o.info.BlockHash {
		return nil, fmt.Errorf("claimed payload does not match offered block %v", o.info.BlockHash)
	}
	return &events.PackedBundle{
		EncodedTransactions: data.Payload.Encode(),
		Metadata:            data.Payload.Metadata(),
		View:                view,
		Epoch:               epoch,
		Fee: chain.BuilderFee{
			Amount:    o.info.OfferedFee,
			Account:   o.info.Sender,
			Signature: input.FeeSignature,
		},
	}, nil
}
