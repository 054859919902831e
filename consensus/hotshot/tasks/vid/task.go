// Package vid implements the VID task. The leader disperses the block payload into one share per
// unit of stake; every node validates and keeps the share addressed to it.
package vid

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/logging"
	"github.com/hotshot-go/hotshot/vid"
)

const TaskName = "vid"

type Task struct {
	helpers.Dependencies
	log     zerolog.Logger
	tracker helpers.ViewTracker
}

func New(deps helpers.Dependencies) *Task {
	return &Task{
		Dependencies: deps,
		log:          deps.Log.With().Str("task", TaskName).Logger(),
		tracker:      helpers.NewViewTracker(deps.Consensus.CurView(), deps.Consensus.CurEpoch()),
	}
}

func (t *Task) Name() string { return TaskName }

func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.BlockRecv:
		return t.onBlockRecv(ctx, e.Bundle)
	case events.VidShareRecv:
		return t.onShareRecv(ctx, e)
	case events.ViewChange:
		return t.tracker.Update(e.View, e.Epoch)
	}
	return nil
}

// onBlockRecv disperses the leader's block. During an epoch transition the payload is also
// dispersed to the next epoch's committee, which takes over before the block is decided.
func (t *Task) onBlockRecv(ctx context.Context, bundle events.PackedBundle) error {
	self := t.Signer.NodeID()
	view, epoch := bundle.View, bundle.Epoch
	leader, err := t.Membership.Leader(view, epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine leader")
	}
	if leader != self {
		return model.NewSkipErrorf("not the leader of view %d: %w", view, model.ErrNotLeader)
	}
	payload, err := chain.DecodePayload(bundle.EncodedTransactions)
	if err != nil {
		return fmt.Errorf("could not decode own block: %w", err)
	}

	disperse, err := t.disperse(ctx, bundle, epoch)
	if err != nil {
		return err
	}
	t.Publisher.Publish(events.SendPayloadCommitmentAndMetadata{
		PayloadCommitment: disperse.PayloadCommitment,
		BuilderCommitment: payload.BuilderCommitment(),
		Metadata:          bundle.Metadata,
		View:              view,
		Epoch:             epoch,
		Fee:               bundle.Fee,
	})
	if err := t.send(ctx, disperse); err != nil {
		return err
	}

	if epoch.Valid && t.Consensus.IsHighQCForEpochTransition() {
		next, err := t.disperse(ctx, bundle, epoch.Next())
		if err != nil {
			return err
		}
		if err := t.send(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (t *Task) disperse(ctx context.Context, bundle events.PackedBundle, target chain.Epoch) (*chain.VidDisperse, error) {
	table, err := t.Membership.StakeTable(target)
	if err != nil {
		return nil, helpers.SkipIfNoStakeTable(err, "could not read stake table for dispersal")
	}
	disperse, err := helpers.RunOn(ctx, t.Workers, func() (*chain.VidDisperse, error) {
		return vid.Disperse(bundle.EncodedTransactions, bundle.Metadata, table, bundle.View, bundle.Epoch, target)
	})
	if err != nil {
		return nil, fmt.Errorf("could not disperse payload of view %d: %w", bundle.View, err)
	}
	return disperse, nil
}

// send signs the dispersal and keeps the leader's own share, if it has one.
func (t *Task) send(ctx context.Context, disperse *chain.VidDisperse) error {
	self := t.Signer.NodeID()
	signature, err := t.Signer.Sign(disperse.PayloadCommitment[:])
	if err != nil {
		return fmt.Errorf("could not sign payload commitment: %w", err)
	}
	t.Publisher.Publish(events.VidDisperseSend{Disperse: disperse, Sender: self, Signature: signature})
	t.log.Debug().
		Uint64("view", disperse.View).
		Str("target_epoch", disperse.TargetEpoch.String()).
		Int("recipients", len(disperse.Shares)).
		Hex("payload_commitment", logging.Commitment(disperse.PayloadCommitment)).
		Msg("dispersed payload")

	if share, ok := disperse.Shares[self]; ok {
		return t.keep(ctx, share)
	}
	return nil
}

func (t *Task) onShareRecv(ctx context.Context, e events.VidShareRecv) error {
	share := e.Share
	if cur := t.tracker.View(); cur > share.View+1 {
		return model.NewSkipErrorf("vid share for view %d, current view %d: %w", share.View, cur, model.ErrStaleView)
	}
	if share.Recipient != t.Signer.NodeID() {
		return model.NewSkipErrorf("vid share of view %d is addressed to %v", share.View, share.Recipient)
	}
	if _, ok := t.Consensus.VidShare(share.View, share.Recipient); ok {
		return model.NewSkipErrorf("vid share of view %d already known", share.View)
	}
	leader, err := t.Membership.Leader(share.View, share.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine leader")
	}
	if e.Sender != leader {
		return fmt.Errorf("vid share for view %d from %v, expected %v: %w", share.View, e.Sender, leader, model.ErrWrongLeader)
	}
	table, err := t.Membership.StakeTable(share.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table")
	}
	if err := t.Verifier.VerifySignature(table, leader, share.PayloadCommitment[:], e.Signature); err != nil {
		return model.NewInvalidProposalErrorf(share.View, "invalid vid disperse signature: %w", err)
	}
	if err := vid.VerifyShare(share); err != nil {
		return model.NewInvalidProposalErrorf(share.View, "invalid vid share: %w", err)
	}
	return t.keep(ctx, share)
}

// keep persists the share before announcing it: votes depend on it.
func (t *Task) keep(ctx context.Context, share *chain.VidShare) error {
	if err := t.Persister.AppendVid(ctx, share); err != nil {
		return fmt.Errorf("could not persist vid share of view %d: %w", share.View, err)
	}
	t.Consensus.UpdateVidShares(share)
	t.Publisher.Publish(events.VidShareValidated{Share: share})
	return nil
}
