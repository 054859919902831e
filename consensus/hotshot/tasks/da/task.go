// Package da implements the data availability task: DA committee members validate the
// leader's block payload, persist it and vote for it; the leader collects the votes into a
// DA certificate.
package da

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/consensus/hotshot/votecollector"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/utils/logging"
	"github.com/hotshot-go/hotshot/vid"
)

const TaskName = "da"

// Task is the DA task of one node.
type Task struct {
	helpers.Dependencies
	log        zerolog.Logger
	tracker    helpers.ViewTracker
	collectors *votecollector.Collectors[chain.DaData]
}

// New creates the DA task starting in the current view of the consensus store.
func New(deps helpers.Dependencies) *Task {
	log := deps.Log.With().Str("task", TaskName).Logger()
	view := deps.Consensus.CurView()
	return &Task{
		Dependencies: deps,
		log:          log,
		tracker:      helpers.NewViewTracker(view, deps.Consensus.CurEpoch()),
		collectors:   votecollector.DefaultCollectors[chain.DaData](log, view, votecollector.DaWeights(deps.Membership), deps.Verifier),
	}
}

func (t *Task) Name() string { return TaskName }

// Handle processes one event.
func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.DaProposalRecv:
		return t.onProposalRecv(e)
	case events.DaProposalValidated:
		return t.onProposalValidated(ctx, e)
	case events.DaVoteRecv:
		return t.onVoteRecv(e)
	case events.ViewChange:
		return t.onViewChange(e)
	case events.BlockRecv:
		return t.onBlockRecv(e)
	}
	return nil
}

func (t *Task) onProposalRecv(e events.DaProposalRecv) error {
	proposal := e.Proposal.Data
	view := proposal.View
	if cur := t.tracker.View(); cur > view+1 {
		return model.NewSkipErrorf("da proposal for view %d, current view %d: %w", view, cur, model.ErrStaleView)
	}
	if saved, ok := t.Consensus.SavedPayload(view); ok {
		if !bytes.Equal(saved.Encoded, proposal.EncodedTransactions) || !bytes.Equal(saved.Metadata, proposal.Metadata) {
			return model.NewInvalidProposalErrorf(view, "payload differs from the payload already saved for the view")
		}
	}
	leader, err := t.Membership.Leader(view, proposal.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine da leader")
	}
	if e.Sender != leader {
		return fmt.Errorf("da proposal for view %d from %v, expected %v: %w", view, e.Sender, leader, model.ErrWrongLeader)
	}
	table, err := t.Membership.StakeTable(proposal.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table")
	}
	if err := verification.VerifyProposal(t.Verifier, table, leader, e.Proposal); err != nil {
		return model.NewInvalidProposalErrorf(view, "invalid da proposal signature: %w", err)
	}
	t.Publisher.Publish(events.DaProposalValidated{Proposal: e.Proposal, Sender: e.Sender})
	return nil
}

func (t *Task) onProposalValidated(ctx context.Context, e events.DaProposalValidated) error {
	proposal := e.Proposal.Data
	view, epoch := proposal.View, proposal.Epoch
	log := t.log.With().Uint64("view", view).Str("epoch", epoch.String()).Logger()

	payload, err := chain.DecodePayload(proposal.EncodedTransactions)
	if err != nil {
		return model.NewInvalidProposalErrorf(view, "undecodable payload: %w", err)
	}
	table, err := t.Membership.StakeTable(epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table for vid commitment")
	}
	commitment, err := helpers.RunOn(ctx, t.Workers, func() (chain.Commitment, error) {
		return vid.PayloadCommitment(proposal.EncodedTransactions, proposal.Metadata, table)
	})
	if err != nil {
		return fmt.Errorf("could not compute payload commitment: %w", err)
	}

	var nextCommitment *chain.Commitment
	if proposal.EpochTransitionIndicator && epoch.Valid {
		nextTable, err := t.Membership.StakeTable(epoch.Next())
		if err != nil {
			return helpers.SkipIfNoStakeTable(err, "could not read next epoch stake table")
		}
		next, err := helpers.RunOn(ctx, t.Workers, func() (chain.Commitment, error) {
			return vid.PayloadCommitment(proposal.EncodedTransactions, proposal.Metadata, nextTable)
		})
		if err != nil {
			return fmt.Errorf("could not compute next epoch payload commitment: %w", err)
		}
		nextCommitment = &next
	}

	self := t.Signer.NodeID()
	hasStake := t.Membership.HasDaStake(self, epoch) ||
		(proposal.EpochTransitionIndicator && t.Membership.HasDaStake(self, epoch.Next()))
	if !hasStake {
		return model.NewSkipErrorf("node has no da stake in epoch %v", epoch)
	}

	if err := t.Persister.AppendDa(ctx, e.Proposal, commitment); err != nil {
		return fmt.Errorf("could not persist da proposal of view %d: %w", view, err)
	}

	vote, err := verification.CreateVote(t.Signer, view, chain.DaData{
		PayloadCommitment:          commitment,
		NextEpochPayloadCommitment: nextCommitment,
		Epoch:                      epoch,
	})
	if err != nil {
		return fmt.Errorf("could not create da vote: %w", err)
	}
	t.Publisher.Publish(events.DaVoteSend{Vote: vote})
	log.Debug().Hex("payload_commitment", logging.Commitment(commitment)).Msg("sent da vote")

	err = t.Consensus.UpdateValidatedStateMap(view, store.View{Inner: chain.ViewInner{
		Kind:              chain.ViewDa,
		PayloadCommitment: commitment,
		Epoch:             epoch,
	}})
	if err != nil && !errors.Is(err, store.ErrViewOverride) {
		return fmt.Errorf("could not record da view: %w", err)
	}
	err = t.Consensus.UpdateSavedPayloads(view, &store.SavedPayload{
		Payload:           payload,
		Encoded:           proposal.EncodedTransactions,
		Metadata:          proposal.Metadata,
		PayloadCommitment: commitment,
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not save payload")
	}

	if t.Network != nil && t.Network.IsPrimaryDown() {
		t.Workers.Submit(func() { t.computeOwnShare(ctx, proposal, table) })
	}
	return nil
}

// computeOwnShare disperses the payload locally and keeps this node's share. Used when the
// leader's dispersal may not arrive because the primary network is down.
func (t *Task) computeOwnShare(ctx context.Context, proposal *chain.DaProposal, table chain.StakeTable) {
	log := t.log.With().Uint64("view", proposal.View).Logger()
	disperse, err := vid.Disperse(proposal.EncodedTransactions, proposal.Metadata, table, proposal.View, proposal.Epoch, proposal.Epoch)
	if err != nil {
		log.Error().Err(err).Msg("could not compute fallback vid share")
		return
	}
	share, ok := disperse.Shares[t.Signer.NodeID()]
	if !ok {
		return
	}
	if err := t.Persister.AppendVid(ctx, share); err != nil {
		log.Error().Err(err).Msg("could not persist fallback vid share")
		return
	}
	t.Consensus.UpdateVidShares(share)
	t.Publisher.Publish(events.VidShareValidated{Share: share})
	log.Info().Msg("computed own vid share while primary network is down")
}

func (t *Task) onVoteRecv(e events.DaVoteRecv) error {
	vote := e.Vote
	leader, err := t.Membership.Leader(vote.View, vote.Epoch())
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine da leader")
	}
	if leader != t.Signer.NodeID() {
		return model.NewSkipErrorf("not the da leader of view %d: %w", vote.View, model.ErrNotLeader)
	}
	cert, err := t.collectors.AddVote(vote)
	if err != nil {
		return t.voteError(vote, err)
	}
	if cert == nil {
		return nil
	}
	t.Consensus.UpdateDaCert(cert)
	t.Metrics.CertificateFormed(metrics.KindDa)
	t.Publisher.Publish(events.DacSend{Cert: cert, Sender: t.Signer.NodeID()})
	t.log.Info().Uint64("view", cert.View).Int("signers", len(cert.Signers)).Msg("da certificate formed")
	return nil
}

func (t *Task) voteError(vote *chain.DaVote, err error) error {
	switch {
	case errors.Is(err, votecollector.ErrStaleView):
		return model.SkipError{Err: err}
	case votecollector.IsDoubleVoteError(err):
		t.Metrics.VoteRejected(metrics.KindDa, metrics.ReasonDoubleVote)
		return model.NewInvalidVoteErrorf(vote.View, vote.Signer, "%w", err)
	case model.IsInvalidVoteError(err):
		t.Metrics.VoteRejected(metrics.KindDa, metrics.ReasonInvalidSignature)
		return err
	}
	return helpers.SkipIfNoStakeTable(err, "could not add da vote")
}

func (t *Task) onViewChange(e events.ViewChange) error {
	if err := t.tracker.Update(e.View, e.Epoch); err != nil {
		return err
	}
	if e.View > 0 {
		t.collectors.PruneUpToView(e.View - 1)
	}
	return nil
}

func (t *Task) onBlockRecv(e events.BlockRecv) error {
	bundle := e.Bundle
	self := t.Signer.NodeID()
	leader, err := t.Membership.Leader(bundle.View, bundle.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine leader")
	}
	if leader != self {
		return model.NewSkipErrorf("not the leader of view %d: %w", bundle.View, model.ErrNotLeader)
	}
	proposal, err := verification.CreateProposal(t.Signer, &chain.DaProposal{
		EncodedTransactions:      bundle.EncodedTransactions,
		Metadata:                 bundle.Metadata,
		View:                     bundle.View,
		Epoch:                    bundle.Epoch,
		EpochTransitionIndicator: t.Consensus.IsHighQCForEpochTransition(),
	})
	if err != nil {
		return fmt.Errorf("could not sign da proposal: %w", err)
	}
	t.Publisher.Publish(events.DaProposalSend{Proposal: proposal, Sender: self})

	payload, err := chain.DecodePayload(bundle.EncodedTransactions)
	if err != nil {
		return fmt.Errorf("could not decode own payload: %w", err)
	}
	table, err := t.Membership.StakeTable(bundle.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table")
	}
	commitment, err := vid.PayloadCommitment(bundle.EncodedTransactions, bundle.Metadata, table)
	if err != nil {
		return fmt.Errorf("could not compute payload commitment: %w", err)
	}
	err = t.Consensus.UpdateSavedPayloads(bundle.View, &store.SavedPayload{
		Payload:           payload,
		Encoded:           bundle.EncodedTransactions,
		Metadata:          bundle.Metadata,
		PayloadCommitment: commitment,
	})
	if err != nil {
		return fmt.Errorf("could not save own payload: %w", err)
	}
	t.log.Debug().Uint64("view", bundle.View).Int("transactions", len(payload.Transactions)).Msg("sent da proposal")
	return nil
}
