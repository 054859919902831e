package quorumvote

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/logging"
)

// vote checks that the DA certificate and the VID share belong to the proposed block and
// sends this node's vote for the leaf.
func (t *Task) vote(ctx context.Context, p *pending) error {
	proposal := p.proposal
	view := proposal.View
	leaf, ok := t.Consensus.LeafForView(view)
	if !ok || leaf.Commit() != proposal.Commit() {
		return model.NewSkipErrorf("leaf of view %d is no longer in the store", view)
	}
	payloadCommitment := leaf.PayloadCommitment()
	if !certifiesPayload(p.daCert, payloadCommitment) {
		return model.NewNoVoteErrorf("da certificate of view %d does not certify the proposed payload %v", view, payloadCommitment)
	}
	if !certifiesPayload(p.daCert, p.share.PayloadCommitment) {
		return model.NewNoVoteErrorf("vid share of view %d is for payload %v", view, p.share.PayloadCommitment)
	}
	if err := t.verifyDrbResult(proposal, leaf); err != nil {
		return err
	}
	return t.submitVote(ctx, leaf, proposal.Epoch)
}

// certifiesPayload returns true if the DA certificate covers the commitment, for either committee.
func certifiesPayload(cert *chain.DaCertificate, commitment chain.Commitment) bool {
	if cert.Data.PayloadCommitment == commitment {
		return true
	}
	next := cert.Data.NextEpochPayloadCommitment
	return next != nil && *next == commitment
}

// verifyDrbResult checks the DRB result the last block of an epoch carries for the next
// epoch against the result this node computed. Only nodes with stake in the epoch computed it.
func (t *Task) verifyDrbResult(proposal *chain.QuorumProposal, leaf *chain.Leaf) error {
	if !proposal.Epoch.Valid || !t.Consensus.IsLeafForLastBlock(leaf) {
		return nil
	}
	if !t.Membership.HasStake(t.Signer.NodeID(), proposal.Epoch) {
		return nil
	}
	if proposal.NextDrbResult == nil {
		return model.NewNoVoteErrorf("last block of epoch %v carries no drb result", proposal.Epoch)
	}
	next := proposal.Epoch.Next()
	computed, err := t.Membership.EpochDrb(next.Number)
	if err != nil {
		return model.NewNoVoteErrorf("no drb result for epoch %d to check the proposal against: %v", next.Number, err)
	}
	if computed != *proposal.NextDrbResult {
		return model.NewNoVoteErrorf("proposed drb result %v for epoch %d differs from computed %v", *proposal.NextDrbResult, next.Number, computed)
	}
	return nil
}

// submitVote signs and sends the vote. A node votes if it has stake in the leaf's epoch, or in
// the next epoch for the last block. Epoch root votes carry a light-client state attestation
// and extended votes are broadcast to every node.
func (t *Task) submitVote(ctx context.Context, leaf *chain.Leaf, epoch chain.Epoch) error {
	self := t.Signer.NodeID()
	view := leaf.View
	lastBlock := t.Consensus.IsLeafForLastBlock(leaf)
	if !t.Membership.HasStake(self, epoch) && !(lastBlock && t.Membership.HasStake(self, epoch.Next())) {
		return model.NewSkipErrorf("node has no stake to vote in view %d of epoch %v", view, epoch)
	}
	if err := t.Consensus.UpdateLastActionedView(view); err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			return model.SkipError{Err: err}
		}
		return err
	}
	if err := t.Persister.RecordActionedView(ctx, view); err != nil {
		return fmt.Errorf("could not persist actioned view %d: %w", view, err)
	}

	vote, err := verification.CreateVote(t.Signer, view, chain.QuorumData{
		LeafCommitment: leaf.Commit(),
		Epoch:          epoch,
		BlockNumber:    leaf.Height(),
	})
	if err != nil {
		return fmt.Errorf("could not create quorum vote: %w", err)
	}
	log := t.log.With().
		Uint64("view", view).
		Str("epoch", epoch.String()).
		Hex("leaf", logging.Commitment(vote.Data.LeafCommitment)).
		Logger()

	epochHeight := t.Consensus.EpochHeight()
	switch {
	case leaf.WithEpoch && chain.IsEpochRoot(leaf.Height(), epochHeight):
		stateVote, err := t.stateVote(leaf, epoch)
		if err != nil {
			return err
		}
		t.Publisher.Publish(events.EpochRootQuorumVoteSend{Vote: events.EpochRootQuorumVote{Vote: vote, StateVote: stateVote}})
		log.Debug().Msg("sent epoch root vote")
	case t.Consensus.IsLeafExtended(leaf):
		t.Publisher.Publish(events.ExtendedQuorumVoteSend{Vote: vote})
		log.Debug().Msg("sent extended vote")
	default:
		t.Publisher.Publish(events.QuorumVoteSend{Vote: vote})
		log.Debug().Msg("sent vote")
	}
	return nil
}

// stateVote attests to the light-client state after the epoch root block, together with the
// stake table that takes over in the next epoch.
func (t *Task) stateVote(leaf *chain.Leaf, epoch chain.Epoch) (*chain.LightClientStateUpdateVote, error) {
	state, ok := t.Consensus.State(leaf.View)
	if !ok {
		return nil, fmt.Errorf("no validated state for epoch root of view %d", leaf.View)
	}
	next := epoch.Next()
	table, err := t.Membership.StakeTable(next)
	if err != nil {
		return nil, helpers.SkipIfNoStakeTable(err, "could not read next epoch stake table")
	}
	threshold, err := t.Membership.SuccessThreshold(next)
	if err != nil {
		return nil, helpers.SkipIfNoStakeTable(err, "could not read next epoch threshold")
	}
	vote, err := verification.CreateStateVote(t.Signer, chain.LightClientStateUpdateData{
		Epoch: epoch,
		State: chain.LightClientState{
			ViewNumber:    leaf.View,
			BlockHeight:   leaf.Height(),
			BlockCommRoot: state.Commit(),
		},
		NextStakeTableState: chain.NewStakeTableState(table, threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("could not sign light client state: %w", err)
	}
	return vote, nil
}
