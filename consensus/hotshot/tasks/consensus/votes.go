package consensus

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/votecollector"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
)

// onQuorumVote aggregates a quorum vote. Votes go to the leader of the next view. Votes for
// blocks in the epoch transition window are broadcast; every node aggregates them against
// both committees, forming the QC pair that carries the chain into the next epoch.
func (t *Task) onQuorumVote(ctx context.Context, vote *chain.QuorumVote) error {
	transition := vote.Data.Epoch.Valid && chain.IsEpochTransition(vote.Data.BlockNumber, t.Consensus.EpochHeight())
	if !transition {
		leader, err := t.Membership.Leader(vote.View+1, t.epochAfter(vote.Data))
		if err != nil {
			return helpers.SkipIfNoStakeTable(err, "could not determine next leader")
		}
		if leader != t.Signer.NodeID() {
			return model.NewSkipErrorf("not the leader of view %d: %w", vote.View+1, model.ErrNotLeader)
		}
	}

	qc, quorumErr := t.quorum.AddVote(vote)
	if quorumErr == nil && qc != nil {
		if err := t.onQcFormed(ctx, qc, transition); err != nil {
			return err
		}
	}
	if !transition {
		return t.voteError(metrics.KindQuorum, vote.View, vote.Signer, quorumErr)
	}

	// members of only one of the two committees count towards one certificate
	nextQC, nextErr := t.nextEpoch.AddVote(chain.ToNextEpoch(vote))
	if nextErr == nil && nextQC != nil {
		if err := t.onNextEpochQcFormed(ctx, nextQC); err != nil {
			return err
		}
	}
	if quorumErr != nil && nextErr != nil {
		return t.voteError(metrics.KindQuorum, vote.View, vote.Signer, quorumErr)
	}
	return nil
}

// onEpochRootVote aggregates the quorum vote and the light-client state attestation that
// come with a vote for an epoch root block.
func (t *Task) onEpochRootVote(ctx context.Context, vote events.EpochRootQuorumVote) error {
	if err := t.onQuorumVote(ctx, vote.Vote); err != nil {
		return err
	}
	stateVote := vote.StateVote
	if stateVote == nil {
		return model.NewInvalidVoteErrorf(vote.Vote.View, vote.Vote.Signer, "epoch root vote without state attestation")
	}
	if stateVote.Signer != vote.Vote.Signer || stateVote.Data.State.ViewNumber != vote.Vote.View {
		return model.NewInvalidVoteErrorf(vote.Vote.View, vote.Vote.Signer, "state attestation does not match the vote")
	}
	epoch := stateVote.Data.Epoch
	table, err := t.Membership.StakeTable(epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table for state vote")
	}
	if err := t.Verifier.VerifyStateVote(table, stateVote); err != nil {
		return model.NewInvalidVoteErrorf(vote.Vote.View, stateVote.Signer, "invalid state signature: %w", err)
	}
	threshold, err := t.Membership.SuccessThreshold(epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read success threshold")
	}
	entry, _ := table.Lookup(stateVote.Signer)
	cert := t.states.add(vote.Vote.View, stateVote, entry.Stake, threshold)
	if cert == nil {
		return nil
	}

	if err := t.Consensus.UpdateStateCert(cert); err != nil {
		t.log.Debug().Err(err).Msg("state certificate superseded")
		return nil
	}
	if err := t.Persister.UpdateStateCert(ctx, cert); err != nil {
		return fmt.Errorf("could not persist state certificate: %w", err)
	}
	t.log.Info().
		Str("epoch", epoch.String()).
		Uint64("height", cert.Data.State.BlockHeight).
		Int("signers", len(cert.Signatures)).
		Msg("light client state certificate formed")
	t.Publisher.Publish(events.StateCertificateFormed{Cert: cert})
	return nil
}

// onTimeoutVote aggregates timeout votes at the leader of the view after the failed one.
func (t *Task) onTimeoutVote(ctx context.Context, vote *chain.TimeoutVote) error {
	leader, err := t.Membership.Leader(vote.View+1, vote.Data.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine next leader")
	}
	if leader != t.Signer.NodeID() {
		return model.NewSkipErrorf("not the leader of view %d: %w", vote.View+1, model.ErrNotLeader)
	}
	if vote.Data.View != vote.View {
		return model.NewInvalidVoteErrorf(vote.View, vote.Signer, "timeout vote for view %d cast in view %d", vote.Data.View, vote.View)
	}
	tc, err := t.timeouts.AddVote(vote)
	if err != nil {
		return t.voteError(metrics.KindTimeout, vote.View, vote.Signer, err)
	}
	if tc == nil {
		return nil
	}
	t.Metrics.CertificateFormed(metrics.KindTimeout)
	t.log.Info().Uint64("view", tc.View).Int("signers", len(tc.Signers)).Msg("timeout certificate formed")
	t.Publisher.Publish(events.TcFormed{Cert: tc})
	t.timer.OnTimeout()
	return t.advance(ctx, tc.Data.View+1, tc.Data.Epoch)
}

// onQcFormed announces a new QC and enters the view after it. The view of a transition QC is
// only entered once the next epoch's QC exists as well.
func (t *Task) onQcFormed(ctx context.Context, qc *chain.QuorumCertificate, transition bool) error {
	t.Metrics.CertificateFormed(metrics.KindQuorum)
	if err := t.updateHighQC(ctx, qc); err != nil {
		return err
	}
	t.log.Info().Uint64("view", qc.View).Int("signers", len(qc.Signers)).Msg("qc formed")
	t.Publisher.Publish(events.Qc2Formed{QC: qc})
	t.timer.OnProgressBeforeTimeout()
	if transition {
		t.transitionQCs[qc.View] = qc
		return t.tryPair(ctx, qc.View)
	}
	return t.advance(ctx, qc.View+1, t.epochAfter(qc.Data))
}

func (t *Task) onNextEpochQcFormed(ctx context.Context, qc *chain.NextEpochQuorumCertificate) error {
	t.Metrics.CertificateFormed(metrics.KindNextEpochQuorum)
	if err := t.updateNextEpochHighQC(ctx, qc); err != nil {
		return err
	}
	t.log.Info().Uint64("view", qc.View).Int("signers", len(qc.Signers)).Msg("next epoch qc formed")
	t.Publisher.Publish(events.NextEpochQc2Formed{QC: qc})
	t.transitionNextQCs[qc.View] = qc
	return t.tryPair(ctx, qc.View)
}

// tryPair emits the transition QC pair of the view once both certificates exist.
func (t *Task) tryPair(ctx context.Context, view uint64) error {
	qc, ok := t.transitionQCs[view]
	if !ok {
		return nil
	}
	nextQC, ok := t.transitionNextQCs[view]
	if !ok {
		return nil
	}
	delete(t.transitionQCs, view)
	delete(t.transitionNextQCs, view)
	pair, err := chain.NewTransitionQCPair(qc, nextQC)
	if err != nil {
		return fmt.Errorf("certificates of view %d do not pair: %w", view, err)
	}
	if err := t.Consensus.UpdateTransitionQC(pair); err != nil {
		t.log.Debug().Err(err).Uint64("view", view).Msg("transition qc superseded")
	}
	t.Publisher.Publish(events.ExtendedQc2Formed{Pair: pair})
	return t.advance(ctx, view+1, t.epochAfter(qc.Data))
}

// voteError classifies the error of adding a vote and counts rejected votes.
func (t *Task) voteError(kind string, view uint64, signer chain.NodeID, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, votecollector.ErrStaleView):
		return model.SkipError{Err: err}
	case votecollector.IsDoubleVoteError(err):
		t.Metrics.VoteRejected(kind, metrics.ReasonDoubleVote)
		return model.NewInvalidVoteErrorf(view, signer, "%w", err)
	case model.IsInvalidVoteError(err):
		t.Metrics.VoteRejected(kind, metrics.ReasonInvalidSignature)
		return err
	}
	wrapped := helpers.SkipIfNoStakeTable(err, "could not add vote")
	if model.IsSkipError(wrapped) {
		t.Metrics.VoteRejected(kind, metrics.ReasonNoStakeTable)
	}
	return wrapped
}

// stateCollectors accumulates light-client state attestations per view and attested data.
type stateCollectors struct {
	views map[uint64]map[chain.Commitment]*stateAccumulator
}

type stateAccumulator struct {
	data       chain.LightClientStateUpdateData
	signatures []chain.StateSignature
	signers    map[chain.NodeID]struct{}
	stake      uint64
	done       bool
}

func newStateCollectors() *stateCollectors {
	return &stateCollectors{views: make(map[uint64]map[chain.Commitment]*stateAccumulator)}
}

// add returns the certificate once, for the attestation that reaches the threshold.
func (c *stateCollectors) add(view uint64, vote *chain.LightClientStateUpdateVote, stake uint64, threshold uint64) *chain.LightClientStateUpdateCertificate {
	byData, ok := c.views[view]
	if !ok {
		byData = make(map[chain.Commitment]*stateAccumulator)
		c.views[view] = byData
	}
	commitment := vote.Data.Commit()
	acc, ok := byData[commitment]
	if !ok {
		acc = &stateAccumulator{data: vote.Data, signers: make(map[chain.NodeID]struct{})}
		byData[commitment] = acc
	}
	if _, seen := acc.signers[vote.Signer]; seen || acc.done {
		return nil
	}
	acc.signers[vote.Signer] = struct{}{}
	acc.signatures = append(acc.signatures, chain.StateSignature{Signer: vote.Signer, Signature: vote.Signature})
	acc.stake += stake
	if acc.stake < threshold {
		return nil
	}
	acc.done = true
	return &chain.LightClientStateUpdateCertificate{
		Data:       acc.data,
		Signatures: append([]chain.StateSignature(nil), acc.signatures...),
	}
}

func (c *stateCollectors) pruneUpToView(lowestRetainedView uint64) {
	for view := range c.views {
		if view < lowestRetainedView {
			delete(c.views, view)
		}
	}
}
