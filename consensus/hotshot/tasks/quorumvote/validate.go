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

// onProposalRecv validates a quorum proposal and adds its leaf to the store. The proposal
// becomes QuorumProposalValidated only after its leaf was applied to the parent state.
func (t *Task) onProposalRecv(ctx context.Context, e events.QuorumProposalRecv) error {
	proposal := e.Proposal.Data
	view := proposal.View
	if cur := t.tracker.View(); cur > view+1 {
		return model.NewSkipErrorf("quorum proposal for view %d, current view %d: %w", view, cur, model.ErrStaleView)
	}
	if proposal.Justify == nil {
		return model.NewInvalidProposalErrorf(view, "proposal without justify qc")
	}
	if proposal.Justify.View >= view {
		return model.NewInvalidProposalErrorf(view, "justify qc of view %d does not precede the proposal", proposal.Justify.View)
	}
	epochHeight := t.Consensus.EpochHeight()
	expectedEpoch := helpers.EpochForBlock(t.UpgradeLock, view, proposal.BlockHeader.Height, epochHeight)
	if proposal.Epoch != expectedEpoch {
		return model.NewInvalidProposalErrorf(view, "proposal epoch %v, expected %v for height %d", proposal.Epoch, expectedEpoch, proposal.BlockHeader.Height)
	}

	leader, err := t.Membership.Leader(view, proposal.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine leader")
	}
	if e.Sender != leader {
		return fmt.Errorf("quorum proposal for view %d from %v, expected %v: %w", view, e.Sender, leader, model.ErrWrongLeader)
	}
	table, err := t.Membership.StakeTable(proposal.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table")
	}
	if err := verification.VerifyProposal(t.Verifier, table, leader, e.Proposal); err != nil {
		return model.NewInvalidProposalErrorf(view, "invalid proposal signature: %w", err)
	}

	if err := t.verifyCertificates(proposal); err != nil {
		return err
	}
	if err := t.updateHighQC(ctx, proposal); err != nil {
		return err
	}

	leaf := proposal.Leaf()
	parent, err := t.resolver.Parent(ctx, leaf)
	if err != nil {
		if model.IsMissingLeafError(err) {
			return model.SkipError{Err: err}
		}
		return fmt.Errorf("could not resolve parent of view %d: %w", view, err)
	}
	if err := t.checkSafetyAndLiveness(proposal, parent.Leaf); err != nil {
		return err
	}
	if err := leaf.ExtendsUpgrade(parent.Leaf, t.UpgradeLock.Decided()); err != nil {
		return model.NewInvalidProposalErrorf(view, "%w", err)
	}
	if err := t.updateSharedState(ctx, e.Proposal, leaf, parent); err != nil {
		return err
	}

	t.log.Debug().
		Uint64("view", view).
		Str("epoch", proposal.Epoch.String()).
		Uint64("height", leaf.Height()).
		Hex("leaf", logging.Commitment(leaf.Commit())).
		Msg("quorum proposal validated")
	t.Publisher.Publish(events.QuorumProposalValidated{Proposal: e.Proposal, ParentLeaf: parent.Leaf})
	return nil
}

// verifyCertificates checks every certificate the proposal carries. A proposal that does not
// extend the previous view must carry a timeout or view-sync certificate for that view.
func (t *Task) verifyCertificates(proposal *chain.QuorumProposal) error {
	view := proposal.View
	justify := proposal.Justify
	if err := t.Verifier.VerifyQC(justify); err != nil {
		return t.certificateError(view, "justify qc", err)
	}

	epochHeight := t.Consensus.EpochHeight()
	needsNextEpochQC := justify.Data.Epoch.Valid && chain.IsEpochTransition(justify.Data.BlockNumber, epochHeight)
	if proposal.NextEpochJustify == nil && needsNextEpochQC {
		return model.NewInvalidProposalErrorf(view, "justify qc for transition block %d without next epoch qc", justify.Data.BlockNumber)
	}
	if proposal.NextEpochJustify != nil {
		if _, err := chain.NewTransitionQCPair(justify, proposal.NextEpochJustify); err != nil {
			return model.NewInvalidProposalErrorf(view, "%w", err)
		}
		if err := t.Verifier.VerifyNextEpochQC(proposal.NextEpochJustify); err != nil {
			return t.certificateError(view, "next epoch justify qc", err)
		}
	}

	if justify.View+1 != view {
		evidence := proposal.ViewChangeEvidence
		switch {
		case evidence == nil:
			return model.NewInvalidProposalErrorf(view, "justify qc of view %d without view change evidence", justify.View)
		case evidence.Timeout != nil:
			if evidence.Timeout.Data.View+1 != view {
				return model.NewInvalidProposalErrorf(view, "timeout certificate for view %d", evidence.Timeout.Data.View)
			}
			if err := t.Verifier.VerifyTimeoutCertificate(evidence.Timeout); err != nil {
				return t.certificateError(view, "timeout certificate", err)
			}
		case evidence.ViewSync != nil:
			if evidence.ViewSync.View != view {
				return model.NewInvalidProposalErrorf(view, "view sync certificate for view %d", evidence.ViewSync.View)
			}
			if err := t.Verifier.VerifyViewSyncCertificate(evidence.ViewSync); err != nil {
				return t.certificateError(view, "view sync certificate", err)
			}
		default:
			return model.NewInvalidProposalErrorf(view, "empty view change evidence")
		}
	}

	if cert := proposal.UpgradeCertificate; cert != nil {
		if view > cert.Data.DecideBy {
			return model.NewInvalidProposalErrorf(view, "upgrade certificate expired at view %d", cert.Data.DecideBy)
		}
		if err := t.Verifier.VerifyUpgradeCertificate(cert); err != nil {
			return t.certificateError(view, "upgrade certificate", err)
		}
	}
	return nil
}

func (t *Task) certificateError(view uint64, what string, err error) error {
	if wrapped := helpers.SkipIfNoStakeTable(err, "could not verify "+what); model.IsSkipError(wrapped) {
		return wrapped
	}
	return model.NewInvalidProposalErrorf(view, "invalid %s: %w", what, err)
}

// updateHighQC adopts the proposal's certificates if they are newer than the local ones.
func (t *Task) updateHighQC(ctx context.Context, proposal *chain.QuorumProposal) error {
	err := t.Consensus.UpdateHighQC(proposal.Justify)
	switch {
	case err == nil:
		if err := t.Persister.UpdateHighQC(ctx, proposal.Justify); err != nil {
			return fmt.Errorf("could not persist high qc: %w", err)
		}
	case !errors.Is(err, store.ErrStaleUpdate):
		return fmt.Errorf("could not update high qc: %w", err)
	}

	next := proposal.NextEpochJustify
	if next == nil {
		return nil
	}
	err = t.Consensus.UpdateNextEpochHighQC(next)
	switch {
	case err == nil:
		if err := t.Persister.UpdateNextEpochHighQC(ctx, next); err != nil {
			return fmt.Errorf("could not persist next epoch high qc: %w", err)
		}
	case !errors.Is(err, store.ErrStaleUpdate):
		return fmt.Errorf("could not update next epoch high qc: %w", err)
	}
	pair, err := chain.NewTransitionQCPair(proposal.Justify, next)
	if err != nil {
		return nil
	}
	if err := t.Consensus.UpdateTransitionQC(pair); err != nil && !errors.Is(err, store.ErrStaleUpdate) {
		return fmt.Errorf("could not update transition qc: %w", err)
	}
	return nil
}

// checkSafetyAndLiveness accepts a proposal that extends the locked leaf (safety) or whose
// justify QC is newer than the locked view (liveness).
func (t *Task) checkSafetyAndLiveness(proposal *chain.QuorumProposal, parent *chain.Leaf) error {
	lockedView := t.Consensus.LockedView()
	if proposal.Justify.View > lockedView {
		return nil
	}
	locked, ok := t.Consensus.LeafForView(lockedView)
	if !ok {
		return model.NewSkipErrorf("locked leaf of view %d is not known", lockedView)
	}
	extends := false
	err := t.Consensus.VisitLeafAncestors(parent.View, store.Terminator{View: lockedView, Inclusive: true}, true, func(info store.LeafInfo) bool {
		if info.Leaf.View == lockedView {
			extends = info.Leaf.Commit() == locked.Commit()
			return false
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("could not walk ancestors of view %d: %w", parent.View, err)
	}
	if !extends {
		return model.NewInvalidProposalErrorf(proposal.View, "proposal neither extends locked view %d nor has a newer justify qc", lockedView)
	}
	return nil
}

// updateSharedState applies the proposed header to the parent state and adds the leaf with
// its state to the store. The proposal is persisted before it is announced.
func (t *Task) updateSharedState(ctx context.Context, proposal *events.QuorumProposal, leaf *chain.Leaf, parent store.LeafInfo) error {
	view := leaf.View
	state, delta, err := parent.State.Validate(ctx, t.Instance, parent.Leaf, &leaf.Header)
	if err != nil {
		return model.NewInvalidProposalErrorf(view, "block header does not apply to parent state: %w", err)
	}
	if saved, ok := t.Consensus.SavedPayload(view); ok && saved.PayloadCommitment == leaf.PayloadCommitment() {
		leaf.Payload = saved.Payload
	}
	if existing, ok := t.Consensus.LeafForView(view); ok && existing.Commit() != leaf.Commit() {
		return model.NewInvalidProposalErrorf(view, "conflicting leaf already known for the view")
	}
	err = t.Consensus.UpdateLeaf(leaf, state, delta)
	if err != nil && !errors.Is(err, store.ErrViewOverride) {
		return fmt.Errorf("could not store leaf of view %d: %w", view, err)
	}
	t.Consensus.UpdateLastProposal(proposal)
	if err := t.Persister.AppendQuorumProposal(ctx, proposal); err != nil {
		return fmt.Errorf("could not persist quorum proposal of view %d: %w", view, err)
	}
	return nil
}
