package quorumproposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/logging"
)

// publishProposal builds, signs and persists the proposal of the view and hands it to the
// network. The proposal is persisted before it is sent.
func (t *Task) publishProposal(ctx context.Context, view uint64, d *dependencies, justify *chain.QuorumCertificate, nextJustify *chain.NextEpochQuorumCertificate) error {
	parent, err := t.resolver.Resolve(ctx, justify.View, justify.Data.LeafCommitment)
	if err != nil {
		if model.IsMissingLeafError(err) {
			return model.SkipError{Err: err}
		}
		return fmt.Errorf("could not resolve parent of view %d: %w", view, err)
	}

	epochHeight := t.Consensus.EpochHeight()
	header := t.header(view, d.payload, parent.Leaf)
	epoch := helpers.EpochForBlock(t.UpgradeLock, view, header.Height, epochHeight)
	if epoch != d.payload.Epoch {
		// the block lands in another epoch than the payload was built for; its leader proposes
		leader, err := t.Membership.Leader(view, epoch)
		if err != nil {
			return helpers.SkipIfNoStakeTable(err, "could not determine leader")
		}
		if leader != t.Signer.NodeID() {
			return model.NewSkipErrorf("view %d of epoch %v is led by %v: %w", view, epoch, leader, model.ErrNotLeader)
		}
	}

	evidence, err := t.viewChangeEvidence(view, justify, d)
	if err != nil {
		return err
	}
	proposal := &chain.QuorumProposal{
		BlockHeader:        header,
		View:               view,
		Epoch:              epoch,
		Justify:            justify,
		NextEpochJustify:   nextJustify,
		UpgradeCertificate: t.upgradeCertificate(view, parent.Leaf),
		ViewChangeEvidence: evidence,
	}
	if epoch.Valid && chain.IsLastBlock(header.Height, epochHeight) {
		next := epoch.Next()
		drb, err := t.Membership.EpochDrb(next.Number)
		if errors.Is(err, committees.ErrDrbMissing) {
			return model.NewSkipErrorf("drb result for epoch %d is not computed yet", next.Number)
		}
		if err != nil {
			return fmt.Errorf("could not read drb result for epoch %d: %w", next.Number, err)
		}
		proposal.NextDrbResult = &drb
		if cert := t.Consensus.StateCert(); cert != nil && cert.Data.Epoch == epoch {
			proposal.StateCert = cert
		}
	}

	signed, err := verification.CreateProposal(t.Signer, proposal)
	if err != nil {
		return fmt.Errorf("could not sign proposal of view %d: %w", view, err)
	}
	if err := t.Consensus.UpdateLastProposedView(view); err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			return model.SkipError{Err: err}
		}
		return err
	}
	if err := t.Persister.AppendQuorumProposal(ctx, signed); err != nil {
		return fmt.Errorf("could not persist quorum proposal of view %d: %w", view, err)
	}
	t.Consensus.UpdateLastProposal(signed)

	t.log.Info().
		Uint64("view", view).
		Str("epoch", epoch.String()).
		Uint64("height", header.Height).
		Uint64("justify_view", justify.View).
		Hex("leaf", logging.Commitment(proposal.Commit())).
		Bool("upgrade", proposal.UpgradeCertificate != nil).
		Msg("sending quorum proposal")
	t.Publisher.Publish(events.QuorumProposalSend{Proposal: signed, Sender: t.Signer.NodeID()})
	return nil
}

// header returns the header of the proposed block. Once epochs are active, the blocks after
// the last block of an epoch repeat it until the transition to the next epoch is decided.
func (t *Task) header(view uint64, payload *events.SendPayloadCommitmentAndMetadata, parent *chain.Leaf) chain.Header {
	if t.UpgradeLock.EpochsEnabled(view) && parent.WithEpoch && t.Consensus.IsLeafForLastBlock(parent) {
		return parent.Header
	}
	return t.Instance.BuildHeader(parent, hotshot.BlockInput{
		Version:           t.UpgradeLock.Version(view),
		PayloadCommitment: payload.PayloadCommitment,
		BuilderCommitment: payload.BuilderCommitment,
		Metadata:          payload.Metadata,
		Fee:               payload.Fee,
	})
}

// viewChangeEvidence proves that the views between the justify QC and the proposal failed.
// A timeout certificate for the previous view is preferred over a view-sync certificate.
func (t *Task) viewChangeEvidence(view uint64, justify *chain.QuorumCertificate, d *dependencies) (*chain.ViewChangeEvidence, error) {
	if justify.View+1 == view {
		return nil, nil
	}
	switch {
	case d.timeout != nil:
		return &chain.ViewChangeEvidence{Timeout: d.timeout}, nil
	case d.viewSync != nil:
		return &chain.ViewChangeEvidence{ViewSync: d.viewSync}, nil
	}
	return nil, model.NewSkipErrorf("justify qc of view %d needs view change evidence for view %d", justify.View, view)
}

// upgradeCertificate returns the upgrade certificate the proposal carries. A proposal repeats
// its parent's certificate until it is decided or expires. A newly formed certificate is only
// attached to a chain that does not carry one.
func (t *Task) upgradeCertificate(view uint64, parent *chain.Leaf) *chain.UpgradeCertificate {
	decided := t.UpgradeLock.Decided()
	if cert := parent.UpgradeCertificate; cert != nil {
		if view > cert.Data.DecideBy {
			return nil
		}
		if decided != nil && decided.Commitment() == cert.Commitment() {
			return nil
		}
		return cert
	}
	if cert := t.upgradeCert; cert != nil && decided == nil && view <= cert.Data.DecideBy {
		return cert
	}
	return nil
}
