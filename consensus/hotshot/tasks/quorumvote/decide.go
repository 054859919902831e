package quorumvote

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/model/chain"
)

// onProposalValidated applies the commit rule for the validated proposal: the two-chain rule
// once epochs are active, the three-chain rule before. The last block of an epoch decides
// nothing, it is decided by the transition blocks that extend it.
func (t *Task) onProposalValidated(ctx context.Context, e events.QuorumProposalValidated) error {
	proposal := e.Proposal.Data
	view := proposal.View
	leaf := proposal.Leaf()
	if t.Consensus.IsLeafForLastBlock(leaf) {
		t.log.Debug().Uint64("view", view).Uint64("height", leaf.Height()).Msg("last block of epoch, not deciding")
		return nil
	}

	decidedUpgrade := t.UpgradeLock.Decided()
	var res store.LeafChainTraversalOutcome
	if t.UpgradeLock.EpochsEnabled(view) {
		res = t.Consensus.DecideFromProposal2(proposal, decidedUpgrade)
	} else {
		res = t.Consensus.DecideFromProposal(proposal, decidedUpgrade)
	}
	lockedBefore := t.Consensus.LockedView()
	if _, err := t.Consensus.Decide(res); err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			t.log.Debug().Err(err).Uint64("view", view).Msg("decide already applied")
			return nil
		}
		return fmt.Errorf("could not apply decide for view %d: %w", view, err)
	}
	if locked := t.Consensus.LockedView(); locked > lockedBefore {
		t.Publisher.Publish(events.LockedViewUpdated{View: locked})
	}
	if !res.Decided {
		return nil
	}

	leaves := make([]*chain.Leaf, 0, len(res.LeafViews))
	for _, info := range res.LeafViews {
		leaves = append(leaves, info.Leaf)
	}
	if err := t.Persister.AppendDecidedLeaves(ctx, res.NewDecidedView, leaves); err != nil {
		return fmt.Errorf("could not persist leaves decided in view %d: %w", view, err)
	}
	if cert := res.DecidedUpgradeCert; cert != nil && t.UpgradeLock.SetDecided(cert) {
		if err := t.Persister.UpdateDecidedUpgradeCertificate(ctx, cert); err != nil {
			return fmt.Errorf("could not persist decided upgrade certificate: %w", err)
		}
		t.log.Info().
			Str("new_version", cert.Data.NewVersion.String()).
			Uint64("new_version_first_view", cert.Data.NewVersionFirstView).
			Msg("upgrade certificate decided")
		t.Publisher.Publish(events.UpgradeDecided{Cert: cert})
	}
	if err := t.storeDrbResults(ctx, leaves); err != nil {
		return err
	}

	t.Publisher.Publish(events.LeavesDecided{Leaves: leaves, QC: res.NewDecideQC})
	t.Publisher.Publish(events.LastDecidedViewUpdated{View: res.NewDecidedView})
	return nil
}

// storeDrbResults records the DRB results that decided last blocks carry for the next epoch.
func (t *Task) storeDrbResults(ctx context.Context, leaves []*chain.Leaf) error {
	epochHeight := t.Consensus.EpochHeight()
	for _, leaf := range leaves {
		if leaf.NextDrbResult == nil || !leaf.WithEpoch {
			continue
		}
		next := leaf.Epoch(epochHeight).Next()
		result := *leaf.NextDrbResult
		err := t.Membership.AddDrbResult(next.Number, result)
		if errors.Is(err, committees.ErrDrbAlreadySet) {
			t.log.Warn().Uint64("epoch", next.Number).Msg("decided drb result differs from the known result")
			continue
		}
		if err != nil {
			return fmt.Errorf("could not add drb result for epoch %d: %w", next.Number, err)
		}
		if err := t.Persister.AddDrbResult(ctx, next.Number, result); err != nil {
			return fmt.Errorf("could not persist drb result for epoch %d: %w", next.Number, err)
		}
	}
	return nil
}
