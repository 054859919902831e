package store

import (
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/model/chain"
)

// LeafChainTraversalOutcome is the result of applying a commit rule to a new proposal.
type LeafChainTraversalOutcome struct {
	// LockedUpdated is set if NewLockedView carries a new locked view.
	LockedUpdated bool
	NewLockedView uint64
	// Decided is set if the traversal reached a new decide.
	Decided        bool
	NewDecidedView uint64
	// NewDecideQC certifies the decided leaf.
	NewDecideQC *chain.QuorumCertificate
	// LeafViews holds the newly decided leaves, newest first, down to (excluding) the previous anchor.
	LeafViews []LeafInfo
	// IncludedTxns holds the commitments of the transactions in the decided payloads.
	IncludedTxns map[chain.Commitment]struct{}
	// DecidedUpgradeCert is a newly decided upgrade certificate, if any.
	DecidedUpgradeCert *chain.UpgradeCertificate
}

// Terminator bounds a leaf traversal.
type Terminator struct {
	View      uint64
	Inclusive bool
}

// VisitLeafAncestors walks the leaf chain from the leaf of startView through parent links until fn
// returns false or the terminator is reached. With okWhenFinished a missing ancestor ends the
// walk without error.
// Expected error returns during normal operations:
//   - model.MissingLeafError if a leaf on the walk is not known and okWhenFinished is false
func (c *Consensus) VisitLeafAncestors(startView uint64, terminator Terminator, okWhenFinished bool, fn func(LeafInfo) bool) error {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.visitLeafAncestors(startView, terminator, okWhenFinished, fn)
}

func (c *Consensus) visitLeafAncestors(startView uint64, terminator Terminator, okWhenFinished bool, fn func(LeafInfo) bool) error {
	entry, ok := c.validatedStateMap[startView]
	if !ok || entry.Inner.Kind != chain.ViewLeaf {
		if okWhenFinished {
			return nil
		}
		return model.MissingLeafError{View: startView}
	}
	leaf, ok := c.savedLeaves[entry.Inner.LeafCommitment]
	if !ok {
		if okWhenFinished {
			return nil
		}
		return model.MissingLeafError{View: startView, Commitment: entry.Inner.LeafCommitment}
	}
	info := LeafInfo{Leaf: leaf, State: entry.State, Delta: entry.Delta}
	for {
		if info.Leaf.View < terminator.View || (!terminator.Inclusive && info.Leaf.View == terminator.View) {
			return nil
		}
		if !fn(info) {
			return nil
		}
		if info.Leaf.View == terminator.View {
			return nil
		}
		parent, ok := c.parentLeafInfo(info.Leaf)
		if !ok {
			if okWhenFinished {
				return nil
			}
			commitment := chain.ZeroCommitment
			var view uint64
			if info.Leaf.Justify != nil {
				commitment = info.Leaf.Justify.Data.LeafCommitment
				view = info.Leaf.Justify.View
			}
			return model.MissingLeafError{View: view, Commitment: commitment}
		}
		info = parent
	}
}

// DecideFromProposal applies the three-chain commit rule used before epochs are active: walking
// back from the proposal's parent along leaves of consecutive views, the second leaf becomes
// locked and the third is decided together with all its undecided ancestors.
func (c *Consensus) DecideFromProposal(proposal *chain.QuorumProposal, decidedUpgrade *chain.UpgradeCertificate) LeafChainTraversalOutcome {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var res LeafChainTraversalOutcome
	if proposal.Justify == nil {
		return res
	}
	oldAnchorView := c.lastDecidedView
	lastViewVisited := proposal.View
	chainLength := 0
	err := c.visitLeafAncestors(proposal.Justify.View, Terminator{View: oldAnchorView}, true, func(info LeafInfo) bool {
		if !res.Decided {
			if lastViewVisited != info.Leaf.View+1 {
				return false
			}
			lastViewVisited = info.Leaf.View
			chainLength++
			switch chainLength {
			case 2:
				res.LockedUpdated = true
				res.NewLockedView = info.Leaf.View
				res.NewDecideQC = info.Leaf.Justify
			case 3:
				res.Decided = true
				res.NewDecidedView = info.Leaf.View
			}
			if !res.Decided {
				return true
			}
		}
		c.collectDecided(&res, info, decidedUpgrade)
		return true
	})
	if err != nil {
		c.log.Debug().Err(err).Uint64("view", proposal.View).Msg("leaf chain traversal ended early")
	}
	if !res.Decided {
		res.NewDecideQC = nil
	}
	return res
}

// DecideFromProposal2 applies the two-chain commit rule used once epochs are active: the leaf
// certified by the proposal's QC becomes locked, and its parent is decided if the two leaves are
// of consecutive views.
func (c *Consensus) DecideFromProposal2(proposal *chain.QuorumProposal, decidedUpgrade *chain.UpgradeCertificate) LeafChainTraversalOutcome {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var res LeafChainTraversalOutcome
	if proposal.Justify == nil {
		return res
	}
	res.LockedUpdated = true
	res.NewLockedView = proposal.Justify.View

	parent, ok := c.parentLeafInfo(proposal.Leaf())
	if !ok {
		return res
	}
	grandParent, ok := c.parentLeafInfo(parent.Leaf)
	if !ok || grandParent.Leaf.View+1 != parent.Leaf.View {
		return res
	}
	if grandParent.Leaf.View <= c.lastDecidedView {
		return res
	}
	res.Decided = true
	res.NewDecidedView = grandParent.Leaf.View
	res.NewDecideQC = parent.Leaf.Justify

	current, ok := grandParent, true
	for ok && current.Leaf.View > c.lastDecidedView {
		c.collectDecided(&res, current, decidedUpgrade)
		current, ok = c.parentLeafInfo(current.Leaf)
	}
	return res
}

// collectDecided adds a decided leaf to the outcome. The caller must hold the lock.
func (c *Consensus) collectDecided(res *LeafChainTraversalOutcome, info LeafInfo, decidedUpgrade *chain.UpgradeCertificate) {
	if cert := info.Leaf.UpgradeCertificate; cert != nil && (decidedUpgrade == nil || cert.Commitment() != decidedUpgrade.Commitment()) {
		if cert.Data.DecideBy < res.NewDecidedView {
			c.log.Warn().
				Uint64("decide_by", cert.Data.DecideBy).
				Uint64("decided_view", res.NewDecidedView).
				Msg("upgrade certificate was not decided in time, ignoring it")
		} else if res.DecidedUpgradeCert == nil {
			res.DecidedUpgradeCert = cert
		}
	}

	leaf := info.Leaf
	if saved, ok := c.savedPayloads[leaf.View]; ok && leaf.Payload == nil {
		filled := *leaf
		if err := filled.FillPayload(saved.Payload, saved.PayloadCommitment); err == nil {
			leaf = &filled
		} else {
			c.log.Warn().Err(err).Uint64("view", leaf.View).Msg("saved payload does not match decided leaf")
		}
	}
	if leaf.Payload != nil {
		if res.IncludedTxns == nil {
			res.IncludedTxns = make(map[chain.Commitment]struct{})
		}
		for _, tx := range leaf.Payload.Transactions {
			res.IncludedTxns[chain.CommitmentFromBytes(tx)] = struct{}{}
		}
	}
	res.LeafViews = append(res.LeafViews, LeafInfo{Leaf: leaf, State: info.State, Delta: info.Delta})
}

// Decide applies the outcome of a leaf chain traversal: it moves the locked and decided views
// forward and garbage-collects everything below the new anchor. It returns the previous anchor view.
func (c *Consensus) Decide(res LeafChainTraversalOutcome) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	oldAnchorView := c.lastDecidedView
	if res.LockedUpdated && res.NewLockedView > c.lockedView {
		c.lockedView = res.NewLockedView
	}
	if !res.Decided {
		return oldAnchorView, nil
	}
	if res.NewDecidedView <= c.lastDecidedView {
		return oldAnchorView, fmt.Errorf("decided view %d, last decided %d: %w", res.NewDecidedView, c.lastDecidedView, ErrStaleUpdate)
	}
	if _, ok := c.leafForView(res.NewDecidedView); !ok {
		return oldAnchorView, fmt.Errorf("decided view %d: %w", res.NewDecidedView, ErrLeafNotFound)
	}
	c.lastDecidedView = res.NewDecidedView
	if c.lockedView < c.lastDecidedView {
		c.lockedView = c.lastDecidedView
	}
	c.collectGarbage(oldAnchorView, res.NewDecidedView)

	c.metrics.SetDecidedView(res.NewDecidedView)
	c.metrics.LeavesDecided(len(res.LeafViews))
	c.log.Info().
		Uint64("decided_view", res.NewDecidedView).
		Int("leaves", len(res.LeafViews)).
		Msg("leaves decided")
	return oldAnchorView, nil
}

// IsLeafForLastBlock returns true if the leaf is the last block of its epoch.
func (c *Consensus) IsLeafForLastBlock(leaf *chain.Leaf) bool {
	return leaf.WithEpoch && chain.IsLastBlock(leaf.Height(), c.epochHeight)
}

// IsLeafExtended returns true if the leaf is an epoch-transition block that extends a previous
// transition block, so it repeats the last block instead of advancing the chain.
func (c *Consensus) IsLeafExtended(leaf *chain.Leaf) bool {
	if !leaf.WithEpoch || !chain.IsEpochTransition(leaf.Height(), c.epochHeight) {
		return false
	}
	parent, ok := c.ParentLeafInfo(leaf)
	if !ok {
		return false
	}
	return parent.Leaf.Height() == leaf.Height()
}

// IsHighQCForLastBlock returns true if the high QC certifies the last block of an epoch.
func (c *Consensus) IsHighQCForLastBlock() bool {
	qc := c.HighQC()
	if qc == nil || !qc.Data.Epoch.Valid {
		return false
	}
	return chain.IsLastBlock(qc.Data.BlockNumber, c.epochHeight)
}

// IsHighQCForEpochTransition returns true if the high QC certifies a block in the transition
// window at the end of an epoch.
func (c *Consensus) IsHighQCForEpochTransition() bool {
	qc := c.HighQC()
	if qc == nil || !qc.Data.Epoch.Valid {
		return false
	}
	return chain.IsEpochTransition(qc.Data.BlockNumber, c.epochHeight)
}

// CheckEqc returns true if the proposed leaf and its parent are the same last block of an epoch,
// certified by the extended QC pair.
func (c *Consensus) CheckEqc(proposed, parent *chain.Leaf) bool {
	if parent.View+1 != proposed.View {
		return false
	}
	return c.IsLeafForLastBlock(parent) && parent.Height() == proposed.Height()
}
