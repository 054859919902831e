package store

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/module"
	"github.com/hotshot-go/hotshot/model/chain"
)

// View is the entry of the validated state map for one view.
type View struct {
	Inner chain.ViewInner
	// State and Delta are only set for leaf views whose header was applied.
	State hotshot.ValidatedState
	Delta hotshot.StateDelta
}

// SavedPayload is a DA payload together with its metadata.
type SavedPayload struct {
	Payload           *chain.Payload
	Encoded           []byte
	Metadata          []byte
	PayloadCommitment chain.Commitment
}

// LeafInfo is a leaf with its state, as returned by traversals.
type LeafInfo struct {
	Leaf  *chain.Leaf
	State hotshot.ValidatedState
	Delta hotshot.StateDelta
}

// Consensus is the shared consensus state of a node: the per-view validated state map, saved
// leaves and payloads, certificate pointers and the locked/decided views.
//
// All methods are concurrency safe. Every method holds the lock for its own duration only;
// operations that must observe or mutate several fields atomically are provided as single methods
// (UpdateLeaf, Decide, CollectGarbage).
type Consensus struct {
	log         zerolog.Logger
	metrics     module.HotShotMetrics
	epochHeight uint64

	lock              sync.RWMutex
	validatedStateMap map[uint64]View
	vidShares         map[uint64]map[chain.NodeID]*chain.VidShare
	savedDaCerts      map[uint64]*chain.DaCertificate
	lastProposals     map[uint64]*chain.Proposal[*chain.QuorumProposal]
	savedLeaves       map[chain.Commitment]*chain.Leaf
	savedPayloads     map[uint64]*SavedPayload
	curView           uint64
	curEpoch          chain.Epoch
	lastActionedView  uint64
	lastProposedView  uint64
	lockedView        uint64
	lastDecidedView   uint64
	highQC            *chain.QuorumCertificate
	nextEpochHighQC   *chain.NextEpochQuorumCertificate
	transitionQC      chain.TransitionQCPair
	stateCert         *chain.LightClientStateUpdateCertificate
	highestBlock      uint64
}

// Anchor is the starting point of the consensus state: the last decided leaf and its state.
type Anchor struct {
	Leaf  *chain.Leaf
	State hotshot.ValidatedState
	// HighQC must certify the anchor leaf or one of its descendants.
	HighQC *chain.QuorumCertificate
}

// New creates the consensus state rooted at the given anchor.
func New(log zerolog.Logger, metrics module.HotShotMetrics, epochHeight uint64, anchor Anchor) *Consensus {
	c := &Consensus{
		log:               log.With().Str("component", "consensus_store").Logger(),
		metrics:           metrics,
		epochHeight:       epochHeight,
		validatedStateMap: make(map[uint64]View),
		vidShares:         make(map[uint64]map[chain.NodeID]*chain.VidShare),
		savedDaCerts:      make(map[uint64]*chain.DaCertificate),
		lastProposals:     make(map[uint64]*chain.Proposal[*chain.QuorumProposal]),
		savedLeaves:       make(map[chain.Commitment]*chain.Leaf),
		savedPayloads:     make(map[uint64]*SavedPayload),
		curView:           anchor.Leaf.View,
		lastActionedView:  anchor.Leaf.View,
		lockedView:        anchor.Leaf.View,
		lastDecidedView:   anchor.Leaf.View,
		highQC:            anchor.HighQC,
		highestBlock:      anchor.Leaf.Height(),
	}
	if anchor.Leaf.WithEpoch {
		c.curEpoch = anchor.Leaf.Epoch(epochHeight)
	}
	commitment := anchor.Leaf.Commit()
	c.validatedStateMap[anchor.Leaf.View] = View{
		Inner: chain.ViewInner{
			Kind:              chain.ViewLeaf,
			LeafCommitment:    commitment,
			PayloadCommitment: anchor.Leaf.PayloadCommitment(),
			Epoch:             c.curEpoch,
		},
		State: anchor.State,
	}
	c.savedLeaves[commitment] = anchor.Leaf
	return c
}

// EpochHeight returns the number of blocks per epoch; zero when epochs are disabled.
func (c *Consensus) EpochHeight() uint64 {
	return c.epochHeight
}

func (c *Consensus) CurView() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.curView
}

func (c *Consensus) CurEpoch() chain.Epoch {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.curEpoch
}

// UpdateView advances the current view. Returns ErrStaleUpdate unless view is strictly newer.
func (c *Consensus) UpdateView(view uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if view <= c.curView {
		return fmt.Errorf("view %d, current %d: %w", view, c.curView, ErrStaleUpdate)
	}
	c.curView = view
	c.metrics.SetCurView(view)
	return nil
}

// UpdateEpoch advances the current epoch. Returns ErrStaleUpdate unless epoch is strictly newer.
func (c *Consensus) UpdateEpoch(epoch chain.Epoch) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.curEpoch.Before(epoch) {
		return fmt.Errorf("epoch %v, current %v: %w", epoch, c.curEpoch, ErrStaleUpdate)
	}
	c.curEpoch = epoch
	c.metrics.SetCurEpoch(epoch.Number)
	return nil
}

func (c *Consensus) LastActionedView() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lastActionedView
}

// UpdateLastActionedView records the latest view this node voted or proposed in.
func (c *Consensus) UpdateLastActionedView(view uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if view <= c.lastActionedView {
		return fmt.Errorf("actioned view %d, last %d: %w", view, c.lastActionedView, ErrStaleUpdate)
	}
	c.lastActionedView = view
	return nil
}

func (c *Consensus) LastProposedView() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lastProposedView
}

func (c *Consensus) LockedView() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lockedView
}

func (c *Consensus) LastDecidedView() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lastDecidedView
}

func (c *Consensus) HighQC() *chain.QuorumCertificate {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.highQC
}

// UpdateHighQC replaces the high QC by a QC of a strictly higher view. Re-submitting the current
// high QC is a no-op.
func (c *Consensus) UpdateHighQC(qc *chain.QuorumCertificate) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.highQC != nil && qc.Commitment() == c.highQC.Commitment() {
		return nil
	}
	if c.highQC != nil && qc.View <= c.highQC.View {
		return fmt.Errorf("high qc view %d, current %d: %w", qc.View, c.highQC.View, ErrStaleUpdate)
	}
	c.highQC = qc
	c.metrics.SetHighQCView(qc.View)
	return nil
}

func (c *Consensus) NextEpochHighQC() *chain.NextEpochQuorumCertificate {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.nextEpochHighQC
}

// UpdateNextEpochHighQC replaces the next-epoch high QC by one of a strictly higher view.
func (c *Consensus) UpdateNextEpochHighQC(qc *chain.NextEpochQuorumCertificate) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.nextEpochHighQC != nil && qc.Commitment() == c.nextEpochHighQC.Commitment() {
		return nil
	}
	if c.nextEpochHighQC != nil && qc.View <= c.nextEpochHighQC.View {
		return fmt.Errorf("next epoch high qc view %d, current %d: %w", qc.View, c.nextEpochHighQC.View, ErrStaleUpdate)
	}
	c.nextEpochHighQC = qc
	return nil
}

func (c *Consensus) TransitionQC() chain.TransitionQCPair {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.transitionQC
}

// UpdateTransitionQC stores the pair if it is newer than the current one.
func (c *Consensus) UpdateTransitionQC(pair chain.TransitionQCPair) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.transitionQC.IsEmpty() && pair.View() <= c.transitionQC.View() {
		return fmt.Errorf("transition qc view %d, current %d: %w", pair.View(), c.transitionQC.View(), ErrStaleUpdate)
	}
	c.transitionQC = pair
	return nil
}

func (c *Consensus) StateCert() *chain.LightClientStateUpdateCertificate {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.stateCert
}

// UpdateStateCert stores the light client certificate if it is for a later epoch.
func (c *Consensus) UpdateStateCert(cert *chain.LightClientStateUpdateCertificate) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.stateCert != nil && !c.stateCert.Data.Epoch.Before(cert.Data.Epoch) {
		return fmt.Errorf("state cert epoch %v, current %v: %w", cert.Data.Epoch, c.stateCert.Data.Epoch, ErrStaleUpdate)
	}
	c.stateCert = cert
	return nil
}

// UpdateValidatedStateMap stores the view entry. A leaf entry is never replaced by a non-leaf
// entry, and a leaf entry with a state delta is never replaced by one without.
func (c *Consensus) UpdateValidatedStateMap(view uint64, entry View) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.updateValidatedStateMap(view, entry)
}

func (c *Consensus) updateValidatedStateMap(view uint64, entry View) error {
	if existing, ok := c.validatedStateMap[view]; ok && existing.Inner.Kind == chain.ViewLeaf {
		if entry.Inner.Kind != chain.ViewLeaf {
			return fmt.Errorf("%w: view %d with %v entry", ErrViewOverride, view, entry.Inner.Kind)
		}
		if existing.Delta != nil && entry.Delta == nil {
			return fmt.Errorf("%w: view %d would lose its state delta", ErrViewOverride, view)
		}
	}
	c.validatedStateMap[view] = entry
	return nil
}

// UpdateLeaf stores the leaf and its view entry in one step.
func (c *Consensus) UpdateLeaf(leaf *chain.Leaf, state hotshot.ValidatedState, delta hotshot.StateDelta) error {
	commitment := leaf.Commit()
	var epoch chain.Epoch
	if leaf.WithEpoch {
		epoch = leaf.Epoch(c.epochHeight)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	err := c.updateValidatedStateMap(leaf.View, View{
		Inner: chain.ViewInner{
			Kind:              chain.ViewLeaf,
			LeafCommitment:    commitment,
			PayloadCommitment: leaf.PayloadCommitment(),
			Epoch:             epoch,
		},
		State: state,
		Delta: delta,
	})
	if err != nil {
		return err
	}
	c.savedLeaves[commitment] = leaf
	if leaf.Height() > c.highestBlock {
		c.highestBlock = leaf.Height()
	}
	return nil
}

// ValidatedView returns the view entry.
func (c *Consensus) ValidatedView(view uint64) (View, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	entry, ok := c.validatedStateMap[view]
	return entry, ok
}

// State returns the validated state of the leaf of the view.
func (c *Consensus) State(view uint64) (hotshot.ValidatedState, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	entry, ok := c.validatedStateMap[view]
	if !ok || entry.State == nil {
		return nil, false
	}
	return entry.State, true
}

// UpdateSavedLeaves stores a leaf without touching the validated state map.
func (c *Consensus) UpdateSavedLeaves(leaf *chain.Leaf) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.savedLeaves[leaf.Commit()] = leaf
}

// Leaf returns the saved leaf with the given commitment.
func (c *Consensus) Leaf(commitment chain.Commitment) (*chain.Leaf, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	leaf, ok := c.savedLeaves[commitment]
	return leaf, ok
}

// LeafForView returns the leaf accepted for the view.
func (c *Consensus) LeafForView(view uint64) (*chain.Leaf, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.leafForView(view)
}

func (c *Consensus) leafForView(view uint64) (*chain.Leaf, bool) {
	entry, ok := c.validatedStateMap[view]
	if !ok || entry.Inner.Kind != chain.ViewLeaf {
		return nil, false
	}
	leaf, ok := c.savedLeaves[entry.Inner.LeafCommitment]
	return leaf, ok
}

// DecidedLeaf returns the leaf of the last decided view.
func (c *Consensus) DecidedLeaf() *chain.Leaf {
	c.lock.RLock()
	defer c.lock.RUnlock()
	leaf, ok := c.leafForView(c.lastDecidedView)
	if !ok {
		// the anchor is never garbage collected
		panic(fmt.Sprintf("decided leaf of view %d is missing", c.lastDecidedView))
	}
	return leaf
}

// DecidedState returns the validated state of the last decided leaf.
func (c *Consensus) DecidedState() hotshot.ValidatedState {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.validatedStateMap[c.lastDecidedView].State
}

// UpdateSavedPayloads stores the payload of the view. Saving the identical payload twice is a
// no-op; saving a different one returns ErrPayloadExists.
func (c *Consensus) UpdateSavedPayloads(view uint64, payload *SavedPayload) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if existing, ok := c.savedPayloads[view]; ok {
		if bytes.Equal(existing.Encoded, payload.Encoded) && bytes.Equal(existing.Metadata, payload.Metadata) {
			return nil
		}
		return fmt.Errorf("view %d: %w", view, ErrPayloadExists)
	}
	c.savedPayloads[view] = payload
	return nil
}

// SavedPayload returns the payload saved for the view.
func (c *Consensus) SavedPayload(view uint64) (*SavedPayload, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	payload, ok := c.savedPayloads[view]
	return payload, ok
}

// UpdateVidShares stores a VID share of the view.
func (c *Consensus) UpdateVidShares(share *chain.VidShare) {
	c.lock.Lock()
	defer c.lock.Unlock()
	shares, ok := c.vidShares[share.View]
	if !ok {
		shares = make(map[chain.NodeID]*chain.VidShare)
		c.vidShares[share.View] = shares
	}
	shares[share.Recipient] = share
}

// VidShare returns the share of the recipient for the view.
func (c *Consensus) VidShare(view uint64, recipient chain.NodeID) (*chain.VidShare, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	share, ok := c.vidShares[view][recipient]
	return share, ok
}

// UpdateDaCert stores the DA certificate of the view.
func (c *Consensus) UpdateDaCert(cert *chain.DaCertificate) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.savedDaCerts[cert.View] = cert
}

// DaCert returns the DA certificate of the view.
func (c *Consensus) DaCert(view uint64) (*chain.DaCertificate, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	cert, ok := c.savedDaCerts[view]
	return cert, ok
}

// UpdateLastProposal records the proposal and, for the local leader, the proposed view.
func (c *Consensus) UpdateLastProposal(proposal *chain.Proposal[*chain.QuorumProposal]) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastProposals[proposal.Data.View] = proposal
}

// UpdateLastProposedView records that this node proposed in the view.
func (c *Consensus) UpdateLastProposedView(view uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if view <= c.lastProposedView {
		return fmt.Errorf("proposed view %d, last %d: %w", view, c.lastProposedView, ErrStaleUpdate)
	}
	c.lastProposedView = view
	return nil
}

// LastProposal returns the proposal received for the view.
func (c *Consensus) LastProposal(view uint64) (*chain.Proposal[*chain.QuorumProposal], bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	proposal, ok := c.lastProposals[view]
	return proposal, ok
}

// Proposals returns all retained proposals.
func (c *Consensus) Proposals() map[uint64]*chain.Proposal[*chain.QuorumProposal] {
	c.lock.RLock()
	defer c.lock.RUnlock()
	proposals := make(map[uint64]*chain.Proposal[*chain.QuorumProposal], len(c.lastProposals))
	for view, proposal := range c.lastProposals {
		proposals[view] = proposal
	}
	return proposals
}

// HighestBlock returns the height of the highest leaf seen.
func (c *Consensus) HighestBlock() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.highestBlock
}

// ParentLeafInfo returns the parent of the leaf, resolved through the view entry of the leaf's
// justify QC.
func (c *Consensus) ParentLeafInfo(leaf *chain.Leaf) (LeafInfo, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.parentLeafInfo(leaf)
}

func (c *Consensus) parentLeafInfo(leaf *chain.Leaf) (LeafInfo, bool) {
	if leaf.Justify == nil {
		return LeafInfo{}, false
	}
	entry, ok := c.validatedStateMap[leaf.Justify.View]
	if !ok || entry.Inner.Kind != chain.ViewLeaf {
		return LeafInfo{}, false
	}
	parent, ok := c.savedLeaves[entry.Inner.LeafCommitment]
	if !ok || entry.Inner.LeafCommitment != leaf.Justify.Data.LeafCommitment {
		return LeafInfo{}, false
	}
	return LeafInfo{Leaf: parent, State: entry.State, Delta: entry.Delta}, true
}

// CollectGarbage drops all per-view data of views in [oldAnchorView, newAnchorView). The new
// anchor itself is retained.
func (c *Consensus) CollectGarbage(oldAnchorView, newAnchorView uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.collectGarbage(oldAnchorView, newAnchorView)
}

func (c *Consensus) collectGarbage(oldAnchorView, newAnchorView uint64) {
	for view := range c.validatedStateMap {
		if view >= oldAnchorView && view < newAnchorView {
			delete(c.validatedStateMap, view)
		}
	}
	for commitment, leaf := range c.savedLeaves {
		if leaf.View < newAnchorView {
			delete(c.savedLeaves, commitment)
		}
	}
	for view := range c.savedPayloads {
		if view < newAnchorView {
			delete(c.savedPayloads, view)
		}
	}
	for view := range c.vidShares {
		if view < newAnchorView {
			delete(c.vidShares, view)
		}
	}
	for view := range c.savedDaCerts {
		if view < newAnchorView {
			delete(c.savedDaCerts, view)
		}
	}
	for view := range c.lastProposals {
		if view < newAnchorView {
			delete(c.lastProposals, view)
		}
	}
	c.log.Debug().
		Uint64("old_anchor_view", oldAnchorView).
		Uint64("new_anchor_view", newAnchorView).
		Msg("collected garbage")
}
