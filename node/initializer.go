// Package node assembles a HotShot node: it restores the consensus state from storage, builds
// every consensus task on a shared event bus and bridges the bus to the network.
package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module"
)

// Initializer is the state a node starts from: genesis, or whatever it persisted before it
// stopped.
type Initializer struct {
	AnchorLeaf      *chain.Leaf
	AnchorState     hotshot.ValidatedState
	HighQC          *chain.QuorumCertificate
	NextEpochHighQC *chain.NextEpochQuorumCertificate
	// StartView is the view the node enters first.
	StartView uint64
	// StartEpoch is the epoch of StartView, known once Restore ran.
	StartEpoch chain.Epoch
	// LastActionedView is the last view the node voted or proposed in. The node never acts
	// in that view again.
	LastActionedView   uint64
	SavedProposals     map[uint64]*chain.Proposal[*chain.QuorumProposal]
	SavedVidShares     map[uint64]*chain.VidShare
	SavedDaProposals   map[uint64]*chain.Proposal[*chain.DaProposal]
	DecidedUpgradeCert *chain.UpgradeCertificate
	StateCert          *chain.LightClientStateUpdateCertificate
	DrbResults         map[uint64]chain.DrbResult
}

// FromGenesis returns the initializer of a fresh chain with the given genesis header.
func FromGenesis(instance hotshot.InstanceState, header chain.Header) *Initializer {
	genesis := chain.GenesisLeaf(header, chain.EmptyPayload())
	return &Initializer{
		AnchorLeaf:       genesis,
		AnchorState:      instance.StateFromHeader(header),
		HighQC:           chain.GenesisQuorumCertificate(genesis, chain.NoEpoch),
		StartView:        genesis.View + 1,
		SavedProposals:   make(map[uint64]*chain.Proposal[*chain.QuorumProposal]),
		SavedVidShares:   make(map[uint64]*chain.VidShare),
		SavedDaProposals: make(map[uint64]*chain.Proposal[*chain.DaProposal]),
		DrbResults:       make(map[uint64]chain.DrbResult),
	}
}

// Load restores the initializer from the persister. Without a persisted decided leaf the node
// starts from genesis.
func Load(ctx context.Context, log zerolog.Logger, persister hotshot.Persister, instance hotshot.InstanceState, genesis chain.Header) (*Initializer, error) {
	state, err := persister.LoadConsensusState(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load consensus state: %w", err)
	}
	if state == nil {
		log.Info().Msg("no persisted consensus state, starting from genesis")
		return FromGenesis(instance, genesis), nil
	}

	anchor := state.AnchorLeaf
	highQC := state.HighQC
	if highQC == nil || highQC.View < anchor.View {
		// the anchor was decided, so some QC certifies it; the stored one may lag behind
		highQC = &chain.QuorumCertificate{
			View: anchor.View,
			Data: chain.QuorumData{
				LeafCommitment: anchor.Commit(),
				Epoch:          anchor.Epoch(instance.EpochHeight()),
				BlockNumber:    anchor.Height(),
			},
		}
	}
	initializer := &Initializer{
		AnchorLeaf:         anchor,
		AnchorState:        instance.StateFromHeader(anchor.Header),
		HighQC:             highQC,
		NextEpochHighQC:    state.NextEpochHighQC,
		LastActionedView:   state.LastActionedView,
		SavedProposals:     state.Proposals,
		SavedVidShares:     state.VidShares,
		SavedDaProposals:   state.SavedDaProposalData,
		DecidedUpgradeCert: state.DecidedUpgradeCert,
		StateCert:          state.StateCert,
		DrbResults:         state.DrbResults,
	}
	initializer.StartView = max(highQC.View+1, state.LastActionedView+1, anchor.View+1)
	if initializer.SavedProposals == nil {
		initializer.SavedProposals = make(map[uint64]*chain.Proposal[*chain.QuorumProposal])
	}
	if initializer.SavedVidShares == nil {
		initializer.SavedVidShares = make(map[uint64]*chain.VidShare)
	}
	if initializer.SavedDaProposals == nil {
		initializer.SavedDaProposals = make(map[uint64]*chain.Proposal[*chain.DaProposal])
	}
	if initializer.DrbResults == nil {
		initializer.DrbResults = make(map[uint64]chain.DrbResult)
	}
	log.Info().
		Uint64("anchor_view", anchor.View).
		Uint64("anchor_height", anchor.Height()).
		Uint64("high_qc_view", highQC.View).
		Uint64("start_view", initializer.StartView).
		Int("proposals", len(initializer.SavedProposals)).
		Int("vid_shares", len(initializer.SavedVidShares)).
		Bool("upgrade_decided", initializer.DecidedUpgradeCert != nil).
		Msg("restored consensus state")
	return initializer, nil
}

// NewConsensus builds the consensus state store rooted at the anchor and fills it with the
// restored proposals, shares and payloads.
func (i *Initializer) NewConsensus(log zerolog.Logger, metrics module.HotShotMetrics, epochHeight uint64) (*store.Consensus, error) {
	consensus := store.New(log, metrics, epochHeight, store.Anchor{
		Leaf:   i.AnchorLeaf,
		State:  i.AnchorState,
		HighQC: i.HighQC,
	})
	if i.NextEpochHighQC != nil {
		if err := consensus.UpdateNextEpochHighQC(i.NextEpochHighQC); err != nil {
			return nil, fmt.Errorf("could not restore next epoch high qc: %w", err)
		}
	}
	if i.StateCert != nil {
		if err := consensus.UpdateStateCert(i.StateCert); err != nil {
			return nil, fmt.Errorf("could not restore state certificate: %w", err)
		}
	}
	if i.LastActionedView > i.AnchorLeaf.View {
		if err := consensus.UpdateLastActionedView(i.LastActionedView); err != nil {
			return nil, fmt.Errorf("could not restore last actioned view: %w", err)
		}
	}
	for _, proposal := range i.SavedProposals {
		if proposal.Data.View <= i.AnchorLeaf.View {
			continue
		}
		consensus.UpdateLastProposal(proposal)
		consensus.UpdateSavedLeaves(proposal.Data.Leaf())
	}
	for _, share := range i.SavedVidShares {
		if share.View > i.AnchorLeaf.View {
			consensus.UpdateVidShares(share)
		}
	}
	for view, proposal := range i.SavedDaProposals {
		if view <= i.AnchorLeaf.View {
			continue
		}
		if err := restorePayload(consensus, i.SavedVidShares[view], proposal); err != nil {
			return nil, err
		}
	}
	return consensus, nil
}

func restorePayload(consensus *store.Consensus, share *chain.VidShare, proposal *chain.Proposal[*chain.DaProposal]) error {
	data := proposal.Data
	payload, err := chain.DecodePayload(data.EncodedTransactions)
	if err != nil {
		return fmt.Errorf("could not decode saved payload of view %d: %w", data.View, err)
	}
	saved := &store.SavedPayload{
		Payload:  payload,
		Encoded:  data.EncodedTransactions,
		Metadata: data.Metadata,
	}
	if share != nil {
		saved.PayloadCommitment = share.PayloadCommitment
	}
	if err := consensus.UpdateSavedPayloads(data.View, saved); err != nil {
		return fmt.Errorf("could not restore payload of view %d: %w", data.View, err)
	}
	return nil
}

// Restore seeds the upgrade lock and the membership with the restored upgrade and DRB results
// and determines the start epoch. firstEpoch is the epoch in which epochs were activated, if
// they are.
func (i *Initializer) Restore(ctx context.Context, lock *helpers.UpgradeLock, membership hotshot.Membership, firstEpoch *uint64) error {
	if i.DecidedUpgradeCert != nil {
		lock.SetDecided(i.DecidedUpgradeCert)
	}
	for epoch, result := range i.DrbResults {
		if err := membership.AddDrbResult(epoch, result); err != nil {
			return fmt.Errorf("could not restore drb result of epoch %d: %w", epoch, err)
		}
	}
	if firstEpoch != nil {
		membership.SetFirstEpoch(*firstEpoch, chain.InitialDrbResult)
	}
	i.StartEpoch = helpers.EpochAfterQC(lock, i.HighQC, membership.EpochHeight())
	if !i.AnchorLeaf.WithEpoch {
		return nil
	}
	epoch := chain.EpochFromBlockNumber(i.AnchorLeaf.Height(), membership.EpochHeight())
	for _, e := range []uint64{epoch, epoch + 1} {
		if err := membership.AddEpochRoot(ctx, e, i.AnchorLeaf.Header); err != nil {
			return fmt.Errorf("could not restore stake table of epoch %d: %w", e, err)
		}
	}
	return nil
}
