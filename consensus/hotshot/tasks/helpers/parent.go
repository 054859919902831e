package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/model/chain"
)

// DefaultFetchTimeout bounds a single proposal request to peers.
const DefaultFetchTimeout = 2 * time.Second

// LeafResolver looks up leaves together with their validated state. Leaves that are not
// known locally are requested from peers, checked against the leader's signature and added
// to the consensus store.
type LeafResolver struct {
	log        zerolog.Logger
	consensus  *store.Consensus
	network    hotshot.Network
	membership hotshot.Membership
	verifier   *verification.Verifier
	instance   hotshot.InstanceState
	timeout    time.Duration
}

func NewLeafResolver(
	log zerolog.Logger,
	consensus *store.Consensus,
	network hotshot.Network,
	membership hotshot.Membership,
	verifier *verification.Verifier,
	instance hotshot.InstanceState,
) *LeafResolver {
	return &LeafResolver{
		log:        log.With().Str("component", "leaf_resolver").Logger(),
		consensus:  consensus,
		network:    network,
		membership: membership,
		verifier:   verifier,
		instance:   instance,
		timeout:    DefaultFetchTimeout,
	}
}

// Parent returns the parent of the leaf.
// Expected errors during normal operations:
//   - model.MissingLeafError if the parent is neither known locally nor available from peers
func (r *LeafResolver) Parent(ctx context.Context, leaf *chain.Leaf) (store.LeafInfo, error) {
	if leaf.Justify == nil {
		return store.LeafInfo{}, model.MissingLeafError{View: leaf.View}
	}
	return r.Resolve(ctx, leaf.Justify.View, leaf.Justify.Data.LeafCommitment)
}

// Resolve returns the leaf of the view with the given commitment.
// Expected errors during normal operations:
//   - model.MissingLeafError if the leaf is neither known locally nor available from peers
func (r *LeafResolver) Resolve(ctx context.Context, view uint64, commitment chain.Commitment) (store.LeafInfo, error) {
	if info, ok := r.local(view, commitment); ok {
		return info, nil
	}
	return r.fetch(ctx, view, commitment)
}

func (r *LeafResolver) local(view uint64, commitment chain.Commitment) (store.LeafInfo, bool) {
	entry, ok := r.consensus.ValidatedView(view)
	if !ok || entry.Inner.Kind != chain.ViewLeaf || entry.Inner.LeafCommitment != commitment {
		return store.LeafInfo{}, false
	}
	leaf, ok := r.consensus.Leaf(commitment)
	if !ok || entry.State == nil {
		return store.LeafInfo{}, false
	}
	return store.LeafInfo{Leaf: leaf, State: entry.State, Delta: entry.Delta}, true
}

func (r *LeafResolver) fetch(ctx context.Context, view uint64, commitment chain.Commitment) (store.LeafInfo, error) {
	missing := model.MissingLeafError{View: view, Commitment: commitment}
	if r.network == nil {
		return store.LeafInfo{}, missing
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	proposal, err := r.network.RequestProposal(ctx, view, commitment)
	if err != nil {
		r.log.Debug().Err(err).Uint64("view", view).Msg("proposal request failed")
		return store.LeafInfo{}, missing
	}
	if err := r.verifyFetched(proposal, view, commitment); err != nil {
		r.log.Warn().Err(err).Uint64("view", view).Msg("peer returned invalid proposal")
		return store.LeafInfo{}, missing
	}

	leaf := proposal.Data.Leaf()
	state := r.instance.StateFromHeader(leaf.Header)
	err = r.consensus.UpdateLeaf(leaf, state, nil)
	if err != nil && !errors.Is(err, store.ErrViewOverride) {
		return store.LeafInfo{}, fmt.Errorf("could not store fetched leaf of view %d: %w", view, err)
	}
	r.consensus.UpdateLastProposal(proposal)
	r.log.Debug().Uint64("view", view).Msg("fetched missing leaf from peers")
	if info, ok := r.local(view, commitment); ok {
		return info, nil
	}
	return store.LeafInfo{Leaf: leaf, State: state}, nil
}

func (r *LeafResolver) verifyFetched(proposal *chain.Proposal[*chain.QuorumProposal], view uint64, commitment chain.Commitment) error {
	if proposal == nil || proposal.Data == nil {
		return fmt.Errorf("empty response")
	}
	if proposal.Data.View != view {
		return fmt.Errorf("proposal is for view %d", proposal.Data.View)
	}
	if proposal.Data.Commit() != commitment {
		return fmt.Errorf("leaf commitment %v does not match requested %v", proposal.Data.Commit(), commitment)
	}
	epoch := proposal.Data.Epoch
	leader, err := r.membership.Leader(view, epoch)
	if err != nil {
		return fmt.Errorf("could not determine leader: %w", err)
	}
	table, err := r.membership.StakeTable(epoch)
	if err != nil {
		return fmt.Errorf("could not read stake table: %w", err)
	}
	return verification.VerifyProposal(r.verifier, table, leader, proposal)
}
