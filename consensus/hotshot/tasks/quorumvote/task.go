// Package quorumvote implements the voter side of the quorum protocol. It validates quorum
// proposals, applies the commit rules to the leaf chain and votes once the proposal, the DA
// certificate and this node's VID share for a view are all available.
package quorumvote

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/model/chain"
)

const TaskName = "quorum_vote"

// pending holds what has arrived for a view that was not voted on yet.
type pending struct {
	proposal *chain.QuorumProposal
	parent   *chain.Leaf
	daCert   *chain.DaCertificate
	share    *chain.VidShare
}

func (p *pending) complete() bool {
	return p.proposal != nil && p.daCert != nil && p.share != nil
}

// Task is the quorum vote task of one node.
type Task struct {
	helpers.Dependencies
	log      zerolog.Logger
	tracker  helpers.ViewTracker
	resolver *helpers.LeafResolver
	pending  map[uint64]*pending
}

// New creates the quorum vote task starting in the current view of the consensus store.
func New(deps helpers.Dependencies) *Task {
	return &Task{
		Dependencies: deps,
		log:          deps.Log.With().Str("task", TaskName).Logger(),
		tracker:      helpers.NewViewTracker(deps.Consensus.CurView(), deps.Consensus.CurEpoch()),
		resolver:     deps.Resolver(),
		pending:      make(map[uint64]*pending),
	}
}

func (t *Task) Name() string { return TaskName }

func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QuorumProposalRecv:
		return t.onProposalRecv(ctx, e)
	case events.QuorumProposalValidated:
		if err := t.onProposalValidated(ctx, e); err != nil {
			return err
		}
		p := t.entry(e.Proposal.Data.View)
		p.proposal, p.parent = e.Proposal.Data, e.ParentLeaf
		return t.tryVote(ctx, e.Proposal.Data.View)
	case events.DaCertificateRecv:
		return t.onDaCertificateRecv(e)
	case events.DaCertificateValidated:
		t.entry(e.Cert.View).daCert = e.Cert
		return t.tryVote(ctx, e.Cert.View)
	case events.DacSend:
		// the DA leader's own certificate never comes back from the network
		t.entry(e.Cert.View).daCert = e.Cert
		return t.tryVote(ctx, e.Cert.View)
	case events.VidShareValidated:
		if e.Share.Recipient != t.Signer.NodeID() {
			return nil
		}
		t.entry(e.Share.View).share = e.Share
		return t.tryVote(ctx, e.Share.View)
	case events.ViewChange:
		return t.onViewChange(e)
	}
	return nil
}

func (t *Task) entry(view uint64) *pending {
	p, ok := t.pending[view]
	if !ok {
		p = &pending{}
		t.pending[view] = p
	}
	return p
}

func (t *Task) onDaCertificateRecv(e events.DaCertificateRecv) error {
	cert := e.Cert
	if cur := t.tracker.View(); cur > cert.View+1 {
		return model.NewSkipErrorf("da certificate for view %d, current view %d: %w", cert.View, cur, model.ErrStaleView)
	}
	if err := t.Verifier.VerifyDaCertificate(cert); err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not verify da certificate")
	}
	t.Consensus.UpdateDaCert(cert)
	t.Publisher.Publish(events.DaCertificateValidated{Cert: cert})
	return nil
}

// tryVote votes for the view once everything the vote depends on has arrived.
func (t *Task) tryVote(ctx context.Context, view uint64) error {
	p, ok := t.pending[view]
	if !ok || !p.complete() {
		return nil
	}
	delete(t.pending, view)
	return t.vote(ctx, p)
}

func (t *Task) onViewChange(e events.ViewChange) error {
	if err := t.tracker.Update(e.View, e.Epoch); err != nil {
		return err
	}
	for view := range t.pending {
		if view+1 < e.View {
			delete(t.pending, view)
		}
	}
	return nil
}
