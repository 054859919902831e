// Package upgrade implements the protocol upgrade task. Inside a configured window, leaders
// propose an upgrade to the node's target version, replicas vote for a matching proposal and
// the proposal's leader collects the votes into an upgrade certificate. The certificate is
// then carried by quorum proposals until it is decided.
package upgrade

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/consensus/hotshot/votecollector"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
)

const TaskName = "upgrade"

// ErrUpgraded is returned for upgrade messages after the node decided an upgrade.
var ErrUpgraded = errors.New("upgrade already decided")

// Task is the upgrade task of one node.
type Task struct {
	helpers.Dependencies
	log        zerolog.Logger
	config     Config
	tracker    helpers.ViewTracker
	collectors *votecollector.Collectors[chain.UpgradeProposalData]
	// views in which this node proposed or voted, pruned on view change
	proposed map[uint64]struct{}
	voted    map[uint64]struct{}
}

// New creates the upgrade task starting in the current view of the consensus store.
func New(deps helpers.Dependencies, config Config) *Task {
	log := deps.Log.With().Str("task", TaskName).Logger()
	view := deps.Consensus.CurView()
	return &Task{
		Dependencies: deps,
		log:          log,
		config:       config,
		tracker:      helpers.NewViewTracker(view, deps.Consensus.CurEpoch()),
		collectors:   votecollector.DefaultCollectors[chain.UpgradeProposalData](log, view, votecollector.UpgradeWeights(deps.Membership), deps.Verifier),
		proposed:     make(map[uint64]struct{}),
		voted:        make(map[uint64]struct{}),
	}
}

func (t *Task) Name() string { return TaskName }

// Handle processes one event.
func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.UpgradeProposalRecv:
		return t.onProposalRecv(e)
	case events.UpgradeVoteRecv:
		return t.onVoteRecv(e.Vote)
	case events.ViewChange:
		return t.onViewChange(e)
	case events.UpgradeDecided:
		return t.onUpgradeDecided(e.Cert)
	}
	return nil
}

// onProposalRecv votes for an upgrade proposal that matches the node's target version.
func (t *Task) onProposalRecv(e events.UpgradeProposalRecv) error {
	proposal := e.Proposal.Data
	data := proposal.Data
	view := proposal.View
	if t.UpgradeLock.Decided() != nil {
		return model.SkipError{Err: ErrUpgraded}
	}
	if cur := t.tracker.View(); view < cur {
		return model.NewSkipErrorf("upgrade proposal for view %d, current view %d: %w", view, cur, model.ErrStaleView)
	}
	if !t.config.canVote(view) {
		return model.NewSkipErrorf("upgrade proposal for view %d outside of the voting window", view)
	}
	versions := t.UpgradeLock.Versions()
	if data.OldVersion != versions.Base || data.NewVersion != versions.Upgrade || !bytes.Equal(data.NewVersionHash, versions.UpgradeHash[:]) {
		return model.NewSkipErrorf("upgrade proposal from %v to %v does not match the target upgrade from %v to %v",
			data.OldVersion, data.NewVersion, versions.Base, versions.Upgrade)
	}
	if data.DecideBy <= view || data.OldVersionLastView < data.DecideBy || data.NewVersionFirstView <= data.OldVersionLastView {
		return model.NewInvalidProposalErrorf(view, "upgrade scheduled out of order: decide by %d, last old view %d, first new view %d",
			data.DecideBy, data.OldVersionLastView, data.NewVersionFirstView)
	}

	leader, err := t.Membership.Leader(view, data.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine upgrade leader")
	}
	if e.Sender != leader {
		return fmt.Errorf("upgrade proposal for view %d from %v, expected %v: %w", view, e.Sender, leader, model.ErrWrongLeader)
	}
	table, err := t.Membership.StakeTable(data.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read stake table")
	}
	if err := verification.VerifyProposal(t.Verifier, table, leader, e.Proposal); err != nil {
		return model.NewInvalidProposalErrorf(view, "invalid upgrade proposal signature: %w", err)
	}
	if err := t.epochAligned(data); err != nil {
		return model.NewSkipErrorf("refusing upgrade proposal for view %d: %w", view, err)
	}

	if _, ok := t.voted[view]; ok {
		return model.NewSkipErrorf("already voted for an upgrade in view %d", view)
	}
	self := t.Signer.NodeID()
	if !t.Membership.HasStake(self, data.Epoch) {
		return model.NewSkipErrorf("node has no stake to vote for an upgrade in epoch %v", data.Epoch)
	}
	vote, err := verification.CreateVote(t.Signer, view, data)
	if err != nil {
		return fmt.Errorf("could not create upgrade vote: %w", err)
	}
	t.voted[view] = struct{}{}
	t.log.Info().
		Uint64("view", view).
		Str("new_version", data.NewVersion.String()).
		Uint64("new_version_first_view", data.NewVersionFirstView).
		Msg("voting for upgrade")
	t.Publisher.Publish(events.UpgradeVoteSend{Vote: vote})
	return nil
}

// onVoteRecv collects upgrade votes at the leader of the proposal's view.
func (t *Task) onVoteRecv(vote *chain.UpgradeVote) error {
	leader, err := t.Membership.Leader(vote.View, vote.Epoch())
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine upgrade leader")
	}
	if leader != t.Signer.NodeID() {
		return model.NewSkipErrorf("not the upgrade leader of view %d: %w", vote.View, model.ErrNotLeader)
	}
	cert, err := t.collectors.AddVote(vote)
	if err != nil {
		return t.voteError(vote, err)
	}
	if cert == nil {
		return nil
	}
	t.Metrics.CertificateFormed(metrics.KindUpgrade)
	t.log.Info().
		Uint64("view", cert.View).
		Int("signers", len(cert.Signers)).
		Uint64("decide_by", cert.Data.DecideBy).
		Msg("upgrade certificate formed")
	t.Publisher.Publish(events.UpgradeCertificateFormed{Cert: cert})
	return nil
}

func (t *Task) voteError(vote *chain.UpgradeVote, err error) error {
	switch {
	case errors.Is(err, votecollector.ErrStaleView):
		return model.SkipError{Err: err}
	case votecollector.IsDoubleVoteError(err):
		t.Metrics.VoteRejected(metrics.KindUpgrade, metrics.ReasonDoubleVote)
		return model.NewInvalidVoteErrorf(vote.View, vote.Signer, "%w", err)
	case model.IsInvalidVoteError(err):
		t.Metrics.VoteRejected(metrics.KindUpgrade, metrics.ReasonInvalidSignature)
		return err
	}
	return helpers.SkipIfNoStakeTable(err, "could not add upgrade vote")
}

// onViewChange proposes the upgrade if this node leads the view ProposeOffset views ahead and
// the proposing window is open.
func (t *Task) onViewChange(e events.ViewChange) error {
	if err := t.tracker.Update(e.View, e.Epoch); err != nil {
		return err
	}
	view, epoch := t.tracker.View(), t.tracker.Epoch()
	if view > 0 {
		t.collectors.PruneUpToView(view - 1)
		for v := range t.voted {
			if v < view-1 {
				delete(t.voted, v)
			}
		}
		for v := range t.proposed {
			if v < view-1 {
				delete(t.proposed, v)
			}
		}
	}
	if t.UpgradeLock.Decided() != nil || !t.config.canPropose(view) {
		return nil
	}

	proposalView := view + ProposeOffset
	leader, err := t.Membership.Leader(proposalView, epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine upgrade leader")
	}
	if leader != t.Signer.NodeID() {
		return nil
	}
	if _, ok := t.proposed[proposalView]; ok {
		return nil
	}
	versions := t.UpgradeLock.Versions()
	data := chain.UpgradeProposalData{
		OldVersion:          versions.Base,
		NewVersion:          versions.Upgrade,
		NewVersionHash:      append([]byte(nil), versions.UpgradeHash[:]...),
		OldVersionLastView:  view + BeginOffset,
		NewVersionFirstView: view + FinishOffset,
		DecideBy:            view + DecideByOffset,
		Epoch:               epoch,
	}
	if err := t.epochAligned(data); err != nil {
		return model.NewSkipErrorf("not proposing upgrade in view %d: %w", view, err)
	}
	proposal, err := verification.CreateProposal(t.Signer, &chain.UpgradeProposal{Data: data, View: proposalView})
	if err != nil {
		return fmt.Errorf("could not sign upgrade proposal: %w", err)
	}
	t.proposed[proposalView] = struct{}{}
	t.log.Info().
		Uint64("view", proposalView).
		Str("new_version", data.NewVersion.String()).
		Uint64("decide_by", data.DecideBy).
		Msg("proposing upgrade")
	t.Publisher.Publish(events.UpgradeProposalSend{Proposal: proposal, Sender: t.Signer.NodeID()})
	return nil
}

// epochAligned checks an upgrade that activates epochs: the chain must be in the epoch that is
// configured to be the first one, and the upgrade must finish inside that epoch.
func (t *Task) epochAligned(data chain.UpgradeProposalData) error {
	versions := t.UpgradeLock.Versions()
	if !data.NewVersion.AtLeast(versions.Epochs) || data.OldVersion.AtLeast(versions.Epochs) {
		return nil
	}
	epochHeight := t.Consensus.EpochHeight()
	if epochHeight == 0 {
		return fmt.Errorf("upgrade activates epochs but no epoch height is configured")
	}
	highQC := t.Consensus.HighQC()
	height := highQC.Data.BlockNumber
	current := chain.EpochFromBlockNumber(height, epochHeight)
	target := chain.EpochFromBlockNumber(t.config.EpochStartBlock, epochHeight)
	finish := current
	if data.NewVersionFirstView > highQC.View {
		// at most one block per view
		finish = chain.EpochFromBlockNumber(height+data.NewVersionFirstView-highQC.View, epochHeight)
	}
	if current != target || finish != target {
		return fmt.Errorf("upgrade runs from epoch %d to epoch %d, epochs start in epoch %d", current, finish, target)
	}
	return nil
}

// onUpgradeDecided activates epochs if the decided upgrade introduces them.
func (t *Task) onUpgradeDecided(cert *chain.UpgradeCertificate) error {
	versions := t.UpgradeLock.Versions()
	if !cert.Data.NewVersion.AtLeast(versions.Epochs) || cert.Data.OldVersion.AtLeast(versions.Epochs) {
		return nil
	}
	first := chain.EpochFromBlockNumber(t.config.EpochStartBlock, t.Consensus.EpochHeight())
	t.Membership.SetFirstEpoch(first, chain.InitialDrbResult)
	t.log.Info().
		Uint64("first_epoch", first).
		Uint64("new_version_first_view", cert.Data.NewVersionFirstView).
		Msg("upgrade into epochs decided")
	return nil
}
