// Package consensus implements the view-advancing core of a node. It aggregates quorum votes
// into QCs and timeout votes into timeout certificates, runs the view timer and moves the node
// into the next view whenever it learns that the current view ended.
package consensus

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/pacemaker/timeout"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/votecollector"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/component"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
)

const TaskName = "consensus"

// Config configures the consensus task.
type Config struct {
	Timeout timeout.Config
	// Handoff receives the light-client state certificates of decided epoch roots. Optional.
	Handoff hotshot.StateProverHandoff
}

// Task is the consensus task of one node.
type Task struct {
	helpers.Dependencies
	log     zerolog.Logger
	handoff hotshot.StateProverHandoff
	timer   *timeout.Controller

	quorum    *votecollector.Collectors[chain.QuorumData]
	nextEpoch *votecollector.Collectors[chain.NextEpochQuorumData]
	timeouts  *votecollector.Collectors[chain.TimeoutData]
	states    *stateCollectors

	// certificates of transition blocks waiting for their counterpart
	transitionQCs     map[uint64]*chain.QuorumCertificate
	transitionNextQCs map[uint64]*chain.NextEpochQuorumCertificate
}

// New creates the consensus task starting in the current view of the consensus store.
func New(deps helpers.Dependencies, config Config) *Task {
	log := deps.Log.With().Str("task", TaskName).Logger()
	view := deps.Consensus.CurView()
	weights := votecollector.QuorumWeights(deps.Membership)
	return &Task{
		Dependencies:      deps,
		log:               log,
		handoff:           config.Handoff,
		timer:             timeout.NewController(config.Timeout),
		quorum:            votecollector.DefaultCollectors[chain.QuorumData](log, view, weights, deps.Verifier),
		nextEpoch:         votecollector.DefaultCollectors[chain.NextEpochQuorumData](log, view, weights, deps.Verifier),
		timeouts:          votecollector.DefaultCollectors[chain.TimeoutData](log, view, weights, deps.Verifier),
		states:            newStateCollectors(),
		transitionQCs:     make(map[uint64]*chain.QuorumCertificate),
		transitionNextQCs: make(map[uint64]*chain.NextEpochQuorumCertificate),
	}
}

func (t *Task) Name() string { return TaskName }

// Workers returns the view timer loop, which turns expired timers into Timeout events.
func (t *Task) Workers() []component.ComponentWorker {
	return []component.ComponentWorker{t.runTimer}
}

func (t *Task) runTimer(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	t.startTimer(ctx, t.Consensus.CurView())
	ready()
	for {
		select {
		case <-ctx.Done():
			t.timer.Stop()
			return
		case view := <-t.timer.Channel():
			t.Publisher.Publish(events.Timeout{View: view, Epoch: t.Consensus.CurEpoch()})
		}
	}
}

func (t *Task) startTimer(ctx context.Context, view uint64) {
	info := t.timer.StartTimeout(ctx, view)
	t.Metrics.SetTimeout(info.Duration)
}

func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QuorumVoteRecv:
		return t.onQuorumVote(ctx, e.Vote)
	case events.EpochRootQuorumVoteRecv:
		return t.onEpochRootVote(ctx, e.Vote)
	case events.TimeoutVoteRecv:
		return t.onTimeoutVote(ctx, e.Vote)
	case events.Timeout:
		return t.onTimeout(ctx, e)
	case events.QuorumProposalValidated:
		return t.advance(ctx, e.Proposal.Data.View, e.Proposal.Data.Epoch)
	case events.QuorumVoteSend:
		return t.afterVote(ctx, e.Vote)
	case events.ExtendedQuorumVoteSend:
		return t.afterVote(ctx, e.Vote)
	case events.EpochRootQuorumVoteSend:
		return t.afterVote(ctx, e.Vote.Vote)
	case events.ViewSyncFinalizeCertificateRecv:
		if err := t.Verifier.VerifyViewSyncCertificate(e.Cert); err != nil {
			return helpers.SkipIfNoStakeTable(err, "could not verify view sync certificate")
		}
		return t.advance(ctx, e.Cert.View, e.Cert.Data.Epoch)
	case events.LeavesDecided:
		return t.onLeavesDecided(ctx, e)
	}
	return nil
}

// afterVote moves a replica into the next view once it voted.
func (t *Task) afterVote(ctx context.Context, vote *chain.QuorumVote) error {
	return t.advance(ctx, vote.View+1, t.epochAfter(vote.Data))
}

// epochAfter returns the epoch of the view that follows the certified block.
func (t *Task) epochAfter(data chain.QuorumData) chain.Epoch {
	return helpers.EpochAfterQC(t.UpgradeLock, &chain.QuorumCertificate{Data: data}, t.Consensus.EpochHeight())
}

// advance enters the view if it is newer than the current one. The view timer restarts and
// every task learns about the view through ViewChange.
func (t *Task) advance(ctx context.Context, view uint64, epoch chain.Epoch) error {
	if err := t.Consensus.UpdateView(view); err != nil {
		// the view was entered before
		return nil
	}
	if epoch.Valid {
		if err := t.Consensus.UpdateEpoch(epoch); err == nil {
			t.log.Info().Uint64("view", view).Str("epoch", epoch.String()).Msg("entered new epoch")
		}
	}
	epoch = t.Consensus.CurEpoch()
	t.startTimer(ctx, view)
	if view > 0 {
		t.quorum.PruneUpToView(view - 1)
		t.nextEpoch.PruneUpToView(view - 1)
		t.timeouts.PruneUpToView(view - 1)
		t.states.pruneUpToView(view - 1)
		t.pruneTransitionQCs(view - 1)
	}
	t.log.Debug().Uint64("view", view).Str("epoch", epoch.String()).Msg("view change")
	t.Publisher.Publish(events.ViewChange{View: view, Epoch: epoch})
	return nil
}

func (t *Task) pruneTransitionQCs(lowestRetainedView uint64) {
	for view := range t.transitionQCs {
		if view < lowestRetainedView {
			delete(t.transitionQCs, view)
		}
	}
	for view := range t.transitionNextQCs {
		if view < lowestRetainedView {
			delete(t.transitionNextQCs, view)
		}
	}
}

// onLeavesDecided hands the state certificate of a decided epoch root to the light-client
// prover together with the stake table of the epoch it attests to.
func (t *Task) onLeavesDecided(ctx context.Context, e events.LeavesDecided) error {
	if t.handoff == nil {
		return nil
	}
	epochHeight := t.Consensus.EpochHeight()
	cert := t.Consensus.StateCert()
	if cert == nil {
		return nil
	}
	for _, leaf := range e.Leaves {
		if !leaf.WithEpoch || !chain.IsEpochRoot(leaf.Height(), epochHeight) || cert.Data.State.BlockHeight != leaf.Height() {
			continue
		}
		table, err := t.Membership.StakeTable(cert.Data.Epoch.Next())
		if err != nil {
			return helpers.SkipIfNoStakeTable(err, "could not read stake table for state handoff")
		}
		if err := t.handoff.HandOff(ctx, cert, table); err != nil {
			return fmt.Errorf("could not hand off state certificate of epoch %v: %w", cert.Data.Epoch, err)
		}
		t.log.Info().Str("epoch", cert.Data.Epoch.String()).Uint64("height", leaf.Height()).Msg("state certificate handed off")
	}
	return nil
}

// updateHighQC stores and persists the QC if it is the highest known.
func (t *Task) updateHighQC(ctx context.Context, qc *chain.QuorumCertificate) error {
	err := t.Consensus.UpdateHighQC(qc)
	if errors.Is(err, store.ErrStaleUpdate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not update high qc: %w", err)
	}
	if err := t.Persister.UpdateHighQC(ctx, qc); err != nil {
		return fmt.Errorf("could not persist high qc: %w", err)
	}
	return nil
}

func (t *Task) updateNextEpochHighQC(ctx context.Context, qc *chain.NextEpochQuorumCertificate) error {
	err := t.Consensus.UpdateNextEpochHighQC(qc)
	if errors.Is(err, store.ErrStaleUpdate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not update next epoch high qc: %w", err)
	}
	if err := t.Persister.UpdateNextEpochHighQC(ctx, qc); err != nil {
		return fmt.Errorf("could not persist next epoch high qc: %w", err)
	}
	return nil
}
