package consensus

import (
	"context"
	"fmt"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/model/chain"
)

// onTimeout reacts to the expired timer of the current view: the node votes to leave the view
// and sends its high QC to the next leader. The timer restarts for the same view, so the vote
// is repeated until the view is left.
func (t *Task) onTimeout(ctx context.Context, e events.Timeout) error {
	view := t.Consensus.CurView()
	if e.View != view {
		return model.NewSkipErrorf("timer of view %d expired in view %d: %w", e.View, view, model.ErrStaleView)
	}
	epoch := t.Consensus.CurEpoch()
	t.Metrics.CountTimeout()
	t.timer.OnTimeout()
	t.startTimer(ctx, view)
	t.log.Warn().Uint64("view", view).Str("epoch", epoch.String()).Msg("view timed out")

	self := t.Signer.NodeID()
	if !t.Membership.HasStake(self, epoch) {
		return model.NewSkipErrorf("node has no stake to vote for a timeout in epoch %v", epoch)
	}
	vote, err := verification.CreateVote(t.Signer, view, chain.TimeoutData{View: view, Epoch: epoch})
	if err != nil {
		return fmt.Errorf("could not create timeout vote: %w", err)
	}
	t.Publisher.Publish(events.TimeoutVoteSend{Vote: vote})

	leader, err := t.Membership.Leader(view+1, epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine next leader")
	}
	highQC := t.Consensus.HighQC()
	send := events.HighQcSend{QC: highQC, View: view + 1, Leader: leader, Sender: self}
	if next := t.Consensus.NextEpochHighQC(); next != nil && next.View == highQC.View {
		send.NextEpochQC = next
	}
	t.Publisher.Publish(send)
	return nil
}
