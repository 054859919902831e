package quorumproposal

import (
	"context"
	"time"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/model/chain"
)

// highQCCollector gathers the high QCs other nodes send to the leader of a view after a
// timeout. Each sender counts once.
type highQCCollector struct {
	senders map[chain.NodeID]struct{}
	stake   uint64
	qc      *chain.QuorumCertificate
	nextQC  *chain.NextEpochQuorumCertificate
}

func newHighQCCollector() *highQCCollector {
	return &highQCCollector{senders: make(map[chain.NodeID]struct{})}
}

func (c *highQCCollector) add(sender chain.NodeID, stake uint64, qc *chain.QuorumCertificate, nextQC *chain.NextEpochQuorumCertificate) {
	if _, ok := c.senders[sender]; ok {
		return
	}
	c.senders[sender] = struct{}{}
	c.stake += stake
	if c.qc == nil || qc.View > c.qc.View {
		c.qc, c.nextQC = qc, nextQC
	}
}

// collected returns the high QCs gathered for the view.
func (t *Task) collected(view uint64) *highQCCollector {
	c, ok := t.highQCs[view]
	if !ok {
		c = newHighQCCollector()
		t.highQCs[view] = c
	}
	return c
}

// onHighQcRecv verifies a high QC sent to this node for a view it leads and proposes if the
// view was waiting for high QCs.
func (t *Task) onHighQcRecv(ctx context.Context, e events.HighQcRecv) error {
	qc := e.QC
	if qc == nil {
		return nil
	}
	if cur := t.tracker.View(); e.View < cur {
		return model.NewSkipErrorf("high qc for view %d received in view %d: %w", e.View, cur, model.ErrStaleView)
	}
	if err := t.Verifier.VerifyQC(qc); err != nil {
		return t.certificateError(qc.View, "high qc", err)
	}
	epochHeight := t.Consensus.EpochHeight()
	if qc.Data.Epoch.Valid && chain.IsEpochTransition(qc.Data.BlockNumber, epochHeight) {
		if _, err := chain.NewTransitionQCPair(qc, e.NextEpochQC); err != nil {
			return model.NewInvalidCertificateErrorf(qc.View, "high qc for transition block: %w", err)
		}
		if err := t.Verifier.VerifyNextEpochQC(e.NextEpochQC); err != nil {
			return t.certificateError(qc.View, "next epoch high qc", err)
		}
	}
	entry, ok, err := t.Membership.Stake(e.Sender, t.tracker.Epoch())
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read sender stake")
	}
	if !ok {
		return model.NewSkipErrorf("high qc from %v without stake", e.Sender)
	}
	t.collected(e.View).add(e.Sender, entry.Stake, qc, e.NextEpochQC)

	d, ok := t.views[e.View]
	if !ok || !d.waiting || d.proposed {
		return nil
	}
	if err := t.tryPropose(ctx, e.View); err != nil && !model.IsSkipError(err) {
		return err
	}
	return nil
}

func (t *Task) certificateError(view uint64, what string, err error) error {
	if wrapped := helpers.SkipIfNoStakeTable(err, "could not verify "+what); model.IsSkipError(wrapped) {
		return wrapped
	}
	return model.NewInvalidCertificateErrorf(view, "invalid %s: %w", what, err)
}

// justify picks the QC the proposal extends: the highest of the QC formed for the previous
// view, the local high QC and, under epochs after a failed view, the high QCs gathered from
// other nodes. Transition QCs must be paired with their next-epoch QC.
func (t *Task) justify(view uint64, d *dependencies) (*chain.QuorumCertificate, *chain.NextEpochQuorumCertificate, error) {
	justify := t.Consensus.HighQC()
	nextJustify := t.Consensus.NextEpochHighQC()
	if d.qc != nil && (justify == nil || d.qc.View > justify.View) {
		justify, nextJustify = d.qc, d.nextQC
	}

	if d.qc == nil && t.UpgradeLock.EpochsEnabled(view) {
		if err := t.awaitHighQCs(view, d); err != nil {
			return nil, nil, err
		}
		if collected := t.collected(view); collected.qc != nil && collected.qc.View > justify.View {
			justify, nextJustify = collected.qc, collected.nextQC
		}
	}

	epochHeight := t.Consensus.EpochHeight()
	if !justify.Data.Epoch.Valid || !chain.IsEpochTransition(justify.Data.BlockNumber, epochHeight) {
		return justify, nil, nil
	}
	for _, candidate := range []*chain.NextEpochQuorumCertificate{nextJustify, d.nextQC, t.Consensus.NextEpochHighQC()} {
		if _, err := chain.NewTransitionQCPair(justify, candidate); err == nil {
			return justify, candidate, nil
		}
	}
	return nil, nil, model.NewSkipErrorf("waiting for the next epoch qc of view %d", justify.View)
}

// awaitHighQCs returns a skip error until high QCs worth a quorum of stake have arrived or half
// of the view timeout has passed since the view's dependencies were complete.
func (t *Task) awaitHighQCs(view uint64, d *dependencies) error {
	if d.waitDone {
		return nil
	}
	threshold, err := t.Membership.SuccessThreshold(d.payload.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not read success threshold")
	}
	collected := t.collected(view)
	if collected.stake >= threshold {
		return nil
	}
	if !d.waiting {
		d.waiting = true
		time.AfterFunc(t.config.ViewTimeout/2, func() {
			t.Publisher.Publish(events.HighQcWaitElapsed{View: view})
		})
	}
	return model.NewSkipErrorf("waiting for high qcs in view %d, have stake %d of %d", view, collected.stake, threshold)
}
