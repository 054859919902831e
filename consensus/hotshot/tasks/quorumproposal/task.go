// Package quorumproposal implements the leader side of the quorum protocol. The leader of a
// view proposes once it has the block's payload commitment, has dispersed the block's VID
// shares and holds a certificate that lets it enter the view: the QC of the previous view, a
// timeout certificate or a view-sync certificate.
package quorumproposal

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/model/chain"
)

const TaskName = "quorum_proposal"

// Config holds the timing parameters of the proposal task.
type Config struct {
	// ViewTimeout is the duration of a view. After a failed view, a leader under epochs waits
	// at most half of it for the high QCs of the other nodes.
	ViewTimeout time.Duration
}

// dependencies collects what has arrived for a view the node may lead.
type dependencies struct {
	payload  *events.SendPayloadCommitmentAndMetadata
	vidSent  bool
	qc       *chain.QuorumCertificate
	nextQC   *chain.NextEpochQuorumCertificate
	timeout  *chain.TimeoutCertificate
	viewSync *chain.ViewSyncFinalizeCert

	waiting  bool
	waitDone bool
	proposed bool
}

func (d *dependencies) ready() bool {
	if d.proposed || d.payload == nil || !d.vidSent {
		return false
	}
	return d.qc != nil || d.timeout != nil || d.viewSync != nil
}

// Task is the quorum proposal task of one node.
type Task struct {
	helpers.Dependencies
	log         zerolog.Logger
	config      Config
	tracker     helpers.ViewTracker
	resolver    *helpers.LeafResolver
	views       map[uint64]*dependencies
	highQCs     map[uint64]*highQCCollector
	upgradeCert *chain.UpgradeCertificate
}

// New creates the quorum proposal task starting in the current view of the consensus store.
func New(deps helpers.Dependencies, config Config) *Task {
	return &Task{
		Dependencies: deps,
		log:          deps.Log.With().Str("task", TaskName).Logger(),
		config:       config,
		tracker:      helpers.NewViewTracker(deps.Consensus.CurView(), deps.Consensus.CurEpoch()),
		resolver:     deps.Resolver(),
		views:        make(map[uint64]*dependencies),
		highQCs:      make(map[uint64]*highQCCollector),
	}
}

func (t *Task) Name() string { return TaskName }

func (t *Task) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SendPayloadCommitmentAndMetadata:
		payload := e
		t.entry(e.View).payload = &payload
		return t.tryPropose(ctx, e.View)
	case events.VidDisperseSend:
		t.entry(e.Disperse.View).vidSent = true
		return t.tryPropose(ctx, e.Disperse.View)
	case events.Qc2Formed:
		view := e.QC.View + 1
		t.entry(view).qc = e.QC
		return t.tryPropose(ctx, view)
	case events.NextEpochQc2Formed:
		view := e.QC.View + 1
		t.entry(view).nextQC = e.QC
		return t.tryPropose(ctx, view)
	case events.ExtendedQc2Formed:
		view := e.Pair.View() + 1
		d := t.entry(view)
		d.qc, d.nextQC = e.Pair.QC(), e.Pair.NextEpochQC()
		return t.tryPropose(ctx, view)
	case events.TcFormed:
		view := e.Cert.Data.View + 1
		t.entry(view).timeout = e.Cert
		return t.tryPropose(ctx, view)
	case events.ViewSyncFinalizeCertificateRecv:
		return t.onViewSyncCertificate(ctx, e.Cert)
	case events.HighQcRecv:
		return t.onHighQcRecv(ctx, e)
	case events.HighQcWaitElapsed:
		d, ok := t.views[e.View]
		if !ok {
			return nil
		}
		d.waitDone = true
		return t.tryPropose(ctx, e.View)
	case events.UpgradeCertificateFormed:
		return t.onUpgradeCertificate(e.Cert)
	case events.ViewChange:
		return t.onViewChange(e)
	}
	return nil
}

func (t *Task) entry(view uint64) *dependencies {
	d, ok := t.views[view]
	if !ok {
		d = &dependencies{}
		t.views[view] = d
	}
	return d
}

func (t *Task) onViewSyncCertificate(ctx context.Context, cert *chain.ViewSyncFinalizeCert) error {
	if err := t.Verifier.VerifyViewSyncCertificate(cert); err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not verify view sync certificate")
	}
	t.entry(cert.View).viewSync = cert
	return t.tryPropose(ctx, cert.View)
}

func (t *Task) onUpgradeCertificate(cert *chain.UpgradeCertificate) error {
	if err := t.Verifier.VerifyUpgradeCertificate(cert); err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not verify upgrade certificate")
	}
	t.log.Info().
		Str("new_version", cert.Data.NewVersion.String()).
		Uint64("decide_by", cert.Data.DecideBy).
		Msg("upgrade certificate formed, attaching to next proposal")
	t.upgradeCert = cert
	return nil
}

// tryPropose proposes for the view once every dependency has arrived. Dependencies that are
// still missing are reported as skip errors, the proposal is retried when they arrive.
func (t *Task) tryPropose(ctx context.Context, view uint64) error {
	d, ok := t.views[view]
	if !ok || !d.ready() {
		return nil
	}
	if cur := t.tracker.View(); cur > view {
		return model.NewSkipErrorf("dependencies for view %d complete in view %d: %w", view, cur, model.ErrStaleView)
	}
	leader, err := t.Membership.Leader(view, d.payload.Epoch)
	if err != nil {
		return helpers.SkipIfNoStakeTable(err, "could not determine leader")
	}
	if leader != t.Signer.NodeID() {
		return model.NewSkipErrorf("view %d is led by %v: %w", view, leader, model.ErrNotLeader)
	}

	justify, nextJustify, err := t.justify(view, d)
	if err != nil {
		return err
	}
	if err := t.publishProposal(ctx, view, d, justify, nextJustify); err != nil {
		return err
	}
	d.proposed = true
	delete(t.highQCs, view)
	return nil
}

func (t *Task) onViewChange(e events.ViewChange) error {
	if err := t.tracker.Update(e.View, e.Epoch); err != nil {
		return err
	}
	for view := range t.views {
		if view < e.View {
			delete(t.views, view)
		}
	}
	for view := range t.highQCs {
		if view < e.View {
			delete(t.highQCs, view)
		}
	}
	if t.upgradeCert != nil && e.View > t.upgradeCert.Data.DecideBy {
		t.upgradeCert = nil
	}
	return nil
}
