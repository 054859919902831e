package notifications

import (
	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/utils/logging"
)

// LogConsumer is a bus subscriber that logs the milestones of a node: views, decides,
// certificates and upgrades.
type LogConsumer struct {
	log zerolog.Logger
}

var _ events.Subscriber = (*LogConsumer)(nil)

func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	return &LogConsumer{
		log: log.With().Str("component", "log_consumer").Logger(),
	}
}

func (lc *LogConsumer) Deliver(event events.Event) {
	switch e := event.(type) {
	case events.ViewChange:
		lc.log.Debug().
			Uint64("view", e.View).
			Str("epoch", e.Epoch.String()).
			Msg("entered view")
	case events.Timeout:
		lc.log.Debug().
			Uint64("view", e.View).
			Msg("view timed out")
	case events.LeavesDecided:
		for _, leaf := range e.Leaves {
			lc.log.Info().
				Uint64("view", leaf.View).
				Uint64("height", leaf.Height()).
				Hex("leaf", logging.Commitment(leaf.Commit())).
				Hex("payload_commitment", logging.Commitment(leaf.PayloadCommitment())).
				Msg("leaf decided")
		}
	case events.Qc2Formed:
		lc.log.Debug().
			Uint64("qc_view", e.QC.View).
			Hex("leaf", logging.Commitment(e.QC.Data.LeafCommitment)).
			Msg("quorum certificate formed")
	case events.TcFormed:
		lc.log.Debug().
			Uint64("tc_view", e.Cert.Data.View).
			Msg("timeout certificate formed")
	case events.UpgradeDecided:
		lc.log.Info().
			Str("new_version", e.Cert.Data.NewVersion.String()).
			Uint64("new_version_first_view", e.Cert.Data.NewVersionFirstView).
			Msg("upgrade decided")
	case events.DrbResultComputed:
		lc.log.Info().
			Uint64("epoch", e.Epoch).
			Msg("drb result computed")
	}
}
