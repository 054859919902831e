package helpers

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/module"
)

// Dependencies are the collaborators shared by the consensus tasks of one node.
type Dependencies struct {
	Log         zerolog.Logger
	Publisher   events.Publisher
	Consensus   *store.Consensus
	Membership  hotshot.Membership
	Verifier    *verification.Verifier
	Signer      hotshot.Signer
	Persister   hotshot.Persister
	Network     hotshot.Network
	Instance    hotshot.InstanceState
	UpgradeLock *UpgradeLock
	Metrics     module.ConsensusMetrics
	// Workers runs computations that must not block a task's event loop.
	Workers hotshot.Workers
}

// Resolver returns a LeafResolver over the dependencies.
func (d Dependencies) Resolver() *LeafResolver {
	return NewLeafResolver(d.Log, d.Consensus, d.Network, d.Membership, d.Verifier, d.Instance)
}

// SkipIfNoStakeTable turns a missing stake table into a model.SkipError. The action is
// retried on a later event once the table is known.
func SkipIfNoStakeTable(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	if committees.IsNoStakeTableError(err) {
		return model.SkipError{Err: wrapped}
	}
	return wrapped
}
