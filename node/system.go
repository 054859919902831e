package node

import (
	"context"
	"fmt"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/notifications"
	"github.com/hotshot-go/hotshot/consensus/hotshot/notifications/pubsub"
	"github.com/hotshot-go/hotshot/consensus/hotshot/pacemaker/timeout"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/consensus"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/da"
	drbtask "github.com/hotshot-go/hotshot/consensus/hotshot/tasks/drb"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/quorumproposal"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/quorumvote"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/transactions"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/upgrade"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/vid"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/engine"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module"
	"github.com/hotshot-go/hotshot/module/component"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
	"github.com/hotshot-go/hotshot/module/util"
)

// Config holds the protocol parameters of a node.
type Config struct {
	Versions     chain.Versions
	EpochHeight  uint64
	Timeout      timeout.Config
	Transactions transactions.Config
	Upgrade      upgrade.Config
	Drb          drbtask.Config
	// Workers is the size of the pool running computations off the task loops.
	Workers int
	// QueueCapacity bounds the inbound event queue of every task.
	QueueCapacity int
}

func DefaultConfig() Config {
	return Config{
		Versions:      chain.DefaultVersions(),
		Timeout:       timeout.NewDefaultConfig(),
		Transactions:  transactions.DefaultConfig(),
		Upgrade:       upgrade.DefaultConfig(),
		Drb:           drbtask.DefaultConfig(),
		Workers:       4,
		QueueCapacity: 10_000,
	}
}

// Params are the collaborators of a node.
type Params struct {
	Log         zerolog.Logger
	Config      Config
	Signer      hotshot.Signer
	Membership  hotshot.Membership
	Persister   hotshot.Persister
	Network     hotshot.Network
	Instance    hotshot.InstanceState
	Builders    []hotshot.BuilderClient
	Metrics     module.ConsensusMetrics
	Handoff     hotshot.StateProverHandoff
	Initializer *Initializer
}

type proposalServer interface {
	ServeProposals(source func(view uint64, leaf chain.Commitment) (*chain.Proposal[*chain.QuorumProposal], bool))
}

// SystemContext is a running HotShot node: every consensus task on one event bus, connected
// to the network.
type SystemContext struct {
	*component.ComponentManager
	log          zerolog.Logger
	self         chain.NodeID
	bus          *events.Bus
	consensus    *store.Consensus
	membership   hotshot.Membership
	upgradeLock  *helpers.UpgradeLock
	network      hotshot.Network
	distributor  *pubsub.Distributor
	transactions *transactions.Task
	runners      []*engine.TaskRunner
	workers      hotshot.Workerpool
	initializer  *Initializer
}

var _ component.Component = (*SystemContext)(nil)

// New builds the node from the initializer. The node does nothing until started.
func New(ctx context.Context, p Params) (*SystemContext, error) {
	log := p.Log.With().Str("node_id", p.Signer.NodeID().String()).Logger()
	cfg := p.Config
	membership := committees.NewMetricsWrapper(p.Membership, p.Metrics)

	lock := helpers.NewUpgradeLock(cfg.Versions)
	if err := p.Initializer.Restore(ctx, lock, membership, firstEpoch(cfg, p.Initializer)); err != nil {
		return nil, fmt.Errorf("could not restore node state: %w", err)
	}
	consensusStore, err := p.Initializer.NewConsensus(log, p.Metrics, cfg.EpochHeight)
	if err != nil {
		return nil, fmt.Errorf("could not build consensus state: %w", err)
	}

	bus := events.NewBus(log)
	workers := workerpool.New(cfg.Workers)
	deps := helpers.Dependencies{
		Log:         log,
		Publisher:   bus,
		Consensus:   consensusStore,
		Membership:  membership,
		Verifier:    verification.NewVerifier(membership),
		Signer:      p.Signer,
		Persister:   p.Persister,
		Network:     p.Network,
		Instance:    p.Instance,
		UpgradeLock: lock,
		Metrics:     p.Metrics,
		Workers:     workers,
	}

	txTask, err := transactions.New(deps, cfg.Transactions, p.Builders)
	if err != nil {
		workers.StopWait()
		return nil, fmt.Errorf("could not create transaction task: %w", err)
	}
	bridge := NewBridge(log, deps)
	handlers := []engine.Handler{
		bridge,
		txTask,
		da.New(deps),
		vid.New(deps),
		quorumproposal.New(deps, quorumproposal.Config{ViewTimeout: time.Duration(cfg.Timeout.MinReplicaTimeout) * time.Millisecond}),
		quorumvote.New(deps),
		consensus.New(deps, consensus.Config{Timeout: cfg.Timeout, Handoff: p.Handoff}),
		upgrade.New(deps, cfg.Upgrade),
		drbtask.New(deps, cfg.Drb),
	}

	s := &SystemContext{
		log:          log,
		self:         p.Signer.NodeID(),
		bus:          bus,
		consensus:    consensusStore,
		membership:   membership,
		upgradeLock:  lock,
		network:      p.Network,
		distributor:  pubsub.NewDistributor(),
		transactions: txTask,
		workers:      workers,
		initializer:  p.Initializer,
	}
	builder := component.NewComponentManagerBuilder()
	for _, handler := range handlers {
		runner, err := engine.NewTaskRunner(log, handler, p.Metrics, engine.WithCapacity(cfg.QueueCapacity))
		if err != nil {
			workers.StopWait()
			return nil, err
		}
		bus.Subscribe(runner)
		s.runners = append(s.runners, runner)
		builder.AddWorker(runComponent(runner))
	}
	bus.Subscribe(s.distributor)
	bus.Subscribe(notifications.NewLogConsumer(log))

	p.Network.Subscribe(bridge.Receive)
	if server, ok := p.Network.(proposalServer); ok {
		server.ServeProposals(s.proposal)
	}
	if net, ok := p.Network.(component.Component); ok {
		builder.AddWorker(runComponent(net))
	}
	builder.AddWorker(s.bootstrap)
	s.ComponentManager = builder.Build()
	return s, nil
}

// firstEpoch returns the epoch in which epochs start, if they are active at startup.
func firstEpoch(cfg Config, initializer *Initializer) *uint64 {
	if cfg.EpochHeight == 0 {
		return nil
	}
	if cfg.Versions.Base.AtLeast(cfg.Versions.Epochs) {
		first := chain.EpochFromBlockNumber(1, cfg.EpochHeight)
		return &first
	}
	cert := initializer.DecidedUpgradeCert
	if cert != nil && cert.Data.NewVersion.AtLeast(cfg.Versions.Epochs) {
		first := chain.EpochFromBlockNumber(cfg.Upgrade.EpochStartBlock, cfg.EpochHeight)
		return &first
	}
	return nil
}

func runComponent(c component.Component) component.ComponentWorker {
	return func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		c.Start(ctx)
		select {
		case <-ctx.Done():
			return
		case <-c.Ready():
			ready()
		}
		<-c.Done()
	}
}

// bootstrap enters the start view once every task runs: the start view's leader learns its
// justifying QC and every task learns the view.
func (s *SystemContext) bootstrap(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer s.workers.StopWait()
	readyAware := make([]module.ReadyDoneAware, 0, len(s.runners))
	for _, runner := range s.runners {
		readyAware = append(readyAware, runner)
	}
	if err := util.WaitClosed(ctx, util.AllReady(readyAware...)); err != nil {
		return
	}

	initializer := s.initializer
	view, epoch := initializer.StartView, initializer.StartEpoch
	_ = s.consensus.UpdateEpoch(epoch)
	s.log.Info().
		Uint64("view", view).
		Str("epoch", epoch.String()).
		Uint64("anchor_view", initializer.AnchorLeaf.View).
		Msg("starting consensus")
	s.bus.Publish(events.Qc2Formed{QC: initializer.HighQC})
	if initializer.NextEpochHighQC != nil && initializer.NextEpochHighQC.View == initializer.HighQC.View {
		s.bus.Publish(events.NextEpochQc2Formed{QC: initializer.NextEpochHighQC})
	}
	if err := s.consensus.UpdateView(view); err == nil {
		s.bus.Publish(events.ViewChange{View: view, Epoch: epoch})
	}
	ready()
	<-ctx.Done()
}

// proposal serves quorum proposals this node knows to other nodes.
func (s *SystemContext) proposal(view uint64, leaf chain.Commitment) (*chain.Proposal[*chain.QuorumProposal], bool) {
	proposal, ok := s.consensus.LastProposal(view)
	if !ok || proposal.Data.Leaf().Commit() != leaf {
		return nil, false
	}
	return proposal, true
}

// SubmitTransactions gossips the transactions to every node, this one included.
func (s *SystemContext) SubmitTransactions(ctx context.Context, txs []chain.Transaction) error {
	msg := &hotshot.Message{Sender: s.self, Event: events.TransactionsRecv{Transactions: txs}}
	return s.network.Broadcast(ctx, msg)
}

// Distributor returns the distributor of decides and finished views.
func (s *SystemContext) Distributor() hotshot.Distributor { return s.distributor }

// Consensus returns the node's consensus state.
func (s *SystemContext) Consensus() *store.Consensus { return s.consensus }

// Membership returns the node's stake table oracle.
func (s *SystemContext) Membership() hotshot.Membership { return s.membership }

// UpgradeLock returns the node's protocol version tracker.
func (s *SystemContext) UpgradeLock() *helpers.UpgradeLock { return s.upgradeLock }

// Mempool returns the node's mempool.
func (s *SystemContext) Mempool() *transactions.Mempool { return s.transactions.Mempool() }

// Subscribe registers an additional subscriber for every event of the node.
func (s *SystemContext) Subscribe(subscriber events.Subscriber) {
	s.bus.Subscribe(subscriber)
}

// WaitForView blocks until the node entered the view or the context ends.
func (s *SystemContext) WaitForView(ctx context.Context, view uint64) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.consensus.CurView() < view {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
