// Package tasktest provides a single simulated node for exercising consensus tasks in tests.
package tasktest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/mocks"
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/helpers"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/state/sequencer"
	"github.com/hotshot-go/hotshot/utils/unittest"
	"github.com/hotshot-go/hotshot/vid"
)

// Recorder is a Publisher that keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

var _ events.Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the events published so far.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Published returns the recorded events of type T, in publication order.
func Published[T events.Event](r *Recorder) []T {
	var out []T
	for _, event := range r.Events() {
		if e, ok := event.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

// InlineWorkers runs submitted functions on the calling goroutine.
type InlineWorkers struct{}

func (InlineWorkers) Submit(task func()) { task() }

// Node is one simulated consensus participant of a committee of equally staked nodes.
type Node struct {
	t           testing.TB
	Fixtures    []unittest.NodeFixture
	Self        unittest.NodeFixture
	Signer      hotshot.Signer
	Table       chain.StakeTable
	Membership  *committees.Committee
	Consensus   *store.Consensus
	Recorder    *Recorder
	Persister   *mocks.Persister
	Network     *mocks.Network
	Instance    *sequencer.Instance
	UpgradeLock *helpers.UpgradeLock
	Genesis     *chain.Leaf
	GenesisQC   *chain.QuorumCertificate
	Verifier    *verification.Verifier
}

type config struct {
	epochHeight uint64
	versions    chain.Versions
}

type Option func(*config)

// WithEpochHeight sets the number of blocks per epoch.
func WithEpochHeight(height uint64) Option {
	return func(c *config) { c.epochHeight = height }
}

// WithVersions sets the protocol versions. A base version with epochs runs epochs from genesis.
func WithVersions(versions chain.Versions) Option {
	return func(c *config) { c.versions = versions }
}

// NewNode creates node self of a committee of count nodes with stake 1 each. With the static
// committee the leader of view v is node v % count.
func NewNode(t testing.TB, count int, self int, opts ...Option) *Node {
	cfg := config{versions: chain.DefaultVersions()}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := unittest.Logger()
	fixtures := unittest.NodeFixtures(t, count)
	table := unittest.StakeTableFixture(fixtures, 1)
	membership, err := committees.NewStaticCommittee(log, table, table, cfg.epochHeight)
	require.NoError(t, err)

	genesis, genesisQC := unittest.GenesisLeafFixture()
	instance := sequencer.NewInstance("test", cfg.epochHeight, time.Hour)
	consensus := store.New(log, metrics.NewNoopCollector(), cfg.epochHeight, store.Anchor{
		Leaf:   genesis,
		State:  sequencer.Genesis(genesis.Header),
		HighQC: genesisQC,
	})
	return &Node{
		t:           t,
		Fixtures:    fixtures,
		Self:        fixtures[self],
		Signer:      Signer(fixtures[self]),
		Table:       table,
		Membership:  membership,
		Consensus:   consensus,
		Recorder:    &Recorder{},
		Persister:   mocks.NewPersister(t),
		Network:     mocks.NewNetwork(t),
		Instance:    instance,
		UpgradeLock: helpers.NewUpgradeLock(cfg.versions),
		Genesis:     genesis,
		GenesisQC:   genesisQC,
		Verifier:    verification.NewVerifier(membership),
	}
}

// Signer returns a signer with the keys of the fixture.
func Signer(fixture unittest.NodeFixture) hotshot.Signer {
	return verification.NewStakingSigner(fixture.StakingKey, fixture.StateKey)
}

// Deps returns the task dependencies of the node.
func (n *Node) Deps() helpers.Dependencies {
	return helpers.Dependencies{
		Log:         unittest.Logger(),
		Publisher:   n.Recorder,
		Consensus:   n.Consensus,
		Membership:  n.Membership,
		Verifier:    n.Verifier,
		Signer:      n.Signer,
		Persister:   n.Persister,
		Network:     n.Network,
		Instance:    n.Instance,
		UpgradeLock: n.UpgradeLock,
		Metrics:     metrics.NewNoopCollector(),
		Workers:     InlineWorkers{},
	}
}

// Leader returns the fixture of the static leader of the view.
func (n *Node) Leader(view uint64) unittest.NodeFixture {
	return n.Fixtures[view%uint64(len(n.Fixtures))]
}

// PersistAll lets every persister call succeed.
func (n *Node) PersistAll() {
	for _, method := range []string{
		"AppendDa", "AppendVid", "AppendQuorumProposal", "UpdateDecidedUpgradeCertificate",
		"UpdateHighQC", "UpdateNextEpochHighQC", "UpdateStateCert", "RecordActionedView", "StoreDrbInput",
	} {
		args := make([]interface{}, 0, 3)
		args = append(args, mock.Anything, mock.Anything)
		if method == "AppendDa" {
			args = append(args, mock.Anything)
		}
		n.Persister.On(method, args...).Return(nil).Maybe()
	}
	n.Persister.On("AppendDecidedLeaves", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	n.Persister.On("AddDrbResult", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	n.Persister.On("LoadDrbInput", mock.Anything, mock.Anything).Return(chain.DrbInput{}, false, nil).Maybe()
}

// NetworkUp reports the primary network as available.
func (n *Node) NetworkUp() {
	n.Network.On("IsPrimaryDown").Return(false).Maybe()
}

// Block is a payload with everything a leader derives from it.
type Block struct {
	Payload    *chain.Payload
	Encoded    []byte
	Metadata   []byte
	Commitment chain.Commitment
}

// BlockFixture returns a block of txCount random transactions committed for the given table.
func BlockFixture(t testing.TB, table chain.StakeTable, txCount int) Block {
	payload := unittest.PayloadFixture(txCount)
	encoded := payload.Encode()
	commitment, err := vid.PayloadCommitment(encoded, payload.Metadata(), table)
	require.NoError(t, err)
	return Block{Payload: payload, Encoded: encoded, Metadata: payload.Metadata(), Commitment: commitment}
}

// Header returns a header for the block at height on top of parent.
func (b Block) Header(parent chain.Header) chain.Header {
	return chain.Header{
		Version:           parent.Version,
		Height:            parent.Height + 1,
		Timestamp:         parent.Timestamp + 1,
		PayloadCommitment: b.Commitment,
		BuilderCommitment: b.Payload.BuilderCommitment(),
		Metadata:          b.Metadata,
		ParentHeight:      parent.Height,
	}
}

// DaProposal returns the DA proposal of the block signed by the leader.
func DaProposal(t testing.TB, leader unittest.NodeFixture, block Block, view uint64, epoch chain.Epoch) *events.DaProposal {
	proposal, err := verification.CreateProposal(Signer(leader), &chain.DaProposal{
		EncodedTransactions: block.Encoded,
		Metadata:            block.Metadata,
		View:                view,
		Epoch:               epoch,
	})
	require.NoError(t, err)
	return proposal
}
