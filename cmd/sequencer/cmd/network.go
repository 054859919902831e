package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/builder"
	"github.com/hotshot-go/hotshot/config"
	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/network/stub"
	"github.com/hotshot-go/hotshot/node"
	"github.com/hotshot-go/hotshot/state/sequencer"
	storage "github.com/hotshot-go/hotshot/storage/badger"
)

const (
	stakingKeyDomain byte = 0x01
	stateKeyDomain   byte = 0x02
)

type nodeKeys struct {
	staking *crypto.StakingPrivateKey
	state   *crypto.StatePrivateKey
	id      chain.NodeID
}

// localNetwork is a set of nodes connected through one in-process hub.
type localNetwork struct {
	nodes []*node.SystemContext
	dbs   []*badger.DB
}

func deriveKeys(cfg config.Config) ([]nodeKeys, error) {
	keys := make([]nodeKeys, 0, cfg.Nodes)
	for i := 0; i < cfg.Nodes; i++ {
		stakingSeed, err := cfg.NodeSeed(i, stakingKeyDomain)
		if err != nil {
			return nil, err
		}
		stateSeed, err := cfg.NodeSeed(i, stateKeyDomain)
		if err != nil {
			return nil, err
		}
		staking, err := crypto.GenerateStakingKey(stakingSeed)
		if err != nil {
			return nil, fmt.Errorf("could not generate staking key of node %d: %w", i, err)
		}
		state, err := crypto.GenerateStateKey(stateSeed)
		if err != nil {
			return nil, fmt.Errorf("could not generate state key of node %d: %w", i, err)
		}
		keys = append(keys, nodeKeys{
			staking: staking,
			state:   state,
			id:      chain.NodeIDFromStakingKey(staking.PublicKey().Encode()),
		})
	}
	return keys, nil
}

// stakeTables returns the genesis stake table, every node with stake 1, and the DA table made of
// the first DaCommitteeSize nodes.
func stakeTables(cfg config.Config, keys []nodeKeys) (chain.StakeTable, chain.StakeTable) {
	table := make(chain.StakeTable, 0, len(keys))
	for _, k := range keys {
		table = append(table, chain.PeerConfig{
			NodeID:     k.id,
			StakingKey: k.staking.PublicKey().Encode(),
			Stake:      1,
			StateKey:   k.state.PublicKey().Encode(),
		})
	}
	return table, table[:cfg.DaCommitteeSize]
}

func newMembership(log zerolog.Logger, cfg config.Config, table, daTable chain.StakeTable) (hotshot.Membership, error) {
	if cfg.Committee == config.CommitteeRandomized {
		return committees.NewRandomizedCommittee(log, table, daTable, cfg.EpochHeight, cfg.CommitteeSize)
	}
	return committees.NewStaticCommittee(log, table, daTable, cfg.EpochHeight)
}

func newBuilders(log zerolog.Logger, cfg config.Config) []hotshot.BuilderClient {
	builders := make([]hotshot.BuilderClient, 0, len(cfg.BuilderURLs))
	for _, url := range cfg.BuilderURLs {
		builders = append(builders, builder.NewBreakerClient(log, builder.NewHTTPClient(url, cfg.BuilderTimeout), cfg.Breaker()))
	}
	return builders
}

// newLocalNetwork restores every node from its database and connects the nodes. Metrics are
// collected for node 0.
func newLocalNetwork(ctx context.Context, log zerolog.Logger, cfg config.Config, collector module.ConsensusMetrics) (*localNetwork, error) {
	nodeConfig, err := cfg.Node()
	if err != nil {
		return nil, err
	}
	keys, err := deriveKeys(cfg)
	if err != nil {
		return nil, err
	}
	table, daTable := stakeTables(cfg, keys)
	hub := stub.NewNetworkHub()

	network := &localNetwork{}
	for i, k := range keys {
		var nodeMetrics module.ConsensusMetrics = metrics.NewNoopCollector()
		if i == 0 {
			nodeMetrics = collector
		}
		system, db, err := newNode(ctx, log.With().Int("node", i).Logger(), cfg, nodeConfig, hub, k, table, daTable, nodeMetrics, i)
		if err != nil {
			network.Close()
			return nil, fmt.Errorf("could not create node %d: %w", i, err)
		}
		network.nodes = append(network.nodes, system)
		network.dbs = append(network.dbs, db)
	}
	return network, nil
}

func newNode(
	ctx context.Context,
	log zerolog.Logger,
	cfg config.Config,
	nodeConfig node.Config,
	hub *stub.Hub,
	keys nodeKeys,
	table, daTable chain.StakeTable,
	collector module.ConsensusMetrics,
	index int,
) (*node.SystemContext, *badger.DB, error) {
	dir := filepath.Join(cfg.DataDir, fmt.Sprintf("node-%d", index))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("could not create data directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("could not open database: %w", err)
	}
	fail := func(err error) (*node.SystemContext, *badger.DB, error) {
		_ = db.Close()
		return nil, nil, err
	}

	membership, err := newMembership(log, cfg, table, daTable)
	if err != nil {
		return fail(fmt.Errorf("could not create membership: %w", err))
	}
	net, err := stub.NewNetwork(log, hub, keys.id)
	if err != nil {
		return fail(fmt.Errorf("could not create network: %w", err))
	}
	instance := sequencer.NewInstance(cfg.ChainID, cfg.EpochHeight, cfg.MaxDrift)
	persister := storage.NewPersister(log, db)
	initializer, err := node.Load(ctx, log, persister, instance, instance.GenesisHeader(nodeConfig.Versions.Base))
	if err != nil {
		return fail(err)
	}
	system, err := node.New(ctx, node.Params{
		Log:         log,
		Config:      nodeConfig,
		Signer:      verification.NewStakingSigner(keys.staking, keys.state),
		Membership:  membership,
		Persister:   persister,
		Network:     net,
		Instance:    instance,
		Builders:    newBuilders(log, cfg),
		Metrics:     collector,
		Initializer: initializer,
	})
	if err != nil {
		return fail(err)
	}
	return system, db, nil
}

func (n *localNetwork) components() []module.ReadyDoneAware {
	components := make([]module.ReadyDoneAware, 0, len(n.nodes))
	for _, system := range n.nodes {
		components = append(components, system)
	}
	return components
}

// Close closes the databases of all nodes. The nodes must be stopped.
func (n *localNetwork) Close() {
	var result *multierror.Error
	for _, db := range n.dbs {
		if err := db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		fmt.Fprintf(os.Stderr, "could not close databases: %v\n", err)
	}
}
