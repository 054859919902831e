// Package config holds the configuration of a sequencer network run by this binary, its flags
// and its mapping onto the node and task configurations.
package config

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hotshot-go/hotshot/builder"
	"github.com/hotshot-go/hotshot/consensus/hotshot/pacemaker/timeout"
	drbtask "github.com/hotshot-go/hotshot/consensus/hotshot/tasks/drb"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/transactions"
	"github.com/hotshot-go/hotshot/consensus/hotshot/tasks/upgrade"
	"github.com/hotshot-go/hotshot/drb"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/node"
)

const (
	CommitteeStatic     = "static"
	CommitteeRandomized = "randomized"
)

// Config is the configuration of a local sequencer network.
type Config struct {
	// Nodes is the number of nodes run in this process.
	Nodes int
	// DaCommitteeSize is the number of nodes, starting with node 0, in the DA committee.
	DaCommitteeSize int
	// Seed derives the keys of all nodes. Node i always gets the same keys for a seed.
	Seed string
	// Committee selects the membership: "static" or "randomized".
	Committee string
	// CommitteeSize is the size of each randomized committee.
	CommitteeSize int
	ChainID       string
	EpochHeight   uint64
	MaxDrift      time.Duration

	MinViewTimeout   time.Duration
	MaxViewTimeout   time.Duration
	TimeoutFactor    float64
	HappyPathRounds  uint64
	BuilderURLs      []string
	BuilderTimeout   time.Duration
	BuilderRetry     time.Duration
	BuilderFailures  uint32
	BuilderCooldown  time.Duration
	MaxBlockTxs      int
	DecidedCacheSize int

	BaseVersion    string
	UpgradeVersion string
	// UpgradeHash is the hex encoded hash of the upgrade this node votes for.
	UpgradeHash string
	// The upgrade is proposed in views [ProposeViewStart, ProposeViewStop) and voted for in
	// views [VoteViewStart, VoteViewStop). An empty proposing window disables proposing, a zero
	// VoteViewStop leaves voting unbounded. Times are unix seconds, zero for no bound.
	ProposeViewStart uint64
	ProposeViewStop  uint64
	ProposeTimeStart int64
	ProposeTimeStop  int64
	VoteViewStart    uint64
	VoteViewStop     uint64
	VoteTimeStart    int64
	VoteTimeStop     int64
	EpochStartBlock  uint64

	DrbDifficulty         uint64
	DrbCheckpointInterval uint64

	DataDir       string
	MetricsPort   uint
	Profiler      bool
	Workers       int
	QueueCapacity int
	LogLevel      string
}

func DefaultConfig() Config {
	timeouts := timeout.NewDefaultConfig()
	txs := transactions.DefaultConfig()
	breaker := builder.DefaultBreakerConfig()
	nodeCfg := node.DefaultConfig()
	return Config{
		Nodes:                 4,
		DaCommitteeSize:       4,
		Seed:                  hex.EncodeToString(make([]byte, 32)),
		Committee:             CommitteeStatic,
		CommitteeSize:         4,
		ChainID:               "hotshot-local",
		EpochHeight:           0,
		MaxDrift:              12 * time.Second,
		MinViewTimeout:        time.Duration(timeouts.MinReplicaTimeout) * time.Millisecond,
		MaxViewTimeout:        time.Duration(timeouts.MaxReplicaTimeout) * time.Millisecond,
		TimeoutFactor:         timeouts.TimeoutAdjustmentFactor,
		HappyPathRounds:       timeouts.HappyPathMaxRoundFailures,
		BuilderTimeout:        txs.BuilderTimeout,
		BuilderRetry:          txs.RetryDelay,
		BuilderFailures:       breaker.MaxFailures,
		BuilderCooldown:       breaker.RestoreTimeout,
		MaxBlockTxs:           txs.MaxBlockTransactions,
		DecidedCacheSize:      txs.DecidedCacheSize,
		BaseVersion:           "0.1.0",
		UpgradeVersion:        "0.3.0",
		DrbDifficulty:         drb.DefaultDifficulty,
		DrbCheckpointInterval: drb.DefaultCheckpointInterval,
		DataDir:               "data",
		MetricsPort:           8080,
		Workers:               nodeCfg.Workers,
		QueueCapacity:         nodeCfg.QueueCapacity,
		LogLevel:              "info",
	}
}

// Validate checks the configuration. All problems are reported at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Nodes < 1 {
		result = multierror.Append(result, fmt.Errorf("at least one node is required, got %d", c.Nodes))
	}
	if c.DaCommitteeSize < 1 || c.DaCommitteeSize > c.Nodes {
		result = multierror.Append(result, fmt.Errorf("da committee size %d must be between 1 and %d", c.DaCommitteeSize, c.Nodes))
	}
	if _, err := c.seed(); err != nil {
		result = multierror.Append(result, err)
	}
	switch c.Committee {
	case CommitteeStatic:
	case CommitteeRandomized:
		if c.CommitteeSize < 1 || c.CommitteeSize > c.Nodes {
			result = multierror.Append(result, fmt.Errorf("committee size %d must be between 1 and %d", c.CommitteeSize, c.Nodes))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown committee %q", c.Committee))
	}
	if _, err := c.timeout(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.versions(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.upgrade().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.BuilderRetry <= 0 {
		result = multierror.Append(result, fmt.Errorf("builder retry delay must be positive, got %s", c.BuilderRetry))
	}
	if c.DrbCheckpointInterval == 0 {
		result = multierror.Append(result, fmt.Errorf("drb checkpoint interval must be positive"))
	}
	if c.Workers < 1 || c.QueueCapacity < 1 {
		result = multierror.Append(result, fmt.Errorf("workers (%d) and queue capacity (%d) must be positive", c.Workers, c.QueueCapacity))
	}
	return result.ErrorOrNil()
}

// seed returns the decoded key seed.
func (c Config) seed() ([]byte, error) {
	seed, err := hex.DecodeString(c.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}
	return seed, nil
}

// NodeSeed returns the key seed of node i for the key domain.
func (c Config) NodeSeed(i int, domain byte) ([]byte, error) {
	seed, err := c.seed()
	if err != nil {
		return nil, err
	}
	return chain.Fingerprint(struct {
		Seed   []byte
		Index  uint64
		Domain byte
	}{seed, uint64(i), domain}), nil
}

func (c Config) timeout() (timeout.Config, error) {
	return timeout.NewConfig(c.MinViewTimeout, c.MaxViewTimeout, c.TimeoutFactor, c.HappyPathRounds)
}

func (c Config) versions() (chain.Versions, error) {
	versions := chain.DefaultVersions()
	base, err := chain.ParseVersion(c.BaseVersion)
	if err != nil {
		return versions, fmt.Errorf("invalid base version: %w", err)
	}
	target, err := chain.ParseVersion(c.UpgradeVersion)
	if err != nil {
		return versions, fmt.Errorf("invalid upgrade version: %w", err)
	}
	if target.Less(base) {
		return versions, fmt.Errorf("upgrade version %v precedes base version %v", target, base)
	}
	versions.Base = base
	versions.Upgrade = target
	if c.UpgradeHash != "" {
		hash, err := hex.DecodeString(c.UpgradeHash)
		if err != nil || len(hash) != len(versions.UpgradeHash) {
			return versions, fmt.Errorf("upgrade hash must be %d hex encoded bytes", len(versions.UpgradeHash))
		}
		copy(versions.UpgradeHash[:], hash)
	}
	return versions, nil
}

func unixTime(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}

func (c Config) upgrade() upgrade.Config {
	cfg := upgrade.DefaultConfig()
	cfg.ProposingViews = upgrade.ViewWindow{Start: c.ProposeViewStart, Stop: c.ProposeViewStop}
	cfg.ProposingTime = upgrade.TimeWindow{Start: unixTime(c.ProposeTimeStart), Stop: unixTime(c.ProposeTimeStop)}
	cfg.VotingViews = upgrade.ViewWindow{Start: c.VoteViewStart, Stop: c.VoteViewStop}
	if c.VoteViewStop == 0 {
		cfg.VotingViews.Stop = math.MaxUint64
	}
	cfg.VotingTime = upgrade.TimeWindow{Start: unixTime(c.VoteTimeStart), Stop: unixTime(c.VoteTimeStop)}
	cfg.EpochStartBlock = c.EpochStartBlock
	return cfg
}

// Node returns the configuration of every node of the network.
func (c Config) Node() (node.Config, error) {
	if err := c.Validate(); err != nil {
		return node.Config{}, err
	}
	timeouts, _ := c.timeout()
	versions, _ := c.versions()
	return node.Config{
		Versions:    versions,
		EpochHeight: c.EpochHeight,
		Timeout:     timeouts,
		Transactions: transactions.Config{
			BuilderTimeout:       c.BuilderTimeout,
			RetryDelay:           c.BuilderRetry,
			MaxBlockTransactions: c.MaxBlockTxs,
			DecidedCacheSize:     c.DecidedCacheSize,
		},
		Upgrade: c.upgrade(),
		Drb: drbtask.Config{
			Difficulty:         c.DrbDifficulty,
			CheckpointInterval: c.DrbCheckpointInterval,
		},
		Workers:       c.Workers,
		QueueCapacity: c.QueueCapacity,
	}, nil
}

// Breaker returns the circuit breaker configuration of the builder clients.
func (c Config) Breaker() builder.BreakerConfig {
	return builder.BreakerConfig{MaxFailures: c.BuilderFailures, RestoreTimeout: c.BuilderCooldown}
}
