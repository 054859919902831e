package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding flags: --epoch-height is read from
// HOTSHOT_EPOCH_HEIGHT.
const EnvPrefix = "HOTSHOT"

const (
	nodes                 = "nodes"
	daCommitteeSize       = "da-committee-size"
	seed                  = "seed"
	committee             = "committee"
	committeeSize         = "committee-size"
	chainID               = "chain-id"
	epochHeight           = "epoch-height"
	maxDrift              = "max-timestamp-drift"
	minViewTimeout        = "min-view-timeout"
	maxViewTimeout        = "max-view-timeout"
	timeoutFactor         = "view-timeout-factor"
	happyPathRounds       = "happy-path-rounds"
	builderURLs           = "builder-urls"
	builderTimeout        = "builder-timeout"
	builderRetry          = "builder-retry-delay"
	builderFailures       = "builder-max-failures"
	builderCooldown       = "builder-cooldown"
	maxBlockTxs           = "max-block-transactions"
	decidedCacheSize      = "decided-cache-size"
	baseVersion           = "base-version"
	upgradeVersion        = "upgrade-version"
	upgradeHash           = "upgrade-hash"
	proposeViewStart      = "upgrade-propose-view-start"
	proposeViewStop       = "upgrade-propose-view-stop"
	proposeTimeStart      = "upgrade-propose-time-start"
	proposeTimeStop       = "upgrade-propose-time-stop"
	voteViewStart         = "upgrade-vote-view-start"
	voteViewStop          = "upgrade-vote-view-stop"
	voteTimeStart         = "upgrade-vote-time-start"
	voteTimeStop          = "upgrade-vote-time-stop"
	epochStartBlock       = "epoch-start-block"
	drbDifficulty         = "drb-difficulty"
	drbCheckpointInterval = "drb-checkpoint-interval"
	dataDir               = "datadir"
	metricsPort           = "metrics-port"
	profiler              = "profiler-enabled"
	workers               = "workers"
	queueCapacity         = "queue-capacity"
	logLevel              = "loglevel"
	configFile            = "config"
)

// InitializeFlags registers the flags of every configuration field on the flag set, with the
// values of config as defaults.
func InitializeFlags(flags *pflag.FlagSet, config *Config) {
	flags.Int(nodes, config.Nodes, "number of nodes run in this process")
	flags.Int(daCommitteeSize, config.DaCommitteeSize, "number of nodes in the DA committee")
	flags.String(seed, config.Seed, "hex encoded 32 byte seed the node keys are derived from")
	flags.String(committee, config.Committee, "committee selection: static or randomized")
	flags.Int(committeeSize, config.CommitteeSize, "size of each randomized committee")
	flags.String(chainID, config.ChainID, "chain identifier")
	flags.Uint64(epochHeight, config.EpochHeight, "blocks per epoch, 0 disables epochs")
	flags.Duration(maxDrift, config.MaxDrift, "maximum drift of a proposed block timestamp from the local clock")
	flags.Duration(minViewTimeout, config.MinViewTimeout, "view timeout on the happy path")
	flags.Duration(maxViewTimeout, config.MaxViewTimeout, "upper bound of the view timeout after failed views")
	flags.Float64(timeoutFactor, config.TimeoutFactor, "factor the view timeout grows by after each failed view")
	flags.Uint64(happyPathRounds, config.HappyPathRounds, "failed views tolerated before the view timeout grows")
	flags.StringSlice(builderURLs, config.BuilderURLs, "builder endpoints; without builders leaders build blocks from the mempool")
	flags.Duration(builderTimeout, config.BuilderTimeout, "time a leader spends obtaining a block from builders")
	flags.Duration(builderRetry, config.BuilderRetry, "delay between requests to a failing builder")
	flags.Uint32(builderFailures, config.BuilderFailures, "consecutive failures after which a builder is not called for a while")
	flags.Duration(builderCooldown, config.BuilderCooldown, "time a failing builder is not called")
	flags.Int(maxBlockTxs, config.MaxBlockTxs, "maximum number of transactions in a mempool block, 0 means unlimited")
	flags.Int(decidedCacheSize, config.DecidedCacheSize, "number of decided transactions remembered for deduplication")
	flags.String(baseVersion, config.BaseVersion, "protocol version at genesis")
	flags.String(upgradeVersion, config.UpgradeVersion, "protocol version this node proposes and votes to upgrade to")
	flags.String(upgradeHash, config.UpgradeHash, "hex encoded hash identifying the upgrade")
	flags.Uint64(proposeViewStart, config.ProposeViewStart, "first view in which the upgrade is proposed")
	flags.Uint64(proposeViewStop, config.ProposeViewStop, "view at which proposing the upgrade stops")
	flags.Int64(proposeTimeStart, config.ProposeTimeStart, "unix time at which proposing the upgrade starts, 0 for no bound")
	flags.Int64(proposeTimeStop, config.ProposeTimeStop, "unix time at which proposing the upgrade stops, 0 for no bound")
	flags.Uint64(voteViewStart, config.VoteViewStart, "first view in which the node votes for the upgrade")
	flags.Uint64(voteViewStop, config.VoteViewStop, "view at which voting for the upgrade stops")
	flags.Int64(voteTimeStart, config.VoteTimeStart, "unix time at which voting for the upgrade starts, 0 for no bound")
	flags.Int64(voteTimeStop, config.VoteTimeStop, "unix time at which voting for the upgrade stops, 0 for no bound")
	flags.Uint64(epochStartBlock, config.EpochStartBlock, "block at which epochs start when an upgrade activates them")
	flags.Uint64(drbDifficulty, config.DrbDifficulty, "hash iterations of a beacon computation")
	flags.Uint64(drbCheckpointInterval, config.DrbCheckpointInterval, "iterations between beacon checkpoints")
	flags.String(dataDir, config.DataDir, "directory of the node databases")
	flags.Uint(metricsPort, config.MetricsPort, "port of the metrics server")
	flags.Bool(profiler, config.Profiler, "serve the go profiler on the metrics port")
	flags.Int(workers, config.Workers, "workers per node for computations off the event loops")
	flags.Int(queueCapacity, config.QueueCapacity, "capacity of the event queue of every task")
	flags.String(logLevel, config.LogLevel, "log level: trace, debug, info, warn or error")
	flags.String(configFile, "", "optional yaml configuration file")
}

// Load reads the configuration from the flag set, the environment and the optional
// configuration file. Flags set on the command line take precedence over the environment,
// which takes precedence over the file.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, fmt.Errorf("could not bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path := v.GetString(configFile); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	config := Config{
		Nodes:                 v.GetInt(nodes),
		DaCommitteeSize:       v.GetInt(daCommitteeSize),
		Seed:                  v.GetString(seed),
		Committee:             v.GetString(committee),
		CommitteeSize:         v.GetInt(committeeSize),
		ChainID:               v.GetString(chainID),
		EpochHeight:           v.GetUint64(epochHeight),
		MaxDrift:              v.GetDuration(maxDrift),
		MinViewTimeout:        v.GetDuration(minViewTimeout),
		MaxViewTimeout:        v.GetDuration(maxViewTimeout),
		TimeoutFactor:         v.GetFloat64(timeoutFactor),
		HappyPathRounds:       v.GetUint64(happyPathRounds),
		BuilderURLs:           v.GetStringSlice(builderURLs),
		BuilderTimeout:        v.GetDuration(builderTimeout),
		BuilderRetry:          v.GetDuration(builderRetry),
		BuilderFailures:       v.GetUint32(builderFailures),
		BuilderCooldown:       v.GetDuration(builderCooldown),
		MaxBlockTxs:           v.GetInt(maxBlockTxs),
		DecidedCacheSize:      v.GetInt(decidedCacheSize),
		BaseVersion:           v.GetString(baseVersion),
		UpgradeVersion:        v.GetString(upgradeVersion),
		UpgradeHash:           v.GetString(upgradeHash),
		ProposeViewStart:      v.GetUint64(proposeViewStart),
		ProposeViewStop:       v.GetUint64(proposeViewStop),
		ProposeTimeStart:      v.GetInt64(proposeTimeStart),
		ProposeTimeStop:       v.GetInt64(proposeTimeStop),
		VoteViewStart:         v.GetUint64(voteViewStart),
		VoteViewStop:          v.GetUint64(voteViewStop),
		VoteTimeStart:         v.GetInt64(voteTimeStart),
		VoteTimeStop:          v.GetInt64(voteTimeStop),
		EpochStartBlock:       v.GetUint64(epochStartBlock),
		DrbDifficulty:         v.GetUint64(drbDifficulty),
		DrbCheckpointInterval: v.GetUint64(drbCheckpointInterval),
		DataDir:               v.GetString(dataDir),
		MetricsPort:           v.GetUint(metricsPort),
		Profiler:              v.GetBool(profiler),
		Workers:               v.GetInt(workers),
		QueueCapacity:         v.GetInt(queueCapacity),
		LogLevel:              v.GetString(logLevel),
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
