package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config := DefaultConfig()
	InitializeFlags(flags, &config)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestDefaultConfigIsValid(t *testing.T) {
	config, err := Load(flagSet(t))
	require.NoError(t, err)
	defaults := DefaultConfig()
	assert.Equal(t, defaults.Nodes, config.Nodes)
	assert.Equal(t, defaults.Seed, config.Seed)
	assert.Equal(t, defaults.MinViewTimeout, config.MinViewTimeout)
	assert.Equal(t, defaults.DrbDifficulty, config.DrbDifficulty)
	assert.Empty(t, config.BuilderURLs)

	nodeConfig, err := config.Node()
	require.NoError(t, err)
	assert.Equal(t, chain.LegacyVersion, nodeConfig.Versions.Base)
	assert.Equal(t, chain.EpochVersion, nodeConfig.Versions.Upgrade)
	// the default never proposes an upgrade and votes for a matching one in any view
	assert.False(t, nodeConfig.Upgrade.ProposingViews.Contains(10))
	assert.True(t, nodeConfig.Upgrade.VotingViews.Contains(math.MaxUint64-1))
}

func TestFlagsOverrideDefaults(t *testing.T) {
	config, err := Load(flagSet(t,
		"--nodes=7",
		"--da-committee-size=5",
		"--epoch-height=100",
		"--min-view-timeout=500ms",
		"--builder-urls=http://a.test,http://b.test",
		"--upgrade-vote-view-start=10",
		"--upgrade-vote-view-stop=20",
	))
	require.NoError(t, err)
	assert.Equal(t, 7, config.Nodes)
	assert.Equal(t, 5, config.DaCommitteeSize)
	assert.Equal(t, uint64(100), config.EpochHeight)
	assert.Equal(t, 500*time.Millisecond, config.MinViewTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, config.BuilderURLs)

	nodeConfig, err := config.Node()
	require.NoError(t, err)
	assert.Equal(t, float64(500), nodeConfig.Timeout.MinReplicaTimeout)
	assert.True(t, nodeConfig.Upgrade.VotingViews.Contains(10))
	assert.False(t, nodeConfig.Upgrade.VotingViews.Contains(20))
}

func TestEnvironmentAndFile(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		path := filepath.Join(dir, "hotshot.yaml")
		require.NoError(t, os.WriteFile(path, []byte("nodes: 6\nchain-id: from-file\nepoch-height: 50\n"), 0o600))
		t.Setenv("HOTSHOT_EPOCH_HEIGHT", "70")

		config, err := Load(flagSet(t, "--config="+path, "--chain-id=from-flag"))
		require.NoError(t, err)
		assert.Equal(t, 6, config.Nodes)
		assert.Equal(t, "from-flag", config.ChainID)
		assert.Equal(t, uint64(70), config.EpochHeight)
	})
}

func TestZeroBuilderRetryIsRejected(t *testing.T) {
	_, err := Load(flagSet(t, "--builder-retry-delay=0s"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builder retry delay")
}

func TestValidate(t *testing.T) {
	t.Run("collects every problem", func(t *testing.T) {
		config := DefaultConfig()
		config.Nodes = 2
		config.DaCommitteeSize = 3
		config.Committee = "elected"
		config.Seed = "zz"
		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "da committee size")
		assert.Contains(t, err.Error(), "unknown committee")
		assert.Contains(t, err.Error(), "invalid seed")
	})

	t.Run("timeouts", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxViewTimeout = config.MinViewTimeout / 2
		assert.Error(t, config.Validate())
	})

	t.Run("versions", func(t *testing.T) {
		config := DefaultConfig()
		config.UpgradeVersion = "not-a-version"
		assert.Error(t, config.Validate())

		config = DefaultConfig()
		config.BaseVersion, config.UpgradeVersion = "0.3.0", "0.2.0"
		assert.Error(t, config.Validate())

		config = DefaultConfig()
		config.UpgradeHash = "abcd"
		assert.Error(t, config.Validate())
	})

	t.Run("builder retry delay", func(t *testing.T) {
		config := DefaultConfig()
		config.BuilderRetry = 0
		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "builder retry delay")

		config.BuilderRetry = -time.Second
		assert.Error(t, config.Validate())
	})

	t.Run("voting window", func(t *testing.T) {
		config := DefaultConfig()
		config.VoteViewStart, config.VoteViewStop = 20, 10
		assert.Error(t, config.Validate())
	})
}

func TestNodeSeed(t *testing.T) {
	config := DefaultConfig()
	first, err := config.NodeSeed(0, 1)
	require.NoError(t, err)
	again, err := config.NodeSeed(0, 1)
	require.NoError(t, err)
	other, err := config.NodeSeed(1, 1)
	require.NoError(t, err)
	state, err := config.NodeSeed(0, 2)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)
	assert.NotEqual(t, first, state)
	assert.GreaterOrEqual(t, len(first), 32)
}
