package timeout

import (
	"time"

	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
)

// Config contains the configuration parameters for the view timer.
type Config struct {
	// MinReplicaTimeout is the minimum view duration in milliseconds.
	MinReplicaTimeout float64
	// MaxReplicaTimeout is the maximum view duration in milliseconds.
	MaxReplicaTimeout float64
	// TimeoutAdjustmentFactor: MULTIPLICATIVE factor for increasing the timeout after a failed view.
	TimeoutAdjustmentFactor float64
	// HappyPathMaxRoundFailures is the number of failed views tolerated before the timeout grows.
	HappyPathMaxRoundFailures uint64
}

// NewDefaultConfig returns a Config with sensible defaults for a small network.
func NewDefaultConfig() Config {
	minReplicaTimeout := 2 * time.Second
	maxReplicaTimeout := 30 * time.Second
	conf, err := NewConfig(minReplicaTimeout, maxReplicaTimeout, 1.5, 3)
	if err != nil {
		// the defaults are valid by construction
		panic(err)
	}
	return conf
}

// NewConfig creates a new timeout configuration.
// Returns a model.ConfigurationError if the parameters are inconsistent.
func NewConfig(
	minReplicaTimeout time.Duration,
	maxReplicaTimeout time.Duration,
	timeoutAdjustmentFactor float64,
	happyPathMaxRoundFailures uint64,
) (Config, error) {
	if minReplicaTimeout <= 0 {
		return Config{}, model.NewConfigurationErrorf("minReplicaTimeout must be a positive number, got %v", minReplicaTimeout)
	}
	if maxReplicaTimeout < minReplicaTimeout {
		return Config{}, model.NewConfigurationErrorf("maxReplicaTimeout %v cannot be smaller than minReplicaTimeout %v", maxReplicaTimeout, minReplicaTimeout)
	}
	if timeoutAdjustmentFactor <= 1 {
		return Config{}, model.NewConfigurationErrorf("timeoutAdjustmentFactor must be strictly bigger than 1, got %v", timeoutAdjustmentFactor)
	}
	return Config{
		MinReplicaTimeout:         float64(minReplicaTimeout.Milliseconds()),
		MaxReplicaTimeout:         float64(maxReplicaTimeout.Milliseconds()),
		TimeoutAdjustmentFactor:   timeoutAdjustmentFactor,
		HappyPathMaxRoundFailures: happyPathMaxRoundFailures,
	}, nil
}
