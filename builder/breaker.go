// Package builder wraps clients of external block builders.
package builder

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
)

// BreakerConfig configures the circuit breaker of a builder client.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failed requests that opens the breaker.
	MaxFailures uint32
	// RestoreTimeout is how long the breaker stays open before it lets a probe request through.
	RestoreTimeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:    5,
		RestoreTimeout: 10 * time.Second,
	}
}

// BreakerClient stops calling a builder that keeps failing. While the breaker is open every
// request fails immediately with gobreaker.ErrOpenState, so a dead builder does not eat into the
// leader's builder timeout.
type BreakerClient struct {
	client  hotshot.BuilderClient
	breaker *gobreaker.CircuitBreaker
}

var _ hotshot.BuilderClient = (*BreakerClient)(nil)

func NewBreakerClient(log zerolog.Logger, client hotshot.BuilderClient, config BreakerConfig) *BreakerClient {
	log = log.With().Str("builder", client.URL()).Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    client.URL(),
		Timeout: config.RestoreTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("builder circuit breaker changed state")
		},
		// a cancelled request says nothing about the builder
		IsSuccessful: func(err error) bool {
			return err == nil || err == context.Canceled || err == context.DeadlineExceeded
		},
	})
	return &BreakerClient{client: client, breaker: breaker}
}

func (b *BreakerClient) URL() string {
	return b.client.URL()
}

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerClient) AvailableBlocks(ctx context.Context, parent chain.Commitment, view uint64, sender chain.NodeID, signature []byte) ([]hotshot.AvailableBlockInfo, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.AvailableBlocks(ctx, parent, view, sender, signature)
	})
	if err != nil {
		return nil, err
	}
	return res.([]hotshot.AvailableBlockInfo), nil
}

func (b *BreakerClient) ClaimBlock(ctx context.Context, blockHash chain.Commitment, view uint64, sender chain.NodeID, signature []byte) (*hotshot.AvailableBlockData, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.ClaimBlock(ctx, blockHash, view, sender, signature)
	})
	if err != nil {
		return nil, err
	}
	return res.(*hotshot.AvailableBlockData), nil
}

func (b *BreakerClient) ClaimBlockHeaderInput(ctx context.Context, blockHash chain.Commitment, view uint64, sender chain.NodeID, signature []byte) (*hotshot.AvailableBlockHeaderInput, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.ClaimBlockHeaderInput(ctx, blockHash, view, sender, signature)
	})
	if err != nil {
		return nil, err
	}
	return res.(*hotshot.AvailableBlockHeaderInput), nil
}
