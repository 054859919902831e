package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/mocks"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://builder.test")
	client.On("AvailableBlocks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Times(3)

	breaker := NewBreakerClient(unittest.Logger(), client, BreakerConfig{MaxFailures: 3, RestoreTimeout: time.Hour})
	ctx := context.Background()
	parent := unittest.CommitmentFixture()
	for i := 0; i < 3; i++ {
		_, err := breaker.AvailableBlocks(ctx, parent, 1, [32]byte{}, nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	// the open breaker fails without calling the builder
	_, err := breaker.AvailableBlocks(ctx, parent, 1, [32]byte{}, nil)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerIgnoresCancelledRequests(t *testing.T) {
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://builder.test")
	client.On("ClaimBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded).Times(2)

	breaker := NewBreakerClient(unittest.Logger(), client, BreakerConfig{MaxFailures: 1, RestoreTimeout: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := breaker.ClaimBlock(context.Background(), unittest.CommitmentFixture(), 1, [32]byte{}, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}

func TestBreakerPassesResults(t *testing.T) {
	client := mocks.NewBuilderClient(t)
	client.On("URL").Return("http://builder.test")
	input := &hotshot.AvailableBlockHeaderInput{FeeSignature: []byte{1}, Sender: []byte{2}}
	client.On("ClaimBlockHeaderInput", mock.Anything, mock.Anything, uint64(7), mock.Anything, mock.Anything).Return(input, nil).Once()

	breaker := NewBreakerClient(unittest.Logger(), client, DefaultBreakerConfig())
	res, err := breaker.ClaimBlockHeaderInput(context.Background(), unittest.CommitmentFixture(), 7, [32]byte{}, nil)
	require.NoError(t, err)
	assert.Equal(t, input, res)
	assert.Equal(t, "http://builder.test", breaker.URL())
}
