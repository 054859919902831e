package helpers

import (
	"context"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
)

type result[T any] struct {
	value T
	err   error
}

// RunOn executes fn on the workers and waits for its result or the context's cancellation.
func RunOn[T any](ctx context.Context, workers hotshot.Workers, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	workers.Submit(func() {
		value, err := fn()
		done <- result[T]{value: value, err: err}
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}
