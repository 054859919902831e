package util

import (
	"context"
	"sync"

	"github.com/hotshot-go/hotshot/module"
)

// AllReady returns a channel that is closed once every component is ready.
func AllReady(components ...module.ReadyDoneAware) <-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(components))
	for _, c := range components {
		chans = append(chans, c.Ready())
	}
	return AllClosed(chans...)
}

// AllDone returns a channel that is closed once every component is done.
func AllDone(components ...module.ReadyDoneAware) <-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(components))
	for _, c := range components {
		chans = append(chans, c.Done())
	}
	return AllClosed(chans...)
}

// AllClosed returns a channel that is closed when all input channels are closed.
func AllClosed(channels ...<-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(channels))
	for _, ch := range channels {
		go func(ch <-chan struct{}) {
			defer wg.Done()
			<-ch
		}(ch)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// WaitClosed waits for the channel to close or the context to be cancelled. A channel that
// closed concurrently with the cancellation still counts as closed.
func WaitClosed(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		if CheckClosed(ch) {
			return nil
		}
		return ctx.Err()
	}
}

// CheckClosed returns true if the channel was signalled or closed.
func CheckClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// WaitError waits for either an error on the error channel or the done channel to close.
//
// Both channels may be ready at once when done closed because of the error; the error
// takes precedence so that callers never mistake a failure for a clean shutdown.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
		select {
		case err := <-errChan:
			return err
		default:
		}
		return nil
	}
}
