// Package irrecoverable carries fatal errors from worker goroutines to the owner of their
// context. A worker that cannot continue throws the error on its SignalerContext instead of
// panicking, and the owner decides how the node shuts down.
package irrecoverable

import (
	"context"
	"runtime"
)

// Signaler delivers the first thrown error on its channel.
type Signaler struct {
	errs chan error
}

func NewSignaler() (*Signaler, <-chan error) {
	errs := make(chan error, 1)
	return &Signaler{errs: errs}, errs
}

// Throw delivers err unless an error was already delivered, then exits the calling goroutine.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	select {
	case s.errs <- err:
	default:
	}
}

// SignalerContext is a context with a Throw method. It can only be created by WithSignaler.
type SignalerContext interface {
	context.Context
	Throw(err error)
	sealed()
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (signalerCtx) sealed() {}

// WithSignaler returns a SignalerContext derived from parent and the channel its first thrown
// error is delivered on.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errs := NewSignaler()
	return &signalerCtx{parent, sig}, errs
}
