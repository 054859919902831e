package module

import "github.com/hotshot-go/hotshot/module/irrecoverable"

// ReadyDoneAware is implemented by the long-running parts of a node. Both methods are
// idempotent and may be called before the component is started.
type ReadyDoneAware interface {
	// Ready returns a channel that is closed once startup completed.
	Ready() <-chan struct{}

	// Done returns a channel that is closed once shutdown completed.
	Done() <-chan struct{}
}

// Startable is started once with a context whose cancellation stops it. Irrecoverable
// errors are thrown on the context.
type Startable interface {
	Start(irrecoverable.SignalerContext)
}
