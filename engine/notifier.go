package engine

// Notifier is a concurrency primitive for informing a worker routine about the arrival
// of new work. Notifiers behave like channels: they can be passed by value and still
// share the same internal state.
//
// Notify never blocks. Notifications that arrive while one is already pending are
// merged, so a single receive from Channel may stand for many Notify calls. Workers
// therefore drain their queue completely after each notification.
type Notifier struct {
	notifier chan struct{} // buffered channel with capacity 1
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
