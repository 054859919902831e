package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/module"
	"github.com/hotshot-go/hotshot/module/component"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
)

// Handler is the state machine of a consensus task. Handle processes one event and
// publishes the task's output on the bus it was constructed with.
//
// Handle returns nil when the event was acted on. A model.SkipError reports a deliberate
// skip, rejection errors (see model.IsRejection) report invalid input. Any other error is
// a failure of this event's processing; the task continues with the next event.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event events.Event) error
}

// Closer is implemented by handlers that own background resources.
type Closer interface {
	Close()
}

// WorkerProvider is implemented by handlers that need background workers next to the event
// loop, such as a timer. The workers run for the lifetime of the runner.
type WorkerProvider interface {
	Workers() []component.ComponentWorker
}

// TaskRunner drives a Handler: it subscribes to the bus, queues every event and hands them
// to the handler one at a time in delivery order.
type TaskRunner struct {
	*component.ComponentManager
	log      zerolog.Logger
	handler  Handler
	metrics  module.TaskMetrics
	queue    *FifoQueue[events.Event]
	notifier Notifier
}

var _ events.Subscriber = (*TaskRunner)(nil)
var _ component.Component = (*TaskRunner)(nil)

// NewTaskRunner creates a runner for the handler. The runner does not subscribe itself;
// the caller registers it with the bus before starting.
func NewTaskRunner(log zerolog.Logger, handler Handler, metrics module.TaskMetrics, opts ...QueueOption) (*TaskRunner, error) {
	name := handler.Name()
	opts = append(opts, WithLengthObserver(func(length int) { metrics.InboundQueueLength(name, length) }))
	queue, err := NewFifoQueue[events.Event](opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create inbound queue for task %s: %w", name, err)
	}
	r := &TaskRunner{
		log:      log.With().Str("task", name).Logger(),
		handler:  handler,
		metrics:  metrics,
		queue:    queue,
		notifier: NewNotifier(),
	}
	builder := component.NewComponentManagerBuilder().AddWorker(r.loop)
	if provider, ok := handler.(WorkerProvider); ok {
		for _, worker := range provider.Workers() {
			builder.AddWorker(worker)
		}
	}
	r.ComponentManager = builder.Build()
	return r, nil
}

// Deliver queues the event for processing.
func (r *TaskRunner) Deliver(event events.Event) {
	if !r.queue.Push(event) {
		r.log.Warn().Str("event", event.Name()).Msg("inbound queue full, dropping event")
		r.metrics.EventProcessed(r.handler.Name(), event.Name(), module.OutcomeFailed)
		return
	}
	r.notifier.Notify()
}

func (r *TaskRunner) loop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	if closer, ok := r.handler.(Closer); ok {
		defer closer.Close()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.notifier.Channel():
			if err := r.drain(ctx); err != nil {
				return
			}
		}
	}
}

func (r *TaskRunner) drain(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		event, ok := r.queue.Pop()
		if !ok {
			return nil
		}
		r.process(ctx, event)
	}
}

func (r *TaskRunner) process(ctx context.Context, event events.Event) {
	start := time.Now()
	err := r.handler.Handle(ctx, event)
	r.metrics.EventProcessingDuration(r.handler.Name(), event.Name(), time.Since(start))

	outcome := Classify(err)
	r.metrics.EventProcessed(r.handler.Name(), event.Name(), outcome)
	switch outcome {
	case module.OutcomeSkipped:
		r.log.Debug().Str("event", event.Name()).Err(err).Msg("event skipped")
	case module.OutcomeRejected:
		r.log.Warn().Str("event", event.Name()).Err(err).Msg("event rejected")
	case module.OutcomeFailed:
		r.log.Error().Str("event", event.Name()).Err(err).Msg("event processing failed")
	}
}

// Classify maps a handler result to a task outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return module.OutcomeHandled
	case model.IsSkipError(err):
		return module.OutcomeSkipped
	case model.IsRejection(err):
		return module.OutcomeRejected
	default:
		return module.OutcomeFailed
	}
}
