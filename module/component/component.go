// Package component runs the long-lived goroutines of a node. A ComponentManager starts a
// fixed set of workers, reports when all of them are ready and when all of them returned, and
// stops every worker as soon as one of them throws an irrecoverable error.
package component

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/hotshot-go/hotshot/module"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
	"github.com/hotshot-go/hotshot/module/util"
)

// ErrAlreadyStarted is the panic value of a second Start.
var ErrAlreadyStarted = errors.New("component may only be started once")

// Component can be started once and stopped by cancelling its context.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a worker once it is ready.
type ReadyFunc func()

// ComponentWorker is a goroutine of a component. It must call ready once, throw
// irrecoverable errors on ctx and return when ctx is cancelled.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects the workers of a ComponentManager.
type ComponentManagerBuilder struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() *ComponentManagerBuilder {
	return &ComponentManagerBuilder{}
}

// AddWorker registers a worker. It is not safe for concurrent use.
func (b *ComponentManagerBuilder) AddWorker(worker ComponentWorker) *ComponentManagerBuilder {
	b.workers = append(b.workers, worker)
	return b
}

// Build returns a manager running the registered workers. Every manager built starts its
// own copy of each worker.
func (b *ComponentManagerBuilder) Build() *ComponentManager {
	return &ComponentManager{
		workers: append([]ComponentWorker(nil), b.workers...),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager implements Component for a set of workers. Ready closes once every worker
// called its ReadyFunc. Done closes after every worker returned. The first error thrown by a
// worker cancels the others and is rethrown on the context passed to Start.
type ComponentManager struct {
	started atomic.Bool
	workers []ComponentWorker
	ready   chan struct{}
	done    chan struct{}
}

// Start launches the workers. It panics with ErrAlreadyStarted when called twice.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(ErrAlreadyStarted)
	}

	ctx, cancel := context.WithCancel(parent)
	signaler, errs := irrecoverable.WithSignaler(ctx)

	var ready, returned sync.WaitGroup
	ready.Add(len(c.workers))
	returned.Add(len(c.workers))
	for _, worker := range c.workers {
		go func(worker ComponentWorker) {
			defer returned.Done()
			var once sync.Once
			worker(signaler, func() { once.Do(ready.Done) })
		}(worker)
	}

	go func() {
		ready.Wait()
		close(c.ready)
	}()

	stopped := make(chan struct{})
	go func() {
		returned.Wait()
		close(stopped)
	}()

	go func() {
		// done closes only after the error reached the parent
		defer close(c.done)
		defer cancel()
		if err := util.WaitError(errs, stopped); err != nil {
			cancel()
			<-stopped
			parent.Throw(err)
		}
	}()
}

// Ready returns a channel that is closed once every worker is ready. It never closes if a
// worker returns without calling its ReadyFunc.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done returns a channel that is closed once every worker returned.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}
