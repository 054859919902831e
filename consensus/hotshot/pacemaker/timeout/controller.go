package timeout

import (
	"context"
	"math"
	"sync"
	"time"
)

// TimerInfo describes a started view timer.
type TimerInfo struct {
	View      uint64
	StartTime time.Time
	Duration  time.Duration
}

// Controller implements the following truncated exponential backoff:
//
//	duration = t_min * min(b ^ ((r-k) * θ(r-k)), t_max)
//
// which is computed as
//
//	duration(r) = t_min * b ^ (min((r-k) * θ(r-k)), c), where c = log_b (t_max / t_min).
//
// In described formula:
//
//	k - number of views we expect to fail on the happy path before timeouts grow
//	b - timeout increase factor
//	r - failed views counter
//	θ - Heaviside step function
//	t_min/t_max - minimum/maximum view duration
//
// On timeout r increases, on progress it decreases, which yields exponential growth and
// decay of the view duration.
//
// Concurrency safe.
type Controller struct {
	cfg         Config
	maxExponent float64 // derived from the maximum view duration

	mu             sync.Mutex
	timeoutChannel chan uint64
	stopTimer      context.CancelFunc
	timerInfo      *TimerInfo
	r              uint64 // failed views counter
}

// NewController creates a new Controller.
func NewController(cfg Config) *Controller {
	// log_b(x) = log_e(x) / log_e(b)
	maxExponent := math.Log(cfg.MaxReplicaTimeout/cfg.MinReplicaTimeout) / math.Log(cfg.TimeoutAdjustmentFactor)
	return &Controller{
		cfg:            cfg,
		maxExponent:    maxExponent,
		timeoutChannel: make(chan uint64, 1),
		stopTimer:      func() {},
	}
}

// Channel delivers the view of every timer that expired. Timers that are superseded by
// StartTimeout before they expire never fire.
func (t *Controller) Channel() <-chan uint64 {
	return t.timeoutChannel
}

// StartTimeout stops the running timer and starts the timer of the given view.
func (t *Controller) StartTimeout(ctx context.Context, view uint64) TimerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimer()
	var timerCtx context.Context
	timerCtx, t.stopTimer = context.WithCancel(ctx)

	duration := t.replicaTimeout()
	info := TimerInfo{View: view, StartTime: time.Now().UTC(), Duration: duration}
	t.timerInfo = &info
	go fireAfter(timerCtx, duration, view, t.timeoutChannel)
	return info
}

// Stop stops the running timer.
func (t *Controller) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer()
}

// TimerInfo returns the running timer, or nil if none was started.
func (t *Controller) TimerInfo() *TimerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timerInfo
}

func fireAfter(ctx context.Context, duration time.Duration, view uint64, sink chan<- uint64) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		select {
		case sink <- view:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
}

// ReplicaTimeout returns the duration of the current view before we time out.
func (t *Controller) ReplicaTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replicaTimeout()
}

func (t *Controller) replicaTimeout() time.Duration {
	ms := t.cfg.MinReplicaTimeout
	if t.r > t.cfg.HappyPathMaxRoundFailures {
		r := float64(t.r - t.cfg.HappyPathMaxRoundFailures)
		if r >= t.maxExponent {
			ms = t.cfg.MaxReplicaTimeout
		} else {
			ms = t.cfg.MinReplicaTimeout * math.Pow(t.cfg.TimeoutAdjustmentFactor, r)
		}
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// OnTimeout indicates to the Controller that the view was left through a timeout certificate.
func (t *Controller) OnTimeout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if float64(t.r) >= t.maxExponent+float64(t.cfg.HappyPathMaxRoundFailures) {
		return
	}
	t.r++
}

// OnProgressBeforeTimeout indicates to the Controller that a QC was formed before the timeout.
func (t *Controller) OnProgressBeforeTimeout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.r > 0 {
		t.r--
	}
}
