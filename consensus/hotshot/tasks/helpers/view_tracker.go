package helpers

import (
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/model/chain"
)

// ViewTracker holds a task's view of the current view and epoch. Both only move forward.
// Not concurrency safe: each task owns its tracker and updates it from its event loop.
type ViewTracker struct {
	view  uint64
	epoch chain.Epoch
}

func NewViewTracker(view uint64, epoch chain.Epoch) ViewTracker {
	return ViewTracker{view: view, epoch: epoch}
}

func (t *ViewTracker) View() uint64 { return t.view }

func (t *ViewTracker) Epoch() chain.Epoch { return t.epoch }

// Update moves to the given view and epoch.
// Returns a model.SkipError for views at or below the current view. An older epoch never
// replaces a newer one.
func (t *ViewTracker) Update(view uint64, epoch chain.Epoch) error {
	if view <= t.view {
		return model.NewSkipErrorf("view change to %d, current view %d: %w", view, t.view, model.ErrStaleView)
	}
	t.view = view
	if t.epoch.Before(epoch) {
		t.epoch = epoch
	}
	return nil
}
