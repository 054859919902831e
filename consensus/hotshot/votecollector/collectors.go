package votecollector

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/model/chain"
)

// NewCollectorFactoryMethod creates the collector of a view.
type NewCollectorFactoryMethod[D chain.VoteData] func(view uint64) (*Collector[D], error)

// Collectors holds one Collector per view and prunes collectors of finished views.
type Collectors[D chain.VoteData] struct {
	log                zerolog.Logger
	lock               sync.RWMutex
	lowestRetainedView uint64
	collectors         map[uint64]*Collector[D]
	createCollector    NewCollectorFactoryMethod[D]
}

func NewCollectors[D chain.VoteData](log zerolog.Logger, lowestRetainedView uint64, createCollector NewCollectorFactoryMethod[D]) *Collectors[D] {
	return &Collectors[D]{
		log:                log,
		lowestRetainedView: lowestRetainedView,
		collectors:         make(map[uint64]*Collector[D]),
		createCollector:    createCollector,
	}
}

// DefaultCollectors creates collectors that verify with verifier and weigh votes with weights.
func DefaultCollectors[D chain.VoteData](log zerolog.Logger, lowestRetainedView uint64, weights WeightSource, verifier SignatureVerifier) *Collectors[D] {
	return NewCollectors(log, lowestRetainedView, func(view uint64) (*Collector[D], error) {
		return NewCollector[D](log, view, weights, verifier), nil
	})
}

// GetOrCreateCollector retrieves the collector for the view or creates one if none exists.
// It returns:
//   - (collector, true, nil) if no collector existed and a new one was created
//   - (collector, false, nil) if the collector already existed
//   - (nil, false, ErrStaleView) if the view is below the lowest retained view
func (c *Collectors[D]) GetOrCreateCollector(view uint64) (*Collector[D], bool, error) {
	cachedCollector, hasCachedCollector, err := c.getCollector(view)
	if err != nil {
		return nil, false, err
	}
	if hasCachedCollector {
		return cachedCollector, false, nil
	}

	collector, err := c.createCollector(view)
	if err != nil {
		return nil, false, fmt.Errorf("could not create vote collector for view %d: %w", view, err)
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	// someone else might have created the collector in the meantime
	if view < c.lowestRetainedView {
		return nil, false, fmt.Errorf("view %d below lowest retained view %d: %w", view, c.lowestRetainedView, ErrStaleView)
	}
	if existing, found := c.collectors[view]; found {
		return existing, false, nil
	}
	c.collectors[view] = collector
	return collector, true, nil
}

func (c *Collectors[D]) getCollector(view uint64) (*Collector[D], bool, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if view < c.lowestRetainedView {
		return nil, false, fmt.Errorf("view %d below lowest retained view %d: %w", view, c.lowestRetainedView, ErrStaleView)
	}
	collector, found := c.collectors[view]
	return collector, found, nil
}

// AddVote routes the vote to the collector of its view. See Collector.AddVote.
func (c *Collectors[D]) AddVote(vote *chain.SimpleVote[D]) (*chain.SimpleCertificate[D], error) {
	collector, _, err := c.GetOrCreateCollector(vote.View)
	if err != nil {
		return nil, err
	}
	return collector.AddVote(vote)
}

// PruneUpToView prunes the collectors with views _below_ the given view.
// If `view` is smaller than the previous value, the call is a NoOp.
func (c *Collectors[D]) PruneUpToView(lowestRetainedView uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.lowestRetainedView >= lowestRetainedView {
		return
	}
	if uint64(len(c.collectors)) < lowestRetainedView-c.lowestRetainedView {
		for view := range c.collectors {
			if view < lowestRetainedView {
				delete(c.collectors, view)
			}
		}
	} else {
		for view := c.lowestRetainedView; view < lowestRetainedView; view++ {
			delete(c.collectors, view)
		}
	}
	from := c.lowestRetainedView
	c.lowestRetainedView = lowestRetainedView

	c.log.Debug().
		Uint64("prior_lowest_retained_view", from).
		Uint64("lowest_retained_view", lowestRetainedView).
		Msg("pruned vote collectors")
}

// LowestRetainedView returns the lowest view a collector may be created for.
func (c *Collectors[D]) LowestRetainedView() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lowestRetainedView
}
