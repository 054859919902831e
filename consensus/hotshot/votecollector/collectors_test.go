package votecollector

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

var factoryError = errors.New("factory error")

func TestCollectors(t *testing.T) {
	suite.Run(t, new(CollectorsTestSuite))
}

// CollectorsTestSuite is a test suite for isolated testing of Collectors.
type CollectorsTestSuite struct {
	suite.Suite

	prepared   map[uint64]*Collector[chain.TimeoutData]
	collectors *Collectors[chain.TimeoutData]
	lowestView uint64
}

func (s *CollectorsTestSuite) SetupTest() {
	s.lowestView = 1000
	s.prepared = make(map[uint64]*Collector[chain.TimeoutData])
	factoryMethod := func(view uint64) (*Collector[chain.TimeoutData], error) {
		if collector, found := s.prepared[view]; found {
			return collector, nil
		}
		return nil, fmt.Errorf("collector %v not prepared: %w", view, factoryError)
	}
	s.collectors = NewCollectors(unittest.Logger(), s.lowestView, factoryMethod)
}

func (s *CollectorsTestSuite) prepareCollector(view uint64) *Collector[chain.TimeoutData] {
	collector := NewCollector[chain.TimeoutData](unittest.Logger(), view, nil, nil)
	s.prepared[view] = collector
	return collector
}

// TestGetOrCreateCollector_ViewLowerThanLowest tests that collectors for pruned views are not created.
func (s *CollectorsTestSuite) TestGetOrCreateCollector_ViewLowerThanLowest() {
	collector, created, err := s.collectors.GetOrCreateCollector(s.lowestView - 10)
	require.Nil(s.T(), collector)
	require.False(s.T(), created)
	require.ErrorIs(s.T(), err, ErrStaleView)
}

// TestGetOrCreateCollector_ValidCollector tests creating and then retrieving a cached collector.
func (s *CollectorsTestSuite) TestGetOrCreateCollector_ValidCollector() {
	view := s.lowestView + 10
	s.prepareCollector(view)
	collector, created, err := s.collectors.GetOrCreateCollector(view)
	require.NoError(s.T(), err)
	require.True(s.T(), created)
	require.Equal(s.T(), view, collector.View())

	cached, cachedCreated, err := s.collectors.GetOrCreateCollector(view)
	require.NoError(s.T(), err)
	require.False(s.T(), cachedCreated)
	require.Same(s.T(), collector, cached)
}

// TestGetOrCreateCollector_FactoryError tests that errors of the factory method are propagated.
func (s *CollectorsTestSuite) TestGetOrCreateCollector_FactoryError() {
	collector, created, err := s.collectors.GetOrCreateCollector(s.lowestView + 10)
	require.Nil(s.T(), collector)
	require.False(s.T(), created)
	require.ErrorIs(s.T(), err, factoryError)
}

// TestGetOrCreateCollectors_ConcurrentAccess tests that concurrent access creates only one collector.
func (s *CollectorsTestSuite) TestGetOrCreateCollectors_ConcurrentAccess() {
	createdTimes := atomic.NewUint64(0)
	view := s.lowestView + 10
	s.prepareCollector(view)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := s.collectors.GetOrCreateCollector(view)
			require.NoError(s.T(), err)
			if created {
				createdTimes.Add(1)
			}
		}()
	}

	unittest.AssertReturnsBefore(s.T(), wg.Wait, time.Second)
	require.Equal(s.T(), uint64(1), createdTimes.Load())
}

// TestPruneUpToView tests pruning removes collectors below the pruning view and keeps the rest.
func (s *CollectorsTestSuite) TestPruneUpToView() {
	numberOfCollectors := uint64(10)
	prunedViews := make([]uint64, 0)
	for i := uint64(0); i < numberOfCollectors; i++ {
		view := s.lowestView + i
		s.prepareCollector(view)
		_, _, err := s.collectors.GetOrCreateCollector(view)
		require.NoError(s.T(), err)
		prunedViews = append(prunedViews, view)
	}

	pruningView := s.lowestView + numberOfCollectors

	expectedCollectors := make([]*Collector[chain.TimeoutData], 0)
	for i := uint64(0); i < numberOfCollectors; i++ {
		view := pruningView + i
		s.prepareCollector(view)
		collector, _, err := s.collectors.GetOrCreateCollector(view)
		require.NoError(s.T(), err)
		expectedCollectors = append(expectedCollectors, collector)
	}

	s.collectors.PruneUpToView(pruningView)
	require.Equal(s.T(), pruningView, s.collectors.LowestRetainedView())

	for _, prunedView := range prunedViews {
		_, _, err := s.collectors.GetOrCreateCollector(prunedView)
		require.ErrorIs(s.T(), err, ErrStaleView)
	}

	for _, collector := range expectedCollectors {
		cached, _, err := s.collectors.GetOrCreateCollector(collector.View())
		require.NoError(s.T(), err)
		require.Same(s.T(), collector, cached)
	}

	// pruning to a lower view is a no-op
	s.collectors.PruneUpToView(s.lowestView)
	require.Equal(s.T(), pruningView, s.collectors.LowestRetainedView())
}
