package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/module"
)

func TestConsensusCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewConsensusCollector(registry)

	collector.SetCurView(12)
	collector.LeavesDecided(3)
	collector.LeavesDecided(2)
	collector.EventProcessed("da", "DaProposalRecv", module.OutcomeHandled)
	collector.EventProcessed("da", "DaProposalRecv", module.OutcomeSkipped)
	collector.EventProcessed("da", "DaProposalRecv", module.OutcomeSkipped)
	collector.EventProcessingDuration("da", "DaProposalRecv", time.Millisecond)
	collector.InboundQueueLength("da", 7)
	collector.CertificateFormed(KindDa)

	assert.Equal(t, float64(12), testutil.ToFloat64(collector.curView))
	assert.Equal(t, float64(5), testutil.ToFloat64(collector.leavesDecided))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.events.WithLabelValues("da", "DaProposalRecv", module.OutcomeSkipped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.formed.WithLabelValues(KindDa)))
	assert.Equal(t, float64(7), testutil.ToFloat64(collector.queued.WithLabelValues("da")))

	// every collector registers its own metrics exactly once
	require.Panics(t, func() { NewConsensusCollector(registry) })
	require.NotPanics(t, func() { NewConsensusCollector(prometheus.NewRegistry()) })
}
