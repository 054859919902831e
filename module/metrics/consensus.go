package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hotshot-go/hotshot/module"
)

// ConsensusCollector bundles all collectors of the consensus core.
type ConsensusCollector struct {
	*HotShotCollector
	*TaskCollector
	*CertificateCollector
	*BuilderCollector
	*MempoolCollector
}

var _ module.ConsensusMetrics = (*ConsensusCollector)(nil)

// NewConsensusCollector registers all collectors with the registerer.
func NewConsensusCollector(registerer prometheus.Registerer) *ConsensusCollector {
	return &ConsensusCollector{
		HotShotCollector:     NewHotShotCollector(registerer),
		TaskCollector:        NewTaskCollector(registerer),
		CertificateCollector: NewCertificateCollector(registerer),
		BuilderCollector:     NewBuilderCollector(registerer),
		MempoolCollector:     NewMempoolCollector(registerer),
	}
}
