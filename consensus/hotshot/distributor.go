package hotshot

import "github.com/hotshot-go/hotshot/model/chain"

// Distributor fans decided output out to external consumers, such as a query service.
type Distributor interface {
	AddOnLeavesDecidedConsumer(consumer func(leaves []*chain.Leaf, qc *chain.QuorumCertificate))

	AddOnViewFinishedConsumer(consumer func(view uint64))
}
