package pubsub

import (
	"sync"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/events"
	"github.com/hotshot-go/hotshot/model/chain"
)

type OnLeavesDecidedConsumer = func(leaves []*chain.Leaf, qc *chain.QuorumCertificate)
type OnViewFinishedConsumer = func(view uint64)

// Distributor subscribes to the event bus and distributes decides and finished views to
// external consumers. Consumers are called on the publishing goroutine and must not block.
type Distributor struct {
	leavesDecidedConsumers []OnLeavesDecidedConsumer
	viewFinishedConsumers  []OnViewFinishedConsumer
	lock                   sync.RWMutex
}

var _ hotshot.Distributor = (*Distributor)(nil)
var _ events.Subscriber = (*Distributor)(nil)

func NewDistributor() *Distributor {
	return &Distributor{}
}

func (p *Distributor) AddOnLeavesDecidedConsumer(consumer OnLeavesDecidedConsumer) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.leavesDecidedConsumers = append(p.leavesDecidedConsumers, consumer)
}

func (p *Distributor) AddOnViewFinishedConsumer(consumer OnViewFinishedConsumer) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.viewFinishedConsumers = append(p.viewFinishedConsumers, consumer)
}

// Deliver forwards decides, and reports view v-1 as finished when the node enters view v.
func (p *Distributor) Deliver(event events.Event) {
	switch e := event.(type) {
	case events.LeavesDecided:
		p.onLeavesDecided(e.Leaves, e.QC)
	case events.ViewChange:
		if e.View > 0 {
			p.onViewFinished(e.View - 1)
		}
	}
}

func (p *Distributor) onLeavesDecided(leaves []*chain.Leaf, qc *chain.QuorumCertificate) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, consumer := range p.leavesDecidedConsumers {
		consumer(leaves, qc)
	}
}

func (p *Distributor) onViewFinished(view uint64) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, consumer := range p.viewFinishedConsumers {
		consumer(view)
	}
}
