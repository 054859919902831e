package stub

import (
	"sync"

	"github.com/hotshot-go/hotshot/model/chain"
)

// Hub stores the in-memory networks of a cluster so that they can deliver messages to each
// other directly.
//
// Concurrency safe.
type Hub struct {
	mu       sync.RWMutex
	networks map[chain.NodeID]*Network
}

// NewNetworkHub returns a hub without networks.
func NewNetworkHub() *Hub {
	return &Hub{
		networks: make(map[chain.NodeID]*Network),
	}
}

// GetNetwork returns the network of the node.
func (h *Hub) GetNetwork(nodeID chain.NodeID) (*Network, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	net, ok := h.networks[nodeID]
	return net, ok
}

// Plug stores the network in the hub. A network plugged for a node that is already known
// replaces the previous one, which is how a restarted node rejoins the cluster.
func (h *Hub) Plug(net *Network) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.networks[net.NodeID()] = net
}

// Unplug removes the node's network. Messages for the node are dropped until it is plugged again.
func (h *Hub) Unplug(nodeID chain.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.networks, nodeID)
}

// Networks returns every plugged network.
func (h *Hub) Networks() []*Network {
	h.mu.RLock()
	defer h.mu.RUnlock()
	nets := make([]*Network, 0, len(h.networks))
	for _, net := range h.networks {
		nets = append(nets, net)
	}
	return nets
}
