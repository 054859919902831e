package chain

// PeerConfig is a single stake table entry.
type PeerConfig struct {
	NodeID NodeID
	// StakingKey is the serialized BLS public key used for votes and proposals.
	StakingKey []byte
	// Stake is the raw stake weight. Members with zero stake can neither lead nor vote.
	Stake uint64
	// StateKey is the serialized Schnorr key used for light-client state attestations. Optional.
	StateKey []byte
}

// StakeTable is an ordered list of committee members. The order is canonical: signer
// sets of certificates are expressed relative to it.
type StakeTable []PeerConfig

// TotalStake returns the sum of all entries' stake.
func (t StakeTable) TotalStake() uint64 {
	var total uint64
	for _, entry := range t {
		total += entry.Stake
	}
	return total
}

// Eligible returns the entries with non-zero stake, preserving order.
func (t StakeTable) Eligible() StakeTable {
	eligible := make(StakeTable, 0, len(t))
	for _, entry := range t {
		if entry.Stake > 0 {
			eligible = append(eligible, entry)
		}
	}
	return eligible
}

// Lookup returns the entry of the given node.
func (t StakeTable) Lookup(nodeID NodeID) (PeerConfig, bool) {
	for _, entry := range t {
		if entry.NodeID == nodeID {
			return entry, true
		}
	}
	return PeerConfig{}, false
}

// Index returns the position of the given node in the table.
func (t StakeTable) Index(nodeID NodeID) (int, bool) {
	for i, entry := range t {
		if entry.NodeID == nodeID {
			return i, true
		}
	}
	return 0, false
}

// NodeIDs returns the node identifiers in table order.
func (t StakeTable) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(t))
	for _, entry := range t {
		ids = append(ids, entry.NodeID)
	}
	return ids
}

// Weights returns the stake weights in table order.
func (t StakeTable) Weights() []uint64 {
	weights := make([]uint64, 0, len(t))
	for _, entry := range t {
		weights = append(weights, entry.Stake)
	}
	return weights
}
