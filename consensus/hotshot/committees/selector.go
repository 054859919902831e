package committees

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/hotshot-go/hotshot/consensus/hotshot/committees/leader"
	"github.com/hotshot-go/hotshot/crypto/random"
	"github.com/hotshot-go/hotshot/model/chain"
)

// Selector narrows an epoch's stake table to its voting committee and elects view leaders
// from that committee. The selector of a network is fixed at configuration time.
type Selector interface {
	// Name identifies the selector in logs and configuration.
	Name() string

	// NeedsDrb returns true if committee selection for an epoch depends on its DRB result.
	NeedsDrb() bool

	// SelectCommittee returns the committee of the epoch, preserving stake table order.
	SelectCommittee(epoch uint64, table chain.StakeTable, drb chain.DrbResult) (chain.StakeTable, error)

	// SelectLeader returns the leader of the view from the committee. epoch is NoEpoch before epochs activate.
	SelectLeader(view uint64, epoch chain.Epoch, committee chain.StakeTable, drb chain.DrbResult) (chain.NodeID, error)
}

// StaticSelector uses the whole stake table as committee and rotates leadership round robin.
type StaticSelector struct{}

var _ Selector = StaticSelector{}

func (StaticSelector) Name() string { return "static" }

func (StaticSelector) NeedsDrb() bool { return false }

func (StaticSelector) SelectCommittee(_ uint64, table chain.StakeTable, _ chain.DrbResult) (chain.StakeTable, error) {
	return table, nil
}

func (StaticSelector) SelectLeader(view uint64, _ chain.Epoch, committee chain.StakeTable, _ chain.DrbResult) (chain.NodeID, error) {
	return leader.RoundRobinLeader(view, committee)
}

// RandomizedSelector samples a committee of fixed size from the epoch's stake table using the
// epoch's DRB result, and elects stake-weighted leaders with a view-seeded PRNG.
type RandomizedSelector struct {
	// CommitteeSize is the number of members per epoch. Zero or a size above the
	// table size selects the whole table.
	CommitteeSize int
}

var _ Selector = RandomizedSelector{}

func (RandomizedSelector) Name() string { return "randomized" }

func (RandomizedSelector) NeedsDrb() bool { return true }

func (s RandomizedSelector) SelectCommittee(epoch uint64, table chain.StakeTable, drb chain.DrbResult) (chain.StakeTable, error) {
	if s.CommitteeSize <= 0 || s.CommitteeSize >= len(table) {
		return table, nil
	}
	var customizer [8]byte
	binary.BigEndian.PutUint64(customizer[:], epoch)
	rng, err := random.NewChacha20PRG(drb[:], customizer[:])
	if err != nil {
		return nil, fmt.Errorf("could not create committee selection rng: %w", err)
	}

	indices := make([]int, len(table))
	for i := range indices {
		indices[i] = i
	}
	err = rng.Samples(len(indices), s.CommitteeSize, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	if err != nil {
		return nil, fmt.Errorf("could not sample committee: %w", err)
	}
	selected := indices[:s.CommitteeSize]
	sort.Ints(selected)

	committee := make(chain.StakeTable, 0, len(selected))
	for _, i := range selected {
		committee = append(committee, table[i])
	}
	return committee, nil
}

func (RandomizedSelector) SelectLeader(view uint64, epoch chain.Epoch, committee chain.StakeTable, drb chain.DrbResult) (chain.NodeID, error) {
	if !epoch.Valid {
		// before epochs activate there is no DRB; fall back to a fixed seed over the genesis committee
		return leader.SelectLeader([32]byte{}, view, committee)
	}
	return leader.SelectLeader(drb, view, committee)
}
