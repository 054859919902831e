package committees

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
)

// Committee is the stake table oracle. It tracks the stake tables and DRB results of known
// epochs and delegates committee and leader selection to a Selector.
//
// Concurrency safe: lookups take a read lock; registering epochs and DRB results takes the write lock.
type Committee struct {
	log         zerolog.Logger
	selector    Selector
	fetcher     hotshot.StakeTableFetcher
	epochHeight uint64

	mu         sync.RWMutex
	genesis    chain.StakeTable
	genesisDa  chain.StakeTable
	tables     map[uint64]chain.StakeTable
	daTables   map[uint64]chain.StakeTable
	drbs       map[uint64]chain.DrbResult
	committees map[uint64]chain.StakeTable
	firstEpoch *uint64
}

var _ hotshot.Membership = (*Committee)(nil)

// NewCommittee creates the oracle from the genesis quorum and DA stake tables. Entries without
// stake are dropped. fetcher may be nil, in which case every epoch reuses the genesis tables.
func NewCommittee(
	log zerolog.Logger,
	selector Selector,
	genesis chain.StakeTable,
	genesisDa chain.StakeTable,
	epochHeight uint64,
	fetcher hotshot.StakeTableFetcher,
) (*Committee, error) {
	eligible := genesis.Eligible()
	if len(eligible) == 0 {
		return nil, fmt.Errorf("genesis stake table has no member with stake")
	}
	eligibleDa := genesisDa.Eligible()
	if len(eligibleDa) == 0 {
		eligibleDa = eligible
	}
	return &Committee{
		log:         log.With().Str("component", "membership").Str("selector", selector.Name()).Logger(),
		selector:    selector,
		fetcher:     fetcher,
		epochHeight: epochHeight,
		genesis:     eligible,
		genesisDa:   eligibleDa,
		tables:      make(map[uint64]chain.StakeTable),
		daTables:    make(map[uint64]chain.StakeTable),
		drbs:        make(map[uint64]chain.DrbResult),
		committees:  make(map[uint64]chain.StakeTable),
	}, nil
}

// NewStaticCommittee creates an oracle with a round-robin leader over the full stake table.
func NewStaticCommittee(log zerolog.Logger, genesis, genesisDa chain.StakeTable, epochHeight uint64) (*Committee, error) {
	return NewCommittee(log, StaticSelector{}, genesis, genesisDa, epochHeight, nil)
}

// NewRandomizedCommittee creates an oracle that samples committeeSize members per epoch.
func NewRandomizedCommittee(log zerolog.Logger, genesis, genesisDa chain.StakeTable, epochHeight uint64, committeeSize int) (*Committee, error) {
	return NewCommittee(log, RandomizedSelector{CommitteeSize: committeeSize}, genesis, genesisDa, epochHeight, nil)
}

// quorum returns the committee and DRB of the epoch. The caller must hold the lock.
func (c *Committee) quorum(epoch chain.Epoch) (chain.StakeTable, chain.DrbResult, error) {
	if !epoch.Valid {
		return c.genesis, chain.DrbResult{}, nil
	}
	table, ok := c.tables[epoch.Number]
	if !ok {
		return nil, chain.DrbResult{}, newNoStakeTableError(epoch)
	}
	drb, hasDrb := c.drbs[epoch.Number]
	if !c.selector.NeedsDrb() {
		return table, drb, nil
	}
	if !hasDrb {
		return nil, chain.DrbResult{}, fmt.Errorf("%w: %v", newNoStakeTableError(epoch), ErrDrbMissing)
	}
	committee, ok := c.committees[epoch.Number]
	if !ok {
		return nil, chain.DrbResult{}, fmt.Errorf("committee of epoch %d was not selected", epoch.Number)
	}
	return committee, drb, nil
}

// selectCommittee caches the epoch's committee once both its table and DRB result are known.
// The caller must hold the write lock.
func (c *Committee) selectCommittee(epoch uint64) error {
	table, hasTable := c.tables[epoch]
	drb, hasDrb := c.drbs[epoch]
	if !hasTable || !hasDrb || !c.selector.NeedsDrb() {
		return nil
	}
	if _, done := c.committees[epoch]; done {
		return nil
	}
	committee, err := c.selector.SelectCommittee(epoch, table, drb)
	if err != nil {
		return fmt.Errorf("could not select committee for epoch %d: %w", epoch, err)
	}
	c.committees[epoch] = committee
	c.log.Info().Uint64("epoch", epoch).Int("members", len(committee)).Msg("committee selected")
	return nil
}

func (c *Committee) StakeTable(epoch chain.Epoch) (chain.StakeTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, _, err := c.quorum(epoch)
	return table, err
}

func (c *Committee) DaStakeTable(epoch chain.Epoch) (chain.StakeTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !epoch.Valid {
		return c.genesisDa, nil
	}
	table, ok := c.daTables[epoch.Number]
	if !ok {
		return nil, newNoStakeTableError(epoch)
	}
	return table, nil
}

func (c *Committee) Stake(nodeID chain.NodeID, epoch chain.Epoch) (chain.PeerConfig, bool, error) {
	table, err := c.StakeTable(epoch)
	if err != nil {
		return chain.PeerConfig{}, false, err
	}
	entry, ok := table.Lookup(nodeID)
	return entry, ok, nil
}

func (c *Committee) DaStake(nodeID chain.NodeID, epoch chain.Epoch) (chain.PeerConfig, bool, error) {
	table, err := c.DaStakeTable(epoch)
	if err != nil {
		return chain.PeerConfig{}, false, err
	}
	entry, ok := table.Lookup(nodeID)
	return entry, ok, nil
}

func (c *Committee) HasStake(nodeID chain.NodeID, epoch chain.Epoch) bool {
	entry, ok, err := c.Stake(nodeID, epoch)
	return err == nil && ok && entry.Stake > 0
}

func (c *Committee) HasDaStake(nodeID chain.NodeID, epoch chain.Epoch) bool {
	entry, ok, err := c.DaStake(nodeID, epoch)
	return err == nil && ok && entry.Stake > 0
}

func (c *Committee) Leader(view uint64, epoch chain.Epoch) (chain.NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	committee, drb, err := c.quorum(epoch)
	if err != nil {
		return chain.ZeroNodeID, err
	}
	return c.selector.SelectLeader(view, epoch, committee, drb)
}

func (c *Committee) SuccessThreshold(epoch chain.Epoch) (uint64, error) {
	table, err := c.StakeTable(epoch)
	if err != nil {
		return 0, err
	}
	return WeightThresholdToBuildQC(table.TotalStake()), nil
}

func (c *Committee) FailureThreshold(epoch chain.Epoch) (uint64, error) {
	table, err := c.StakeTable(epoch)
	if err != nil {
		return 0, err
	}
	return WeightThresholdForHonestMajority(table.TotalStake()), nil
}

func (c *Committee) UpgradeThreshold(epoch chain.Epoch) (uint64, error) {
	table, err := c.StakeTable(epoch)
	if err != nil {
		return 0, err
	}
	return WeightThresholdForUpgrade(table.TotalStake()), nil
}

func (c *Committee) DaSuccessThreshold(epoch chain.Epoch) (uint64, error) {
	table, err := c.DaStakeTable(epoch)
	if err != nil {
		return 0, err
	}
	return WeightThresholdToBuildQC(table.TotalStake()), nil
}

func (c *Committee) HasStakeTable(epoch chain.Epoch) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, _, err := c.quorum(epoch)
	return err == nil
}

func (c *Committee) SetFirstEpoch(epoch uint64, initialDrb chain.DrbResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstEpoch != nil {
		c.log.Warn().Uint64("epoch", epoch).Uint64("first_epoch", *c.firstEpoch).Msg("first epoch already set, ignoring")
		return
	}
	c.firstEpoch = &epoch
	for _, e := range []uint64{epoch, epoch + 1} {
		if _, ok := c.tables[e]; !ok {
			c.tables[e] = c.genesis
			c.daTables[e] = c.genesisDa
		}
		if _, ok := c.drbs[e]; !ok {
			c.drbs[e] = initialDrb
		}
		if err := c.selectCommittee(e); err != nil {
			c.log.Error().Err(err).Uint64("epoch", e).Msg("could not select committee")
		}
	}
	c.log.Info().Uint64("epoch", epoch).Msg("epochs activated")
}

func (c *Committee) FirstEpoch() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.firstEpoch == nil {
		return 0, false
	}
	return *c.firstEpoch, true
}

func (c *Committee) AddEpochRoot(ctx context.Context, epoch uint64, root chain.Header) error {
	table := c.genesis
	if c.fetcher != nil {
		fetched, err := c.fetcher.FetchStakeTable(ctx, epoch, root)
		if err != nil {
			return fmt.Errorf("could not fetch stake table for epoch %d: %w", epoch, err)
		}
		table = fetched.Eligible()
		if len(table) == 0 {
			return fmt.Errorf("stake table for epoch %d has no member with stake", epoch)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[epoch]; ok {
		return nil
	}
	c.tables[epoch] = table
	c.daTables[epoch] = c.genesisDa
	c.log.Info().Uint64("epoch", epoch).Uint64("root_height", root.Height).Int("members", len(table)).Msg("stake table registered")
	return c.selectCommittee(epoch)
}

func (c *Committee) AddDrbResult(epoch uint64, result chain.DrbResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.drbs[epoch]; ok {
		if existing == result {
			return nil
		}
		return fmt.Errorf("%w: epoch %d", ErrDrbAlreadySet, epoch)
	}
	c.drbs[epoch] = result
	return c.selectCommittee(epoch)
}

func (c *Committee) EpochDrb(epoch uint64) (chain.DrbResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.drbs[epoch]
	if !ok {
		return chain.DrbResult{}, fmt.Errorf("%w: epoch %d", ErrDrbMissing, epoch)
	}
	return result, nil
}

func (c *Committee) EpochHeight() uint64 {
	return c.epochHeight
}
