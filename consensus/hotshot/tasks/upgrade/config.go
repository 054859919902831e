package upgrade

import (
	"fmt"
	"math"
	"time"
)

// View offsets of an upgrade proposed in view v. The proposal itself is made for view
// v+ProposeOffset; the other offsets schedule the upgrade relative to v.
const (
	ProposeOffset  uint64 = 5
	DecideByOffset uint64 = 105
	BeginOffset    uint64 = 110
	FinishOffset   uint64 = 115
)

// ViewWindow is the half-open range of views [Start, Stop).
type ViewWindow struct {
	Start uint64
	Stop  uint64
}

func (w ViewWindow) Contains(view uint64) bool {
	return view >= w.Start && view < w.Stop
}

// TimeWindow is the half-open range of wall-clock times [Start, Stop). A zero Stop is unbounded.
type TimeWindow struct {
	Start time.Time
	Stop  time.Time
}

func (w TimeWindow) Contains(now time.Time) bool {
	if now.Before(w.Start) {
		return false
	}
	return w.Stop.IsZero() || now.Before(w.Stop)
}

// Config configures when a node proposes and votes for the upgrade to its target version.
// Both the view and the wall-clock window have to permit an action.
type Config struct {
	ProposingViews ViewWindow
	ProposingTime  TimeWindow
	VotingViews    ViewWindow
	VotingTime     TimeWindow
	// EpochStartBlock is the block at which epochs begin when the upgrade activates them.
	EpochStartBlock uint64
	// Now reads the wall clock.
	Now func() time.Time
}

// DefaultConfig never proposes an upgrade and votes for a matching one at any time.
func DefaultConfig() Config {
	return Config{
		ProposingViews: ViewWindow{Start: math.MaxUint64, Stop: 0},
		VotingViews:    ViewWindow{Start: 0, Stop: math.MaxUint64},
		Now:            time.Now,
	}
}

// Validate checks the wall-clock windows and the voting window. A proposing window that ends
// before it starts disables proposing.
func (c Config) Validate() error {
	if c.VotingViews.Stop < c.VotingViews.Start {
		return fmt.Errorf("voting window stops at view %d before it starts at view %d", c.VotingViews.Stop, c.VotingViews.Start)
	}
	if !c.VotingTime.Stop.IsZero() && c.VotingTime.Stop.Before(c.VotingTime.Start) {
		return fmt.Errorf("voting window stops at %v before it starts at %v", c.VotingTime.Stop, c.VotingTime.Start)
	}
	if !c.ProposingTime.Stop.IsZero() && c.ProposingTime.Stop.Before(c.ProposingTime.Start) {
		return fmt.Errorf("proposing window stops at %v before it starts at %v", c.ProposingTime.Stop, c.ProposingTime.Start)
	}
	return nil
}

func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Config) canPropose(view uint64) bool {
	return c.ProposingViews.Contains(view) && c.ProposingTime.Contains(c.now())
}

func (c Config) canVote(view uint64) bool {
	return c.VotingViews.Contains(view) && c.VotingTime.Contains(c.now())
}
