package hotshot

import (
	"fmt"
	"time"
)

// BlockTimestamp builds and validates block header timestamps (unix seconds) relative to the parent.
type BlockTimestamp struct {
	maxDrift time.Duration
}

// NewBlockTimestamp creates a BlockTimestamp that tolerates proposer clocks up to maxDrift ahead.
func NewBlockTimestamp(maxDrift time.Duration) *BlockTimestamp {
	return &BlockTimestamp{maxDrift: maxDrift}
}

// Build returns the timestamp for a child of a block with the given timestamp. Timestamps never decrease.
func (b BlockTimestamp) Build(parentTimestamp uint64, now time.Time) uint64 {
	timestamp := uint64(now.Unix())
	if timestamp < parentTimestamp {
		timestamp = parentTimestamp
	}
	return timestamp
}

// Validate checks a proposed timestamp against the parent and the local clock.
func (b BlockTimestamp) Validate(parentTimestamp uint64, proposed uint64, now time.Time) error {
	if proposed < parentTimestamp {
		return fmt.Errorf("timestamp %d is before parent timestamp %d", proposed, parentTimestamp)
	}
	limit := uint64(now.Add(b.maxDrift).Unix())
	if proposed > limit {
		return fmt.Errorf("timestamp %d is too far in the future (limit %d)", proposed, limit)
	}
	return nil
}
