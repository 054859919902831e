package committees

import (
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/model/chain"
)

var (
	// ErrNoStakeTable is returned for epochs whose stake table is not known yet.
	ErrNoStakeTable = errors.New("no stake table for epoch")
	// ErrDrbMissing is returned when the DRB result of an epoch is not known yet.
	ErrDrbMissing = errors.New("drb result missing for epoch")
	// ErrDrbAlreadySet is returned when a different DRB result is stored for an epoch that already has one.
	ErrDrbAlreadySet = errors.New("drb result already set for epoch")
)

func newNoStakeTableError(epoch chain.Epoch) error {
	return fmt.Errorf("%w %s", ErrNoStakeTable, epoch)
}

// IsNoStakeTableError returns whether err was caused by an unknown epoch.
func IsNoStakeTableError(err error) bool {
	return errors.Is(err, ErrNoStakeTable)
}
