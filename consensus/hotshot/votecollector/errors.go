package votecollector

import (
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/model/chain"
)

var (
	// VoteForIncompatibleViewError is returned for votes routed to the collector of another view.
	VoteForIncompatibleViewError = errors.New("vote for incompatible view")
	// ErrStaleView is returned when a collector is requested for a view that was already pruned.
	ErrStaleView = errors.New("collector for view was pruned")
)

// DoubleVoteError is returned when a signer votes for two different values in the same view.
type DoubleVoteError struct {
	View   uint64
	Signer chain.NodeID
	First  chain.Commitment
	Second chain.Commitment
}

func (e DoubleVoteError) Error() string {
	return fmt.Sprintf("signer %v voted for %v and %v in view %d", e.Signer, e.First, e.Second, e.View)
}

// IsDoubleVoteError returns whether an error is DoubleVoteError
func IsDoubleVoteError(err error) bool {
	var e DoubleVoteError
	return errors.As(err, &e)
}
