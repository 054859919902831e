package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
)

// ErrInvalidHeader is returned when a proposed header does not extend the parent state.
var ErrInvalidHeader = errors.New("invalid block header")

// Instance is the static configuration of a sequencer chain.
type Instance struct {
	chainID     string
	epochHeight uint64
	timestamps  *hotshot.BlockTimestamp
	now         func() time.Time
}

var _ hotshot.InstanceState = (*Instance)(nil)

func NewInstance(chainID string, epochHeight uint64, maxDrift time.Duration) *Instance {
	return &Instance{
		chainID:     chainID,
		epochHeight: epochHeight,
		timestamps:  hotshot.NewBlockTimestamp(maxDrift),
		now:         time.Now,
	}
}

func (i *Instance) ChainID() string { return i.chainID }

// EpochHeight returns the number of blocks per epoch.
func (i *Instance) EpochHeight() uint64 { return i.epochHeight }

// StateFromHeader returns the state a header commits to. The block commitment root of
// such a state restarts at the header, so it only serves as the parent of further blocks.
func (i *Instance) StateFromHeader(header chain.Header) hotshot.ValidatedState {
	return &State{
		height:        header.Height,
		blockCommRoot: header.Commit(),
		fees:          header.FeeAmount,
	}
}

// GenesisHeader returns the header of the empty genesis block of the chain at the given version.
func (i *Instance) GenesisHeader(version chain.Version) chain.Header {
	payload := chain.EmptyPayload()
	return chain.Header{
		Version:           version,
		PayloadCommitment: chain.CommitmentFromBytes(payload.Encode()),
		BuilderCommitment: payload.BuilderCommitment(),
		Metadata:          payload.Metadata(),
	}
}

// BuildHeader returns the header of the next block on top of parent.
func (i *Instance) BuildHeader(parent *chain.Leaf, input hotshot.BlockInput) chain.Header {
	return chain.Header{
		Version:           input.Version,
		Height:            parent.Height() + 1,
		Timestamp:         i.Timestamp(parent.Header),
		PayloadCommitment: input.PayloadCommitment,
		BuilderCommitment: input.BuilderCommitment,
		Metadata:          input.Metadata,
		FeeAmount:         input.Fee.Amount,
		ParentHeight:      parent.Height(),
	}
}

// Timestamp returns the timestamp of a new block on top of the parent header.
func (i *Instance) Timestamp(parent chain.Header) uint64 {
	return i.timestamps.Build(parent.Timestamp, i.now())
}

// Delta is the effect of one block.
type Delta struct {
	Height            uint64
	PayloadCommitment chain.Commitment
	Fee               uint64
}

// State is the sequencer's validated state: a hash chain over all applied headers.
type State struct {
	height        uint64
	blockCommRoot chain.Commitment
	fees          uint64
}

var _ hotshot.ValidatedState = (*State)(nil)

// Genesis returns the state of the genesis header.
func Genesis(header chain.Header) *State {
	return &State{height: header.Height, blockCommRoot: header.Commit()}
}

func (s *State) BlockHeight() uint64 { return s.height }

// BlockCommRoot returns the commitment to all applied headers.
func (s *State) BlockCommRoot() chain.Commitment { return s.blockCommRoot }

// Fees returns the total builder fees collected.
func (s *State) Fees() uint64 { return s.fees }

func (s *State) Commit() chain.Commitment {
	return chain.MakeCommitment(struct {
		Kind   string
		Height uint64
		Root   chain.Commitment
		Fees   uint64
	}{"sequencer_state", s.height, s.blockCommRoot, s.fees})
}

// Validate applies the proposed header on top of this state. Epoch-transition proposals that
// repeat the parent's last block of an epoch leave the state unchanged.
// Expected errors during normal operations:
//   - ErrInvalidHeader if the header does not extend the parent
func (s *State) Validate(_ context.Context, instance hotshot.InstanceState, parent *chain.Leaf, proposed *chain.Header) (hotshot.ValidatedState, hotshot.StateDelta, error) {
	inst, ok := instance.(*Instance)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported instance state %T", instance)
	}
	if proposed.Height == parent.Height() && parent.WithEpoch && chain.IsLastBlock(parent.Height(), inst.epochHeight) {
		if proposed.Commit() != parent.Header.Commit() {
			return nil, nil, fmt.Errorf("%w: repeated block %d differs from parent", ErrInvalidHeader, proposed.Height)
		}
		return s, nil, nil
	}
	if proposed.Height != parent.Height()+1 {
		return nil, nil, fmt.Errorf("%w: height %d does not follow parent height %d", ErrInvalidHeader, proposed.Height, parent.Height())
	}
	if proposed.ParentHeight != parent.Height() {
		return nil, nil, fmt.Errorf("%w: parent height %d, expected %d", ErrInvalidHeader, proposed.ParentHeight, parent.Height())
	}
	if proposed.Timestamp < parent.Header.Timestamp {
		return nil, nil, fmt.Errorf("%w: timestamp %d before parent timestamp %d", ErrInvalidHeader, proposed.Timestamp, parent.Header.Timestamp)
	}
	headerCommit := proposed.Commit()
	next := &State{
		height:        proposed.Height,
		blockCommRoot: chain.CommitmentFromBytes(append(s.blockCommRoot[:], headerCommit[:]...)),
		fees:          s.fees + proposed.FeeAmount,
	}
	return next, Delta{Height: proposed.Height, PayloadCommitment: proposed.PayloadCommitment, Fee: proposed.FeeAmount}, nil
}
