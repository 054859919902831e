// Package vid implements verifiable information dispersal of block payloads.
//
// A payload is erasure coded with Reed-Solomon into shards. Every committee member with
// non-zero stake receives a contiguous range of shards proportional to its stake. Any set of
// members holding at least a third of the shards can reconstruct the payload.
package vid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/klauspost/reedsolomon"

	"github.com/hotshot-go/hotshot/model/chain"
)

// MaxShards is the largest number of shards supported by the 8-bit Reed-Solomon field.
const MaxShards = 256

var (
	// ErrInvalidShare is returned when a share does not match its commitment.
	ErrInvalidShare = errors.New("invalid vid share")
	// ErrNotEnoughShares is returned when too few shards are available for reconstruction.
	ErrNotEnoughShares = errors.New("not enough vid shares to reconstruct payload")
	// ErrEmptyCommittee is returned when no member has stake.
	ErrEmptyCommittee = errors.New("committee has no stake")
)

// assignment is the contiguous shard range of a recipient.
type assignment struct {
	nodeID chain.NodeID
	first  uint32
	count  uint32
}

// assignShards distributes shards proportionally to stake, at least one per eligible member.
func assignShards(table chain.StakeTable) ([]assignment, error) {
	eligible := table.Eligible()
	if len(eligible) == 0 {
		return nil, ErrEmptyCommittee
	}
	if len(eligible) > MaxShards {
		return nil, fmt.Errorf("committee of %d members exceeds %d shards", len(eligible), MaxShards)
	}
	total := eligible.TotalStake()

	// scale stake into shard units when the raw stake exceeds the field size
	budget := uint64(MaxShards - len(eligible))
	assignments := make([]assignment, 0, len(eligible))
	next := uint32(0)
	for _, member := range eligible {
		count := uint64(1)
		if total <= MaxShards {
			count = member.Stake
		} else {
			count += scale(member.Stake, budget, total)
		}
		assignments = append(assignments, assignment{nodeID: member.NodeID, first: next, count: uint32(count)})
		next += uint32(count)
	}
	return assignments, nil
}

// scale returns floor(stake*budget/total) without overflowing. stake must not exceed total.
func scale(stake, budget, total uint64) uint64 {
	hi, lo := bits.Mul64(stake, budget)
	q, _ := bits.Div64(hi, lo, total)
	return q
}

func shardCounts(assignments []assignment) (data int, parity int) {
	total := 0
	for _, a := range assignments {
		total += int(a.count)
	}
	data = total / 3
	if data < 1 {
		data = 1
	}
	return data, total - data
}

func frame(payload []byte) []byte {
	framed := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(framed[:8], uint64(len(payload)))
	copy(framed[8:], payload)
	return framed
}

func encode(payload []byte, metadata []byte, table chain.StakeTable) (chain.VidCommon, [][]byte, []assignment, error) {
	assignments, err := assignShards(table)
	if err != nil {
		return chain.VidCommon{}, nil, nil, err
	}
	dataShards, parityShards := shardCounts(assignments)
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return chain.VidCommon{}, nil, nil, fmt.Errorf("could not create encoder (%d+%d): %w", dataShards, parityShards, err)
	}
	shards, err := enc.Split(frame(payload))
	if err != nil {
		return chain.VidCommon{}, nil, nil, fmt.Errorf("could not split payload: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return chain.VidCommon{}, nil, nil, fmt.Errorf("could not encode parity: %w", err)
	}

	common := chain.VidCommon{
		PayloadLength: uint64(len(payload)),
		DataShards:    uint32(dataShards),
		ParityShards:  uint32(parityShards),
		ShardHashes:   make([]chain.Commitment, len(shards)),
		MetadataHash:  chain.CommitmentFromBytes(metadata),
	}
	for i, shard := range shards {
		common.ShardHashes[i] = chain.CommitmentFromBytes(shard)
	}
	return common, shards, assignments, nil
}

// Commit returns the payload commitment of a dispersal with the given common data.
func Commit(common chain.VidCommon) chain.Commitment {
	return chain.MakeCommitment(struct {
		Kind   string
		Common chain.VidCommon
	}{"vid", common})
}

// PayloadCommitment computes the commitment of a payload dispersed to the given committee.
func PayloadCommitment(payload []byte, metadata []byte, table chain.StakeTable) (chain.Commitment, error) {
	common, _, _, err := encode(payload, metadata, table)
	if err != nil {
		return chain.Commitment{}, err
	}
	return Commit(common), nil
}

// Disperse erasure codes a payload and assigns shares to every eligible member of the table.
func Disperse(payload []byte, metadata []byte, table chain.StakeTable, view uint64, epoch chain.Epoch, targetEpoch chain.Epoch) (*chain.VidDisperse, error) {
	common, shards, assignments, err := encode(payload, metadata, table)
	if err != nil {
		return nil, err
	}
	commitment := Commit(common)
	disperse := &chain.VidDisperse{
		View:              view,
		Epoch:             epoch,
		TargetEpoch:       targetEpoch,
		PayloadCommitment: commitment,
		Common:            common,
		Shares:            make(map[chain.NodeID]*chain.VidShare, len(assignments)),
	}
	for _, a := range assignments {
		disperse.Shares[a.nodeID] = &chain.VidShare{
			View:              view,
			Epoch:             epoch,
			TargetEpoch:       targetEpoch,
			Recipient:         a.nodeID,
			PayloadCommitment: commitment,
			Common:            common,
			FirstIndex:        a.first,
			Shards:            shards[a.first : a.first+a.count],
		}
	}
	return disperse, nil
}

// VerifyShare checks a share against its payload commitment.
// Expected errors:
//   - ErrInvalidShare if the share is inconsistent with its commitment
func VerifyShare(share *chain.VidShare) error {
	if Commit(share.Common) != share.PayloadCommitment {
		return fmt.Errorf("%w: common data does not match payload commitment", ErrInvalidShare)
	}
	total := int(share.Common.DataShards + share.Common.ParityShards)
	if len(share.Common.ShardHashes) != total {
		return fmt.Errorf("%w: %d shard hashes for %d shards", ErrInvalidShare, len(share.Common.ShardHashes), total)
	}
	for i, shard := range share.Shards {
		index := int(share.FirstIndex) + i
		if index >= total {
			return fmt.Errorf("%w: shard index %d out of range", ErrInvalidShare, index)
		}
		if chain.CommitmentFromBytes(shard) != share.Common.ShardHashes[index] {
			return fmt.Errorf("%w: shard %d does not match its hash", ErrInvalidShare, index)
		}
	}
	return nil
}

// Recover reconstructs the payload from shares of the same dispersal.
// Expected errors:
//   - ErrInvalidShare if any share fails verification or belongs to another payload
//   - ErrNotEnoughShares if fewer than DataShards shards are available
func Recover(shares []*chain.VidShare) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrNotEnoughShares
	}
	common := shares[0].Common
	commitment := shares[0].PayloadCommitment
	total := int(common.DataShards + common.ParityShards)
	shards := make([][]byte, total)
	available := 0
	for _, share := range shares {
		if share.PayloadCommitment != commitment {
			return nil, fmt.Errorf("%w: mixed payload commitments", ErrInvalidShare)
		}
		if err := VerifyShare(share); err != nil {
			return nil, err
		}
		for i, shard := range share.Shards {
			index := int(share.FirstIndex) + i
			if shards[index] == nil {
				shards[index] = shard
				available++
			}
		}
	}
	if available < int(common.DataShards) {
		return nil, fmt.Errorf("%w: have %d of %d", ErrNotEnoughShares, available, common.DataShards)
	}

	enc, err := reedsolomon.New(int(common.DataShards), int(common.ParityShards))
	if err != nil {
		return nil, fmt.Errorf("could not create decoder: %w", err)
	}
	if err := enc.ReconstructData(shards); err != nil {
		return nil, fmt.Errorf("could not reconstruct payload: %w", err)
	}
	var buf bytes.Buffer
	if err := enc.Join(&buf, shards, 8+int(common.PayloadLength)); err != nil {
		return nil, fmt.Errorf("could not join shards: %w", err)
	}
	framed := buf.Bytes()
	if binary.BigEndian.Uint64(framed[:8]) != common.PayloadLength {
		return nil, fmt.Errorf("%w: length prefix mismatch", ErrInvalidShare)
	}
	return framed[8:], nil
}
