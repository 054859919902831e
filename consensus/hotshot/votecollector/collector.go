package votecollector

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
)

// SignatureVerifier checks a single staking signature of a stake table member.
type SignatureVerifier interface {
	VerifySignature(table chain.StakeTable, signer chain.NodeID, msg []byte, sig []byte) error
}

// accumulatedWeightTracker fires once, for the first weight at or above the threshold.
type accumulatedWeightTracker struct {
	minRequiredWeight uint64
	done              atomic.Bool
}

func (t *accumulatedWeightTracker) Track(weight uint64) bool {
	if weight < t.minRequiredWeight {
		return false
	}
	return t.done.CompareAndSwap(false, true)
}

// accumulator holds the votes for one data commitment.
type accumulator struct {
	table   chain.StakeTable
	tracker accumulatedWeightTracker
	signers []chain.NodeID
	sigs    [][]byte
	weight  uint64
}

// Collector accumulates the votes of a single view, keyed by the vote commitment (which binds
// data and view), and forms a certificate once the stake behind one commitment reaches the
// threshold of the vote's epoch. Each signer is counted at most once.
//
// Concurrency safe. Signature verification runs outside the lock.
type Collector[D chain.VoteData] struct {
	log      zerolog.Logger
	view     uint64
	weights  WeightSource
	verifier SignatureVerifier

	lock         sync.Mutex
	accumulators map[chain.Commitment]*accumulator
	voted        map[chain.NodeID]chain.Commitment
	certified    atomic.Bool
}

var _ hotshot.VoteCollector[chain.QuorumData] = (*Collector[chain.QuorumData])(nil)

// NewCollector creates a collector for the view.
func NewCollector[D chain.VoteData](log zerolog.Logger, view uint64, weights WeightSource, verifier SignatureVerifier) *Collector[D] {
	return &Collector[D]{
		log:          log.With().Uint64("view", view).Logger(),
		view:         view,
		weights:      weights,
		verifier:     verifier,
		accumulators: make(map[chain.Commitment]*accumulator),
		voted:        make(map[chain.NodeID]chain.Commitment),
	}
}

func (c *Collector[D]) View() uint64 {
	return c.view
}

func (c *Collector[D]) Status() hotshot.VoteCollectorStatus {
	if c.certified.Load() {
		return hotshot.VoteCollectorStatusCertified
	}
	return hotshot.VoteCollectorStatusCollecting
}

// AddVote adds the vote and returns the certificate if this vote completed it. Re-delivered votes
// and votes arriving after the certificate was formed return (nil, nil).
// Expected error returns during normal operations:
//   - VoteForIncompatibleViewError if the vote is for another view
//   - committees.ErrNoStakeTable (wrapped) if the vote's epoch has no known stake table
//   - model.InvalidVoteError if the signer has no stake or the signature is invalid
//   - DoubleVoteError if the signer already voted for different data in this view
func (c *Collector[D]) AddVote(vote *chain.SimpleVote[D]) (*chain.SimpleCertificate[D], error) {
	if vote.View != c.view {
		return nil, fmt.Errorf("collector of view %d got vote for view %d: %w", c.view, vote.View, VoteForIncompatibleViewError)
	}
	commitment := vote.Commitment()

	c.lock.Lock()
	prior, seen := c.voted[vote.Signer]
	c.lock.Unlock()
	if seen {
		return nil, c.checkRepeatedVote(vote, prior, commitment)
	}

	table, threshold, err := c.weights(vote.Epoch())
	if err != nil {
		return nil, fmt.Errorf("could not resolve stake for epoch %v: %w", vote.Epoch(), err)
	}
	err = c.verifier.VerifySignature(table, vote.Signer, commitment[:], vote.Signature)
	if err != nil {
		return nil, model.NewInvalidVoteErrorf(vote.View, vote.Signer, "%w", err)
	}
	entry, _ := table.Lookup(vote.Signer)

	c.lock.Lock()
	defer c.lock.Unlock()
	// a concurrent AddVote of the same signer may have won the race
	if prior, seen := c.voted[vote.Signer]; seen {
		return nil, c.checkRepeatedVote(vote, prior, commitment)
	}
	c.voted[vote.Signer] = commitment

	acc, ok := c.accumulators[commitment]
	if !ok {
		acc = &accumulator{table: table, tracker: accumulatedWeightTracker{minRequiredWeight: threshold}}
		c.accumulators[commitment] = acc
	}
	acc.signers = append(acc.signers, vote.Signer)
	acc.sigs = append(acc.sigs, vote.Signature)
	acc.weight += entry.Stake

	if !acc.tracker.Track(acc.weight) {
		return nil, nil
	}
	cert, err := c.buildCertificate(vote, acc)
	if err != nil {
		return nil, err
	}
	c.certified.Store(true)
	c.log.Debug().
		Str("commitment", commitment.String()).
		Uint64("weight", acc.weight).
		Int("signers", len(acc.signers)).
		Msg("certificate formed")
	return cert, nil
}

func (c *Collector[D]) checkRepeatedVote(vote *chain.SimpleVote[D], prior, commitment chain.Commitment) error {
	if prior == commitment {
		return nil
	}
	return DoubleVoteError{View: c.view, Signer: vote.Signer, First: prior, Second: commitment}
}

func (c *Collector[D]) buildCertificate(vote *chain.SimpleVote[D], acc *accumulator) (*chain.SimpleCertificate[D], error) {
	sig, err := crypto.AggregateSignatures(acc.sigs)
	if err != nil {
		return nil, fmt.Errorf("could not aggregate %d signatures: %w", len(acc.sigs), err)
	}
	signers := make([]chain.NodeID, 0, len(acc.signers))
	// canonical stake table order
	for _, entry := range acc.table {
		for _, signer := range acc.signers {
			if signer == entry.NodeID {
				signers = append(signers, signer)
				break
			}
		}
	}
	return &chain.SimpleCertificate[D]{
		View:      c.view,
		Data:      vote.Data,
		Signers:   signers,
		Signature: sig,
	}, nil
}
