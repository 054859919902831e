package votecollector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"pgregory.net/rapid"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/committees"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/consensus/hotshot/verification"
	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func daSetup(t testing.TB, nodes []unittest.NodeFixture, table chain.StakeTable) (*committees.Committee, *verification.Verifier) {
	membership, err := committees.NewStaticCommittee(unittest.Logger(), table, table, 0)
	require.NoError(t, err)
	return membership, verification.NewVerifier(membership)
}

// TestCollector_DaCertificateFormedOnce checks that with four equally staked nodes the third
// distinct vote forms the certificate and the fourth does not form another one.
func TestCollector_DaCertificateFormedOnce(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 4)
	table := unittest.StakeTableFixture(nodes, 1)
	membership, verifier := daSetup(t, nodes, table)
	collector := NewCollector[chain.DaData](unittest.Logger(), 5, DaWeights(membership), verifier)

	data := chain.DaData{PayloadCommitment: unittest.CommitmentFixture()}
	for i := 0; i < 2; i++ {
		cert, err := collector.AddVote(unittest.SignVote(t, nodes[i], 5, data))
		require.NoError(t, err)
		require.Nil(t, cert)
	}
	assert.Equal(t, hotshot.VoteCollectorStatusCollecting, collector.Status())

	cert, err := collector.AddVote(unittest.SignVote(t, nodes[2], 5, data))
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Equal(t, uint64(5), cert.View)
	assert.Equal(t, data.PayloadCommitment, cert.Data.PayloadCommitment)
	assert.Equal(t, []chain.NodeID{nodes[0].ID, nodes[1].ID, nodes[2].ID}, cert.Signers)
	assert.Equal(t, hotshot.VoteCollectorStatusCertified, collector.Status())
	require.NoError(t, verifier.VerifyDaCertificate(cert))

	cert, err = collector.AddVote(unittest.SignVote(t, nodes[3], 5, data))
	require.NoError(t, err)
	assert.Nil(t, cert)
}

// TestCollector_DuplicateVote checks that re-delivered votes are not counted twice.
func TestCollector_DuplicateVote(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 4)
	table := unittest.StakeTableFixture(nodes, 1)
	membership, verifier := daSetup(t, nodes, table)
	collector := NewCollector[chain.QuorumData](unittest.Logger(), 9, QuorumWeights(membership), verifier)

	data := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture(), BlockNumber: 4}
	vote0 := unittest.SignVote(t, nodes[0], 9, data)
	vote1 := unittest.SignVote(t, nodes[1], 9, data)
	for i := 0; i < 3; i++ {
		for _, vote := range []*chain.QuorumVote{vote0, vote1} {
			cert, err := collector.AddVote(vote)
			require.NoError(t, err)
			require.Nil(t, cert)
		}
	}

	cert, err := collector.AddVote(unittest.SignVote(t, nodes[2], 9, data))
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Len(t, cert.Signers, 3)
}

// TestCollector_InvalidVotes checks that invalid votes do not affect the tally.
func TestCollector_InvalidVotes(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 5)
	// the fifth node is not part of the committee
	table := unittest.StakeTableFixture(nodes[:4], 1)
	membership, verifier := daSetup(t, nodes, table)
	collector := NewCollector[chain.QuorumData](unittest.Logger(), 9, QuorumWeights(membership), verifier)
	data := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture()}

	t.Run("wrong view", func(t *testing.T) {
		_, err := collector.AddVote(unittest.SignVote(t, nodes[0], 10, data))
		assert.ErrorIs(t, err, VoteForIncompatibleViewError)
	})

	t.Run("signer without stake", func(t *testing.T) {
		_, err := collector.AddVote(unittest.SignVote(t, nodes[4], 9, data))
		assert.True(t, model.IsInvalidVoteError(err))
		assert.ErrorIs(t, err, verification.ErrInvalidSigner)
	})

	t.Run("invalid signature", func(t *testing.T) {
		vote := unittest.SignVote(t, nodes[0], 9, data)
		vote.Signature = unittest.SignVote(t, nodes[0], 9, chain.QuorumData{}).Signature
		_, err := collector.AddVote(vote)
		assert.True(t, model.IsInvalidVoteError(err))
		assert.ErrorIs(t, err, crypto.ErrInvalidSignature)
	})

	t.Run("unknown epoch", func(t *testing.T) {
		epochData := data
		epochData.Epoch = chain.EpochOf(7)
		_, err := collector.AddVote(unittest.SignVote(t, nodes[0], 9, epochData))
		assert.True(t, committees.IsNoStakeTableError(err))
	})

	// none of the above was counted: a quorum still needs three valid votes
	for i := 0; i < 2; i++ {
		cert, err := collector.AddVote(unittest.SignVote(t, nodes[i], 9, data))
		require.NoError(t, err)
		require.Nil(t, cert)
	}
	cert, err := collector.AddVote(unittest.SignVote(t, nodes[2], 9, data))
	require.NoError(t, err)
	require.NotNil(t, cert)
}

// TestCollector_DoubleVote checks that a signer cannot contribute to two commitments of the same view.
func TestCollector_DoubleVote(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 4)
	table := unittest.StakeTableFixture(nodes, 1)
	membership, verifier := daSetup(t, nodes, table)
	collector := NewCollector[chain.QuorumData](unittest.Logger(), 3, QuorumWeights(membership), verifier)

	first := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture()}
	second := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture()}
	_, err := collector.AddVote(unittest.SignVote(t, nodes[0], 3, first))
	require.NoError(t, err)
	_, err = collector.AddVote(unittest.SignVote(t, nodes[0], 3, second))
	assert.True(t, IsDoubleVoteError(err))
}

// TestCollector_WeightedStake checks that the threshold is stake weighted, not a vote count.
func TestCollector_WeightedStake(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 4)
	table := unittest.WeightedStakeTableFixture(nodes, []uint64{10, 1, 1, 1})
	membership, verifier := daSetup(t, nodes, table)
	collector := NewCollector[chain.QuorumData](unittest.Logger(), 3, QuorumWeights(membership), verifier)
	data := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture()}

	// total 13, threshold 9: the three small stakers are not enough
	for i := 3; i >= 1; i-- {
		cert, err := collector.AddVote(unittest.SignVote(t, nodes[i], 3, data))
		require.NoError(t, err)
		require.Nil(t, cert)
	}
	cert, err := collector.AddVote(unittest.SignVote(t, nodes[0], 3, data))
	require.NoError(t, err)
	require.NotNil(t, cert)
	// signers are listed in stake table order regardless of arrival order
	assert.Equal(t, table.NodeIDs(), cert.Signers)
	require.NoError(t, verifier.VerifyQC(cert))
}

// TestCollector_ConcurrentVotes checks that exactly one certificate is formed under concurrent delivery.
func TestCollector_ConcurrentVotes(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 7)
	table := unittest.StakeTableFixture(nodes, 1)
	membership, verifier := daSetup(t, nodes, table)
	collector := NewCollector[chain.QuorumData](unittest.Logger(), 3, QuorumWeights(membership), verifier)
	data := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture()}

	votes := make([]*chain.QuorumVote, 0, len(nodes))
	for _, node := range nodes {
		votes = append(votes, unittest.SignVote(t, node, 3, data))
	}

	formed := atomic.NewUint64(0)
	var wg sync.WaitGroup
	for _, vote := range votes {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(vote *chain.QuorumVote) {
				defer wg.Done()
				cert, err := collector.AddVote(vote)
				require.NoError(t, err)
				if cert != nil {
					formed.Inc()
				}
			}(vote)
		}
	}
	unittest.RequireReturnsBefore(t, wg.Wait, 10*time.Second)
	assert.Equal(t, uint64(1), formed.Load())
}

// TestCollector_Idempotence delivers arbitrary sequences of (possibly repeated) votes and checks that
// the certificate is formed exactly once, by the vote that first reaches the threshold.
func TestCollector_Idempotence(t *testing.T) {
	nodes := unittest.NodeFixtures(t, 5)
	table := unittest.StakeTableFixture(nodes, 1)
	membership, verifier := daSetup(t, nodes, table)
	data := chain.QuorumData{LeafCommitment: unittest.CommitmentFixture()}
	votes := make([]*chain.QuorumVote, 0, len(nodes))
	for _, node := range nodes {
		votes = append(votes, unittest.SignVote(t, node, 1, data))
	}
	threshold, err := membership.SuccessThreshold(chain.NoEpoch)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		sequence := rapid.SliceOf(rapid.IntRange(0, len(votes)-1)).Draw(t, "sequence")
		collector := NewCollector[chain.QuorumData](unittest.Logger(), 1, QuorumWeights(membership), verifier)

		distinct := make(map[int]struct{})
		formed := 0
		for _, i := range sequence {
			distinct[i] = struct{}{}
			cert, err := collector.AddVote(votes[i])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cert != nil {
				formed++
				if uint64(len(distinct)) != threshold {
					t.Fatalf("certificate formed with %d distinct signers, threshold %d", len(distinct), threshold)
				}
			}
		}
		expected := 0
		if uint64(len(distinct)) >= threshold {
			expected = 1
		}
		if formed != expected {
			t.Fatalf("formed %d certificates, expected %d", formed, expected)
		}
	})
}
