package unittest

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func CommitmentFixture() chain.Commitment {
	var c chain.Commitment
	copy(c[:], RandomBytes(len(c)))
	return c
}

func DrbResultFixture() chain.DrbResult {
	var r chain.DrbResult
	copy(r[:], RandomBytes(len(r)))
	return r
}

func TransactionFixture() chain.Transaction {
	return chain.Transaction(RandomBytes(32))
}

func PayloadFixture(txCount int) *chain.Payload {
	payload := &chain.Payload{}
	for i := 0; i < txCount; i++ {
		payload.Transactions = append(payload.Transactions, TransactionFixture())
	}
	return payload
}

// HeaderFixture returns a header at the given height committing to an empty payload.
func HeaderFixture(height uint64) chain.Header {
	payload := chain.EmptyPayload()
	var parentHeight uint64
	if height > 0 {
		parentHeight = height - 1
	}
	return chain.Header{
		Version:           chain.LegacyVersion,
		Height:            height,
		Timestamp:         1_700_000_000 + height,
		PayloadCommitment: chain.CommitmentFromBytes(payload.Encode()),
		BuilderCommitment: payload.BuilderCommitment(),
		Metadata:          payload.Metadata(),
		ParentHeight:      parentHeight,
	}
}

// GenesisLeafFixture returns the genesis leaf and its certificate.
func GenesisLeafFixture() (*chain.Leaf, *chain.QuorumCertificate) {
	genesis := chain.GenesisLeaf(HeaderFixture(0), chain.EmptyPayload())
	return genesis, chain.GenesisQuorumCertificate(genesis, chain.NoEpoch)
}

// SignCertificate has every given node vote for data in view and aggregates the votes.
func SignCertificate[D chain.VoteData](t testing.TB, nodes []NodeFixture, view uint64, data D) *chain.SimpleCertificate[D] {
	cert := &chain.SimpleCertificate[D]{View: view, Data: data}
	commitment := cert.Commitment()
	sigs := make([][]byte, 0, len(nodes))
	for _, node := range nodes {
		sig, err := node.Sign(commitment[:])
		require.NoError(t, err)
		sigs = append(sigs, sig)
		cert.Signers = append(cert.Signers, node.ID)
	}
	agg, err := crypto.AggregateSignatures(sigs)
	require.NoError(t, err)
	cert.Signature = agg
	return cert
}

// SignVote creates a vote of node for data in view.
func SignVote[D chain.VoteData](t testing.TB, node NodeFixture, view uint64, data D) *chain.SimpleVote[D] {
	vote := &chain.SimpleVote[D]{View: view, Data: data, Signer: node.ID}
	commitment := vote.Commitment()
	sig, err := node.Sign(commitment[:])
	require.NoError(t, err)
	vote.Signature = sig
	return vote
}

// QCFixture certifies leaf with the votes of nodes in the leaf's view.
func QCFixture(t testing.TB, nodes []NodeFixture, leaf *chain.Leaf, epoch chain.Epoch) *chain.QuorumCertificate {
	return SignCertificate(t, nodes, leaf.View, chain.QuorumData{
		LeafCommitment: leaf.Commit(),
		Epoch:          epoch,
		BlockNumber:    leaf.Height(),
	})
}

// LeafChainFixture builds count leaves on top of parent, one per view starting at parent.View+1,
// each justified by a QC signed by nodes for its parent.
func LeafChainFixture(t testing.TB, nodes []NodeFixture, parent *chain.Leaf, parentQC *chain.QuorumCertificate, count int) ([]*chain.Leaf, []*chain.QuorumCertificate) {
	leaves := make([]*chain.Leaf, 0, count)
	qcs := make([]*chain.QuorumCertificate, 0, count)
	justify := parentQC
	for i := 0; i < count; i++ {
		leaf := &chain.Leaf{
			View:             parent.View + 1,
			Justify:          justify,
			ParentCommitment: parent.Commit(),
			Header:           HeaderFixture(parent.Height() + 1),
			Payload:          chain.EmptyPayload(),
		}
		qc := QCFixture(t, nodes, leaf, chain.NoEpoch)
		leaves = append(leaves, leaf)
		qcs = append(qcs, qc)
		parent, justify = leaf, qc
	}
	return leaves, qcs
}

// ProposalFixture signs the quorum proposal for leaf with the leader's key.
func ProposalFixture(t testing.TB, leader NodeFixture, leaf *chain.Leaf, epoch chain.Epoch) *chain.Proposal[*chain.QuorumProposal] {
	proposal := &chain.QuorumProposal{
		BlockHeader:        leaf.Header,
		View:               leaf.View,
		Epoch:              epoch,
		Justify:            leaf.Justify,
		NextEpochJustify:   leaf.NextEpochJustify,
		UpgradeCertificate: leaf.UpgradeCertificate,
		NextDrbResult:      leaf.NextDrbResult,
	}
	commitment := proposal.Commit()
	sig, err := leader.Sign(commitment[:])
	require.NoError(t, err)
	return &chain.Proposal[*chain.QuorumProposal]{Data: proposal, Signature: sig}
}
