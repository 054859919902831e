package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeaf(view uint64, height uint64) *Leaf {
	return &Leaf{
		View: view,
		Header: Header{
			Version: LegacyVersion,
			Height:  height,
		},
	}
}

func TestLeafCommitment(t *testing.T) {
	leaf := testLeaf(3, 2)
	commit := leaf.Commit()

	// payload is not part of the commitment
	leaf.Payload = &Payload{Transactions: []Transaction{[]byte("tx")}}
	assert.Equal(t, commit, leaf.Commit())

	// every consensus field is
	other := testLeaf(4, 2)
	assert.NotEqual(t, commit, other.Commit())
	other = testLeaf(3, 2)
	other.Justify = &QuorumCertificate{View: 2}
	assert.NotEqual(t, commit, other.Commit())
}

func TestProposalLeaf(t *testing.T) {
	parent := testLeaf(1, 1)
	qc := &QuorumCertificate{View: 1, Data: QuorumData{LeafCommitment: parent.Commit(), BlockNumber: 1}}
	proposal := &QuorumProposal{
		View:        2,
		Epoch:       EpochOf(1),
		Justify:     qc,
		BlockHeader: Header{Height: 2},
	}
	leaf := proposal.Leaf()
	assert.Equal(t, parent.Commit(), leaf.ParentCommitment)
	assert.True(t, leaf.WithEpoch)
	assert.Equal(t, EpochOf(1), leaf.Epoch(10))
	assert.Equal(t, leaf.Commit(), proposal.Commit())
}

func TestPayloadEncoding(t *testing.T) {
	payload := &Payload{Transactions: []Transaction{[]byte("a"), []byte(""), []byte("ccc")}}
	decoded, err := DecodePayload(payload.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Transactions, 3)
	assert.Equal(t, Transaction("ccc"), decoded.Transactions[2])

	_, err = DecodePayload([]byte{0, 0, 0, 9, 1})
	require.ErrorIs(t, err, ErrMalformedPayload)

	empty, err := DecodePayload(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestExtendsUpgrade(t *testing.T) {
	cert := &UpgradeCertificate{
		View: 5,
		Data: UpgradeProposalData{OldVersion: LegacyVersion, NewVersion: EpochVersion, DecideBy: 20, OldVersionLastView: 30, NewVersionFirstView: 40},
	}
	parent := testLeaf(10, 10)
	parent.UpgradeCertificate = cert

	t.Run("carried forward", func(t *testing.T) {
		child := testLeaf(11, 11)
		child.UpgradeCertificate = cert
		require.NoError(t, child.ExtendsUpgrade(parent, nil))
	})
	t.Run("dropped while pending", func(t *testing.T) {
		child := testLeaf(11, 11)
		err := child.ExtendsUpgrade(parent, nil)
		require.ErrorIs(t, err, ErrUpgradeCertificateMismatch)
	})
	t.Run("dropped after decide-by and decided", func(t *testing.T) {
		child := testLeaf(21, 21)
		require.NoError(t, child.ExtendsUpgrade(parent, cert))
	})
	t.Run("replaced", func(t *testing.T) {
		other := *cert
		other.View = 6
		child := testLeaf(11, 11)
		child.UpgradeCertificate = &other
		require.ErrorIs(t, child.ExtendsUpgrade(parent, nil), ErrUpgradeCertificateMismatch)
	})
	t.Run("parent without certificate", func(t *testing.T) {
		child := testLeaf(11, 11)
		require.NoError(t, child.ExtendsUpgrade(testLeaf(10, 10), nil))
	})
}

func TestUpgradeWindows(t *testing.T) {
	cert := &UpgradeCertificate{Data: UpgradeProposalData{OldVersionLastView: 30, NewVersionFirstView: 40}}
	assert.False(t, UpgradeInterim(cert, 30))
	assert.True(t, UpgradeInterim(cert, 31))
	assert.True(t, UpgradeInterim(cert, 39))
	assert.False(t, UpgradeInterim(cert, 40))
	assert.False(t, UpgradeInterim(nil, 35))
	assert.True(t, UpgradeIsRelevant(cert, 39))
	assert.False(t, UpgradeIsRelevant(cert, 40))
}
