package operation

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/storage"
	"github.com/hotshot-go/hotshot/utils/unittest"
)

func TestUpgradeCertIsWriteOnce(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var cert chain.UpgradeCertificate
		require.ErrorIs(t, db.View(RetrieveUpgradeCert(&cert)), storage.ErrNotFound)

		first := &chain.UpgradeCertificate{View: 3}
		require.NoError(t, db.Update(InsertUpgradeCert(first)))
		require.ErrorIs(t, db.Update(InsertUpgradeCert(&chain.UpgradeCertificate{View: 4})), storage.ErrAlreadyExists)
		require.NoError(t, db.Update(SkipDuplicates(InsertUpgradeCert(&chain.UpgradeCertificate{View: 4}))))

		require.NoError(t, db.View(RetrieveUpgradeCert(&cert)))
		assert.Equal(t, uint64(3), cert.View)
	})
}

func TestPruneBelowView(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		for view := uint64(1); view <= 5; view++ {
			require.NoError(t, db.Update(UpsertVidShare(&chain.VidShare{View: view, Shards: [][]byte{{byte(view)}}})))
			require.NoError(t, db.Update(UpsertDecidedLeaf(&chain.Leaf{View: view})))
		}
		require.NoError(t, db.Update(PruneBelowView(3)))

		var views []uint64
		require.NoError(t, db.View(TraverseVidShares(func(share *chain.VidShare) error {
			views = append(views, share.View)
			return nil
		})))
		assert.Equal(t, []uint64{3, 4, 5}, views)

		// decided leaves are kept
		var leaf chain.Leaf
		require.NoError(t, db.View(RetrieveDecidedLeaf(1, &leaf)))
		assert.Equal(t, uint64(1), leaf.View)
	})
}

func TestDrbResultsTraverseInEpochOrder(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		results := map[uint64]chain.DrbResult{}
		for _, epoch := range []uint64{300, 2, 17} {
			result := unittest.DrbResultFixture()
			results[epoch] = result
			require.NoError(t, db.Update(UpsertDrbResult(epoch, result)))
		}

		var epochs []uint64
		require.NoError(t, db.View(TraverseDrbResults(func(epoch uint64, result chain.DrbResult) error {
			epochs = append(epochs, epoch)
			assert.Equal(t, results[epoch], result)
			return nil
		})))
		assert.Equal(t, []uint64{2, 17, 300}, epochs)
	})
}
