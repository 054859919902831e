package helpers

import (
	"github.com/hotshot-go/hotshot/consensus/hotshot/store"
	"github.com/hotshot-go/hotshot/model/chain"
)

// EpochForBlock returns the epoch of a block at height proposed in view, or chain.NoEpoch if
// epochs are not active in that view.
func EpochForBlock(lock *UpgradeLock, view uint64, height uint64, epochHeight uint64) chain.Epoch {
	if epochHeight == 0 || !lock.EpochsEnabled(view) {
		return chain.NoEpoch
	}
	return chain.EpochOf(chain.EpochFromBlockNumber(height, epochHeight))
}

// EpochAfterQC returns the epoch of the view following the QC. After the QC of an epoch's last
// block the chain moves into the next epoch.
func EpochAfterQC(lock *UpgradeLock, qc *chain.QuorumCertificate, epochHeight uint64) chain.Epoch {
	if epochHeight == 0 || !lock.EpochsEnabled(qc.View+1) {
		return chain.NoEpoch
	}
	if !qc.Data.Epoch.Valid {
		// first view with epochs: the epoch of the next block
		return chain.EpochOf(chain.EpochFromBlockNumber(qc.Data.BlockNumber+1, epochHeight))
	}
	if chain.IsLastBlock(qc.Data.BlockNumber, epochHeight) {
		return qc.Data.Epoch.Next()
	}
	return qc.Data.Epoch
}

// NextViewEpoch returns the epoch of the view after the current high QC.
func NextViewEpoch(lock *UpgradeLock, consensus *store.Consensus) chain.Epoch {
	return EpochAfterQC(lock, consensus.HighQC(), consensus.EpochHeight())
}
