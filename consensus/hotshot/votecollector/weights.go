package votecollector

import (
	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
)

// WeightSource resolves the stake table and the certificate threshold that apply to votes
// of the given epoch.
type WeightSource func(epoch chain.Epoch) (chain.StakeTable, uint64, error)

// QuorumWeights is used for quorum, next-epoch quorum, timeout and view-sync votes.
func QuorumWeights(membership hotshot.Membership) WeightSource {
	return func(epoch chain.Epoch) (chain.StakeTable, uint64, error) {
		table, err := membership.StakeTable(epoch)
		if err != nil {
			return nil, 0, err
		}
		threshold, err := membership.SuccessThreshold(epoch)
		if err != nil {
			return nil, 0, err
		}
		return table, threshold, nil
	}
}

// DaWeights is used for DA votes.
func DaWeights(membership hotshot.Membership) WeightSource {
	return func(epoch chain.Epoch) (chain.StakeTable, uint64, error) {
		table, err := membership.DaStakeTable(epoch)
		if err != nil {
			return nil, 0, err
		}
		threshold, err := membership.DaSuccessThreshold(epoch)
		if err != nil {
			return nil, 0, err
		}
		return table, threshold, nil
	}
}

// UpgradeWeights is used for upgrade votes.
func UpgradeWeights(membership hotshot.Membership) WeightSource {
	return func(epoch chain.Epoch) (chain.StakeTable, uint64, error) {
		table, err := membership.StakeTable(epoch)
		if err != nil {
			return nil, 0, err
		}
		threshold, err := membership.UpgradeThreshold(epoch)
		if err != nil {
			return nil, 0, err
		}
		return table, threshold, nil
	}
}
