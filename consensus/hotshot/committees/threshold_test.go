package committees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestComputeQCWeightThreshold tests computing the HotShot safety threshold
// for producing a QC.
func TestComputeQCWeightThreshold(t *testing.T) {
	// testing lowest values
	for i := 1; i <= 302; i++ {
		threshold := WeightThresholdToBuildQC(uint64(i))

		boundaryValue := float64(i) * 2.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
	assert.Equal(t, uint64(3), WeightThresholdToBuildQC(4))
}

// TestComputeHonestMajorityThreshold tests the threshold for timeout and failure certificates.
func TestComputeHonestMajorityThreshold(t *testing.T) {
	for i := 1; i <= 302; i++ {
		threshold := WeightThresholdForHonestMajority(uint64(i))

		boundaryValue := float64(i) * 1.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
	assert.Equal(t, uint64(2), WeightThresholdForHonestMajority(4))
}

func TestComputeUpgradeThreshold(t *testing.T) {
	assert.Equal(t, uint64(9), WeightThresholdForUpgrade(10))
	assert.Equal(t, uint64(3), WeightThresholdForUpgrade(4))
	assert.Equal(t, uint64(90), WeightThresholdForUpgrade(100))
}

// TestThresholdProperties checks the threshold relations on arbitrary, including huge, total weights.
func TestThresholdProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.Uint64Range(1, math.MaxUint64).Draw(t, "total")

		qc := WeightThresholdToBuildQC(total)
		honest := WeightThresholdForHonestMajority(total)
		upgrade := WeightThresholdForUpgrade(total)

		if honest > qc {
			t.Fatalf("honest majority threshold %d exceeds qc threshold %d", honest, qc)
		}
		if upgrade < qc {
			t.Fatalf("upgrade threshold %d below qc threshold %d", upgrade, qc)
		}
		// two quorums always intersect in more than a third of the weight
		if total < math.MaxUint64/2 && 2*qc <= total+total/3 {
			t.Fatalf("quorums of %d out of %d do not intersect sufficiently", qc, total)
		}
	})
}
