package committees

import "math/bits"

// mulDiv returns floor(a*b/c) without overflowing. b must be smaller than c.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// WeightThresholdToBuildQC returns the weight that is minimally required for building a QC:
// floor(2*totalWeight/3) + 1.
func WeightThresholdToBuildQC(totalWeight uint64) uint64 {
	return mulDiv(totalWeight, 2, 3) + 1
}

// WeightThresholdForHonestMajority returns the weight that guarantees at least one honest signer:
// floor(totalWeight/3) + 1.
func WeightThresholdForHonestMajority(totalWeight uint64) uint64 {
	return totalWeight/3 + 1
}

// WeightThresholdForUpgrade returns the weight required to certify a protocol upgrade:
// max(floor(9*totalWeight/10), floor(2*totalWeight/3) + 1).
func WeightThresholdForUpgrade(totalWeight uint64) uint64 {
	nineTenths := mulDiv(totalWeight, 9, 10)
	qc := WeightThresholdToBuildQC(totalWeight)
	if nineTenths > qc {
		return nineTenths
	}
	return qc
}
