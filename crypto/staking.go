package crypto

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
)

// KeyGenSeedMinLen is the minimum seed length for deterministic key generation.
const KeyGenSeedMinLen = 32

var pairingSuite = bn256.NewSuite()

// StakingPrivateKey is a BLS private key over the BN256 pairing. Staking keys sign votes
// and proposals; their signatures aggregate into certificates.
type StakingPrivateKey struct {
	scalar kyber.Scalar
	public *StakingPublicKey
}

// StakingPublicKey is a BLS public key (a G2 point).
type StakingPublicKey struct {
	point kyber.Point
}

// GenerateStakingKey deterministically derives a staking key pair from the seed.
func GenerateStakingKey(seed []byte) (*StakingPrivateKey, error) {
	if len(seed) < KeyGenSeedMinLen {
		return nil, newInvalidInputsErrorf("seed length %d is below the minimum %d", len(seed), KeyGenSeedMinLen)
	}
	scalar, point := bls.NewKeyPair(pairingSuite, pairingSuite.XOF(seed))
	return &StakingPrivateKey{scalar: scalar, public: &StakingPublicKey{point: point}}, nil
}

// DecodeStakingPrivateKey decodes a private key produced by StakingPrivateKey.Encode.
func DecodeStakingPrivateKey(data []byte) (*StakingPrivateKey, error) {
	scalar := pairingSuite.G2().Scalar()
	if err := scalar.UnmarshalBinary(data); err != nil {
		return nil, newInvalidInputsErrorf("could not decode staking private key: %w", err)
	}
	point := pairingSuite.G2().Point().Mul(scalar, nil)
	return &StakingPrivateKey{scalar: scalar, public: &StakingPublicKey{point: point}}, nil
}

// Encode serializes the private key.
func (sk *StakingPrivateKey) Encode() []byte {
	data, err := sk.scalar.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("could not encode scalar: %v", err))
	}
	return data
}

// PublicKey returns the matching public key.
func (sk *StakingPrivateKey) PublicKey() *StakingPublicKey {
	return sk.public
}

// Sign produces a BLS signature over msg.
func (sk *StakingPrivateKey) Sign(msg []byte) ([]byte, error) {
	sig, err := bls.Sign(pairingSuite, sk.scalar, msg)
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return sig, nil
}

// DecodeStakingPublicKey decodes a serialized G2 point.
func DecodeStakingPublicKey(data []byte) (*StakingPublicKey, error) {
	point := pairingSuite.G2().Point()
	if err := point.UnmarshalBinary(data); err != nil {
		return nil, newInvalidInputsErrorf("could not decode staking public key: %w", err)
	}
	return &StakingPublicKey{point: point}, nil
}

// Encode serializes the public key.
func (pk *StakingPublicKey) Encode() []byte {
	data, err := pk.point.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("could not encode point: %v", err))
	}
	return data
}

// Equals returns true if both keys are the same point.
func (pk *StakingPublicKey) Equals(other *StakingPublicKey) bool {
	return other != nil && pk.point.Equal(other.point)
}

// Verify checks a single signature. Returns ErrInvalidSignature on mismatch.
func (pk *StakingPublicKey) Verify(msg []byte, sig []byte) error {
	if err := bls.Verify(pairingSuite, pk.point, msg, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// AggregateSignatures combines signatures over the same message into one.
func AggregateSignatures(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, newInvalidInputsErrorf("cannot aggregate an empty set of signatures")
	}
	agg, err := bls.AggregateSignatures(pairingSuite, sigs...)
	if err != nil {
		return nil, newInvalidInputsErrorf("could not aggregate signatures: %w", err)
	}
	return agg, nil
}

// VerifyAggregate checks an aggregated signature of all keys over the same message.
func VerifyAggregate(keys []*StakingPublicKey, msg []byte, aggSig []byte) error {
	if len(keys) == 0 {
		return newInvalidInputsErrorf("cannot verify against an empty set of keys")
	}
	points := make([]kyber.Point, 0, len(keys))
	for _, key := range keys {
		points = append(points, key.point)
	}
	aggKey := bls.AggregatePublicKeys(pairingSuite, points...)
	if err := bls.Verify(pairingSuite, aggKey, msg, aggSig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
