package crypto

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"
)

var schnorrSuite = edwards25519.NewBlakeSHA256Ed25519()

// StatePrivateKey is a Schnorr key used to attest light-client state.
type StatePrivateKey struct {
	scalar kyber.Scalar
	public *StatePublicKey
}

// StatePublicKey is the public half of a StatePrivateKey.
type StatePublicKey struct {
	point kyber.Point
}

// GenerateStateKey deterministically derives a state key pair from the seed.
func GenerateStateKey(seed []byte) (*StatePrivateKey, error) {
	if len(seed) < KeyGenSeedMinLen {
		return nil, newInvalidInputsErrorf("seed length %d is below the minimum %d", len(seed), KeyGenSeedMinLen)
	}
	scalar := schnorrSuite.Scalar().Pick(schnorrSuite.XOF(seed))
	point := schnorrSuite.Point().Mul(scalar, nil)
	return &StatePrivateKey{scalar: scalar, public: &StatePublicKey{point: point}}, nil
}

// PublicKey returns the matching public key.
func (sk *StatePrivateKey) PublicKey() *StatePublicKey {
	return sk.public
}

// Sign produces a Schnorr signature over msg.
func (sk *StatePrivateKey) Sign(msg []byte) ([]byte, error) {
	sig, err := schnorr.Sign(schnorrSuite, sk.scalar, msg)
	if err != nil {
		return nil, fmt.Errorf("could not sign state: %w", err)
	}
	return sig, nil
}

// DecodeStatePublicKey decodes a serialized Ed25519 point.
func DecodeStatePublicKey(data []byte) (*StatePublicKey, error) {
	point := schnorrSuite.Point()
	if err := point.UnmarshalBinary(data); err != nil {
		return nil, newInvalidInputsErrorf("could not decode state public key: %w", err)
	}
	return &StatePublicKey{point: point}, nil
}

// Encode serializes the public key.
func (pk *StatePublicKey) Encode() []byte {
	data, err := pk.point.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("could not encode point: %v", err))
	}
	return data
}

// Verify checks a Schnorr signature. Returns ErrInvalidSignature on mismatch.
func (pk *StatePublicKey) Verify(msg []byte, sig []byte) error {
	if err := schnorr.Verify(schnorrSuite, pk.point, msg, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
