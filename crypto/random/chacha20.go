// Package random provides the deterministic randomness behind leader election and committee
// sampling. Every honest node derives the same stream from the same seed.
package random

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

const (
	// Chacha20SeedLen is the required seed length.
	Chacha20SeedLen = chacha20.KeySize
	// Chacha20CustomizerMaxLen is the maximum length of the stream customizer.
	Chacha20CustomizerMaxLen = chacha20.NonceSize
)

// Rand is a deterministic pseudo random generator.
type Rand interface {
	// Read fills buf with the next bytes of the stream.
	Read(buf []byte)

	// UintN returns a uniform number in [0, n). It panics if n is zero.
	UintN(n uint64) uint64

	// Samples moves m uniformly chosen elements out of n to the indices [0, m) using swap.
	Samples(n int, m int, swap func(i, j int)) error
}

type chachaPRG struct {
	cipher *chacha20.Cipher
	word   [8]byte
}

// NewChacha20PRG returns a PRG keyed by seed. The customizer separates independent streams
// derived from the same seed, for instance one per view.
func NewChacha20PRG(seed []byte, customizer []byte) (Rand, error) {
	if len(seed) != Chacha20SeedLen {
		return nil, fmt.Errorf("chacha20 seed length must be %d, got %d", Chacha20SeedLen, len(seed))
	}
	if len(customizer) > Chacha20CustomizerMaxLen {
		return nil, fmt.Errorf("chacha20 customizer length must be at most %d, got %d", Chacha20CustomizerMaxLen, len(customizer))
	}
	nonce := make([]byte, chacha20.NonceSize)
	copy(nonce, customizer)

	cipher, err := chacha20.NewUnauthenticatedCipher(seed, nonce)
	if err != nil {
		return nil, fmt.Errorf("could not create chacha20 cipher: %w", err)
	}
	return &chachaPRG{cipher: cipher}, nil
}

func (p *chachaPRG) Read(buf []byte) {
	clear(buf)
	p.cipher.XORKeyStream(buf, buf)
}

// UintN rejects draws above the largest multiple of n so the result carries no modulo bias.
func (p *chachaPRG) UintN(n uint64) uint64 {
	if n == 0 {
		panic("UintN requires a positive bound")
	}
	limit := ^uint64(0) - (^uint64(0)%n+1)%n
	for {
		p.Read(p.word[:])
		r := binary.LittleEndian.Uint64(p.word[:])
		if r <= limit {
			return r % n
		}
	}
}

// Samples is a partial Fisher-Yates shuffle over the first m positions.
func (p *chachaPRG) Samples(n int, m int, swap func(i, j int)) error {
	if m < 0 {
		return fmt.Errorf("sample size cannot be negative, got %d", m)
	}
	if n < m {
		return fmt.Errorf("sample size %d is larger than the population %d", m, n)
	}
	for i := 0; i < m; i++ {
		swap(i, i+int(p.UintN(uint64(n-i))))
	}
	return nil
}
