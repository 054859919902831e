package crypto

import (
	"golang.org/x/crypto/sha3"
)

// HashLenSha3_256 is the output length of Hash256.
const HashLenSha3_256 = 32

// Hash256 computes the SHA3-256 digest of the concatenation of the inputs.
func Hash256(data ...[]byte) [HashLenSha3_256]byte {
	hasher := sha3.New256()
	for _, d := range data {
		_, _ = hasher.Write(d)
	}
	var digest [HashLenSha3_256]byte
	hasher.Sum(digest[:0])
	return digest
}
