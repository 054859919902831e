package operation

import (
	"encoding/binary"
	"fmt"
)

const (
	// single values
	codeAnchorLeaf      = 1
	codeHighQC          = 2
	codeNextEpochHighQC = 3
	codeUpgradeCert     = 4
	codeStateCert       = 5
	codeActionedView    = 6

	// values indexed by view
	codeQuorumProposal = 10
	codeVidShare       = 11
	codeDaProposal     = 12
	codeDecidedLeaf    = 13

	// values indexed by epoch
	codeDrbResult = 20
	codeDrbInput  = 21
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := []byte{code}
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint64:
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, i)
		return out
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}

// indexFromKey reads the view or epoch of a key made by makePrefix(code, index).
func indexFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[1:9])
}
