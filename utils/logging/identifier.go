package logging

import (
	"github.com/hotshot-go/hotshot/model/chain"
)

// Commitment returns the commitment bytes for use with zerolog's Hex field.
func Commitment(c chain.Commitment) []byte {
	return c[:]
}

// NodeID returns the node identifier bytes for use with zerolog's Hex field.
func NodeID(id chain.NodeID) []byte {
	return id[:]
}
