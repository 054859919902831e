package chain

import (
	"encoding/binary"
	"fmt"
)

// Transaction is an opaque, application-defined transaction.
type Transaction []byte

// Payload is the ordered list of transactions in a block.
type Payload struct {
	Transactions []Transaction
}

// EmptyPayload returns a payload without transactions.
func EmptyPayload() *Payload {
	return &Payload{}
}

// Encode serializes the payload as a sequence of length-prefixed transactions.
func (p *Payload) Encode() []byte {
	size := 0
	for _, tx := range p.Transactions {
		size += 4 + len(tx)
	}
	out := make([]byte, 0, size)
	var prefix [4]byte
	for _, tx := range p.Transactions {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(tx)))
		out = append(out, prefix[:]...)
		out = append(out, tx...)
	}
	return out
}

// DecodePayload reverses Payload.Encode.
func DecodePayload(data []byte) (*Payload, error) {
	payload := &Payload{}
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: truncated length prefix", ErrMalformedPayload)
		}
		size := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint64(len(data)) < uint64(size) {
			return nil, fmt.Errorf("%w: transaction of %d bytes exceeds remaining %d", ErrMalformedPayload, size, len(data))
		}
		payload.Transactions = append(payload.Transactions, Transaction(data[:size]))
		data = data[size:]
	}
	return payload, nil
}

// Metadata returns the payload metadata (the transaction count).
func (p *Payload) Metadata() []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], uint64(len(p.Transactions)))
	return out[:]
}

// BuilderCommitment commits to the payload contents as offered by a builder.
func (p *Payload) BuilderCommitment() Commitment {
	return MakeCommitment(struct {
		Kind    string
		Encoded []byte
	}{"builder", p.Encode()})
}

// IsEmpty returns true if the payload has no transactions.
func (p *Payload) IsEmpty() bool {
	return len(p.Transactions) == 0
}

// BuilderFee is the fee a builder pays for inclusion of its block.
type BuilderFee struct {
	Amount    uint64
	Account   []byte
	Signature []byte
}

// Header is a block header. Its construction depends on the active protocol version.
type Header struct {
	Version           Version
	Height            uint64
	Timestamp         uint64
	PayloadCommitment Commitment
	BuilderCommitment Commitment
	Metadata          []byte
	FeeAmount         uint64
	// ParentHeight is zero for the genesis header.
	ParentHeight uint64
}

// Commit returns the header commitment.
func (h Header) Commit() Commitment {
	return MakeCommitment(struct {
		Kind   string
		Header Header
	}{"header", h})
}
