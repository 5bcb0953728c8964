package internal

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSourceTxNotFound is returned when the source chain has no receipt for
// the requested transaction hash.
var ErrSourceTxNotFound = errors.New("source transaction not found")

// Message is the opaque payload emitted by the bridge contract on the source
// chain. It is immutable once extracted from a receipt.
type Message struct {
	Bytes []byte // Raw message payload
	// Source transaction metadata, kept for logging
	SourceTxHash common.Hash
	LogIndex     uint
}

// ContentHash returns the keccak256 digest of the message bytes. The oracle
// uses the same digest as its attestation lookup key, and the destination
// contract recomputes it on receipt, so it correlates the message end to end.
func (m *Message) ContentHash() common.Hash {
	return crypto.Keccak256Hash(m.Bytes)
}
