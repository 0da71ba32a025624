// Package gwire defines the messages nodes exchange and their encoding.
//
// Every message travels inside an envelope tagged with a stable numeric [Kind].
// Bodies are deterministic CBOR with integer-keyed fields.
package gwire

import (
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gtx"
)

// Kind is the wire tag of a message.
// The values are part of the protocol and must never be renumbered.
type Kind uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type Kind -trimprefix=Kind
const (
	KindInvalid       Kind = 0
	KindTransaction   Kind = 1
	KindBlock         Kind = 2
	KindPeers         Kind = 3
	KindBlockRequest  Kind = 4
	KindBlockResponse Kind = 5
)

// BlockMessage announces a finalized block.
// Hash must equal Block.MerkleHash.
// The signature covers the block's canonical encoding.
type BlockMessage struct {
	Hash      string       `cbor:"1,keyasint"`
	Block     gchain.Block `cbor:"2,keyasint"`
	TTL       uint32       `cbor:"3,keyasint"`
	Signature []byte       `cbor:"4,keyasint"`
	PubKey    []byte       `cbor:"5,keyasint"`
}

// PeersMessage announces that PeerID is part of the network.
type PeersMessage struct {
	PeerID string `cbor:"1,keyasint"`
	TTL    uint32 `cbor:"2,keyasint"`
}

// BlockRequest asks a peer for the block with the given commitment.
type BlockRequest struct {
	BlockHash string `cbor:"1,keyasint"`
}

// BlockResponse answers a [BlockRequest].
type BlockResponse struct {
	Block gchain.Block `cbor:"1,keyasint"`
}

// Message is exactly one of the protocol messages.
// Exactly one field must be set.
type Message struct {
	Transaction   *gtx.Transaction
	Block         *BlockMessage
	Peers         *PeersMessage
	BlockRequest  *BlockRequest
	BlockResponse *BlockResponse
}

// Kind returns the tag for the populated field,
// or [KindInvalid] if zero or several fields are set.
func (m Message) Kind() Kind {
	k := KindInvalid
	n := 0
	if m.Transaction != nil {
		k = KindTransaction
		n++
	}
	if m.Block != nil {
		k = KindBlock
		n++
	}
	if m.Peers != nil {
		k = KindPeers
		n++
	}
	if m.BlockRequest != nil {
		k = KindBlockRequest
		n++
	}
	if m.BlockResponse != nil {
		k = KindBlockResponse
		n++
	}
	if n != 1 {
		return KindInvalid
	}
	return k
}
