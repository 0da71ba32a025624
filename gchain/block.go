// Package gchain contains the block record, the bounded block builder,
// and the locally ordered chain of finalized blocks.
package gchain

import (
	"fmt"

	"github.com/gordian-engine/gossipchain/gmerkle"
	"github.com/gordian-engine/gossipchain/internal/gcbor"
)

// GenesisHash is the implicit parent of the first block.
// No block has this commitment, but every node treats it as known.
const GenesisHash = "0"

// Block is an ordered batch of transactions committed by a Merkle root.
//
// Transactions holds the signable encodings of each transaction,
// so a leaf hash is the SHA-256 of the corresponding entry.
type Block struct {
	PreviousHash string   `cbor:"1,keyasint"`
	MerkleHash   string   `cbor:"2,keyasint"`
	Transactions [][]byte `cbor:"3,keyasint"`
}

// IsFinalized reports whether the block carries a commitment.
// A builder never finalizes an empty block, so the commitment of
// a finalized block is never the empty-tree root.
func (b Block) IsFinalized() bool {
	return b.MerkleHash != ""
}

// SignBytes returns the canonical encoding signed by block proposers.
func (b Block) SignBytes() []byte {
	out, err := gcbor.Marshal(b)
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode block: %w", err))
	}
	return out
}

// LeafHashes returns the transaction hashes in block order.
func (b Block) LeafHashes() []string {
	out := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		out[i] = gmerkle.HashBytesHex(tx)
	}
	return out
}

// Tree builds the Merkle tree over the block's transactions.
func (b Block) Tree() *gmerkle.MerkleTree[string] {
	t, err := gmerkle.NewMerkleTree[string, string](gmerkle.HexSHA256Scheme{}, b.LeafHashes())
	if err != nil {
		panic(fmt.Errorf("BUG: failed to build block tree: %w", err))
	}
	return t
}

// VerifyCommitment recomputes the Merkle root and compares it to MerkleHash.
func (b Block) VerifyCommitment() error {
	if !b.IsFinalized() {
		return ErrNotFinalized
	}
	if got := b.Tree().RootID(); got != b.MerkleHash {
		return fmt.Errorf("%w: block claims %s, transactions commit to %s",
			ErrCommitmentMismatch, b.MerkleHash, got)
	}
	return nil
}

// DecodeBlock parses the output of [Block.SignBytes].
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := gcbor.Unmarshal(data, &b); err != nil {
		return Block{}, fmt.Errorf("failed to decode block: %w", err)
	}
	return b, nil
}
