package gchain

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/gossipchain/gmerkle"
)

// Entry is a block held in a [Chain].
type Entry struct {
	Block Block

	// Applied marks which of the block's transactions
	// were valid against the state at acceptance time.
	// Bit i corresponds to Block.Transactions[i].
	Applied *bitset.BitSet

	tree *gmerkle.MerkleTree[string]
}

// Chain is the locally ordered sequence of finalized blocks.
//
// Blocks are normally appended at the tip.
// A block fetched to fill a gap is inserted right after its parent,
// so the linkage between neighbours is best-effort rather than guaranteed.
// Block commitments are unique within a chain.
type Chain struct {
	entries []Entry

	// Merkle hash -> position in entries.
	index map[string]int
}

func NewChain() *Chain {
	return &Chain{index: map[string]int{}}
}

// Len reports the number of blocks in the chain.
func (c *Chain) Len() int {
	return len(c.entries)
}

// Tip returns the commitment of the last block, or [GenesisHash] if empty.
func (c *Chain) Tip() string {
	if len(c.entries) == 0 {
		return GenesisHash
	}
	return c.entries[len(c.entries)-1].Block.MerkleHash
}

// Contains reports whether a block with the given commitment is in the chain.
func (c *Chain) Contains(hash string) bool {
	_, ok := c.index[hash]
	return ok
}

// KnowsParent reports whether prevHash is genesis or a block in the chain.
func (c *Chain) KnowsParent(prevHash string) bool {
	return prevHash == GenesisHash || c.Contains(prevHash)
}

// Get returns the block with the given commitment.
func (c *Chain) Get(hash string) (Block, bool) {
	i, ok := c.index[hash]
	if !ok {
		return Block{}, false
	}
	return c.entries[i].Block, true
}

// Append adds b at the tip.
func (c *Chain) Append(b Block, applied *bitset.BitSet) error {
	if err := c.checkInsertable(b); err != nil {
		return err
	}

	c.entries = append(c.entries, c.newEntry(b, applied))
	c.index[b.MerkleHash] = len(c.entries) - 1
	return nil
}

// InsertAfter places b immediately after its parent,
// or at the front if its parent is genesis.
// It returns the position b now occupies.
func (c *Chain) InsertAfter(b Block, applied *bitset.BitSet) (int, error) {
	if err := c.checkInsertable(b); err != nil {
		return -1, err
	}

	pos := 0
	if b.PreviousHash != GenesisHash {
		parent, ok := c.index[b.PreviousHash]
		if !ok {
			return -1, fmt.Errorf("%w: %s", ErrUnknownParent, b.PreviousHash)
		}
		pos = parent + 1
	}

	c.entries = append(c.entries, Entry{})
	copy(c.entries[pos+1:], c.entries[pos:])
	c.entries[pos] = c.newEntry(b, applied)

	for i := pos; i < len(c.entries); i++ {
		c.index[c.entries[i].Block.MerkleHash] = i
	}
	return pos, nil
}

func (c *Chain) checkInsertable(b Block) error {
	if !b.IsFinalized() {
		return ErrNotFinalized
	}
	if c.Contains(b.MerkleHash) {
		return fmt.Errorf("%w: %s", ErrDuplicateBlock, b.MerkleHash)
	}
	return nil
}

func (c *Chain) newEntry(b Block, applied *bitset.BitSet) Entry {
	if applied == nil {
		applied = bitset.New(uint(len(b.Transactions)))
		applied.FlipRange(0, uint(len(b.Transactions)))
	}
	return Entry{Block: b, Applied: applied, tree: b.Tree()}
}

// Blocks returns the blocks in chain order.
func (c *Chain) Blocks() []Block {
	out := make([]Block, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Block
	}
	return out
}

// Entries returns the chain entries in order.
// Callers must not modify the returned Applied sets.
func (c *Chain) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// FindTransaction returns the position of the block containing txHash
// and the transaction's index within that block.
func (c *Chain) FindTransaction(txHash string) (blockIdx, txIdx int, ok bool) {
	for i, e := range c.entries {
		start, n := e.tree.Lookup(txHash)
		if n == 1 {
			return i, start, true
		}
	}
	return -1, -1, false
}

// BrokenLinks returns the positions whose PreviousHash
// does not match the commitment of the block before them.
func (c *Chain) BrokenLinks() []int {
	var out []int
	prev := GenesisHash
	for i, e := range c.entries {
		if e.Block.PreviousHash != prev {
			out = append(out, i)
		}
		prev = e.Block.MerkleHash
	}
	return out
}

// CheckIndex verifies that the commitment index agrees with the entries.
func (c *Chain) CheckIndex() error {
	var errs []error
	if len(c.index) != len(c.entries) {
		errs = append(errs, fmt.Errorf("index has %d hashes for %d blocks", len(c.index), len(c.entries)))
	}
	for i, e := range c.entries {
		if got, ok := c.index[e.Block.MerkleHash]; !ok || got != i {
			errs = append(errs, fmt.Errorf("block %s at %d indexed at %d (present=%t)", e.Block.MerkleHash, i, got, ok))
		}
	}
	return errors.Join(errs...)
}
