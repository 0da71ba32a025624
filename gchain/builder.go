package gchain

import (
	"fmt"

	"github.com/gordian-engine/gossipchain/gmerkle"
	"github.com/gordian-engine/gossipchain/gtx"
)

// BuilderState is the state of the block under construction.
type BuilderState uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type BuilderState -trimprefix=Builder
const (
	// BuilderOpen accepts transactions.
	BuilderOpen BuilderState = iota

	// BuilderFull holds exactly the configured capacity
	// and only accepts Finalize or Reset.
	BuilderFull
)

// Builder accumulates transactions into a block of fixed capacity.
//
// Once the block reaches capacity it becomes [BuilderFull],
// and [Builder.Finalize] commits it and starts a fresh open block
// whose parent is the finalized block.
type Builder struct {
	capacity int

	prev  string
	txs   [][]byte
	acc   gmerkle.Accumulator
	state BuilderState
}

// NewBuilder returns a builder with an open block on top of prevHash.
func NewBuilder(prevHash string, capacity int) *Builder {
	if capacity < 1 {
		panic(fmt.Errorf("BUG: block capacity must be positive (got %d)", capacity))
	}
	return &Builder{capacity: capacity, prev: prevHash}
}

func (b *Builder) State() BuilderState { return b.state }

func (b *Builder) Len() int { return len(b.txs) }

func (b *Builder) Capacity() int { return b.capacity }

func (b *Builder) PreviousHash() string { return b.prev }

// AddTransaction appends tx to the open block.
// It returns [ErrBlockFull] once capacity is reached, leaving the block unchanged.
func (b *Builder) AddTransaction(tx gtx.Transaction) error {
	if b.state != BuilderOpen {
		return ErrBlockFull
	}

	enc := tx.SignBytes()
	b.txs = append(b.txs, enc)
	b.acc.Add(gmerkle.HashBytesHex(enc))

	if len(b.txs) == b.capacity {
		b.state = BuilderFull
	}
	return nil
}

// Finalize commits the full block and opens a new one on top of it.
// It returns [ErrNotFull] if the block has not reached capacity.
func (b *Builder) Finalize() (Block, error) {
	if b.state != BuilderFull {
		return Block{}, fmt.Errorf("%w: %d of %d transactions", ErrNotFull, len(b.txs), b.capacity)
	}

	blk := Block{
		PreviousHash: b.prev,
		MerkleHash:   b.acc.Root(),
		Transactions: b.txs,
	}

	b.Reset(blk.MerkleHash)
	return blk, nil
}

// Reset discards the block under construction and opens an empty one on prevHash.
func (b *Builder) Reset(prevHash string) {
	b.prev = prevHash

	// The finalized block keeps the old slice.
	b.txs = nil
	b.acc.Reset()
	b.state = BuilderOpen
}
