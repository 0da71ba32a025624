// Package gpool tracks transactions by hash in two disjoint sets:
// pending (known but not yet in an accepted block) and finalized.
package gpool

import (
	"fmt"
	"time"

	"github.com/gordian-engine/gossipchain/gtx"
)

type pendingEntry struct {
	Tx      gtx.Transaction
	AddedAt time.Time

	// Admission sequence, matched against orderSlot.Seq.
	Seq uint64
}

type orderSlot struct {
	Hash string
	Seq  uint64
}

// Pool is the set of transactions a node knows about.
// A hash is in at most one of pending or finalized,
// and a finalized hash never returns to pending.
//
// Pool is not safe for concurrent use.
type Pool struct {
	now func() time.Time

	pending map[string]pendingEntry

	// Pending hashes in admission order.
	// A slot is live only while its Seq matches the pending entry;
	// stale slots are skipped lazily and compacted occasionally.
	order   []orderSlot
	nextSeq uint64

	finalized map[string]gtx.Transaction
}

// New returns an empty pool using the wall clock for admission times.
func New() *Pool {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty pool that reads admission times from now.
func NewWithClock(now func() time.Time) *Pool {
	return &Pool{
		now:       now,
		pending:   map[string]pendingEntry{},
		finalized: map[string]gtx.Transaction{},
	}
}

// Submit adds tx to pending.
// It reports false without changing anything if the hash is already known.
func (p *Pool) Submit(tx gtx.Transaction) bool {
	h := tx.Hash()
	if p.Contains(h) {
		return false
	}

	p.nextSeq++
	p.pending[h] = pendingEntry{Tx: tx, AddedAt: p.now(), Seq: p.nextSeq}
	p.order = append(p.order, orderSlot{Hash: h, Seq: p.nextSeq})
	return true
}

// Contains reports whether hash is pending or finalized.
func (p *Pool) Contains(hash string) bool {
	if _, ok := p.pending[hash]; ok {
		return true
	}
	_, ok := p.finalized[hash]
	return ok
}

func (p *Pool) IsPending(hash string) bool {
	_, ok := p.pending[hash]
	return ok
}

func (p *Pool) IsFinalized(hash string) bool {
	_, ok := p.finalized[hash]
	return ok
}

// Get returns the transaction with the given hash from either set.
func (p *Pool) Get(hash string) (gtx.Transaction, bool) {
	if e, ok := p.pending[hash]; ok {
		return e.Tx, true
	}
	tx, ok := p.finalized[hash]
	return tx, ok
}

// Finalize moves each of hashes from pending to finalized.
// Hashes that are not pending are ignored.
// It returns how many were moved.
func (p *Pool) Finalize(hashes []string) int {
	moved := 0
	for _, h := range hashes {
		e, ok := p.pending[h]
		if !ok {
			continue
		}
		delete(p.pending, h)
		p.finalized[h] = e.Tx
		moved++
	}
	p.maybeCompact()
	return moved
}

// MarkFinalized records tx as finalized whether or not it was pending.
// This covers transactions first seen inside an accepted block.
func (p *Pool) MarkFinalized(tx gtx.Transaction) {
	h := tx.Hash()
	if e, ok := p.pending[h]; ok {
		// Keep the pending copy, which carries signature and key.
		tx = e.Tx
		delete(p.pending, h)
		p.maybeCompact()
	}
	p.finalized[h] = tx
}

// Discard removes pending transactions without finalizing them,
// typically because they no longer apply to the finalized state.
// Discarded hashes may be submitted again later.
func (p *Pool) Discard(hashes []string) {
	for _, h := range hashes {
		delete(p.pending, h)
	}
	p.maybeCompact()
}

// Pending returns up to n pending transactions in admission order.
// A non-positive n returns all of them.
func (p *Pool) Pending(n int) []gtx.Transaction {
	if n <= 0 || n > len(p.pending) {
		n = len(p.pending)
	}

	out := make([]gtx.Transaction, 0, n)
	for _, slot := range p.order {
		if len(out) == n {
			break
		}
		if e, ok := p.live(slot); ok {
			out = append(out, e.Tx)
		}
	}
	return out
}

func (p *Pool) PendingLen() int { return len(p.pending) }

func (p *Pool) FinalizedLen() int { return len(p.finalized) }

// Expire discards pending transactions admitted before cutoff
// and returns them in admission order.
func (p *Pool) Expire(cutoff time.Time) []gtx.Transaction {
	var out []gtx.Transaction
	for _, slot := range p.order {
		e, ok := p.live(slot)
		if !ok || !e.AddedAt.Before(cutoff) {
			continue
		}
		delete(p.pending, slot.Hash)
		out = append(out, e.Tx)
	}
	p.maybeCompact()
	return out
}

func (p *Pool) maybeCompact() {
	if len(p.order) < 64 || len(p.order) < 2*len(p.pending) {
		return
	}

	kept := make([]orderSlot, 0, len(p.pending))
	for _, slot := range p.order {
		if _, ok := p.live(slot); ok {
			kept = append(kept, slot)
		}
	}
	p.order = kept
}

// live returns the pending entry that slot refers to,
// unless the hash left pending or was admitted again since.
func (p *Pool) live(slot orderSlot) (pendingEntry, bool) {
	e, ok := p.pending[slot.Hash]
	if !ok || e.Seq != slot.Seq {
		return pendingEntry{}, false
	}
	return e, true
}

// CheckDisjoint verifies that no hash is both pending and finalized.
func (p *Pool) CheckDisjoint() error {
	for h := range p.pending {
		if _, ok := p.finalized[h]; ok {
			return fmt.Errorf("hash %s is both pending and finalized", h)
		}
	}
	return nil
}
