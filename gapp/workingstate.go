package gapp

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/gossipchain/gtx"
)

// WorkingState is the finalized state with pending transactions applied on top.
// It is used to reject transactions that would conflict with something
// already pending, such as a second vote by the same sender on a topic.
//
// After a block is accepted, [WorkingState.Rebase] replays the still-pending
// transactions on the new finalized state and reports the ones that no longer apply.
type WorkingState struct {
	base *State

	// cur is lazily cloned from base on the first successful add.
	cur *State

	txs []gtx.Transaction
}

// NewWorkingState returns a working state on top of base.
// The working state never mutates base.
func NewWorkingState(base *State) *WorkingState {
	return &WorkingState{base: base}
}

// CheckAdd applies tx to the working state if it is valid there.
func (w *WorkingState) CheckAdd(tx gtx.Transaction) error {
	if w.cur == nil {
		if err := w.base.Check(tx); err != nil {
			return err
		}
		w.cur = w.base.Clone()
	}

	if err := w.cur.Apply(tx); err != nil {
		return err
	}

	w.txs = append(w.txs, tx)
	return nil
}

// Len reports the number of transactions held in the working state.
func (w *WorkingState) Len() int {
	return len(w.txs)
}

// Rebase moves the working state onto newBase.
// Transactions whose hashes are in applied are dropped,
// and the remainder are replayed in their original order.
// Replayed transactions that no longer apply are removed and returned.
func (w *WorkingState) Rebase(newBase *State, applied map[string]struct{}) (invalidated []gtx.Transaction) {
	w.base = newBase
	w.cur = nil

	old := w.txs
	w.txs = nil

	for _, tx := range old {
		if _, ok := applied[tx.Hash()]; ok {
			continue
		}

		err := w.CheckAdd(tx)
		if err == nil {
			continue
		}

		if !errors.As(err, new(TxInvalidError)) {
			panic(fmt.Errorf("BUG: rebase produced non-transaction error: %w", err))
		}
		invalidated = append(invalidated, tx)
	}

	return invalidated
}
