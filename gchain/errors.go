package gchain

import "errors"

var (
	ErrBlockFull    = errors.New("block is full")
	ErrNotFull      = errors.New("block is not full")
	ErrNotFinalized = errors.New("block is not finalized")

	ErrCommitmentMismatch = errors.New("merkle commitment mismatch")

	ErrDuplicateBlock = errors.New("block already in chain")
	ErrUnknownParent  = errors.New("parent block unknown")
)
