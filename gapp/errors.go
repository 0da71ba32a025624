package gapp

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyVoted        = errors.New("sender already voted on topic")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
)

// TxInvalidError reports that a transaction cannot be applied to a [State].
// Callers distinguish it from other failures with errors.As,
// and reach the specific reason with errors.Is.
type TxInvalidError struct {
	Err error
}

func (e TxInvalidError) Error() string {
	return fmt.Sprintf("transaction invalid: %v", e.Err)
}

func (e TxInvalidError) Unwrap() error {
	return e.Err
}
