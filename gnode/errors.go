package gnode

import (
	"errors"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gtx"
)

// ErrNoPeers is returned by [Node.SubmitTransaction]
// when there is nobody to gossip the transaction to.
var ErrNoPeers = errors.New("no connected peers")

// Re-exported so that API callers only need to import gnode.
var (
	ErrMissingField        = gtx.ErrMissingField
	ErrNotFound            = gapp.ErrNotFound
	ErrAlreadyVoted        = gapp.ErrAlreadyVoted
	ErrInsufficientBalance = gapp.ErrInsufficientBalance
)
