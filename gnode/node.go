// Package gnode runs one protocol participant.
//
// A [Node] owns the transaction pool, the chain, the application state,
// and the known peer set. All of them are touched only by the node's
// kernel goroutine. Inbound messages, API calls, and timers are all
// serialized through the kernel's select loop.
package gnode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/gleader"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gchan"
)

// Node is a running protocol participant.
type Node struct {
	log *slog.Logger

	id string

	inbound chan inboundRequest

	submitRequests  chan submitRequest
	queryRequests   chan queryRequest
	triggerRequests chan triggerRequest

	done chan struct{}
}

// SubmitRequest is a transaction a caller asks the node to originate.
// The node fills in sender, nonce, TTL, and signature.
type SubmitRequest struct {
	Kind gtx.Kind

	Recipient string
	Amount    uint64

	Topic  string
	Option string
}

// Status is a point-in-time summary of a node.
type Status struct {
	ID string

	ChainLen int
	Tip      string

	// BrokenLinks counts blocks whose previous hash
	// does not match the commitment of the block before them.
	BrokenLinks int

	Pending   int
	Finalized int

	KnownPeers     int
	ConnectedPeers int

	// NextLeader is the leader this node would elect for the next round.
	NextLeader string

	OutstandingRequests int
}

// TxStatus locates a transaction known to the node.
type TxStatus struct {
	Hash        string
	Transaction gtx.Transaction

	Finalized bool

	// Position within the chain, or -1 for pending transactions.
	BlockIndex int
	TxIndex    int
}

type inboundRequest struct {
	From string
	Msg  gwire.Message
	Resp chan gexchange.Feedback
}

type submitRequest struct {
	Req  SubmitRequest
	Resp chan submitResponse
}

type submitResponse struct {
	Hash string
	Err  error
}

// queryRequest runs Fn on the kernel goroutine.
// Fn must not retain the state after returning.
type queryRequest struct {
	Fn   func(*kState)
	Resp chan struct{}
}

type triggerKind uint8

const (
	triggerRound triggerKind = iota + 1
	triggerAnnounce
	triggerRetry
)

type triggerRequest struct {
	Kind triggerKind
	Resp chan bool
}

// New starts a node that runs until ctx is canceled.
// It installs itself as cfg.Conn's handler.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}
	if cfg.Selector == nil {
		cfg.Selector = gleader.RandomSelector{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WatchdogInterval == 0 {
		cfg.WatchdogInterval = DefaultWatchdogInterval
	}
	if cfg.DefaultBalance == 0 {
		cfg.DefaultBalance = gapp.DefaultBalance
	}

	n := &Node{
		log: log,

		id: cfg.Conn.ID(),

		// Unbuffered since every request waits for its response.
		inbound:         make(chan inboundRequest),
		submitRequests:  make(chan submitRequest),
		queryRequests:   make(chan queryRequest),
		triggerRequests: make(chan triggerRequest),

		done: make(chan struct{}),
	}

	k := newKernel(log, cfg, n)
	go k.mainLoop(ctx, newKState(log, cfg), cfg.Watchdog)

	cfg.Conn.SetHandler(ctx, n)

	return n, nil
}

// Wait blocks until the node's kernel has stopped.
func (n *Node) Wait() {
	<-n.done
}

// ID is the node's network identity, also used as its account and sender ID.
func (n *Node) ID() string {
	return n.id
}

// SubmitTransaction signs and gossips a new transaction originated by this node.
// It returns the transaction hash.
//
// Failures are [ErrMissingField], [ErrNoPeers],
// or a [gapp.TxInvalidError] wrapping an application error
// such as [ErrAlreadyVoted] or [ErrInsufficientBalance].
func (n *Node) SubmitTransaction(ctx context.Context, req SubmitRequest) (string, error) {
	r := submitRequest{
		Req:  req,
		Resp: make(chan submitResponse, 1),
	}
	resp, ok := gchan.ReqResp(
		ctx, n.log,
		n.submitRequests, r,
		r.Resp,
		"submitting transaction",
	)
	if !ok {
		return "", context.Cause(ctx)
	}
	return resp.Hash, resp.Err
}

// query runs fn on the kernel goroutine and waits for it.
func (n *Node) query(ctx context.Context, kind string, fn func(*kState)) error {
	r := queryRequest{
		Fn:   fn,
		Resp: make(chan struct{}, 1),
	}
	if _, ok := gchan.ReqResp(ctx, n.log, n.queryRequests, r, r.Resp, kind); !ok {
		return context.Cause(ctx)
	}
	return nil
}

// QueryVotes returns the finalized tally for topic,
// or [ErrNotFound] if nobody has voted on it.
func (n *Node) QueryVotes(ctx context.Context, topic string) (map[string]uint64, error) {
	var out map[string]uint64
	var qErr error
	if err := n.query(ctx, "querying votes", func(s *kState) {
		out, qErr = s.State.Votes(topic)
	}); err != nil {
		return nil, err
	}
	return out, qErr
}

// QueryBalance returns the finalized balance of id,
// or [ErrNotFound] if the node knows no such account.
func (n *Node) QueryBalance(ctx context.Context, id string) (int64, error) {
	var out int64
	var qErr error
	if err := n.query(ctx, "querying balance", func(s *kState) {
		out, qErr = s.State.Balance(id)
	}); err != nil {
		return 0, err
	}
	return out, qErr
}

// Topics returns every topic with a finalized vote.
func (n *Node) Topics(ctx context.Context) ([]string, error) {
	var out []string
	if err := n.query(ctx, "listing topics", func(s *kState) {
		out = s.State.Topics()
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns a summary of the node.
func (n *Node) Status(ctx context.Context) (Status, error) {
	var out Status
	if err := n.query(ctx, "reading status", func(s *kState) {
		leader, _ := s.Selector.Select(s.Peers.Sorted(), uint64(s.Chain.Len()))
		out = Status{
			ID: n.id,

			ChainLen: s.Chain.Len(),
			Tip:      s.Chain.Tip(),

			BrokenLinks: len(s.Chain.BrokenLinks()),

			Pending:   s.Pool.PendingLen(),
			Finalized: s.Pool.FinalizedLen(),

			KnownPeers:     s.Peers.Len(),
			ConnectedPeers: len(s.Conn.ConnectedPeers()),

			NextLeader: leader,

			OutstandingRequests: len(s.Requests),
		}
	}); err != nil {
		return Status{}, err
	}
	return out, nil
}

// Blocks returns the chain in order.
func (n *Node) Blocks(ctx context.Context) ([]gchain.Block, error) {
	var out []gchain.Block
	if err := n.query(ctx, "listing blocks", func(s *kState) {
		out = s.Chain.Blocks()
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// KnownPeers returns the sorted known peer set, including this node.
func (n *Node) KnownPeers(ctx context.Context) ([]string, error) {
	var out []string
	if err := n.query(ctx, "listing known peers", func(s *kState) {
		out = append([]string(nil), s.Peers.Sorted()...)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// FindTransaction reports where the transaction with the given hash is,
// or returns [ErrNotFound].
func (n *Node) FindTransaction(ctx context.Context, hash string) (TxStatus, error) {
	var out TxStatus
	var qErr error
	if err := n.query(ctx, "finding transaction", func(s *kState) {
		tx, ok := s.Pool.Get(hash)
		if !ok {
			qErr = fmt.Errorf("transaction %s: %w", hash, ErrNotFound)
			return
		}
		out = TxStatus{
			Hash:        hash,
			Transaction: tx,
			Finalized:   s.Pool.IsFinalized(hash),
			BlockIndex:  -1,
			TxIndex:     -1,
		}
		if bi, ti, ok := s.Chain.FindTransaction(hash); ok {
			out.BlockIndex, out.TxIndex = bi, ti
		}
	}); err != nil {
		return TxStatus{}, err
	}
	return out, qErr
}

func (n *Node) trigger(ctx context.Context, kind triggerKind, during string) (bool, error) {
	r := triggerRequest{
		Kind: kind,
		Resp: make(chan bool, 1),
	}
	res, ok := gchan.ReqResp(ctx, n.log, n.triggerRequests, r, r.Resp, during)
	if !ok {
		return false, context.Cause(ctx)
	}
	return res, nil
}

// TriggerRound runs a leader round immediately.
// It reports whether this node produced a block.
func (n *Node) TriggerRound(ctx context.Context) (bool, error) {
	return n.trigger(ctx, triggerRound, "triggering round")
}

// TriggerAnnounce records connected peers and announces this node immediately.
func (n *Node) TriggerAnnounce(ctx context.Context) error {
	_, err := n.trigger(ctx, triggerAnnounce, "triggering announcement")
	return err
}

// TriggerRetry resends or abandons overdue block requests immediately.
func (n *Node) TriggerRetry(ctx context.Context) error {
	_, err := n.trigger(ctx, triggerRetry, "triggering request retry")
	return err
}
