package gnode

import (
	"log/slog"
	"time"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/ggossip"
	"github.com/gordian-engine/gossipchain/gleader"
	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gpool"
)

// kState is the protocol state owned by the kernel goroutine.
type kState struct {
	Conn     gp2p.Connection
	Selector gleader.Selector

	Pool    *gpool.Pool
	Chain   *gchain.Chain
	Builder *gchain.Builder

	// State is the finalized application state.
	// Working is State plus every pending transaction.
	State   *gapp.State
	Working *gapp.WorkingState

	Peers *gleader.PeerSet

	Gossip *ggossip.Engine

	// Outstanding block requests keyed by the requested hash.
	Requests map[string]*blockRequest

	// Last nonce used for a locally originated transaction.
	Nonce uint64
}

// blockRequest is an outstanding request for a missing block.
type blockRequest struct {
	// Peer that sent the block referencing the missing hash.
	Origin string

	// Peer the last request went to.
	LastPeer string

	Attempts int
	SentAt   time.Time
}

func newKState(log *slog.Logger, cfg Config) *kState {
	id := cfg.Conn.ID()

	state := gapp.NewState(cfg.DefaultBalance)
	state.OpenAccount(id)

	return &kState{
		Conn:     cfg.Conn,
		Selector: cfg.Selector,

		Pool:    gpool.NewWithClock(cfg.Now),
		Chain:   gchain.NewChain(),
		Builder: gchain.NewBuilder(gchain.GenesisHash, cfg.BlockCapacity),

		State:   state,
		Working: gapp.NewWorkingState(state),

		Peers: gleader.NewPeerSet(id),

		Gossip: ggossip.NewEngine(log.With("sys", "gossip"), cfg.Conn, cfg.Fanout, cfg.GossipSeed),

		Requests: map[string]*blockRequest{},
	}
}
