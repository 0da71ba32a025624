package ggossip

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/gordian-engine/gossipchain/gwire"
)

// Transport is the subset of a connection the engine sends through.
type Transport interface {
	Send(ctx context.Context, to string, msg gwire.Message) error
	ConnectedPeers() []string
}

// Engine picks gossip targets and sends to them.
// It is owned by a single goroutine and is not safe for concurrent use.
type Engine struct {
	log *slog.Logger

	t      Transport
	fanout int

	rng *rand.Rand
}

// NewEngine returns an engine that sends each broadcast to at most fanout peers.
// The seed makes target selection reproducible in tests.
func NewEngine(log *slog.Logger, t Transport, fanout int, seed uint64) *Engine {
	return &Engine{
		log:    log,
		t:      t,
		fanout: fanout,
		rng:    rand.New(rand.NewPCG(seed, seed^pcgIncrement)),
	}
}

const pcgIncrement = 0xda3e39cb94b95bdb

// Broadcast sends msg to min(fanout, n) connected peers chosen uniformly,
// where n counts connected peers other than except.
// It returns the peers the message was handed to.
func (e *Engine) Broadcast(ctx context.Context, msg gwire.Message, except string) []string {
	targets := Sample(e.rng, e.candidates(except), e.fanout)
	return e.sendTo(ctx, msg, targets)
}

// SendAll sends msg to every connected peer other than except.
func (e *Engine) SendAll(ctx context.Context, msg gwire.Message, except string) []string {
	return e.sendTo(ctx, msg, e.candidates(except))
}

// SendOne sends msg to a single peer, logging failure.
func (e *Engine) SendOne(ctx context.Context, msg gwire.Message, to string) bool {
	if err := e.t.Send(ctx, to, msg); err != nil {
		e.log.Debug("Failed to send message", "peer", to, "kind", msg.Kind(), "err", err)
		return false
	}
	return true
}

// PickOne returns one connected peer other than except, uniformly at random.
func (e *Engine) PickOne(except string) (string, bool) {
	c := e.candidates(except)
	if len(c) == 0 {
		return "", false
	}
	return c[e.rng.IntN(len(c))], true
}

func (e *Engine) candidates(except string) []string {
	peers := slices.Clone(e.t.ConnectedPeers())

	// Sorting keeps a seeded engine reproducible regardless of transport ordering.
	slices.Sort(peers)
	if except != "" {
		peers = slices.DeleteFunc(peers, func(p string) bool { return p == except })
	}
	return peers
}

func (e *Engine) sendTo(ctx context.Context, msg gwire.Message, targets []string) []string {
	sent := targets[:0:0]
	for _, p := range targets {
		if e.SendOne(ctx, msg, p) {
			sent = append(sent, p)
		}
	}
	return sent
}
