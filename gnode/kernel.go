package gnode

import (
	"context"
	"log/slog"
	"runtime/trace"
	"sync"
	"time"

	"github.com/gordian-engine/gossipchain/gassert"
	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gwatchdog"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gchan"
)

type kernel struct {
	log *slog.Logger

	id string

	signer gcrypto.Signer
	reg    *gcrypto.Registry

	initialTTL uint32

	roundInterval    time.Duration
	announceInterval time.Duration

	retryInterval time.Duration
	maxAttempts   int

	pendingMaxAge time.Duration

	watchdogInterval time.Duration

	now func() time.Time

	inbound         <-chan inboundRequest
	submitRequests  <-chan submitRequest
	queryRequests   <-chan queryRequest
	triggerRequests <-chan triggerRequest

	// Nil if the connection cannot flood announcements.
	announcer   gp2p.Announcer
	announceOut chan gwire.PeersMessage

	assertEnv gassert.Env

	done chan<- struct{}
}

func newKernel(log *slog.Logger, cfg Config, n *Node) *kernel {
	k := &kernel{
		log: log,

		id: n.id,

		signer: cfg.Signer,
		reg:    cfg.Registry,

		initialTTL: cfg.InitialTTL,

		roundInterval:    cfg.RoundInterval,
		announceInterval: cfg.AnnounceInterval,

		retryInterval: cfg.RequestRetryInterval,
		maxAttempts:   cfg.MaxRequestAttempts,

		pendingMaxAge: cfg.PendingMaxAge,

		watchdogInterval: cfg.WatchdogInterval,

		now: cfg.Now,

		inbound:         n.inbound,
		submitRequests:  n.submitRequests,
		queryRequests:   n.queryRequests,
		triggerRequests: n.triggerRequests,

		assertEnv: cfg.AssertEnv,

		done: n.done,
	}

	if a, ok := cfg.Conn.(gp2p.Announcer); ok {
		k.announcer = a
		k.announceOut = make(chan gwire.PeersMessage, 1)
	}

	return k
}

// tickerC returns the channel of a ticker for d,
// or nil and a no-op stop function if d is zero.
func tickerC(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (k *kernel) mainLoop(ctx context.Context, s *kState, wd *gwatchdog.Watchdog) {
	ctx, task := trace.NewTask(ctx, "Node.kernel.mainLoop")
	defer task.End()

	defer close(k.done)

	var wg sync.WaitGroup
	defer wg.Wait()

	if k.announcer != nil {
		wg.Add(1)
		go k.announceLoop(ctx, &wg)
	}

	defer func() {
		if !gwatchdog.IsTermination(ctx) {
			return
		}

		k.log.Info(
			"WATCHDOG TERMINATING; DUMPING STATE",
			"chain_len", s.Chain.Len(),
			"tip", s.Chain.Tip(),
			"pending", s.Pool.PendingLen(),
			"finalized", s.Pool.FinalizedLen(),
			"known_peers", s.Peers.Len(),
			"outstanding_requests", len(s.Requests),
		)
	}()

	var wSig <-chan gwatchdog.Signal
	if wd != nil {
		wSig = wd.Monitor(ctx, gwatchdog.MonitorConfig{
			Name:     "Node kernel",
			Interval: k.watchdogInterval, Jitter: k.watchdogInterval / 10,
		})
	}

	roundC, stopRound := tickerC(k.roundInterval)
	defer stopRound()
	announceC, stopAnnounce := tickerC(k.announceInterval)
	defer stopAnnounce()
	retryC, stopRetry := tickerC(k.retryInterval)
	defer stopRetry()

	var expireInterval time.Duration
	if k.pendingMaxAge > 0 {
		expireInterval = max(k.pendingMaxAge/2, time.Millisecond)
	}
	expireC, stopExpire := tickerC(expireInterval)
	defer stopExpire()

	for {
		select {
		case <-ctx.Done():
			k.log.Info(
				"Node kernel stopping",
				"cause", context.Cause(ctx),
				"chain_len", s.Chain.Len(),
				"pending", s.Pool.PendingLen(),
				"finalized", s.Pool.FinalizedLen(),
			)
			return

		case req := <-k.inbound:
			req.Resp <- k.handleInbound(ctx, s, req.From, req.Msg)

		case req := <-k.submitRequests:
			hash, err := k.submit(ctx, s, req.Req)
			req.Resp <- submitResponse{Hash: hash, Err: err}

		case req := <-k.queryRequests:
			req.Fn(s)
			close(req.Resp)

		case req := <-k.triggerRequests:
			var res bool
			switch req.Kind {
			case triggerRound:
				res = k.runRound(ctx, s)
			case triggerAnnounce:
				k.announce(ctx, s)
			case triggerRetry:
				k.retryRequests(ctx, s, true)
			}
			req.Resp <- res

		case <-roundC:
			_ = k.runRound(ctx, s)

		case <-announceC:
			k.announce(ctx, s)

		case <-retryC:
			k.retryRequests(ctx, s, false)

		case <-expireC:
			k.expirePending(s)

		case sig := <-wSig:
			close(sig.Alive)
		}

		invariantPoolDisjoint(k.assertEnv, s)
		invariantChainIndex(k.assertEnv, s)
	}
}

// announceLoop publishes announcements outside the kernel,
// because a flooding transport may deliver to local validators synchronously.
func (k *kernel) announceLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		m, ok := gchan.RecvC(ctx, k.log, k.announceOut, "waiting for announcement")
		if !ok {
			return
		}
		if err := k.announcer.Announce(ctx, m); err != nil {
			k.log.Debug("Failed to publish announcement", "err", err)
		}
	}
}
