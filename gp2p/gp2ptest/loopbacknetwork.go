package gp2ptest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gchan"
)

// LoopbackNetwork is an in-process network for tests.
// Every message is encoded and decoded through gwire,
// so each receiver sees an independent copy.
//
// A kernel goroutine owns the set of connections.
// Each connection delivers to its handler from its own goroutine
// with an unbounded inbox, so Send never waits on a remote handler.
type LoopbackNetwork struct {
	log *slog.Logger

	connectRequests    chan connectRequest
	disconnectRequests chan string
	routeRequests      chan routeRequest
	peersRequests      chan peersRequest
	dropFuncs          chan DropFunc

	deliveryWG sync.WaitGroup

	done chan struct{}
}

// DropFunc decides whether a message from one connection to another is lost.
// It runs on the network's kernel goroutine and must not block.
type DropFunc func(from, to string, msg gwire.Message) (drop bool)

type connectRequest struct {
	Resp chan *LoopbackConnection
}

type routeRequest struct {
	From, To string
	Msg      gwire.Message
	Resp     chan routeResult
}

type routeResult struct {
	Conn    *LoopbackConnection
	Dropped bool
}

type peersRequest struct {
	Except string
	Resp   chan []string
}

var loopbackNetworkCounter atomic.Uint64

// NewLoopbackNetwork starts a network that runs until ctx is canceled.
func NewLoopbackNetwork(ctx context.Context, log *slog.Logger) *LoopbackNetwork {
	n := &LoopbackNetwork{
		log: log.With("net_idx", loopbackNetworkCounter.Add(1)),

		// Unbuffered: the kernel only ever blocks on buffered responses.
		connectRequests:    make(chan connectRequest),
		disconnectRequests: make(chan string),
		routeRequests:      make(chan routeRequest),
		peersRequests:      make(chan peersRequest),
		dropFuncs:          make(chan DropFunc),

		done: make(chan struct{}),
	}
	go n.kernel(ctx)
	return n
}

// Wait blocks until the network and every delivery goroutine have stopped.
// Cancel the context given to [NewLoopbackNetwork] to stop the network.
func (n *LoopbackNetwork) Wait() {
	<-n.done
	n.deliveryWG.Wait()
}

func (n *LoopbackNetwork) kernel(ctx context.Context) {
	defer close(n.done)

	conns := map[string]*LoopbackConnection{}
	var drop DropFunc
	nextID := 0

	defer func() {
		for _, c := range conns {
			c.shutdown()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			n.log.Debug("Loopback network stopping", "conns", len(conns))
			return

		case req := <-n.connectRequests:
			id := fmt.Sprintf("loop-%03d", nextID)
			nextID++

			c := newLoopbackConnection(n, id)
			conns[id] = c

			n.deliveryWG.Add(1)
			go c.deliver(ctx)

			req.Resp <- c

		case id := <-n.disconnectRequests:
			if c, ok := conns[id]; ok {
				delete(conns, id)
				c.shutdown()
			}

		case req := <-n.routeRequests:
			var res routeResult
			res.Conn = conns[req.To]
			if res.Conn != nil && drop != nil && drop(req.From, req.To, req.Msg) {
				res = routeResult{Dropped: true}
			}
			req.Resp <- res

		case req := <-n.peersRequests:
			out := make([]string, 0, len(conns))
			for id := range conns {
				if id != req.Except {
					out = append(out, id)
				}
			}
			slices.Sort(out)
			req.Resp <- out

		case fn := <-n.dropFuncs:
			drop = fn
		}
	}
}

// Connect adds a new connection to the network.
func (n *LoopbackNetwork) Connect(ctx context.Context) (*LoopbackConnection, error) {
	req := connectRequest{Resp: make(chan *LoopbackConnection, 1)}
	c, ok := gchan.ReqResp(ctx, n.log, n.connectRequests, req, req.Resp, "connecting to loopback network")
	if !ok {
		return nil, context.Cause(ctx)
	}
	return c, nil
}

// Stabilize returns immediately; loopback connections are visible as soon as Connect returns.
func (n *LoopbackNetwork) Stabilize(context.Context) error {
	return nil
}

// SetDropFunc installs fn to filter subsequent sends. A nil fn delivers everything.
func (n *LoopbackNetwork) SetDropFunc(ctx context.Context, fn DropFunc) {
	_ = gchan.SendC(ctx, n.log, n.dropFuncs, fn, "setting loopback drop func")
}

// reqResp is like gchan.ReqResp but also gives up once the network has stopped,
// since connections may outlive it.
func reqResp[T, U any](ctx context.Context, n *LoopbackNetwork, reqs chan<- T, req T, resp <-chan U) (U, error) {
	var zero U
	select {
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	case <-n.done:
		return zero, gp2p.ErrClosed
	case reqs <- req:
	}

	// The kernel always answers an accepted request.
	return <-resp, nil
}

// LoopbackConnection is a [gp2p.Connection] on a [LoopbackNetwork].
type LoopbackConnection struct {
	net *LoopbackNetwork
	log *slog.Logger

	id string

	handler atomic.Pointer[handlerBox]

	mu     sync.Mutex
	inbox  []inboxItem
	notify chan struct{}

	closeOnce    sync.Once
	disconnected chan struct{}
}

type handlerBox struct {
	h gp2p.Handler
}

type inboxItem struct {
	From string
	Data []byte
}

func newLoopbackConnection(n *LoopbackNetwork, id string) *LoopbackConnection {
	return &LoopbackConnection{
		net: n,
		log: n.log.With("conn_id", id),
		id:  id,

		notify:       make(chan struct{}, 1),
		disconnected: make(chan struct{}),
	}
}

func (c *LoopbackConnection) ID() string {
	return c.id
}

// Send encodes msg and appends it to the recipient's inbox.
// A message removed by the network's DropFunc is silently lost.
func (c *LoopbackConnection) Send(ctx context.Context, to string, msg gwire.Message) error {
	select {
	case <-c.disconnected:
		return gp2p.ErrClosed
	default:
	}

	b, err := gwire.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode outgoing message: %w", err)
	}

	req := routeRequest{From: c.id, To: to, Msg: msg, Resp: make(chan routeResult, 1)}
	res, err := reqResp(ctx, c.net, c.net.routeRequests, req, req.Resp)
	if err != nil {
		return err
	}
	if res.Dropped {
		return nil
	}
	if res.Conn == nil {
		return fmt.Errorf("%w: %s", gp2p.ErrUnknownPeer, to)
	}

	res.Conn.enqueue(inboxItem{From: c.id, Data: b})
	return nil
}

func (c *LoopbackConnection) ConnectedPeers() []string {
	req := peersRequest{Except: c.id, Resp: make(chan []string, 1)}
	peers, err := reqResp(context.Background(), c.net, c.net.peersRequests, req, req.Resp)
	if err != nil {
		return nil
	}
	return peers
}

func (c *LoopbackConnection) SetHandler(_ context.Context, h gp2p.Handler) {
	if h == nil {
		c.handler.Store(nil)
		return
	}
	c.handler.Store(&handlerBox{h: h})

	// Deliver anything that queued up while there was no handler.
	c.poke()
}

func (c *LoopbackConnection) Disconnect() {
	select {
	case c.net.disconnectRequests <- c.id:
	case <-c.net.done:
	case <-c.disconnected:
	}
	<-c.disconnected
}

func (c *LoopbackConnection) Disconnected() <-chan struct{} {
	return c.disconnected
}

func (c *LoopbackConnection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.disconnected)
	})
}

func (c *LoopbackConnection) enqueue(item inboxItem) {
	c.mu.Lock()
	c.inbox = append(c.inbox, item)
	c.mu.Unlock()

	c.poke()
}

func (c *LoopbackConnection) poke() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// takeInbox removes and returns everything queued,
// or nothing if no handler is set yet.
func (c *LoopbackConnection) takeInbox() ([]inboxItem, gp2p.Handler) {
	box := c.handler.Load()
	if box == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.inbox
	c.inbox = nil
	return items, box.h
}

func (c *LoopbackConnection) deliver(ctx context.Context) {
	defer c.net.deliveryWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.disconnected:
			return
		case <-c.notify:
		}

		items, h := c.takeInbox()
		for _, item := range items {
			m, err := gwire.Unmarshal(item.Data)
			if err != nil {
				c.log.Warn("Dropping undecodable loopback message", "from", item.From, "err", err)
				continue
			}

			fb := gp2p.Dispatch(ctx, h, item.From, m)
			c.log.Debug("Delivered message", "from", item.From, "kind", m.Kind(), "feedback", fb)

			if ctx.Err() != nil {
				return
			}
		}
	}
}
