// Package glibp2p is a libp2p-backed [gp2p.Connection].
//
// Unicast messages travel as one framed [gwire.Message] per stream.
// Peer announcements additionally flood over a gossipsub topic.
// A Kademlia DHT keeps the routing table populated beyond the bootstrap peers.
package glibp2p

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gwire"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"golang.org/x/time/rate"
)

const (
	// ProtocolMessageV1 is the stream protocol for unicast messages.
	ProtocolMessageV1 protocol.ID = "/gossipchain/msg/v1"

	topicPeers = "gossipchain/peers/v1"
)

// ConnectionOptions tunes a [Connection].
// The zero value is replaced field by field with [DefaultConnectionOptions].
type ConnectionOptions struct {
	// MaxFrameSize bounds the decoded size of one inbound message.
	MaxFrameSize int

	// InboundRate and InboundBurst limit inbound streams per remote peer.
	InboundRate  rate.Limit
	InboundBurst int

	// StreamTimeout bounds reading or writing one message.
	StreamTimeout time.Duration

	// DHTProtocolPrefix namespaces the Kademlia DHT.
	DHTProtocolPrefix protocol.ID
}

// DefaultConnectionOptions returns the options used for unset fields.
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		MaxFrameSize:      gwire.DefaultMaxFrameSize,
		InboundRate:       200,
		InboundBurst:      400,
		StreamTimeout:     10 * time.Second,
		DHTProtocolPrefix: "/gossipchain",
	}
}

func (o ConnectionOptions) withDefaults() ConnectionOptions {
	d := DefaultConnectionOptions()
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = d.MaxFrameSize
	}
	if o.InboundRate <= 0 {
		o.InboundRate = d.InboundRate
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = d.InboundBurst
	}
	if o.StreamTimeout <= 0 {
		o.StreamTimeout = d.StreamTimeout
	}
	if o.DHTProtocolPrefix == "" {
		o.DHTProtocolPrefix = d.DHTProtocolPrefix
	}
	return o
}

// Connection is a connection to a libp2p network,
// including the peer announcement subscription.
type Connection struct {
	log *slog.Logger

	// Stream handlers have no context of their own,
	// so inbound dispatch runs under the connection's root context.
	rootCtx context.Context

	opts ConnectionOptions

	h       *Host
	dhtPeer *dht.IpfsDHT

	peersTopic *pubsub.Topic
	peersSub   *pubsub.Subscription

	handler atomic.Pointer[handlerBox]

	limMu    sync.Mutex
	limiters map[peer.ID]*rate.Limiter

	// Evicts a peer's limiter once its last connection closes.
	notifee *network.NotifyBundle

	wg sync.WaitGroup

	disconnectOnce sync.Once
	disconnected   chan struct{}
}

type handlerBox struct {
	H gp2p.Handler
}

var _ gp2p.Connection = (*Connection)(nil)
var _ gp2p.Announcer = (*Connection)(nil)

// NewConnection returns a new Connection based on h.
// The connection disconnects when ctx is canceled.
func NewConnection(ctx context.Context, log *slog.Logger, h *Host, opts ConnectionOptions) (*Connection, error) {
	opts = opts.withDefaults()

	peersTopic, err := h.PubSub().Join(topicPeers)
	if err != nil {
		return nil, fmt.Errorf("failed to join peers topic: %w", err)
	}

	peersSub, err := peersTopic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to peers topic: %w", err)
	}

	dhtPeer, err := dht.New(
		ctx,
		h.Libp2pHost(),
		dht.ProtocolPrefix(opts.DHTProtocolPrefix),
	)
	if err != nil {
		peersSub.Cancel()
		return nil, fmt.Errorf("failed to create DHT peer: %w", err)
	}

	c := &Connection{
		log: log,

		rootCtx: ctx,

		opts: opts,

		h:       h,
		dhtPeer: dhtPeer,

		peersTopic: peersTopic,
		peersSub:   peersSub,

		limiters: make(map[peer.ID]*rate.Limiter),

		disconnected: make(chan struct{}),
	}
	c.notifee = &network.NotifyBundle{DisconnectedF: c.onPeerDisconnected}
	h.Libp2pHost().Network().Notify(c.notifee)

	// One fixed validator reads the handler atomically,
	// so SetHandler never leaves the topic without a validator.
	if err := h.PubSub().RegisterTopicValidator(topicPeers, c.validatePeersMessage); err != nil {
		c.log.Warn("Failed to register peers topic validator", "err", err)
	}

	h.Libp2pHost().SetStreamHandler(ProtocolMessageV1, c.handleStream)

	if err := waitForSubscriptions(ctx, h.PubSub(), topicPeers); err != nil {
		c.log.Info("Peers topic subscription not confirmed", "err", err)
	}

	if err := dhtPeer.Bootstrap(ctx); err != nil {
		c.log.Info("Failed to bootstrap DHT", "err", err)
	}

	c.wg.Add(2)
	go c.drainSub(ctx)
	go c.disconnectOnDone(ctx)

	return c, nil
}

// ID is the connection's libp2p peer ID in its string form.
func (c *Connection) ID() string {
	return c.h.Libp2pHost().ID().String()
}

// Host returns c's underlying Host.
func (c *Connection) Host() *Host {
	return c.h
}

// Send opens a stream to the peer and writes one message to it.
// It returns once the message is written,
// without waiting for the remote side to handle it.
func (c *Connection) Send(ctx context.Context, to string, msg gwire.Message) error {
	select {
	case <-c.disconnected:
		return gp2p.ErrClosed
	default:
	}

	pid, err := peer.Decode(to)
	if err != nil {
		return fmt.Errorf("%w: invalid peer ID %q: %v", gp2p.ErrUnknownPeer, to, err)
	}

	if c.h.Libp2pHost().Network().Connectedness(pid) != network.Connected {
		return fmt.Errorf("%w: %s", gp2p.ErrUnknownPeer, to)
	}

	s, err := c.h.Libp2pHost().NewStream(ctx, pid, ProtocolMessageV1)
	if err != nil {
		return fmt.Errorf("failed to open stream to %s: %w", to, err)
	}
	defer s.Close()

	_ = s.SetWriteDeadline(time.Now().Add(c.opts.StreamTimeout))
	if err := gwire.WriteMessage(s, msg); err != nil {
		_ = s.Reset()
		return fmt.Errorf("failed to write message to %s: %w", to, err)
	}

	if err := s.CloseWrite(); err != nil {
		c.log.Debug("Failed to close stream for write", "to", to, "err", err)
	}
	return nil
}

// ConnectedPeers returns the connected peers that speak the message protocol.
// Infrastructure peers such as bootstrap-only hosts are excluded.
func (c *Connection) ConnectedPeers() []string {
	lh := c.h.Libp2pHost()
	ps := lh.Network().Peers()

	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if p == lh.ID() {
			continue
		}
		if lh.Network().Connectedness(p) != network.Connected {
			continue
		}
		protos, err := lh.Peerstore().SupportsProtocols(p, ProtocolMessageV1)
		if err != nil || len(protos) == 0 {
			continue
		}
		out = append(out, p.String())
	}
	slices.Sort(out)
	return out
}

// SetHandler sets the handler for inbound messages.
// Messages arriving while no handler is set are dropped.
func (c *Connection) SetHandler(_ context.Context, h gp2p.Handler) {
	if h == nil {
		c.handler.Store(nil)
		return
	}
	c.handler.Store(&handlerBox{H: h})
}

// Announce floods m over the peers topic.
func (c *Connection) Announce(ctx context.Context, m gwire.PeersMessage) error {
	b, err := gwire.Marshal(gwire.Message{Peers: &m})
	if err != nil {
		return err
	}
	if err := c.peersTopic.Publish(ctx, b); err != nil {
		return fmt.Errorf("failed to publish peer announcement: %w", err)
	}
	return nil
}

func (c *Connection) handleStream(s network.Stream) {
	defer s.Close()

	from := s.Conn().RemotePeer()
	log := c.log.With("from", from.ShortString())

	if !c.allow(from) {
		log.Debug("Inbound rate limit exceeded; resetting stream")
		_ = s.Reset()
		return
	}

	_ = s.SetReadDeadline(time.Now().Add(c.opts.StreamTimeout))
	msg, err := gwire.ReadMessage(s, c.opts.MaxFrameSize)
	if err != nil {
		log.Debug("Failed to read inbound message", "err", err)
		_ = s.Reset()
		return
	}

	hb := c.handler.Load()
	if hb == nil {
		log.Debug("Dropping inbound message with no handler set", "kind", msg.Kind())
		return
	}

	f := gp2p.Dispatch(c.rootCtx, hb.H, from.String(), msg)
	c.applyFeedback(from, f)
}

func (c *Connection) allow(p peer.ID) bool {
	c.limMu.Lock()
	defer c.limMu.Unlock()

	lim, ok := c.limiters[p]
	if !ok {
		lim = rate.NewLimiter(c.opts.InboundRate, c.opts.InboundBurst)
		c.limiters[p] = lim
	}
	return lim.Allow()
}

func (c *Connection) onPeerDisconnected(n network.Network, conn network.Conn) {
	p := conn.RemotePeer()
	if n.Connectedness(p) == network.Connected {
		// Another connection to the same peer remains.
		return
	}

	c.limMu.Lock()
	delete(c.limiters, p)
	c.limMu.Unlock()
}

func (c *Connection) applyFeedback(from peer.ID, f gexchange.Feedback) {
	if f != gexchange.FeedbackRejectAndDisconnect {
		return
	}

	c.log.Info("Disconnecting peer after rejected message", "peer", from.ShortString())
	if err := c.h.Libp2pHost().Network().ClosePeer(from); err != nil {
		c.log.Info("Failed to close peer", "peer", from.ShortString(), "err", err)
	}

	c.limMu.Lock()
	delete(c.limiters, from)
	c.limMu.Unlock()
}

// validatePeersMessage is the pubsub validator for the peers topic.
// A message only propagates further if the handler accepts it.
func (c *Connection) validatePeersMessage(
	ctx context.Context, id peer.ID, msg *pubsub.Message,
) pubsub.ValidationResult {
	if id == c.h.Libp2pHost().ID() {
		// Our own announcement.
		return pubsub.ValidationAccept
	}

	m, err := gwire.Unmarshal(msg.Data)
	if err != nil {
		c.log.Debug("Failed to unmarshal peers topic message", "err", err)
		return pubsub.ValidationReject
	}
	if m.Kind() != gwire.KindPeers {
		return pubsub.ValidationReject
	}

	hb := c.handler.Load()
	if hb == nil {
		return pubsub.ValidationIgnore
	}

	f := hb.H.HandlePeers(ctx, id.String(), *m.Peers)
	c.applyFeedback(id, f)
	return c.exchangeFeedbackToLibp2p(f)
}

func (c *Connection) exchangeFeedbackToLibp2p(f gexchange.Feedback) pubsub.ValidationResult {
	switch f {
	case gexchange.FeedbackAccepted:
		return pubsub.ValidationAccept
	case gexchange.FeedbackRejected, gexchange.FeedbackRejectAndDisconnect:
		return pubsub.ValidationReject
	case gexchange.FeedbackIgnored:
		return pubsub.ValidationIgnore
	default:
		c.log.Info("Handler returned unacceptable feedback value", "f", f)
		return pubsub.ValidationIgnore
	}
}

// drainSub continually reads from the peers subscription.
// Delivery happens in the validator; the subscription only keeps the topic joined.
func (c *Connection) drainSub(ctx context.Context) {
	defer c.wg.Done()

	for {
		_, err := c.peersSub.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, pubsub.ErrSubscriptionCancelled) {
				c.log.Info("Quitting subscription draining due to error", "err", err)
			}
			return
		}
	}
}

func (c *Connection) disconnectOnDone(ctx context.Context) {
	defer c.wg.Done()

	select {
	case <-ctx.Done():
		c.Disconnect()
	case <-c.disconnected:
	}
}

// Disconnect closes the subscription, the DHT, and the host.
func (c *Connection) Disconnect() {
	c.disconnectOnce.Do(func() {
		c.h.Libp2pHost().RemoveStreamHandler(ProtocolMessageV1)
		c.h.Libp2pHost().Network().StopNotify(c.notifee)
		_ = c.h.PubSub().UnregisterTopicValidator(topicPeers)

		c.peersSub.Cancel()
		if err := c.peersTopic.Close(); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Info("Error closing peers topic during disconnect", "err", err)
		}

		if err := c.dhtPeer.Close(); err != nil {
			c.log.Info("Error closing DHT", "err", err)
		}

		if err := c.h.Close(); err != nil {
			c.log.Info("Error closing connection host", "err", err)
		}

		close(c.disconnected)
	})
}

// Disconnected returns a channel that is closed once
// c.Disconnect() has been called and has returned.
func (c *Connection) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Wait blocks until the connection's background goroutines have returned.
func (c *Connection) Wait() {
	c.wg.Wait()
}

// waitForSubscriptions polls ps until every topic in topics is reported,
// giving up after three seconds or when ctx is done.
//
// There is no synchronous callback to discover when a subscription is ready.
func waitForSubscriptions(ctx context.Context, ps *pubsub.PubSub, topics ...string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var have []string
	for {
		have = ps.GetTopics()
		if len(have) >= len(topics) && containsAll(have, topics) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf(
				"not all subscriptions ready: have: %s; want: %s",
				strings.Join(have, ", "),
				strings.Join(topics, ", "),
			)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
