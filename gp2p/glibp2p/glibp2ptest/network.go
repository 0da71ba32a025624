// Package glibp2ptest runs real libp2p connections on localhost for tests.
package glibp2ptest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gordian-engine/gossipchain/gp2p/glibp2p"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
)

// Network is a set of localhost connections joined through a seed host.
// Every new connection also dials every existing one,
// so the message protocol forms a full mesh.
type Network struct {
	log *slog.Logger

	seed *glibp2p.Host

	connWatchWg sync.WaitGroup

	mu    sync.Mutex
	peers []*glibp2p.Connection
}

func NewNetwork(ctx context.Context, log *slog.Logger) (*Network, error) {
	seed, err := glibp2p.NewHost(ctx, NewHostOptions(ctx))
	if err != nil {
		return nil, err
	}

	n := &Network{
		log: log,

		seed: seed,
	}

	n.connWatchWg.Add(1)
	go n.disconnectAllOnContextClose(ctx)

	return n, nil
}

// NewHostOptions returns host options suitable for localhost tests.
func NewHostOptions(ctx context.Context) glibp2p.HostOptions {
	gossipSubParams := pubsub.DefaultGossipSubParams()

	// Small coprime intervals so the mesh forms quickly under the race detector.
	gossipSubParams.HeartbeatInitialDelay = 8 * time.Millisecond
	gossipSubParams.HeartbeatInterval = 45 * time.Millisecond
	gossipSubParams.DirectConnectInitialDelay = 11 * time.Millisecond

	return glibp2p.HostOptions{
		Options: []libp2p.Option{
			// Localhost TCP only keeps stack traces readable.
			libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
			libp2p.Transport(tcp.NewTCPTransport),

			libp2p.ForceReachabilityPublic(),

			libp2p.Routing(func(h p2phost.Host) (routing.PeerRouting, error) {
				return dht.New(ctx, h)
			}),
		},

		PubSubOptions: []pubsub.Option{
			pubsub.WithGossipSubParams(gossipSubParams),
		},
	}
}

func (n *Network) disconnectAllOnContextClose(ctx context.Context) {
	defer n.connWatchWg.Done()

	<-ctx.Done()

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.peers {
		c.Disconnect()
	}
}

func (n *Network) Connect(ctx context.Context) (*glibp2p.Connection, error) {
	h, err := glibp2p.NewHost(ctx, NewHostOptions(ctx))
	if err != nil {
		return nil, err
	}

	if err := h.Libp2pHost().Connect(ctx, n.seed.AddrInfo()); err != nil {
		_ = h.Close()
		return nil, err
	}

	connLog := n.log.With("conn_id", h.Libp2pHost().ID().ShortString())
	conn, err := glibp2p.NewConnection(ctx, connLog, h, glibp2p.ConnectionOptions{})
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, p := range n.peers {
		if err := h.Libp2pHost().Connect(ctx, p.Host().AddrInfo()); err != nil {
			conn.Disconnect()
			return nil, err
		}
	}

	n.connWatchWg.Add(1)
	go n.watchConnDisconnect(conn)

	n.peers = append(n.peers, conn)
	return conn, nil
}

// watchConnDisconnect blocks until conn has fully shut down.
func (n *Network) watchConnDisconnect(conn *glibp2p.Connection) {
	defer n.connWatchWg.Done()

	<-conn.Disconnected()
	conn.Wait()
}

// Wait blocks until both the network's context has been canceled
// and all peers have shut down.
func (n *Network) Wait() {
	n.connWatchWg.Wait()
	if err := n.seed.Close(); err != nil {
		n.log.Info("Error closing seed host", "err", err)
	}
}

// Stabilize blocks until every connection reports
// every other connection as a connected peer.
func (n *Network) Stabilize(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	want := len(n.peers) - 1

	for ctx.Err() == nil {
		allVisible := true
		for _, p := range n.peers {
			if len(p.ConnectedPeers()) != want {
				allVisible = false
				break
			}
		}

		if !allVisible {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		// Pubsub and DHT setup continues in the background
		// with nothing observable to synchronize on.
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	return ctx.Err()
}
