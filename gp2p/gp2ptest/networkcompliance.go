// Package gp2ptest contains an in-process transport for tests
// and a compliance suite every gp2p transport should pass.
package gp2ptest

import (
	"context"
	"log/slog"
	"slices"
	"testing"

	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

// Network is an in-process network usable by [TestNetworkCompliance].
type Network interface {
	Connect(context.Context) (gp2p.Connection, error)

	// Wait blocks until the network has shut down
	// after its constructor context was canceled.
	Wait()

	// Stabilize blocks until every connection sees every other one.
	Stabilize(context.Context) error
}

// NetworkConstructor creates a Network for one compliance subtest.
type NetworkConstructor func(context.Context, *slog.Logger) (Network, error)

// GenericNetwork adapts a network whose Connect returns a concrete connection type.
type GenericNetwork[C gp2p.Connection] struct {
	Network interface {
		Connect(context.Context) (C, error)
		Wait()
		Stabilize(context.Context) error
	}
}

func (n *GenericNetwork[C]) Connect(ctx context.Context) (gp2p.Connection, error) {
	return n.Network.Connect(ctx)
}

func (n *GenericNetwork[C]) Wait() { n.Network.Wait() }

func (n *GenericNetwork[C]) Stabilize(ctx context.Context) error { return n.Network.Stabilize(ctx) }

// TestNetworkCompliance runs the behaviors every transport must provide.
func TestNetworkCompliance(t *testing.T, newNet NetworkConstructor) {
	setup := func(t *testing.T, nConns int) (context.Context, Network, []gp2p.Connection, []*ChannelHandler) {
		t.Helper()

		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)

		net, err := newNet(ctx, gtest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(net.Wait)
		t.Cleanup(cancel)

		conns := make([]gp2p.Connection, nConns)
		handlers := make([]*ChannelHandler, nConns)
		for i := range conns {
			conns[i], err = net.Connect(ctx)
			require.NoError(t, err)

			handlers[i] = NewChannelHandler(16)
			conns[i].SetHandler(ctx, handlers[i])
		}
		require.NoError(t, net.Stabilize(ctx))

		return ctx, net, conns, handlers
	}

	t.Run("connections close on network shutdown", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		net, err := newNet(ctx, gtest.NewLogger(t))
		require.NoError(t, err)

		c1, err := net.Connect(ctx)
		require.NoError(t, err)
		c2, err := net.Connect(ctx)
		require.NoError(t, err)
		require.NoError(t, net.Stabilize(ctx))

		gtest.NotSending(t, c1.Disconnected())
		gtest.NotSending(t, c2.Disconnected())

		cancel()
		net.Wait()

		_ = gtest.ReceiveSoon(t, c1.Disconnected())
		_ = gtest.ReceiveSoon(t, c2.Disconnected())
	})

	t.Run("connected peers", func(t *testing.T) {
		t.Parallel()

		_, _, conns, _ := setup(t, 3)

		for i, c := range conns {
			var want []string
			for j, o := range conns {
				if i != j {
					want = append(want, o.ID())
				}
			}
			got := c.ConnectedPeers()
			slices.Sort(got)
			slices.Sort(want)
			require.Equal(t, want, got)
		}
	})

	t.Run("unicast delivers every kind to the matching handler method", func(t *testing.T) {
		t.Parallel()

		ctx, _, conns, handlers := setup(t, 3)

		msgs := []gwire.Message{
			{Transaction: &gtx.Transaction{
				Kind: gtx.KindVote, Sender: []byte(conns[0].ID()),
				Topic: "t", Option: "o", Nonce: 1, TTL: 3,
				Signature: []byte("s"), PubKey: []byte("k"),
			}},
			{Peers: &gwire.PeersMessage{PeerID: conns[0].ID(), TTL: 2}},
			{BlockRequest: &gwire.BlockRequest{BlockHash: "abc"}},
		}

		for _, m := range msgs {
			require.NoError(t, conns[0].Send(ctx, conns[1].ID(), m))

			got := gtest.ReceiveOrTimeout(t, handlers[1].C(), gtest.ScaleMs(2000))
			require.Equal(t, conns[0].ID(), got.From)
			require.Equal(t, m.Kind(), got.Msg.Kind())
			require.Equal(t, m, got.Msg)
		}

		// Only the addressee received anything.
		gtest.NotSending(t, handlers[2].C())
		gtest.NotSending(t, handlers[0].C())
	})

	t.Run("send to unknown peer fails", func(t *testing.T) {
		t.Parallel()

		ctx, _, conns, _ := setup(t, 1)

		err := conns[0].Send(ctx, "nobody", gwire.Message{
			BlockRequest: &gwire.BlockRequest{BlockHash: "abc"},
		})
		require.Error(t, err)
	})

	t.Run("disconnect removes the peer", func(t *testing.T) {
		t.Parallel()

		_, _, conns, _ := setup(t, 2)

		conns[1].Disconnect()
		_ = gtest.ReceiveSoon(t, conns[1].Disconnected())

		gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
			return !slices.Contains(conns[0].ConnectedPeers(), conns[1].ID())
		}, "disconnected peer leaves connected set")
	})
}
