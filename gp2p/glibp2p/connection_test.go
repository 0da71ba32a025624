package glibp2p_test

import (
	"context"
	"testing"
	"time"

	"github.com/gordian-engine/gossipchain/gp2p/glibp2p/glibp2ptest"
	"github.com/gordian-engine/gossipchain/gp2p/gp2ptest"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestConnection_Announce(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net, err := glibp2ptest.NewNetwork(ctx, gtest.NewLogger(t))
	require.NoError(t, err)
	defer net.Wait()
	defer cancel()

	a, err := net.Connect(ctx)
	require.NoError(t, err)
	b, err := net.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, net.Stabilize(ctx))

	h := gp2ptest.NewChannelHandler(16)
	b.SetHandler(ctx, h)

	// The gossipsub mesh forms asynchronously,
	// so keep announcing until one arrives.
	deadline := time.After(time.Duration(gtest.ScaleMs(5000)))
	for {
		require.NoError(t, a.Announce(ctx, gwire.PeersMessage{PeerID: a.ID(), TTL: 2}))

		select {
		case got := <-h.C():
			require.Equal(t, gwire.KindPeers, got.Msg.Kind())
			require.Equal(t, a.ID(), got.Msg.Peers.PeerID)
			return
		case <-time.After(time.Duration(gtest.ScaleMs(100))):
		case <-deadline:
			t.Fatal("announcement never arrived")
		}
	}
}

func TestConnection_seedExcludedFromConnectedPeers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net, err := glibp2ptest.NewNetwork(ctx, gtest.NewLogger(t))
	require.NoError(t, err)
	defer net.Wait()
	defer cancel()

	a, err := net.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, net.Stabilize(ctx))

	// Connected only to the seed host, which does not speak the message protocol.
	require.Empty(t, a.ConnectedPeers())
}

func TestConnection_limiterEvictedOnPeerDisconnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net, err := glibp2ptest.NewNetwork(ctx, gtest.NewLogger(t))
	require.NoError(t, err)
	defer net.Wait()
	defer cancel()

	a, err := net.Connect(ctx)
	require.NoError(t, err)
	b, err := net.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, net.Stabilize(ctx))

	h := gp2ptest.NewChannelHandler(16)
	b.SetHandler(ctx, h)

	require.NoError(t, a.Send(ctx, b.ID(), gwire.Message{
		BlockRequest: &gwire.BlockRequest{BlockHash: "abc"},
	}))
	got := gtest.ReceiveSoon(t, h.C())
	require.Equal(t, a.ID(), got.From)
	require.Equal(t, 1, b.TrackedLimiters())

	a.Disconnect()

	gtest.Eventually(t, gtest.ScaleMs(5000), func() bool {
		return b.TrackedLimiters() == 0
	}, "limiter evicted after peer disconnected")
}
