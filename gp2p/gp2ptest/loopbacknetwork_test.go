package gp2ptest_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/gordian-engine/gossipchain/gp2p/gp2ptest"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestLoopbackNetwork_Compliance(t *testing.T) {
	gp2ptest.TestNetworkCompliance(t, func(ctx context.Context, log *slog.Logger) (gp2ptest.Network, error) {
		return &gp2ptest.GenericNetwork[*gp2ptest.LoopbackConnection]{
			Network: gp2ptest.NewLoopbackNetwork(ctx, log),
		}, nil
	})
}

func TestLoopbackNetwork_dropFunc(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net := gp2ptest.NewLoopbackNetwork(ctx, gtest.NewLogger(t))
	defer net.Wait()
	defer cancel()

	a, err := net.Connect(ctx)
	require.NoError(t, err)
	b, err := net.Connect(ctx)
	require.NoError(t, err)

	h := gp2ptest.NewChannelHandler(4)
	b.SetHandler(ctx, h)

	net.SetDropFunc(ctx, func(_, _ string, m gwire.Message) bool {
		return m.Kind() == gwire.KindBlockRequest
	})

	require.NoError(t, a.Send(ctx, b.ID(), gwire.Message{BlockRequest: &gwire.BlockRequest{BlockHash: "x"}}))
	require.NoError(t, a.Send(ctx, b.ID(), gwire.Message{Peers: &gwire.PeersMessage{PeerID: "p", TTL: 1}}))

	got := gtest.ReceiveSoon(t, h.C())
	require.Equal(t, gwire.KindPeers, got.Msg.Kind())
	gtest.NotSendingSoon(t, h.C())
}

func TestLoopbackConnection_holdsUntilHandlerSet(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net := gp2ptest.NewLoopbackNetwork(ctx, gtest.NewLogger(t))
	defer net.Wait()
	defer cancel()

	a, err := net.Connect(ctx)
	require.NoError(t, err)
	b, err := net.Connect(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Send(ctx, b.ID(), gwire.Message{Peers: &gwire.PeersMessage{PeerID: "p", TTL: 1}}))

	h := gp2ptest.NewChannelHandler(1)
	b.SetHandler(ctx, h)

	got := gtest.ReceiveSoon(t, h.C())
	require.Equal(t, a.ID(), got.From)
}
