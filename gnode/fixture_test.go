package gnode_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/gossipchain/gassert/gasserttest"
	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/gordian-engine/gossipchain/gcrypto/gcryptotest"
	"github.com/gordian-engine/gossipchain/gnode"
	"github.com/gordian-engine/gossipchain/gp2p/gp2ptest"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Net *gp2ptest.LoopbackNetwork

	Reg *gcrypto.Registry

	Nodes []*gnode.Node
}

// newFixture starts n nodes on one loopback network.
// Periodic tasks are disabled; tests drive rounds through Trigger methods.
// mod, if non-nil, adjusts each node's config before it starts.
func newFixture(t *testing.T, ctx context.Context, n int, mod func(i int, cfg *gnode.Config)) *fixture {
	t.Helper()

	log := gtest.NewLogger(t)

	net := gp2ptest.NewLoopbackNetwork(ctx, log.With("sys", "net"))
	t.Cleanup(net.Wait)

	reg := new(gcrypto.Registry)
	gcrypto.RegisterEd25519(reg)

	signers := gcryptotest.DeterministicEd25519Signers(n)

	f := &fixture{
		Net: net,
		Reg: reg,
	}

	for i := 0; i < n; i++ {
		conn, err := net.Connect(ctx)
		require.NoError(t, err)

		cfg := gnode.Config{
			Conn:     conn,
			Signer:   signers[i],
			Registry: reg,

			Fanout:        2,
			InitialTTL:    3,
			BlockCapacity: 2,

			MaxRequestAttempts: 3,

			GossipSeed: uint64(i + 1),

			AssertEnv: gasserttest.DefaultEnv(),
		}
		if mod != nil {
			mod(i, &cfg)
		}

		node, err := gnode.New(ctx, log.With("node", conn.ID()), cfg)
		require.NoError(t, err)
		t.Cleanup(node.Wait)

		f.Nodes = append(f.Nodes, node)
	}

	return f
}

// AnnounceAll has every node announce itself
// and waits until every node knows every other.
func (f *fixture) AnnounceAll(t *testing.T, ctx context.Context) {
	t.Helper()

	for _, n := range f.Nodes {
		require.NoError(t, n.TriggerAnnounce(ctx))
	}

	for _, n := range f.Nodes {
		gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
			peers, err := n.KnownPeers(ctx)
			require.NoError(t, err)
			return len(peers) == len(f.Nodes)
		}, "every node knows every peer")
	}
}

// WaitPending blocks until every node has exactly want pending transactions.
func (f *fixture) WaitPending(t *testing.T, ctx context.Context, want int) {
	t.Helper()

	for _, n := range f.Nodes {
		gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
			st, err := n.Status(ctx)
			require.NoError(t, err)
			return st.Pending == want
		}, "pending transactions propagated")
	}
}

// scriptedPeer is a bare connection whose inbound messages a test inspects directly.
type scriptedPeer struct {
	*gp2ptest.LoopbackConnection

	H *gp2ptest.ChannelHandler

	Signer gcrypto.Signer
	Reg    *gcrypto.Registry
}

func (f *fixture) NewScriptedPeer(t *testing.T, ctx context.Context) *scriptedPeer {
	t.Helper()

	conn, err := f.Net.Connect(ctx)
	require.NoError(t, err)

	h := gp2ptest.NewChannelHandler(64)
	conn.SetHandler(ctx, h)

	// Index 100 keeps the key distinct from any node's.
	signers := gcryptotest.DeterministicEd25519Signers(101)

	return &scriptedPeer{
		LoopbackConnection: conn,
		H:                  h,
		Signer:             signers[100],
		Reg:                f.Reg,
	}
}

func (p *scriptedPeer) Vote(t *testing.T, ctx context.Context, topic, option string, nonce uint64) gtx.Transaction {
	t.Helper()

	tx := gtx.Transaction{
		Kind:   gtx.KindVote,
		Sender: []byte(p.ID()),
		Topic:  topic,
		Option: option,
		Nonce:  nonce,
		TTL:    1,
	}
	require.NoError(t, gtx.Sign(ctx, p.Signer, p.Reg, &tx))
	return tx
}
