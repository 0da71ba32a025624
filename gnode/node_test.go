package gnode_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/gordian-engine/gossipchain/gnode"
	"github.com/gordian-engine/gossipchain/gp2p/gp2ptest"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwatchdog"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestNew_invalidConfig(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := gnode.New(ctx, gtest.NewLogger(t), gnode.Config{})
	require.Error(t, err)
	require.ErrorContains(t, err, "Conn must be set")
	require.ErrorContains(t, err, "BlockCapacity must be positive")
}

func TestNode_SubmitTransaction_noPeers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)

	_, err := f.Nodes[0].SubmitTransaction(ctx, gnode.SubmitRequest{
		Kind: gtx.KindVote, Topic: "t", Option: "yes",
	})
	require.ErrorIs(t, err, gnode.ErrNoPeers)

	// The peer check comes before field validation.
	_, err = f.Nodes[0].SubmitTransaction(ctx, gnode.SubmitRequest{
		Kind: gtx.KindVote, Topic: "t",
	})
	require.ErrorIs(t, err, gnode.ErrNoPeers)

	st, err := f.Nodes[0].Status(ctx)
	require.NoError(t, err)
	require.Zero(t, st.Pending)
}

func TestNode_SubmitTransaction_missingField(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 2, nil)

	for _, req := range []gnode.SubmitRequest{
		{Kind: gtx.KindVote, Topic: "t"},
		{Kind: gtx.KindVote, Option: "yes"},
		{Kind: gtx.KindTransfer, Amount: 5},
		{Kind: gtx.KindTransfer, Recipient: f.Nodes[1].ID()},
	} {
		_, err := f.Nodes[0].SubmitTransaction(ctx, req)
		require.ErrorIs(t, err, gnode.ErrMissingField)
	}
}

func TestNode_SubmitTransaction_applicationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 2, nil)
	n := f.Nodes[0]

	_, err := n.SubmitTransaction(ctx, gnode.SubmitRequest{Kind: gtx.KindVote, Topic: "t", Option: "yes"})
	require.NoError(t, err)

	// Same topic, different option: still a second vote.
	_, err = n.SubmitTransaction(ctx, gnode.SubmitRequest{Kind: gtx.KindVote, Topic: "t", Option: "no"})
	require.ErrorIs(t, err, gnode.ErrAlreadyVoted)
	require.True(t, errors.As(err, new(gapp.TxInvalidError)))

	_, err = n.SubmitTransaction(ctx, gnode.SubmitRequest{
		Kind: gtx.KindTransfer, Recipient: f.Nodes[1].ID(), Amount: uint64(gapp.DefaultBalance) + 1,
	})
	require.ErrorIs(t, err, gnode.ErrInsufficientBalance)

	// Two pending transfers that together exceed the balance.
	_, err = n.SubmitTransaction(ctx, gnode.SubmitRequest{
		Kind: gtx.KindTransfer, Recipient: f.Nodes[1].ID(), Amount: 600,
	})
	require.NoError(t, err)
	_, err = n.SubmitTransaction(ctx, gnode.SubmitRequest{
		Kind: gtx.KindTransfer, Recipient: f.Nodes[1].ID(), Amount: 600,
	})
	require.ErrorIs(t, err, gnode.ErrInsufficientBalance)

	st, err := n.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.Pending)
}

func TestNode_gossipConvergence(t *testing.T) {
	for _, tc := range []struct {
		name   string
		nodes  int
		fanout int
	}{
		{name: "3 nodes fanout 2", nodes: 3, fanout: 2},
		{name: "4 nodes fanout 3", nodes: 4, fanout: 3},
		{name: "5 nodes fanout 4", nodes: 5, fanout: 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			f := newFixture(t, ctx, tc.nodes, func(_ int, cfg *gnode.Config) {
				cfg.Fanout = tc.fanout
			})

			hash, err := f.Nodes[0].SubmitTransaction(ctx, gnode.SubmitRequest{
				Kind: gtx.KindVote, Topic: "t", Option: "yes",
			})
			require.NoError(t, err)

			f.WaitPending(t, ctx, 1)

			for _, n := range f.Nodes {
				ts, err := n.FindTransaction(ctx, hash)
				require.NoError(t, err)
				require.False(t, ts.Finalized)
				require.Equal(t, -1, ts.BlockIndex)
			}
		})
	}
}

func TestNode_leaderAgreement(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 4, nil)
	f.AnnounceAll(t, ctx)

	var leaders []string
	for _, n := range f.Nodes {
		st, err := n.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, 4, st.KnownPeers)
		leaders = append(leaders, st.NextLeader)
	}
	for _, l := range leaders[1:] {
		require.Equal(t, leaders[0], l)
	}
	require.NotEmpty(t, leaders[0])
}

// Three nodes with block capacity two receive three transactions;
// one leader round leaves one block, two finalized and one pending everywhere.
func TestNode_endToEnd(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		// submitter returns the index of the node submitting the i'th transaction.
		submitter func(i int) int
	}{
		{name: "one submission per node", submitter: func(i int) int { return i }},
		{name: "all submissions from one node", submitter: func(int) int { return 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			f := newFixture(t, ctx, 3, nil)
			f.AnnounceAll(t, ctx)

			topics := []string{"a", "b", "c"}
			for i, topic := range topics {
				_, err := f.Nodes[tc.submitter(i)].SubmitTransaction(ctx, gnode.SubmitRequest{
					Kind: gtx.KindVote, Topic: topic, Option: "yes",
				})
				require.NoError(t, err)
			}

			f.WaitPending(t, ctx, 3)

			produced := 0
			for _, n := range f.Nodes {
				ok, err := n.TriggerRound(ctx)
				require.NoError(t, err)
				if ok {
					produced++
				}
			}
			require.Equal(t, 1, produced)

			for _, n := range f.Nodes {
				gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
					st, err := n.Status(ctx)
					require.NoError(t, err)
					return st.ChainLen == 1
				}, "block reached every node")

				st, err := n.Status(ctx)
				require.NoError(t, err)
				require.Equal(t, 2, st.Finalized)
				require.Equal(t, 1, st.Pending)
				require.Zero(t, st.BrokenLinks)

				blocks, err := n.Blocks(ctx)
				require.NoError(t, err)
				require.Len(t, blocks, 1)
				require.Equal(t, gchain.GenesisHash, blocks[0].PreviousHash)
				require.Len(t, blocks[0].Transactions, 2)
				require.NoError(t, blocks[0].VerifyCommitment())

				// Exactly two of the three topics have a finalized tally.
				tallied := 0
				for _, topic := range topics {
					votes, err := n.QueryVotes(ctx, topic)
					if errors.Is(err, gnode.ErrNotFound) {
						continue
					}
					require.NoError(t, err)
					require.Equal(t, map[string]uint64{"yes": 1}, votes)
					tallied++
				}
				require.Equal(t, 2, tallied)
			}
		})
	}
}

func TestNode_transferFinalizes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 2, func(_ int, cfg *gnode.Config) {
		cfg.BlockCapacity = 1
	})
	f.AnnounceAll(t, ctx)

	a, b := f.Nodes[0], f.Nodes[1]

	_, err := a.QueryBalance(ctx, "nobody")
	require.ErrorIs(t, err, gnode.ErrNotFound)

	hash, err := a.SubmitTransaction(ctx, gnode.SubmitRequest{
		Kind: gtx.KindTransfer, Recipient: b.ID(), Amount: 250,
	})
	require.NoError(t, err)
	f.WaitPending(t, ctx, 1)

	for _, n := range f.Nodes {
		_, err := n.TriggerRound(ctx)
		require.NoError(t, err)
	}

	for _, n := range f.Nodes {
		gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
			st, err := n.Status(ctx)
			require.NoError(t, err)
			return st.ChainLen == 1
		}, "block reached every node")

		bal, err := n.QueryBalance(ctx, a.ID())
		require.NoError(t, err)
		require.Equal(t, gapp.DefaultBalance-250, bal)

		bal, err = n.QueryBalance(ctx, b.ID())
		require.NoError(t, err)
		require.Equal(t, gapp.DefaultBalance+250, bal)

		ts, err := n.FindTransaction(ctx, hash)
		require.NoError(t, err)
		require.True(t, ts.Finalized)
		require.Equal(t, 0, ts.BlockIndex)
		require.Equal(t, 0, ts.TxIndex)
	}
}

func TestNode_roundWithoutEnoughTransactions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 2, nil)
	f.AnnounceAll(t, ctx)

	_, err := f.Nodes[0].SubmitTransaction(ctx, gnode.SubmitRequest{Kind: gtx.KindVote, Topic: "t", Option: "o"})
	require.NoError(t, err)
	f.WaitPending(t, ctx, 1)

	for _, n := range f.Nodes {
		ok, err := n.TriggerRound(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestNode_dropsBadTransactions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	bad := p.Vote(t, ctx, "t", "yes", 1)
	bad.Signature[0] ^= 0xff
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Transaction: &bad}))

	unsigned := p.Vote(t, ctx, "u", "yes", 2)
	unsigned.Signature = nil
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Transaction: &unsigned}))

	good := p.Vote(t, ctx, "v", "yes", 3)
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Transaction: &good}))

	// Second vote on the same topic conflicts with the pending one.
	conflict := p.Vote(t, ctx, "v", "no", 4)
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Transaction: &conflict}))

	// Loopback delivery is in order per receiver,
	// so once the last message is handled the others were too.
	last := p.Vote(t, ctx, "w", "yes", 5)
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Transaction: &last}))

	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		_, err := n.FindTransaction(ctx, last.Hash())
		return err == nil
	}, "last transaction arrived")

	st, err := n.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.Pending)

	for _, tx := range []gtx.Transaction{bad, unsigned, conflict} {
		_, err := n.FindTransaction(ctx, tx.Hash())
		require.ErrorIs(t, err, gnode.ErrNotFound)
	}
}

// buildChain returns n single-transaction blocks, each linked to the previous.
func buildChain(t *testing.T, ctx context.Context, p *scriptedPeer, n int) []gchain.Block {
	t.Helper()

	b := gchain.NewBuilder(gchain.GenesisHash, 1)
	out := make([]gchain.Block, n)
	for i := range out {
		require.NoError(t, b.AddTransaction(p.Vote(t, ctx, "topic-"+string(rune('a'+i)), "yes", uint64(i+1))))
		blk, err := b.Finalize()
		require.NoError(t, err)
		out[i] = blk
	}
	return out
}

func signedBlockMessage(t *testing.T, ctx context.Context, signer gcrypto.Signer, reg *gcrypto.Registry, b gchain.Block) gwire.Message {
	t.Helper()

	m := gwire.BlockMessage{Block: b, TTL: 1}
	require.NoError(t, gwire.SignBlock(ctx, signer, reg, &m))
	return gwire.Message{Block: &m}
}

func receiveKind(t *testing.T, h *gp2ptest.ChannelHandler, k gwire.Kind) gp2ptest.Received {
	t.Helper()

	for {
		got := gtest.ReceiveSoon(t, h.C())
		if got.Msg.Kind() == k {
			return got
		}
	}
}

func TestNode_chainRepair(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	blocks := buildChain(t, ctx, p, 2)
	parent, child := blocks[0], blocks[1]

	childMsg := signedBlockMessage(t, ctx, p.Signer, p.Reg, child)

	// The child arrives twice before its parent.
	require.NoError(t, p.Send(ctx, n.ID(), childMsg))
	require.NoError(t, p.Send(ctx, n.ID(), childMsg))

	got := receiveKind(t, p.H, gwire.KindBlockRequest)
	require.Equal(t, n.ID(), got.From)
	require.Equal(t, parent.MerkleHash, got.Msg.BlockRequest.BlockHash)

	// Exactly one request.
	gtest.NotSendingSoon(t, p.H.C())

	st, err := n.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, st.ChainLen)
	require.Equal(t, 1, st.OutstandingRequests)

	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{
		BlockResponse: &gwire.BlockResponse{Block: parent},
	}))
	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		st, err := n.Status(ctx)
		require.NoError(t, err)
		return st.ChainLen == 1
	}, "parent inserted")

	st, err = n.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, st.OutstandingRequests)

	// The child was dropped, so only a resend appends it.
	require.NoError(t, p.Send(ctx, n.ID(), childMsg))
	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		st, err := n.Status(ctx)
		require.NoError(t, err)
		return st.ChainLen == 2
	}, "child appended")

	got2, err := n.Blocks(ctx)
	require.NoError(t, err)
	require.Equal(t, []gchain.Block{parent, child}, got2)

	st, err = n.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, st.BrokenLinks)
}

func TestNode_chainRepair_grandparent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	blocks := buildChain(t, ctx, p, 3)

	require.NoError(t, p.Send(ctx, n.ID(), signedBlockMessage(t, ctx, p.Signer, p.Reg, blocks[2])))
	got := receiveKind(t, p.H, gwire.KindBlockRequest)
	require.Equal(t, blocks[1].MerkleHash, got.Msg.BlockRequest.BlockHash)

	// The parent's own parent is also unknown.
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{BlockResponse: &gwire.BlockResponse{Block: blocks[1]}}))
	got = receiveKind(t, p.H, gwire.KindBlockRequest)
	require.Equal(t, blocks[0].MerkleHash, got.Msg.BlockRequest.BlockHash)

	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{BlockResponse: &gwire.BlockResponse{Block: blocks[0]}}))
	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		st, err := n.Status(ctx)
		require.NoError(t, err)
		return st.ChainLen == 1
	}, "grandparent inserted")

	// The outstanding request for the parent is resent on retry.
	require.NoError(t, n.TriggerRetry(ctx))
	got = receiveKind(t, p.H, gwire.KindBlockRequest)
	require.Equal(t, blocks[1].MerkleHash, got.Msg.BlockRequest.BlockHash)

	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{BlockResponse: &gwire.BlockResponse{Block: blocks[1]}}))
	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		st, err := n.Status(ctx)
		require.NoError(t, err)
		return st.ChainLen == 2 && st.OutstandingRequests == 0
	}, "parent inserted after grandparent")
}

func TestNode_requestRetryAbandons(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, func(_ int, cfg *gnode.Config) {
		cfg.MaxRequestAttempts = 2
	})
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	blocks := buildChain(t, ctx, p, 2)
	require.NoError(t, p.Send(ctx, n.ID(), signedBlockMessage(t, ctx, p.Signer, p.Reg, blocks[1])))
	_ = receiveKind(t, p.H, gwire.KindBlockRequest)

	require.NoError(t, n.TriggerRetry(ctx))
	got := receiveKind(t, p.H, gwire.KindBlockRequest)
	require.Equal(t, blocks[0].MerkleHash, got.Msg.BlockRequest.BlockHash)

	// Attempts exhausted.
	require.NoError(t, n.TriggerRetry(ctx))
	gtest.NotSendingSoon(t, p.H.C())

	st, err := n.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, st.OutstandingRequests)
}

func TestNode_rejectsBadBlocks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	blocks := buildChain(t, ctx, p, 1)

	// Signed, but the commitment does not match the contents.
	tampered := blocks[0]
	tampered.Transactions = [][]byte{p.Vote(t, ctx, "other", "x", 9).SignBytes()}
	require.NoError(t, p.Send(ctx, n.ID(), signedBlockMessage(t, ctx, p.Signer, p.Reg, tampered)))

	// Valid commitment, broken signature.
	badSig := signedBlockMessage(t, ctx, p.Signer, p.Reg, blocks[0])
	badSig.Block.Signature[0] ^= 0xff
	require.NoError(t, p.Send(ctx, n.ID(), badSig))

	// Unsolicited response.
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{BlockResponse: &gwire.BlockResponse{Block: blocks[0]}}))

	// A valid message afterwards proves the earlier ones were handled.
	last := p.Vote(t, ctx, "last", "yes", 10)
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Transaction: &last}))
	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		_, err := n.FindTransaction(ctx, last.Hash())
		return err == nil
	}, "last transaction arrived")

	st, err := n.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, st.ChainLen)
}

func TestNode_answersBlockRequests(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	blocks := buildChain(t, ctx, p, 1)
	require.NoError(t, p.Send(ctx, n.ID(), signedBlockMessage(t, ctx, p.Signer, p.Reg, blocks[0])))
	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		st, err := n.Status(ctx)
		require.NoError(t, err)
		return st.ChainLen == 1
	}, "block appended")

	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{BlockRequest: &gwire.BlockRequest{BlockHash: blocks[0].MerkleHash}}))
	got := receiveKind(t, p.H, gwire.KindBlockResponse)
	require.Equal(t, blocks[0], got.Msg.BlockResponse.Block)

	// Unknown hashes are ignored.
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{BlockRequest: &gwire.BlockRequest{BlockHash: "nope"}}))
	gtest.NotSendingSoon(t, p.H.C())
}

func TestNode_peerAnnouncements(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	p := f.NewScriptedPeer(t, ctx)
	n := f.Nodes[0]

	// A peer that is not connected, learned only through announcement.
	require.NoError(t, p.Send(ctx, n.ID(), gwire.Message{Peers: &gwire.PeersMessage{PeerID: "far-away", TTL: 2}}))

	gtest.Eventually(t, gtest.ScaleMs(2000), func() bool {
		peers, err := n.KnownPeers(ctx)
		require.NoError(t, err)
		return len(peers) == 2
	}, "announced peer known")

	peers, err := n.KnownPeers(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{n.ID(), "far-away"}, peers)

	// Known peers get an account at the default balance.
	bal, err := n.QueryBalance(ctx, "far-away")
	require.NoError(t, err)
	require.Equal(t, gapp.DefaultBalance, bal)

	// Announcing adds the connected scripted peer and tells it about us.
	require.NoError(t, n.TriggerAnnounce(ctx))
	got := receiveKind(t, p.H, gwire.KindPeers)
	require.Equal(t, n.ID(), got.Msg.Peers.PeerID)
	require.Equal(t, uint32(3), got.Msg.Peers.TTL)

	peers, err = n.KnownPeers(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 3)
}

func TestNode_stopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, 1, nil)
	cancel()
	f.Nodes[0].Wait()

	_, err := f.Nodes[0].Status(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNode_answersWatchdog(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wd, wCtx := gwatchdog.New(ctx, gtest.NewLogger(t), gwatchdog.Options{
		ResponseTimeout: time.Duration(gtest.ScaleMs(200)),
	})
	t.Cleanup(wd.Wait)

	f := newFixture(t, ctx, 2, func(_ int, cfg *gnode.Config) {
		cfg.Watchdog = wd
		cfg.WatchdogInterval = 2 * time.Millisecond
	})
	f.AnnounceAll(t, ctx)

	// Many polls elapse while the kernels serve other requests.
	for range 20 {
		_, err := f.Nodes[0].Status(ctx)
		require.NoError(t, err)
		gtest.Sleep(gtest.ScaleMs(5))
	}

	require.NoError(t, wCtx.Err())
}
