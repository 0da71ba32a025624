package gpool_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/gordian-engine/gossipchain/gpool"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/stretchr/testify/require"
)

func testTx(i int) gtx.Transaction {
	return gtx.Transaction{
		Kind:   gtx.KindVote,
		Sender: []byte(fmt.Sprintf("peer-%d", i)),
		Topic:  "t",
		Option: "o",
		Nonce:  1,
	}
}

func hashes(txs []gtx.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Hash()
	}
	return out
}

func TestPool_Submit_idempotent(t *testing.T) {
	t.Parallel()

	p := gpool.New()
	tx := testTx(0)

	require.True(t, p.Submit(tx))
	for range 3 {
		require.False(t, p.Submit(tx))
	}
	require.Equal(t, 1, p.PendingLen())
	require.Zero(t, p.FinalizedLen())

	p.Finalize([]string{tx.Hash()})
	require.False(t, p.Submit(tx))
	require.Zero(t, p.PendingLen())
	require.Equal(t, 1, p.FinalizedLen())
	require.NoError(t, p.CheckDisjoint())
}

func TestPool_Finalize(t *testing.T) {
	t.Parallel()

	p := gpool.New()
	for i := range 3 {
		require.True(t, p.Submit(testTx(i)))
	}

	moved := p.Finalize([]string{testTx(0).Hash(), testTx(2).Hash(), "unknown"})
	require.Equal(t, 2, moved)

	require.True(t, p.IsFinalized(testTx(0).Hash()))
	require.True(t, p.IsPending(testTx(1).Hash()))
	require.True(t, p.Contains(testTx(2).Hash()))
	require.False(t, p.Contains("unknown"))

	require.Equal(t, hashes([]gtx.Transaction{testTx(1)}), hashes(p.Pending(0)))
}

func TestPool_MarkFinalized(t *testing.T) {
	t.Parallel()

	p := gpool.New()

	signed := testTx(0)
	signed.Signature = []byte("sig")
	require.True(t, p.Submit(signed))

	// Seen inside a block without signature: pending copy is kept.
	p.MarkFinalized(testTx(0))
	got, ok := p.Get(signed.Hash())
	require.True(t, ok)
	require.Equal(t, []byte("sig"), got.Signature)
	require.False(t, p.IsPending(signed.Hash()))

	// Never seen before.
	p.MarkFinalized(testTx(1))
	require.True(t, p.IsFinalized(testTx(1).Hash()))
	require.NoError(t, p.CheckDisjoint())
}

func TestPool_Pending_order(t *testing.T) {
	t.Parallel()

	p := gpool.New()
	var all []gtx.Transaction
	for i := range 5 {
		all = append(all, testTx(i))
		p.Submit(testTx(i))
	}

	require.Equal(t, hashes(all), hashes(p.Pending(0)))
	require.Equal(t, hashes(all[:2]), hashes(p.Pending(2)))
	require.Equal(t, hashes(all), hashes(p.Pending(100)))
}

func TestPool_Discard_resubmit(t *testing.T) {
	t.Parallel()

	p := gpool.New()
	p.Submit(testTx(0))
	p.Submit(testTx(1))

	p.Discard([]string{testTx(0).Hash()})
	require.False(t, p.Contains(testTx(0).Hash()))

	require.True(t, p.Submit(testTx(0)))

	// The resubmission takes a new slot after everything already pending.
	require.Equal(t,
		hashes([]gtx.Transaction{testTx(1), testTx(0)}),
		hashes(p.Pending(0)),
	)
	require.Equal(t, hashes([]gtx.Transaction{testTx(1)}), hashes(p.Pending(1)))
}

func TestPool_Expire_resubmitted(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	p := gpool.NewWithClock(func() time.Time { return now })

	p.Submit(testTx(0))
	p.Submit(testTx(1))
	p.Discard([]string{testTx(0).Hash()})

	now = now.Add(time.Minute)
	p.Submit(testTx(0))

	// Only the original admission of tx 1 is old enough.
	expired := p.Expire(now.Add(-30 * time.Second))
	require.Equal(t, hashes([]gtx.Transaction{testTx(1)}), hashes(expired))
	require.Equal(t, hashes([]gtx.Transaction{testTx(0)}), hashes(p.Pending(0)))
}

func TestPool_Expire(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	p := gpool.NewWithClock(func() time.Time { return now })

	p.Submit(testTx(0))
	now = now.Add(time.Minute)
	p.Submit(testTx(1))
	now = now.Add(time.Minute)

	expired := p.Expire(now.Add(-90 * time.Second))
	require.Equal(t, hashes([]gtx.Transaction{testTx(0)}), hashes(expired))
	require.Equal(t, 1, p.PendingLen())

	require.Empty(t, p.Expire(now.Add(-90*time.Second)))
}

func TestPool_compaction(t *testing.T) {
	t.Parallel()

	p := gpool.New()
	var txs []gtx.Transaction
	for i := range 200 {
		tx := testTx(i)
		txs = append(txs, tx)
		p.Submit(tx)
	}

	p.Finalize(hashes(txs[:190]))
	require.Equal(t, hashes(txs[190:]), hashes(p.Pending(0)))
	require.Equal(t, 190, p.FinalizedLen())
}
