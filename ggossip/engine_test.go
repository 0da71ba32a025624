package ggossip_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gordian-engine/gossipchain/ggossip"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	peers []string
	fail  map[string]bool
	sent  []string
}

func (r *recordingTransport) ConnectedPeers() []string { return r.peers }

func (r *recordingTransport) Send(_ context.Context, to string, _ gwire.Message) error {
	if r.fail[to] {
		return errors.New("unreachable")
	}
	r.sent = append(r.sent, to)
	return nil
}

var peersMsg = gwire.Message{Peers: &gwire.PeersMessage{PeerID: "x", TTL: 1}}

func TestEngine_Broadcast(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{peers: []string{"d", "a", "c", "b"}}
	e := ggossip.NewEngine(gtest.NewLogger(t), tr, 2, 1)

	sent := e.Broadcast(context.Background(), peersMsg, "")
	require.Len(t, sent, 2)
	require.Equal(t, sent, tr.sent)

	// The transport's slice is left untouched.
	require.Equal(t, []string{"d", "a", "c", "b"}, tr.peers)
}

func TestEngine_Broadcast_excludesOrigin(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{peers: []string{"a", "b"}}
	e := ggossip.NewEngine(gtest.NewLogger(t), tr, 2, 1)

	require.Equal(t, []string{"b"}, e.Broadcast(context.Background(), peersMsg, "a"))
}

func TestEngine_reproducible(t *testing.T) {
	t.Parallel()

	peers := []string{"a", "b", "c", "d", "e", "f"}

	run := func() []string {
		tr := &recordingTransport{peers: peers}
		e := ggossip.NewEngine(gtest.NewLogger(t), tr, 2, 42)
		for range 10 {
			e.Broadcast(context.Background(), peersMsg, "")
		}
		return tr.sent
	}

	require.Equal(t, run(), run())
}

func TestEngine_SendAll_skipsFailures(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{
		peers: []string{"a", "b", "c"},
		fail:  map[string]bool{"b": true},
	}
	e := ggossip.NewEngine(gtest.NewLogger(t), tr, 1, 1)

	require.Equal(t, []string{"a", "c"}, e.SendAll(context.Background(), peersMsg, ""))
}

func TestEngine_PickOne(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{peers: []string{"a"}}
	e := ggossip.NewEngine(gtest.NewLogger(t), tr, 1, 1)

	p, ok := e.PickOne("")
	require.True(t, ok)
	require.Equal(t, "a", p)

	_, ok = e.PickOne("a")
	require.False(t, ok)
}
