package ggossip_test

import (
	"math/rand/v2"
	"testing"

	"github.com/gordian-engine/gossipchain/ggossip"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	t.Parallel()

	peers := []string{"a", "b", "c", "d", "e"}
	rng := rand.New(rand.NewPCG(1, 2))

	t.Run("k smaller than n", func(t *testing.T) {
		for range 100 {
			got := ggossip.Sample(rng, peers, 2)
			require.Len(t, got, 2)
			require.NotEqual(t, got[0], got[1])
			require.Subset(t, peers, got)
		}
	})

	t.Run("k at least n", func(t *testing.T) {
		require.Equal(t, peers, ggossip.Sample(rng, peers, 5))
		require.Equal(t, peers, ggossip.Sample(rng, peers, 9))
	})

	t.Run("degenerate", func(t *testing.T) {
		require.Empty(t, ggossip.Sample(rng, peers, 0))
		require.Empty(t, ggossip.Sample(rng, nil, 2))
	})
}

func TestSample_uniform(t *testing.T) {
	t.Parallel()

	peers := []string{"a", "b", "c", "d"}
	rng := rand.New(rand.NewPCG(7, 7))

	const rounds = 4000
	counts := map[string]int{}
	for range rounds {
		for _, p := range ggossip.Sample(rng, peers, 2) {
			counts[p]++
		}
	}

	// Each peer is expected in half of all samples.
	for _, p := range peers {
		require.InDeltaf(t, rounds/2, counts[p], rounds/10, "peer %s", p)
	}
}

func TestRelay(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		ttl     uint32
		next    uint32
		forward bool
	}{
		{ttl: 3, next: 2, forward: true},
		{ttl: 2, next: 1, forward: true},
		{ttl: 1, next: 0, forward: false},
		{ttl: 0, next: 0, forward: false},
	} {
		next, fwd := ggossip.Relay(tc.ttl)
		require.Equalf(t, tc.next, next, "ttl %d", tc.ttl)
		require.Equalf(t, tc.forward, fwd, "ttl %d", tc.ttl)
	}
}
