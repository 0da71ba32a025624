package gleader_test

import (
	"testing"

	"github.com/gordian-engine/gossipchain/gleader"
	"github.com/stretchr/testify/require"
)

func TestPeerSet(t *testing.T) {
	t.Parallel()

	s := gleader.NewPeerSet("c", "a")
	require.True(t, s.Add("b"))
	require.False(t, s.Add("a"))
	require.False(t, s.Add(""))

	require.Equal(t, 3, s.Len())
	require.True(t, s.Contains("c"))
	require.Equal(t, []string{"a", "b", "c"}, s.Sorted())

	s.Add("0")
	require.Equal(t, []string{"0", "a", "b", "c"}, s.Sorted())
}

func TestRandomSelector_agreement(t *testing.T) {
	t.Parallel()

	// Three nodes that learned peers in different orders.
	views := []*gleader.PeerSet{
		gleader.NewPeerSet("n1", "n2", "n3"),
		gleader.NewPeerSet("n3", "n1", "n2"),
		gleader.NewPeerSet("n2", "n3", "n1"),
	}

	var sel gleader.RandomSelector
	for seed := range uint64(50) {
		want, ok := sel.Select(views[0].Sorted(), seed)
		require.True(t, ok)
		for _, v := range views[1:] {
			got, ok := sel.Select(v.Sorted(), seed)
			require.True(t, ok)
			require.Equal(t, want, got, "seed %d", seed)
		}
	}
}

func TestRandomSelector_coversPeers(t *testing.T) {
	t.Parallel()

	peers := []string{"a", "b", "c"}
	seen := map[string]int{}
	var sel gleader.RandomSelector
	for seed := range uint64(300) {
		l, _ := sel.Select(peers, seed)
		seen[l]++
	}
	require.Len(t, seen, 3)
	for p, n := range seen {
		require.Greaterf(t, n, 50, "peer %s chosen only %d times", p, n)
	}
}

func TestSelector_empty(t *testing.T) {
	t.Parallel()

	_, ok := gleader.RandomSelector{}.Select(nil, 1)
	require.False(t, ok)
	_, ok = gleader.RoundRobinSelector{}.Select(nil, 1)
	require.False(t, ok)
}

func TestRoundRobinSelector(t *testing.T) {
	t.Parallel()

	peers := []string{"a", "b", "c"}
	var got []string
	for seed := range uint64(4) {
		l, ok := gleader.RoundRobinSelector{}.Select(peers, seed)
		require.True(t, ok)
		got = append(got, l)
	}
	require.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	s, err := gleader.ParseStrategy("random")
	require.NoError(t, err)
	require.IsType(t, gleader.RandomSelector{}, s)

	s, err = gleader.ParseStrategy("round-robin")
	require.NoError(t, err)
	require.IsType(t, gleader.RoundRobinSelector{}, s)

	_, err = gleader.ParseStrategy("fastest")
	require.Error(t, err)
}
