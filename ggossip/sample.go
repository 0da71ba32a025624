// Package ggossip spreads messages to a bounded random subset of connected peers.
package ggossip

import (
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
)

// Sample returns min(k, len(peers)) distinct elements of peers
// chosen uniformly at random without replacement.
// The result preserves the order of peers.
func Sample(rng *rand.Rand, peers []string, k int) []string {
	n := len(peers)
	if k >= n {
		out := make([]string, n)
		copy(out, peers)
		return out
	}
	if k <= 0 {
		return nil
	}

	// Floyd's algorithm: exactly k iterations, each picking one new index.
	chosen := bitset.New(uint(n))
	for j := n - k; j < n; j++ {
		t := uint(rng.IntN(j + 1))
		if chosen.Test(t) {
			chosen.Set(uint(j))
		} else {
			chosen.Set(t)
		}
	}

	out := make([]string, 0, k)
	for i, ok := chosen.NextSet(0); ok; i, ok = chosen.NextSet(i + 1) {
		out = append(out, peers[i])
	}
	return out
}

// Relay applies the hop rule to a received TTL.
// The item is always absorbed locally;
// it is forwarded with next only if next is still positive.
func Relay(ttl uint32) (next uint32, forward bool) {
	if ttl == 0 {
		return 0, false
	}
	next = ttl - 1
	return next, next > 0
}
