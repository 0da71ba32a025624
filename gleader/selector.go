package gleader

import (
	"fmt"
	"math/rand/v2"
)

// Selector chooses one leader from a sorted peer list.
// Every node given the same list and seed must choose the same leader.
type Selector interface {
	Select(sortedPeers []string, seed uint64) (leader string, ok bool)
}

// RandomSelector draws the leader uniformly from a PRNG seeded with the round seed.
//
// Nodes whose known-peer sets differ may elect different leaders.
// That produces competing blocks on the same parent, which is tolerated.
type RandomSelector struct{}

// Fixed second PCG word so the stream depends only on the round seed.
const pcgStream = 0x9e3779b97f4a7c15

func (RandomSelector) Select(sortedPeers []string, seed uint64) (string, bool) {
	if len(sortedPeers) == 0 {
		return "", false
	}
	rng := rand.New(rand.NewPCG(seed, pcgStream))
	return sortedPeers[rng.IntN(len(sortedPeers))], true
}

// RoundRobinSelector rotates through the sorted list by seed.
type RoundRobinSelector struct{}

func (RoundRobinSelector) Select(sortedPeers []string, seed uint64) (string, bool) {
	if len(sortedPeers) == 0 {
		return "", false
	}
	return sortedPeers[seed%uint64(len(sortedPeers))], true
}

const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round-robin"
)

// ParseStrategy returns the Selector named by s.
func ParseStrategy(s string) (Selector, error) {
	switch s {
	case StrategyRandom, "":
		return RandomSelector{}, nil
	case StrategyRoundRobin:
		return RoundRobinSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown leader strategy %q (want %q or %q)", s, StrategyRandom, StrategyRoundRobin)
	}
}
