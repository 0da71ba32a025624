//go:build debug

package gnode

import (
	"fmt"

	"github.com/gordian-engine/gossipchain/gassert"
)

func invariantPoolDisjoint(env gassert.Env, s *kState) {
	if !env.Enabled("node.kernel.pool_disjoint") {
		return
	}

	if err := s.Pool.CheckDisjoint(); err != nil {
		env.HandleAssertionFailure(fmt.Errorf("pool sets overlap: %w", err))
	}
}

func invariantChainIndex(env gassert.Env, s *kState) {
	if !env.Enabled("node.kernel.chain_index") {
		return
	}

	if err := s.Chain.CheckIndex(); err != nil {
		env.HandleAssertionFailure(fmt.Errorf("chain index inconsistent: %w", err))
	}
}
