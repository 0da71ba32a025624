// Package gmerkletest contains debugging helpers for gmerkle trees.
package gmerkletest

import (
	"fmt"
	"strings"

	"github.com/gordian-engine/gossipchain/gmerkle"
)

// DumpStringIDTree renders a tree with string IDs.
func DumpStringIDTree(t *gmerkle.MerkleTree[string]) string {
	return DumpTree(t, func(id string) string { return id })
}

// DumpTree renders t as an indented outline, root first.
// The format is for humans reading test logs and may change.
func DumpTree[I comparable](t *gmerkle.MerkleTree[I], format func(I) string) string {
	var sb strings.Builder
	rootDepth := -1

	t.WalkFromRootD(func(id I, depth, _ int, _ []I, leafIdx, nLeaves int) (stop bool) {
		if rootDepth == -1 {
			rootDepth = depth
		}

		sb.WriteString(strings.Repeat("   ", rootDepth-depth))
		if depth == 0 {
			fmt.Fprintf(&sb, "[L=%d] ", leafIdx)
		} else {
			fmt.Fprintf(&sb, "[%d+%d] ", leafIdx, nLeaves)
		}
		sb.WriteString(format(id))
		sb.WriteByte('\n')
		return false
	})

	return sb.String()
}
