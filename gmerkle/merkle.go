// Package gmerkle builds Merkle trees over ordered leaves.
//
// The tree is generic over the leaf type and the node ID type,
// with hashing delegated to a [MerkleScheme].
// [HexSHA256Scheme] is the scheme used for block transaction commitments.
package gmerkle

import (
	"fmt"
)

// MerkleScheme describes how to derive node IDs for a tree.
// L is the leaf data type and I is the node ID type.
type MerkleScheme[L any, I comparable] interface {
	// BranchFactor is the number of children per branch.
	// The rightmost branch in a row may have fewer children.
	BranchFactor() uint8

	// BranchID calculates the ID of a branch with at least two children.
	// A branch with exactly one child takes that child's ID unchanged,
	// and BranchID is not called for it.
	BranchID(depth, rowIdx int, childIDs []I) (I, error)

	// LeafID calculates the ID for the leaf at index idx.
	LeafID(idx int, leafData L) (I, error)
}

// MerkleTree is an immutable Merkle tree.
// All leaves are supplied at construction,
// so the methods are safe for concurrent use.
//
// Leaf IDs are assumed unique;
// [MerkleTree.Lookup] only finds the first occurrence of a duplicate.
type MerkleTree[I comparable] struct {
	m int

	nLeaves int

	// rows[0] holds the leaf IDs and the last row holds the lone root.
	// An empty tree has no rows.
	rows [][]I
}

// NewMerkleTree builds a tree from the given leaves.
// Zero leaves produce an empty tree whose root is the zero value of I.
func NewMerkleTree[L any, I comparable](scheme MerkleScheme[L, I], leafData []L) (*MerkleTree[I], error) {
	m := int(scheme.BranchFactor()) // m as in "m-ary tree".
	if m < 2 {
		return nil, fmt.Errorf("branch factor must be at least 2 (got %d)", m)
	}

	t := &MerkleTree[I]{m: m, nLeaves: len(leafData)}
	if len(leafData) == 0 {
		return t, nil
	}

	row := make([]I, len(leafData))
	for i, ld := range leafData {
		id, err := scheme.LeafID(i, ld)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate leaf ID at index %d: %w", i, err)
		}
		row[i] = id
	}
	t.rows = append(t.rows, row)

	for depth := 1; len(row) > 1; depth++ {
		next := make([]I, (len(row)+m-1)/m)
		for i := range next {
			start := i * m
			end := min(start+m, len(row))

			if end-start == 1 {
				// Odd node out is promoted unchanged.
				next[i] = row[start]
				continue
			}

			id, err := scheme.BranchID(depth, i, row[start:end])
			if err != nil {
				return nil, fmt.Errorf(
					"failed to calculate branch ID at index %d in depth %d: %w", i, depth, err,
				)
			}
			next[i] = id
		}

		t.rows = append(t.rows, next)
		row = next
	}

	return t, nil
}

// RootID returns the ID of the root.
// It is the zero value of I for an empty tree.
func (t *MerkleTree[I]) RootID() I {
	if len(t.rows) == 0 {
		var zero I
		return zero
	}
	return t.rows[len(t.rows)-1][0]
}

// Len reports the number of leaves in the tree.
func (t *MerkleTree[I]) Len() int {
	return t.nLeaves
}

// LeafID returns the ID of the leaf at idx.
func (t *MerkleTree[I]) LeafID(idx int) I {
	return t.rows[0][idx]
}

// Lookup finds the node with the given ID,
// returning the index of the first leaf it covers and how many leaves it covers.
// A promoted node is reported at its lowest depth.
// If id is absent, Lookup returns -1, 0.
func (t *MerkleTree[I]) Lookup(id I) (leafIdxStart, n int) {
	span := 1
	for depth, row := range t.rows {
		if depth > 0 {
			span *= t.m
		}

		for i, rid := range row {
			if rid != id {
				continue
			}

			start := span * i
			n = min(span, t.nLeaves-start)
			return start, n
		}
	}
	return -1, 0
}

// TreeVisitFunc is called for each node during [MerkleTree.WalkFromRootD].
// Returning stop=true ends the walk.
type TreeVisitFunc[I comparable] func(id I, depth, rowIdx int, childIDs []I, leafIdx, nLeaves int) (stop bool)

// WalkFromRootD visits every node depth-first starting at the root.
// Promoted nodes are visited once per depth they occupy.
func (t *MerkleTree[I]) WalkFromRootD(fn TreeVisitFunc[I]) {
	if len(t.rows) == 0 {
		return
	}
	t.walkD(len(t.rows)-1, 0, fn)
}

func (t *MerkleTree[I]) walkD(depth, rowIdx int, fn TreeVisitFunc[I]) (stop bool) {
	span := 1
	for range depth {
		span *= t.m
	}
	leafIdx := span * rowIdx
	nLeaves := min(span, t.nLeaves-leafIdx)

	if depth == 0 {
		return fn(t.rows[0][rowIdx], 0, rowIdx, nil, leafIdx, 1)
	}

	start := rowIdx * t.m
	end := min(start+t.m, len(t.rows[depth-1]))
	childIDs := t.rows[depth-1][start:end]

	if fn(t.rows[depth][rowIdx], depth, rowIdx, childIDs, leafIdx, nLeaves) {
		return true
	}

	for i := start; i < end; i++ {
		if t.walkD(depth-1, i, fn) {
			return true
		}
	}
	return false
}
