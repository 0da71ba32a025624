package gmerkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexSHA256Scheme is a binary [MerkleScheme] over hex-encoded SHA-256 strings.
// Leaves are already hashes and are used as-is.
// A branch ID is the hex SHA-256 of its children's hex strings concatenated.
type HexSHA256Scheme struct{}

func (HexSHA256Scheme) BranchFactor() uint8 { return 2 }

func (HexSHA256Scheme) LeafID(_ int, leafHash string) (string, error) {
	return leafHash, nil
}

func (HexSHA256Scheme) BranchID(_, _ int, childIDs []string) (string, error) {
	return HashHex(strings.Join(childIDs, "")), nil
}

// HashHex returns the lowercase hex SHA-256 digest of s.
func HashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashBytesHex returns the lowercase hex SHA-256 digest of b.
func HashBytesHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Commit returns the root of the [HexSHA256Scheme] tree over leafHashes.
// The commitment of an empty sequence is the empty string.
func Commit(leafHashes []string) string {
	t, err := NewMerkleTree[string, string](HexSHA256Scheme{}, leafHashes)
	if err != nil {
		// The scheme never errors and has a valid branch factor.
		panic(fmt.Errorf("BUG: hex sha256 commitment failed: %w", err))
	}
	return t.RootID()
}

// Accumulator collects leaf hashes one at a time
// and reports the commitment over everything added so far.
// The zero value is ready to use.
type Accumulator struct {
	leaves []string

	root  string
	dirty bool
}

// Add appends a leaf hash.
func (a *Accumulator) Add(leafHash string) {
	a.leaves = append(a.leaves, leafHash)
	a.dirty = true
}

// Len reports how many leaves have been added.
func (a *Accumulator) Len() int {
	return len(a.leaves)
}

// Root returns the current commitment, recomputing only after an Add.
func (a *Accumulator) Root() string {
	if a.dirty {
		a.root = Commit(a.leaves)
		a.dirty = false
	}
	return a.root
}

// Reset discards all leaves.
// A fresh backing slice is used so that earlier callers of Leaves are unaffected.
func (a *Accumulator) Reset() {
	a.leaves = nil
	a.root = ""
	a.dirty = false
}

// Leaves returns a copy of the leaf hashes in insertion order.
func (a *Accumulator) Leaves() []string {
	out := make([]string, len(a.leaves))
	copy(out, a.leaves)
	return out
}
