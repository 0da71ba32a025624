// Package gcryptotest provides deterministic keys for tests.
package gcryptotest

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/gordian-engine/gossipchain/gcrypto"
)

var (
	muEd     sync.Mutex
	seededEd []ed25519.PrivateKey
)

// DeterministicEd25519Signers returns n signers whose keys are derived
// from their index, so test logs stay stable across runs.
// Keys are cached after first generation.
// Each call returns freshly cloned key material.
func DeterministicEd25519Signers(n int) []gcrypto.Ed25519Signer {
	muEd.Lock()
	defer muEd.Unlock()

	for i := len(seededEd); i < n; i++ {
		seed := fmt.Sprintf("%032d", i) // ed25519 seeds are 32 bytes.
		seededEd = append(seededEd, ed25519.NewKeyFromSeed([]byte(seed)))
	}

	out := make([]gcrypto.Ed25519Signer, n)
	for i := range out {
		priv := make(ed25519.PrivateKey, len(seededEd[i]))
		copy(priv, seededEd[i])
		out[i] = gcrypto.NewEd25519Signer(priv)
	}
	return out
}
