// Package gcmd holds helpers shared by command line entrypoints.
package gcmd

import (
	"crypto/ed25519"

	"github.com/gordian-engine/gossipchain/gcrypto"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"golang.org/x/crypto/blake2b"
)

// Domain separators, so that one passphrase yields unrelated keys.
const (
	SignerKeyPrefix  = "gossipchain:signer|"
	NetworkKeyPrefix = "gossipchain:network|"
)

// seedFromPassphrase hashes prefix and passphrase into an ed25519 seed.
// The passphrase is not stretched; these keys are for test networks only.
func seedFromPassphrase(prefix, insecurePassphrase string) ([]byte, error) {
	bh, err := blake2b.New(ed25519.SeedSize, nil)
	if err != nil {
		return nil, err
	}
	bh.Write([]byte(prefix))
	bh.Write([]byte(insecurePassphrase))
	return bh.Sum(nil), nil
}

// SignerFromInsecurePassphrase derives the transaction and block signing key.
func SignerFromInsecurePassphrase(insecurePassphrase string) (gcrypto.Ed25519Signer, error) {
	seed, err := seedFromPassphrase(SignerKeyPrefix, insecurePassphrase)
	if err != nil {
		return gcrypto.Ed25519Signer{}, err
	}

	return gcrypto.NewEd25519Signer(ed25519.NewKeyFromSeed(seed)), nil
}

// Libp2pKeyFromInsecurePassphrase derives the libp2p identity key,
// which also determines the node's peer ID.
func Libp2pKeyFromInsecurePassphrase(insecurePassphrase string) (libp2pcrypto.PrivKey, error) {
	seed, err := seedFromPassphrase(NetworkKeyPrefix, insecurePassphrase)
	if err != nil {
		return nil, err
	}

	privKey := ed25519.NewKeyFromSeed(seed)
	priv, _, err := libp2pcrypto.KeyPairFromStdKey(&privKey)
	if err != nil {
		return nil, err
	}
	return priv, nil
}
