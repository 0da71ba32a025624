package gcrypto_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RoundTrip(t *testing.T) {
	t.Parallel()

	pubKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	origKey := gcrypto.Ed25519PubKey(pubKey)

	reg := new(gcrypto.Registry)
	gcrypto.RegisterEd25519(reg)

	b := reg.Marshal(origKey)

	newKey, err := reg.Unmarshal(b)
	require.NoError(t, err)

	require.True(t, origKey.Equal(newKey))
}

func TestRegistry_Unmarshal_errors(t *testing.T) {
	t.Parallel()

	reg := new(gcrypto.Registry)
	gcrypto.RegisterEd25519(reg)

	_, err := reg.Unmarshal([]byte("abcd\x00\x00\x00\x00111222333"))
	require.ErrorIs(t, err, gcrypto.ErrUnknownKey)
	require.ErrorContains(t, err, `prefix "abcd"`)

	_, err = reg.Unmarshal([]byte("ed2"))
	require.ErrorIs(t, err, gcrypto.ErrShortKey)

	// Known prefix but truncated key material.
	_, err = reg.Unmarshal([]byte("ed25519\x00abc"))
	require.Error(t, err)
}

func TestRegistry_Register_duplicatePanics(t *testing.T) {
	t.Parallel()

	reg := new(gcrypto.Registry)
	gcrypto.RegisterEd25519(reg)

	require.Panics(t, func() {
		gcrypto.RegisterEd25519(reg)
	})
}
