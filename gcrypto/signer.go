package gcrypto

import "context"

// Signer produces signatures over arbitrary input.
type Signer interface {
	PubKey() PubKey

	// Sign returns the signature over input.
	// The context allows remote signers to be cancelled.
	Sign(ctx context.Context, input []byte) (signature []byte, err error)
}
