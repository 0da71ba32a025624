// Package gcrypto contains the key and signature abstractions
// used to authenticate transactions and block announcements.
package gcrypto

// PubKey is a public key that can verify signatures.
type PubKey interface {
	PubKeyBytes() []byte

	Equal(other PubKey) bool

	Verify(msg, sig []byte) bool

	// TypeName is the name the key type was registered under in a [Registry].
	TypeName() string
}
