package gcrypto

import "errors"

var ErrInvalidSignature = errors.New("signature could not be verified")

var ErrUnknownKey = errors.New("unknown key")

// ErrShortKey is returned when encoded key bytes are too short to carry a type prefix.
var ErrShortKey = errors.New("encoded public key shorter than type prefix")
