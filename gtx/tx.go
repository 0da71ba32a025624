// Package gtx defines the signed transaction record
// and the pure functions that hash, sign, and verify it.
package gtx

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/gordian-engine/gossipchain/gmerkle"
	"github.com/gordian-engine/gossipchain/internal/gcbor"
)

// Kind distinguishes the application a transaction targets.
type Kind uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type Kind -trimprefix=Kind
const (
	KindUnspecified Kind = iota
	KindTransfer
	KindVote
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrUnknownKind  = errors.New("unknown transaction kind")
)

// Transaction is a signed application request.
//
// Only the fields up to and including Nonce are signed and hashed.
// TTL is hop-by-hop gossip state and is rewritten by every relay.
type Transaction struct {
	Kind   Kind   `cbor:"1,keyasint"`
	Sender []byte `cbor:"2,keyasint"`

	// Transfer fields.
	Recipient []byte `cbor:"3,keyasint,omitempty"`
	Amount    uint64 `cbor:"4,keyasint,omitempty"`

	// Vote fields.
	Topic  string `cbor:"5,keyasint,omitempty"`
	Option string `cbor:"6,keyasint,omitempty"`

	Nonce uint64 `cbor:"7,keyasint"`

	TTL       uint32 `cbor:"8,keyasint"`
	Signature []byte `cbor:"9,keyasint"`

	// PubKey is the registry encoding of the signer's key.
	PubKey []byte `cbor:"10,keyasint"`
}

// signable mirrors the signed prefix of Transaction.
// Its encoding is both the signature input and the block leaf payload.
type signable struct {
	Kind      Kind   `cbor:"1,keyasint"`
	Sender    []byte `cbor:"2,keyasint"`
	Recipient []byte `cbor:"3,keyasint,omitempty"`
	Amount    uint64 `cbor:"4,keyasint,omitempty"`
	Topic     string `cbor:"5,keyasint,omitempty"`
	Option    string `cbor:"6,keyasint,omitempty"`
	Nonce     uint64 `cbor:"7,keyasint"`
}

// SignBytes returns the canonical encoding of the signed fields.
func (tx Transaction) SignBytes() []byte {
	b, err := gcbor.Marshal(signable{
		Kind:      tx.Kind,
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    tx.Amount,
		Topic:     tx.Topic,
		Option:    tx.Option,
		Nonce:     tx.Nonce,
	})
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode signable transaction: %w", err))
	}
	return b
}

// Hash returns the hex SHA-256 of [Transaction.SignBytes].
// Two transactions with the same hash are the same transaction.
func (tx Transaction) Hash() string {
	return gmerkle.HashBytesHex(tx.SignBytes())
}

// DecodeSignable parses the output of [Transaction.SignBytes].
// The returned transaction has no TTL, signature, or key.
func DecodeSignable(b []byte) (Transaction, error) {
	var s signable
	if err := gcbor.Unmarshal(b, &s); err != nil {
		return Transaction{}, fmt.Errorf("failed to decode signable transaction: %w", err)
	}
	return Transaction{
		Kind:      s.Kind,
		Sender:    s.Sender,
		Recipient: s.Recipient,
		Amount:    s.Amount,
		Topic:     s.Topic,
		Option:    s.Option,
		Nonce:     s.Nonce,
	}, nil
}

// Validate checks that the fields required by tx.Kind are present.
func (tx Transaction) Validate() error {
	var errs []error
	if len(tx.Sender) == 0 {
		errs = append(errs, fmt.Errorf("%w: sender", ErrMissingField))
	}

	switch tx.Kind {
	case KindTransfer:
		if len(tx.Recipient) == 0 {
			errs = append(errs, fmt.Errorf("%w: recipient", ErrMissingField))
		}
		if tx.Amount == 0 {
			errs = append(errs, fmt.Errorf("%w: amount", ErrMissingField))
		}
	case KindVote:
		if tx.Topic == "" {
			errs = append(errs, fmt.Errorf("%w: topic", ErrMissingField))
		}
		if tx.Option == "" {
			errs = append(errs, fmt.Errorf("%w: option", ErrMissingField))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownKind, tx.Kind))
	}

	return errors.Join(errs...)
}

// Sign fills in tx.PubKey and tx.Signature using s.
func Sign(ctx context.Context, s gcrypto.Signer, reg *gcrypto.Registry, tx *Transaction) error {
	tx.PubKey = reg.Marshal(s.PubKey())

	sig, err := s.Sign(ctx, tx.SignBytes())
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	tx.Signature = sig
	return nil
}

// Verify reports whether tx carries a valid signature from its embedded key.
func Verify(reg *gcrypto.Registry, tx Transaction) error {
	if len(tx.Signature) == 0 || len(tx.PubKey) == 0 {
		return fmt.Errorf("%w: unsigned transaction", gcrypto.ErrInvalidSignature)
	}

	pub, err := reg.Unmarshal(tx.PubKey)
	if err != nil {
		return fmt.Errorf("failed to decode transaction key: %w", err)
	}

	if !pub.Verify(tx.SignBytes(), tx.Signature) {
		return gcrypto.ErrInvalidSignature
	}
	return nil
}
