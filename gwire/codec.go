package gwire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/internal/gcbor"
)

var ErrInvalidMessage = errors.New("invalid message")

type envelope struct {
	Kind Kind            `cbor:"1,keyasint"`
	Body cbor.RawMessage `cbor:"2,keyasint"`
}

// Marshal encodes m inside a kind-tagged envelope.
func Marshal(m Message) ([]byte, error) {
	var body any
	switch k := m.Kind(); k {
	case KindTransaction:
		body = m.Transaction
	case KindBlock:
		body = m.Block
	case KindPeers:
		body = m.Peers
	case KindBlockRequest:
		body = m.BlockRequest
	case KindBlockResponse:
		body = m.BlockResponse
	default:
		return nil, fmt.Errorf("%w: exactly one message field must be set", ErrInvalidMessage)
	}

	b, err := gcbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s body: %w", m.Kind(), err)
	}

	return gcbor.Marshal(envelope{Kind: m.Kind(), Body: b})
}

// Unmarshal decodes an envelope produced by [Marshal].
func Unmarshal(b []byte) (Message, error) {
	var env envelope
	if err := gcbor.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("%w: failed to decode envelope: %w", ErrInvalidMessage, err)
	}

	var m Message
	var target any
	switch env.Kind {
	case KindTransaction:
		m.Transaction = new(gtx.Transaction)
		target = m.Transaction
	case KindBlock:
		m.Block = new(BlockMessage)
		target = m.Block
	case KindPeers:
		m.Peers = new(PeersMessage)
		target = m.Peers
	case KindBlockRequest:
		m.BlockRequest = new(BlockRequest)
		target = m.BlockRequest
	case KindBlockResponse:
		m.BlockResponse = new(BlockResponse)
		target = m.BlockResponse
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidMessage, env.Kind)
	}

	if err := gcbor.Unmarshal(env.Body, target); err != nil {
		return Message{}, fmt.Errorf("%w: failed to decode %s body: %w", ErrInvalidMessage, env.Kind, err)
	}
	return m, nil
}
