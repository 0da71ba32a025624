// Package gp2p is the boundary between a node and the peer-to-peer network.
//
// A transport delivers [gwire.Message] values between peers identified by opaque strings.
// Delivery is unordered, lossy, and may duplicate;
// handlers must be idempotent.
package gp2p

import (
	"context"
	"errors"

	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
)

var (
	ErrUnknownPeer = errors.New("peer not connected")
	ErrClosed      = errors.New("connection closed")
)

// Connection is a node's attachment to the network.
type Connection interface {
	// ID is this node's identity on the network.
	ID() string

	// Send queues msg for delivery to the peer with the given ID.
	// It must not wait for the remote handler,
	// so that a handler may itself call Send without deadlocking.
	Send(ctx context.Context, to string, msg gwire.Message) error

	// ConnectedPeers returns a fresh slice of the currently connected peer IDs,
	// excluding this connection.
	ConnectedPeers() []string

	// SetHandler sets the handler for inbound messages.
	// Messages arriving before a handler is set may be held or dropped,
	// depending on the implementation.
	SetHandler(ctx context.Context, h Handler)

	// Disconnect leaves the network. The connection is unusable afterwards.
	Disconnect()

	// Disconnected is closed once Disconnect completes
	// or the underlying network shuts down.
	Disconnected() <-chan struct{}
}

// Announcer is optionally implemented by connections that can
// flood peer announcements beyond directly connected peers.
type Announcer interface {
	Announce(ctx context.Context, m gwire.PeersMessage) error
}

// Handler receives inbound messages, one method per message kind.
// Each method reports feedback about the message to the transport.
type Handler interface {
	HandleTransaction(ctx context.Context, from string, tx gtx.Transaction) gexchange.Feedback
	HandleBlock(ctx context.Context, from string, m gwire.BlockMessage) gexchange.Feedback
	HandleBlockRequest(ctx context.Context, from string, m gwire.BlockRequest) gexchange.Feedback
	HandleBlockResponse(ctx context.Context, from string, m gwire.BlockResponse) gexchange.Feedback
	HandlePeers(ctx context.Context, from string, m gwire.PeersMessage) gexchange.Feedback
}

// Dispatch calls the method of h matching the kind of m.
// Malformed messages are rejected without reaching h.
func Dispatch(ctx context.Context, h Handler, from string, m gwire.Message) gexchange.Feedback {
	switch m.Kind() {
	case gwire.KindTransaction:
		return h.HandleTransaction(ctx, from, *m.Transaction)
	case gwire.KindBlock:
		return h.HandleBlock(ctx, from, *m.Block)
	case gwire.KindBlockRequest:
		return h.HandleBlockRequest(ctx, from, *m.BlockRequest)
	case gwire.KindBlockResponse:
		return h.HandleBlockResponse(ctx, from, *m.BlockResponse)
	case gwire.KindPeers:
		return h.HandlePeers(ctx, from, *m.Peers)
	default:
		return gexchange.FeedbackRejected
	}
}
