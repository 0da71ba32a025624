package gp2ptest

import (
	"context"

	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
)

// Received is a message observed by a [ChannelHandler].
type Received struct {
	From string
	Msg  gwire.Message
}

// ChannelHandler is a gp2p.Handler that forwards every message to a channel.
// It stands in for a node in transport tests and scripted peers in node tests.
type ChannelHandler struct {
	ch chan Received

	// Feedback is returned for every message. Defaults to accepted.
	Feedback gexchange.Feedback
}

// NewChannelHandler returns a handler whose channel has the given buffer size.
func NewChannelHandler(size int) *ChannelHandler {
	return &ChannelHandler{
		ch:       make(chan Received, size),
		Feedback: gexchange.FeedbackAccepted,
	}
}

// C returns the channel of received messages.
func (h *ChannelHandler) C() <-chan Received {
	return h.ch
}

func (h *ChannelHandler) deliver(ctx context.Context, from string, m gwire.Message) gexchange.Feedback {
	select {
	case <-ctx.Done():
		return gexchange.FeedbackIgnored
	case h.ch <- Received{From: from, Msg: m}:
		return h.Feedback
	}
}

func (h *ChannelHandler) HandleTransaction(ctx context.Context, from string, tx gtx.Transaction) gexchange.Feedback {
	return h.deliver(ctx, from, gwire.Message{Transaction: &tx})
}

func (h *ChannelHandler) HandleBlock(ctx context.Context, from string, m gwire.BlockMessage) gexchange.Feedback {
	return h.deliver(ctx, from, gwire.Message{Block: &m})
}

func (h *ChannelHandler) HandleBlockRequest(ctx context.Context, from string, m gwire.BlockRequest) gexchange.Feedback {
	return h.deliver(ctx, from, gwire.Message{BlockRequest: &m})
}

func (h *ChannelHandler) HandleBlockResponse(ctx context.Context, from string, m gwire.BlockResponse) gexchange.Feedback {
	return h.deliver(ctx, from, gwire.Message{BlockResponse: &m})
}

func (h *ChannelHandler) HandlePeers(ctx context.Context, from string, m gwire.PeersMessage) gexchange.Feedback {
	return h.deliver(ctx, from, gwire.Message{Peers: &m})
}
