package gnode

import (
	"context"

	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/gchan"
)

var _ gp2p.Handler = (*Node)(nil)

// deliver hands an inbound message to the kernel and waits for its feedback.
// A message arriving during shutdown is ignored.
func (n *Node) deliver(ctx context.Context, from string, m gwire.Message) gexchange.Feedback {
	req := inboundRequest{
		From: from,
		Msg:  m,
		Resp: make(chan gexchange.Feedback, 1),
	}
	f, ok := gchan.ReqResp(ctx, n.log, n.inbound, req, req.Resp, "handling inbound "+m.Kind().String())
	if !ok {
		return gexchange.FeedbackIgnored
	}
	return f
}

func (n *Node) HandleTransaction(ctx context.Context, from string, tx gtx.Transaction) gexchange.Feedback {
	return n.deliver(ctx, from, gwire.Message{Transaction: &tx})
}

func (n *Node) HandleBlock(ctx context.Context, from string, m gwire.BlockMessage) gexchange.Feedback {
	return n.deliver(ctx, from, gwire.Message{Block: &m})
}

func (n *Node) HandleBlockRequest(ctx context.Context, from string, m gwire.BlockRequest) gexchange.Feedback {
	return n.deliver(ctx, from, gwire.Message{BlockRequest: &m})
}

func (n *Node) HandleBlockResponse(ctx context.Context, from string, m gwire.BlockResponse) gexchange.Feedback {
	return n.deliver(ctx, from, gwire.Message{BlockResponse: &m})
}

func (n *Node) HandlePeers(ctx context.Context, from string, m gwire.PeersMessage) gexchange.Feedback {
	return n.deliver(ctx, from, gwire.Message{Peers: &m})
}
