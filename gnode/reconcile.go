package gnode

import (
	"context"
	"slices"

	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/glog"
)

// requestBlock asks from for the block with the given hash,
// unless a request for that hash is already outstanding.
func (k *kernel) requestBlock(ctx context.Context, s *kState, hash, from string) {
	if hash == gchain.GenesisHash || s.Chain.Contains(hash) {
		return
	}
	if _, ok := s.Requests[hash]; ok {
		return
	}

	req := &blockRequest{
		Origin:   from,
		LastPeer: from,
		Attempts: 1,
		SentAt:   k.now(),
	}
	s.Requests[hash] = req

	s.Gossip.SendOne(ctx, gwire.Message{BlockRequest: &gwire.BlockRequest{BlockHash: hash}}, from)
}

func (k *kernel) handleBlockRequest(ctx context.Context, s *kState, from string, m gwire.BlockRequest) gexchange.Feedback {
	b, ok := s.Chain.Get(m.BlockHash)
	if !ok {
		return gexchange.FeedbackIgnored
	}

	s.Gossip.SendOne(ctx, gwire.Message{BlockResponse: &gwire.BlockResponse{Block: b}}, from)
	return gexchange.FeedbackAccepted
}

func (k *kernel) handleBlockResponse(ctx context.Context, s *kState, from string, m gwire.BlockResponse) gexchange.Feedback {
	b := m.Block
	log := glog.Peer(k.log, from).With("block", glog.ShortHash(b.MerkleHash))

	if _, requested := s.Requests[b.MerkleHash]; !requested {
		return gexchange.FeedbackIgnored
	}

	if err := b.VerifyCommitment(); err != nil {
		log.Debug("Dropping block response with bad commitment", "err", err)
		return gexchange.FeedbackRejected
	}

	if s.Chain.Contains(b.MerkleHash) {
		delete(s.Requests, b.MerkleHash)
		return gexchange.FeedbackIgnored
	}

	if !s.Chain.KnowsParent(b.PreviousHash) {
		// Fetch the grandparent first.
		// The request for b stays outstanding and is retried.
		k.requestBlock(ctx, s, b.PreviousHash, from)
		return gexchange.FeedbackIgnored
	}

	if err := k.acceptBlock(s, b, true); err != nil {
		log.Debug("Failed to insert requested block", "err", err)
		return gexchange.FeedbackIgnored
	}
	return gexchange.FeedbackAccepted
}

// retryRequests resends requests older than the retry interval
// and abandons those that used up their attempts.
// With force set, every outstanding request is treated as overdue.
func (k *kernel) retryRequests(ctx context.Context, s *kState, force bool) {
	now := k.now()

	for hash, req := range s.Requests {
		if s.Chain.Contains(hash) {
			delete(s.Requests, hash)
			continue
		}

		if !force && now.Sub(req.SentAt) < k.retryInterval {
			continue
		}

		if k.maxAttempts > 0 && req.Attempts >= k.maxAttempts {
			k.log.Info(
				"Abandoning block request",
				"block", glog.ShortHash(hash),
				"attempts", req.Attempts,
			)
			delete(s.Requests, hash)
			continue
		}

		// Ask the peer that referenced the block once more,
		// then spread later attempts over other peers.
		to := req.Origin
		if req.Attempts >= 2 || !k.isConnected(s, to) {
			if p, ok := s.Gossip.PickOne(req.LastPeer); ok {
				to = p
			}
		}

		req.Attempts++
		req.LastPeer = to
		req.SentAt = now
		s.Gossip.SendOne(ctx, gwire.Message{BlockRequest: &gwire.BlockRequest{BlockHash: hash}}, to)
	}
}

func (k *kernel) isConnected(s *kState, id string) bool {
	return slices.Contains(s.Conn.ConnectedPeers(), id)
}
