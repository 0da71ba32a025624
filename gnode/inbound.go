package gnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gexchange"
	"github.com/gordian-engine/gossipchain/ggossip"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/glog"
)

func (k *kernel) handleInbound(ctx context.Context, s *kState, from string, m gwire.Message) gexchange.Feedback {
	switch m.Kind() {
	case gwire.KindTransaction:
		return k.handleTransaction(ctx, s, from, *m.Transaction)
	case gwire.KindBlock:
		return k.handleBlock(ctx, s, from, *m.Block)
	case gwire.KindBlockRequest:
		return k.handleBlockRequest(ctx, s, from, *m.BlockRequest)
	case gwire.KindBlockResponse:
		return k.handleBlockResponse(ctx, s, from, *m.BlockResponse)
	case gwire.KindPeers:
		return k.handlePeers(ctx, s, from, *m.Peers)
	default:
		panic(fmt.Errorf("BUG: inbound message with kind %s", m.Kind()))
	}
}

func (k *kernel) handleTransaction(ctx context.Context, s *kState, from string, tx gtx.Transaction) gexchange.Feedback {
	hash := tx.Hash()
	log := glog.Peer(k.log, from).With("tx", glog.ShortHash(hash))

	if s.Pool.Contains(hash) {
		return gexchange.FeedbackIgnored
	}

	if err := tx.Validate(); err != nil {
		log.Debug("Dropping malformed transaction", "err", err)
		return gexchange.FeedbackRejected
	}

	if err := gtx.Verify(k.reg, tx); err != nil {
		log.Debug("Dropping transaction with bad signature", "err", err)
		return gexchange.FeedbackRejected
	}

	if err := s.Working.CheckAdd(tx); err != nil {
		// Conflicts with something pending or finalized; not the sender's fault.
		log.Debug("Dropping transaction that does not apply", "err", err)
		return gexchange.FeedbackIgnored
	}

	if !s.Pool.Submit(tx) {
		panic(fmt.Errorf("BUG: pool rejected unseen transaction %s", hash))
	}

	if next, fwd := ggossip.Relay(tx.TTL); fwd {
		tx.TTL = next
		s.Gossip.Broadcast(ctx, gwire.Message{Transaction: &tx}, from)
	}

	return gexchange.FeedbackAccepted
}

func (k *kernel) handleBlock(ctx context.Context, s *kState, from string, m gwire.BlockMessage) gexchange.Feedback {
	log := glog.Peer(k.log, from).With("block", glog.ShortHash(m.Hash))

	if s.Chain.Contains(m.Hash) {
		return gexchange.FeedbackIgnored
	}

	if err := gwire.VerifyBlock(k.reg, m); err != nil {
		log.Debug("Dropping block with bad signature", "err", err)
		return gexchange.FeedbackRejected
	}

	if err := m.Block.VerifyCommitment(); err != nil {
		log.Debug("Dropping block with bad commitment", "err", err)
		return gexchange.FeedbackRejected
	}

	if !s.Chain.KnowsParent(m.Block.PreviousHash) {
		log.Debug("Block parent unknown; requesting it", "parent", glog.ShortHash(m.Block.PreviousHash))
		k.requestBlock(ctx, s, m.Block.PreviousHash, from)
		return gexchange.FeedbackIgnored
	}

	if err := k.acceptBlock(s, m.Block, false); err != nil {
		log.Debug("Failed to accept block", "err", err)
		return gexchange.FeedbackIgnored
	}

	if next, fwd := ggossip.Relay(m.TTL); fwd {
		m.TTL = next
		s.Gossip.Broadcast(ctx, gwire.Message{Block: &m}, from)
	}

	return gexchange.FeedbackAccepted
}

func (k *kernel) handlePeers(ctx context.Context, s *kState, from string, m gwire.PeersMessage) gexchange.Feedback {
	if m.PeerID == "" {
		return gexchange.FeedbackRejected
	}
	if m.PeerID == k.id || !k.addPeer(s, m.PeerID) {
		return gexchange.FeedbackIgnored
	}

	k.log.Debug("Learned peer from announcement", "peer", m.PeerID, "from", from)

	// A flooding transport propagates the announcement itself.
	if k.announcer == nil {
		if next, fwd := ggossip.Relay(m.TTL); fwd {
			m.TTL = next
			s.Gossip.Broadcast(ctx, gwire.Message{Peers: &m}, from)
		}
	}

	return gexchange.FeedbackAccepted
}

func (k *kernel) addPeer(s *kState, id string) bool {
	if !s.Peers.Add(id) {
		return false
	}
	s.State.OpenAccount(id)
	return true
}

// acceptBlock applies b's valid transactions to the finalized state
// and adds b to the chain, at the tip or right after its parent.
func (k *kernel) acceptBlock(s *kState, b gchain.Block, afterParent bool) error {
	// Check insertability before touching any state.
	if s.Chain.Contains(b.MerkleHash) {
		return fmt.Errorf("%w: %s", gchain.ErrDuplicateBlock, b.MerkleHash)
	}
	if afterParent && !s.Chain.KnowsParent(b.PreviousHash) {
		return fmt.Errorf("%w: %s", gchain.ErrUnknownParent, b.PreviousHash)
	}

	applied := bitset.New(uint(len(b.Transactions)))
	appliedHashes := make(map[string]struct{}, len(b.Transactions))

	for i, raw := range b.Transactions {
		tx, err := gtx.DecodeSignable(raw)
		if err != nil {
			k.log.Debug("Skipping undecodable transaction in block", "idx", i, "err", err)
			continue
		}

		hash := tx.Hash()
		if s.Pool.IsFinalized(hash) {
			// Already applied through another block.
			continue
		}

		if err := s.State.Apply(tx); err != nil {
			if !errors.As(err, new(gapp.TxInvalidError)) {
				panic(fmt.Errorf("BUG: non-transaction error applying block: %w", err))
			}
			k.log.Debug("Skipping invalid transaction in block", "tx", glog.ShortHash(hash), "err", err)
			continue
		}

		applied.Set(uint(i))
		appliedHashes[hash] = struct{}{}
		s.Pool.MarkFinalized(tx)
	}

	var err error
	if afterParent {
		_, err = s.Chain.InsertAfter(b, applied)
	} else {
		err = s.Chain.Append(b, applied)
	}
	if err != nil {
		panic(fmt.Errorf("BUG: chain rejected block after checks: %w", err))
	}

	delete(s.Requests, b.MerkleHash)

	invalidated := s.Working.Rebase(s.State, appliedHashes)
	if len(invalidated) > 0 {
		hashes := make([]string, len(invalidated))
		for i, tx := range invalidated {
			hashes[i] = tx.Hash()
		}
		s.Pool.Discard(hashes)
		k.log.Debug("Discarded pending transactions invalidated by block", "n", len(hashes))
	}

	k.log.Info(
		"Accepted block",
		"block", glog.ShortHash(b.MerkleHash),
		"prev", glog.ShortHash(b.PreviousHash),
		"applied", applied.Count(),
		"txs", len(b.Transactions),
		"chain_len", s.Chain.Len(),
	)
	return nil
}
