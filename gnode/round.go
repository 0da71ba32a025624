package gnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gordian-engine/gossipchain/gwire"
	"github.com/gordian-engine/gossipchain/internal/glog"
)

// runRound elects the leader for the current chain length
// and, if that is this node, builds and broadcasts a block.
// It reports whether a block was produced.
func (k *kernel) runRound(ctx context.Context, s *kState) bool {
	k.syncConnectedPeers(s)

	log := glog.Round(k.log, s.Chain.Len())

	leader, ok := s.Selector.Select(s.Peers.Sorted(), uint64(s.Chain.Len()))
	if !ok || leader != k.id {
		return false
	}

	if s.Pool.PendingLen() < s.Builder.Capacity() {
		log.Debug("Leader for round but not enough pending transactions", "pending", s.Pool.PendingLen())
		return false
	}

	s.Builder.Reset(s.Chain.Tip())

	// Pending transactions were each valid against the working state when admitted,
	// but a scratch state catches anything that no longer applies.
	scratch := s.State.Clone()
	for _, tx := range s.Pool.Pending(0) {
		if err := scratch.Apply(tx); err != nil {
			log.Debug("Leader skipping pending transaction", "tx", glog.ShortHash(tx.Hash()), "err", err)
			continue
		}
		if err := s.Builder.AddTransaction(tx); err != nil {
			panic(fmt.Errorf("BUG: builder rejected transaction before capacity: %w", err))
		}
		if s.Builder.State() == gchain.BuilderFull {
			break
		}
	}

	if s.Builder.State() != gchain.BuilderFull {
		log.Debug("Not enough applicable pending transactions for a block", "have", s.Builder.Len())
		s.Builder.Reset(s.Chain.Tip())
		return false
	}

	b, err := s.Builder.Finalize()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to finalize full block: %w", err))
	}

	m := gwire.BlockMessage{Block: b, TTL: k.initialTTL}
	if err := gwire.SignBlock(ctx, k.signer, k.reg, &m); err != nil {
		log.Warn("Failed to sign block; discarding it", "err", err)
		s.Builder.Reset(s.Chain.Tip())
		return false
	}

	if err := k.acceptBlock(s, b, false); err != nil {
		panic(fmt.Errorf("BUG: failed to accept own block: %w", err))
	}

	sent := s.Gossip.SendAll(ctx, gwire.Message{Block: &m}, "")
	log.Info("Produced block", "block", glog.ShortHash(b.MerkleHash), "sent_to", len(sent))
	return true
}

// syncConnectedPeers adds every connected peer to the known set.
func (k *kernel) syncConnectedPeers(s *kState) {
	for _, p := range s.Conn.ConnectedPeers() {
		k.addPeer(s, p)
	}
}

func (k *kernel) announce(ctx context.Context, s *kState) {
	k.syncConnectedPeers(s)

	m := gwire.PeersMessage{PeerID: k.id, TTL: k.initialTTL}

	if k.announcer != nil {
		select {
		case k.announceOut <- m:
		default:
			// Previous announcement still publishing.
		}
	}

	// Direct neighbours always hear about us,
	// even before a flooding transport has formed its mesh.
	s.Gossip.SendAll(ctx, gwire.Message{Peers: &m}, "")
}

func (k *kernel) expirePending(s *kState) {
	expired := s.Pool.Expire(k.now().Add(-k.pendingMaxAge))
	if len(expired) == 0 {
		return
	}

	removed := make(map[string]struct{}, len(expired))
	for _, tx := range expired {
		removed[tx.Hash()] = struct{}{}
	}

	// Replaying the remainder may invalidate transactions that depended on expired ones.
	invalidated := s.Working.Rebase(s.State, removed)
	hashes := make([]string, len(invalidated))
	for i, tx := range invalidated {
		hashes[i] = tx.Hash()
	}
	s.Pool.Discard(hashes)

	k.log.Info("Expired pending transactions", "expired", len(expired), "invalidated", len(invalidated))
}

func (k *kernel) submit(ctx context.Context, s *kState, req SubmitRequest) (string, error) {
	tx := gtx.Transaction{
		Kind:   req.Kind,
		Sender: []byte(k.id),

		Recipient: []byte(req.Recipient),
		Amount:    req.Amount,

		Topic:  req.Topic,
		Option: req.Option,

		Nonce: s.Nonce + 1,
		TTL:   k.initialTTL,
	}
	if req.Recipient == "" {
		tx.Recipient = nil
	}

	if len(s.Conn.ConnectedPeers()) == 0 {
		return "", ErrNoPeers
	}

	if err := tx.Validate(); err != nil {
		return "", err
	}

	// Nonces restart with the process, so skip any already seen.
	for s.Pool.Contains(tx.Hash()) {
		tx.Nonce++
	}

	if err := gtx.Sign(ctx, k.signer, k.reg, &tx); err != nil {
		return "", err
	}

	if err := s.Working.CheckAdd(tx); err != nil {
		if !errors.As(err, new(gapp.TxInvalidError)) {
			panic(fmt.Errorf("BUG: non-transaction error checking submission: %w", err))
		}
		return "", err
	}

	s.Nonce = tx.Nonce

	hash := tx.Hash()
	if !s.Pool.Submit(tx) {
		panic(fmt.Errorf("BUG: pool already held fresh transaction %s", hash))
	}

	sent := s.Gossip.Broadcast(ctx, gwire.Message{Transaction: &tx}, "")
	k.log.Debug("Submitted transaction", "tx", glog.ShortHash(hash), "sent_to", len(sent))
	return hash, nil
}
