package gwire

import (
	"context"
	"fmt"

	"github.com/gordian-engine/gossipchain/gcrypto"
)

// SignBlock fills in the hash, key, and signature of m from m.Block.
func SignBlock(ctx context.Context, s gcrypto.Signer, reg *gcrypto.Registry, m *BlockMessage) error {
	m.Hash = m.Block.MerkleHash
	m.PubKey = reg.Marshal(s.PubKey())

	sig, err := s.Sign(ctx, m.Block.SignBytes())
	if err != nil {
		return fmt.Errorf("failed to sign block: %w", err)
	}
	m.Signature = sig
	return nil
}

// VerifyBlock checks that m's signature covers m.Block
// and that the advertised hash matches the block's commitment.
// It does not recompute the Merkle root; see [gchain.Block.VerifyCommitment].
func VerifyBlock(reg *gcrypto.Registry, m BlockMessage) error {
	if m.Hash != m.Block.MerkleHash {
		return fmt.Errorf("%w: advertised hash %s differs from block commitment %s",
			ErrInvalidMessage, m.Hash, m.Block.MerkleHash)
	}
	if len(m.Signature) == 0 || len(m.PubKey) == 0 {
		return fmt.Errorf("%w: unsigned block", gcrypto.ErrInvalidSignature)
	}

	pub, err := reg.Unmarshal(m.PubKey)
	if err != nil {
		return fmt.Errorf("failed to decode block key: %w", err)
	}
	if !pub.Verify(m.Block.SignBytes(), m.Signature) {
		return gcrypto.ErrInvalidSignature
	}
	return nil
}
