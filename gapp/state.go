// Package gapp holds the application state that finalized transactions mutate:
// account balances for transfers and per-topic tallies for votes.
package gapp

import (
	"fmt"
	"maps"
	"sort"

	"github.com/gordian-engine/gossipchain/gtx"
)

// DefaultBalance is the starting balance of every account.
const DefaultBalance int64 = 1000

// State is the balances and vote tallies derived from finalized transactions.
// It is not safe for concurrent use; the node kernel owns it.
type State struct {
	defaultBalance int64

	balances map[string]int64

	// topic -> option -> count
	votes map[string]map[string]uint64

	// sender -> set of topics voted on
	voted map[string]map[string]struct{}
}

// NewState returns an empty state where new accounts start at defaultBalance.
func NewState(defaultBalance int64) *State {
	return &State{
		defaultBalance: defaultBalance,
		balances:       map[string]int64{},
		votes:          map[string]map[string]uint64{},
		voted:          map[string]map[string]struct{}{},
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		defaultBalance: s.defaultBalance,
		balances:       maps.Clone(s.balances),
		votes:          make(map[string]map[string]uint64, len(s.votes)),
		voted:          make(map[string]map[string]struct{}, len(s.voted)),
	}
	for topic, opts := range s.votes {
		c.votes[topic] = maps.Clone(opts)
	}
	for sender, topics := range s.voted {
		c.voted[sender] = maps.Clone(topics)
	}
	return c
}

// OpenAccount registers id at the default balance if it has no account yet.
func (s *State) OpenAccount(id string) {
	if _, ok := s.balances[id]; !ok {
		s.balances[id] = s.defaultBalance
	}
}

// Balance returns the balance of id, or [ErrNotFound] if no account exists.
func (s *State) Balance(id string) (int64, error) {
	b, ok := s.balances[id]
	if !ok {
		return 0, fmt.Errorf("account %q: %w", id, ErrNotFound)
	}
	return b, nil
}

// Votes returns a copy of the tally for topic, or [ErrNotFound].
func (s *State) Votes(topic string) (map[string]uint64, error) {
	opts, ok := s.votes[topic]
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", topic, ErrNotFound)
	}
	return maps.Clone(opts), nil
}

// Topics returns every topic with at least one vote, sorted.
func (s *State) Topics() []string {
	out := make([]string, 0, len(s.votes))
	for t := range s.votes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Check reports whether tx would apply cleanly, without mutating s.
// Any failure is a [TxInvalidError].
func (s *State) Check(tx gtx.Transaction) error {
	switch tx.Kind {
	case gtx.KindTransfer:
		if int64(tx.Amount) < 0 || s.balanceOrDefault(string(tx.Sender)) < int64(tx.Amount) {
			return TxInvalidError{Err: ErrInsufficientBalance}
		}
	case gtx.KindVote:
		if _, ok := s.voted[string(tx.Sender)][tx.Topic]; ok {
			return TxInvalidError{Err: ErrAlreadyVoted}
		}
	default:
		return TxInvalidError{Err: fmt.Errorf("%w: %s", gtx.ErrUnknownKind, tx.Kind)}
	}

	if err := tx.Validate(); err != nil {
		return TxInvalidError{Err: err}
	}
	return nil
}

// Apply checks tx and, if valid, applies it to s.
func (s *State) Apply(tx gtx.Transaction) error {
	if err := s.Check(tx); err != nil {
		return err
	}

	sender := string(tx.Sender)
	switch tx.Kind {
	case gtx.KindTransfer:
		recipient := string(tx.Recipient)
		s.OpenAccount(sender)
		s.OpenAccount(recipient)
		s.balances[sender] -= int64(tx.Amount)
		s.balances[recipient] += int64(tx.Amount)

	case gtx.KindVote:
		opts := s.votes[tx.Topic]
		if opts == nil {
			opts = map[string]uint64{}
			s.votes[tx.Topic] = opts
		}
		opts[tx.Option]++

		topics := s.voted[sender]
		if topics == nil {
			topics = map[string]struct{}{}
			s.voted[sender] = topics
		}
		topics[tx.Topic] = struct{}{}
	}

	return nil
}

func (s *State) balanceOrDefault(id string) int64 {
	if b, ok := s.balances[id]; ok {
		return b
	}
	return s.defaultBalance
}
