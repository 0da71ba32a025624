package gapp_test

import (
	"testing"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/stretchr/testify/require"
)

func vote(sender, topic, option string) gtx.Transaction {
	return gtx.Transaction{
		Kind: gtx.KindVote, Sender: []byte(sender),
		Topic: topic, Option: option, Nonce: 1,
	}
}

func transfer(from, to string, amount uint64) gtx.Transaction {
	return gtx.Transaction{
		Kind: gtx.KindTransfer, Sender: []byte(from),
		Recipient: []byte(to), Amount: amount, Nonce: 1,
	}
}

func TestState_votes(t *testing.T) {
	t.Parallel()

	s := gapp.NewState(gapp.DefaultBalance)

	_, err := s.Votes("lunch")
	require.ErrorIs(t, err, gapp.ErrNotFound)

	require.NoError(t, s.Apply(vote("alice", "lunch", "pizza")))
	require.NoError(t, s.Apply(vote("bob", "lunch", "pizza")))
	require.NoError(t, s.Apply(vote("carol", "lunch", "tacos")))
	require.NoError(t, s.Apply(vote("alice", "dinner", "soup")))

	err = s.Apply(vote("alice", "lunch", "tacos"))
	require.ErrorIs(t, err, gapp.ErrAlreadyVoted)
	require.ErrorAs(t, err, new(gapp.TxInvalidError))

	got, err := s.Votes("lunch")
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"pizza": 2, "tacos": 1}, got)

	// Returned tallies are copies.
	got["pizza"] = 100
	again, err := s.Votes("lunch")
	require.NoError(t, err)
	require.Equal(t, uint64(2), again["pizza"])

	require.Equal(t, []string{"dinner", "lunch"}, s.Topics())
}

func TestState_transfers(t *testing.T) {
	t.Parallel()

	s := gapp.NewState(gapp.DefaultBalance)

	_, err := s.Balance("alice")
	require.ErrorIs(t, err, gapp.ErrNotFound)

	s.OpenAccount("alice")
	b, err := s.Balance("alice")
	require.NoError(t, err)
	require.Equal(t, int64(1000), b)

	require.NoError(t, s.Apply(transfer("alice", "bob", 400)))
	require.NoError(t, s.Apply(transfer("alice", "bob", 600)))

	err = s.Apply(transfer("alice", "bob", 1))
	require.ErrorIs(t, err, gapp.ErrInsufficientBalance)

	b, err = s.Balance("alice")
	require.NoError(t, err)
	require.Zero(t, b)

	b, err = s.Balance("bob")
	require.NoError(t, err)
	require.Equal(t, int64(2000), b)
}

func TestState_Check_doesNotMutate(t *testing.T) {
	t.Parallel()

	s := gapp.NewState(10)
	require.NoError(t, s.Check(transfer("alice", "bob", 10)))
	require.ErrorIs(t, s.Check(transfer("alice", "bob", 11)), gapp.ErrInsufficientBalance)

	_, err := s.Balance("alice")
	require.ErrorIs(t, err, gapp.ErrNotFound)

	require.ErrorIs(t, s.Check(gtx.Transaction{Sender: []byte("x")}), gtx.ErrUnknownKind)
	require.ErrorIs(t, s.Check(vote("alice", "", "x")), gtx.ErrMissingField)
}

func TestState_Clone(t *testing.T) {
	t.Parallel()

	s := gapp.NewState(gapp.DefaultBalance)
	require.NoError(t, s.Apply(vote("alice", "lunch", "pizza")))

	c := s.Clone()
	require.NoError(t, c.Apply(vote("bob", "lunch", "pizza")))
	require.NoError(t, c.Apply(transfer("alice", "bob", 5)))

	got, err := s.Votes("lunch")
	require.NoError(t, err)
	require.Equal(t, uint64(1), got["pizza"])

	_, err = s.Balance("bob")
	require.ErrorIs(t, err, gapp.ErrNotFound)

	// The clone keeps the original's voter record.
	require.ErrorIs(t, c.Apply(vote("alice", "lunch", "tacos")), gapp.ErrAlreadyVoted)
}
