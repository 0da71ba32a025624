package gapi

import (
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gordian-engine/gossipchain/gmerkle"
	"github.com/gordian-engine/gossipchain/gnode"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gorilla/mux"
)

type voteRequest struct {
	Topic  string `json:"topic"`
	Option string `json:"option"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type submitResponse struct {
	Hash string `json:"hash"`
}

func handleSubmitVote(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body voteRequest
		if err := decodeBody(w, req, &body); err != nil {
			http.Error(w, "failed to decode vote request: "+err.Error(), http.StatusBadRequest)
			return
		}

		submit(log, w, req, n, gnode.SubmitRequest{
			Kind:   gtx.KindVote,
			Topic:  body.Topic,
			Option: body.Option,
		})
	}
}

func handleSubmitTransfer(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body transferRequest
		if err := decodeBody(w, req, &body); err != nil {
			http.Error(w, "failed to decode transfer request: "+err.Error(), http.StatusBadRequest)
			return
		}

		submit(log, w, req, n, gnode.SubmitRequest{
			Kind:      gtx.KindTransfer,
			Recipient: body.Recipient,
			Amount:    body.Amount,
		})
	}
}

func submit(log *slog.Logger, w http.ResponseWriter, req *http.Request, n Node, sr gnode.SubmitRequest) {
	hash, err := n.SubmitTransaction(req.Context(), sr)
	if err != nil {
		writeError(log, w, err)
		return
	}
	writeJSON(log, w, http.StatusAccepted, submitResponse{Hash: hash})
}

type votesResponse struct {
	Topic string            `json:"topic"`
	Votes map[string]uint64 `json:"votes"`
}

func handleVotes(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		topic := mux.Vars(req)["topic"]
		votes, err := n.QueryVotes(req.Context(), topic)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, votesResponse{Topic: topic, Votes: votes})
	}
}

type topicsResponse struct {
	Topics []string `json:"topics"`
}

func handleTopics(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		topics, err := n.Topics(req.Context())
		if err != nil {
			writeError(log, w, err)
			return
		}
		if topics == nil {
			topics = []string{}
		}
		writeJSON(log, w, http.StatusOK, topicsResponse{Topics: topics})
	}
}

type balanceResponse struct {
	ID      string `json:"id"`
	Balance int64  `json:"balance"`
}

func handleBalance(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		bal, err := n.QueryBalance(req.Context(), id)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, balanceResponse{ID: id, Balance: bal})
	}
}

type statusResponse struct {
	ID                  string `json:"id"`
	ChainLen            int    `json:"chain_len"`
	Tip                 string `json:"tip"`
	BrokenLinks         int    `json:"broken_links"`
	Pending             int    `json:"pending"`
	Finalized           int    `json:"finalized"`
	KnownPeers          int    `json:"known_peers"`
	ConnectedPeers      int    `json:"connected_peers"`
	NextLeader          string `json:"next_leader"`
	OutstandingRequests int    `json:"outstanding_requests"`
}

func handleStatus(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st, err := n.Status(req.Context())
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, statusResponse{
			ID:                  st.ID,
			ChainLen:            st.ChainLen,
			Tip:                 st.Tip,
			BrokenLinks:         st.BrokenLinks,
			Pending:             st.Pending,
			Finalized:           st.Finalized,
			KnownPeers:          st.KnownPeers,
			ConnectedPeers:      st.ConnectedPeers,
			NextLeader:          st.NextLeader,
			OutstandingRequests: st.OutstandingRequests,
		})
	}
}

type jsonBlock struct {
	PreviousHash string   `json:"previous_hash"`
	MerkleHash   string   `json:"merkle_hash"`
	TxHashes     []string `json:"tx_hashes"`
}

func handleBlocks(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		blocks, err := n.Blocks(req.Context())
		if err != nil {
			writeError(log, w, err)
			return
		}

		out := make([]jsonBlock, len(blocks))
		for i, b := range blocks {
			hashes := make([]string, len(b.Transactions))
			for j, raw := range b.Transactions {
				hashes[j] = gmerkle.HashBytesHex(raw)
			}
			out[i] = jsonBlock{
				PreviousHash: b.PreviousHash,
				MerkleHash:   b.MerkleHash,
				TxHashes:     hashes,
			}
		}
		writeJSON(log, w, http.StatusOK, out)
	}
}

type peersResponse struct {
	Known []string `json:"known"`
}

func handlePeers(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		peers, err := n.KnownPeers(req.Context())
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, peersResponse{Known: peers})
	}
}

type txResponse struct {
	Hash       string `json:"hash"`
	Kind       string `json:"kind"`
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient,omitempty"`
	Amount     uint64 `json:"amount,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Option     string `json:"option,omitempty"`
	Nonce      uint64 `json:"nonce"`
	Signature  string `json:"signature,omitempty"`
	Finalized  bool   `json:"finalized"`
	BlockIndex int    `json:"block_index"`
	TxIndex    int    `json:"tx_index"`
}

func handleTransaction(log *slog.Logger, n Node) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ts, err := n.FindTransaction(req.Context(), mux.Vars(req)["hash"])
		if err != nil {
			writeError(log, w, err)
			return
		}

		tx := ts.Transaction
		writeJSON(log, w, http.StatusOK, txResponse{
			Hash:       ts.Hash,
			Kind:       tx.Kind.String(),
			Sender:     string(tx.Sender),
			Recipient:  string(tx.Recipient),
			Amount:     tx.Amount,
			Topic:      tx.Topic,
			Option:     tx.Option,
			Nonce:      tx.Nonce,
			Signature:  hex.EncodeToString(tx.Signature),
			Finalized:  ts.Finalized,
			BlockIndex: ts.BlockIndex,
			TxIndex:    ts.TxIndex,
		})
	}
}
