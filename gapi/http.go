// Package gapi serves a node's presentation boundary over HTTP.
package gapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gordian-engine/gossipchain/gapp"
	"github.com/gordian-engine/gossipchain/gchain"
	"github.com/gordian-engine/gossipchain/gnode"
	"github.com/gordian-engine/gossipchain/gtx"
	"github.com/gorilla/mux"
)

// Node is the subset of [*gnode.Node] the API calls.
type Node interface {
	SubmitTransaction(context.Context, gnode.SubmitRequest) (string, error)

	QueryVotes(ctx context.Context, topic string) (map[string]uint64, error)
	QueryBalance(ctx context.Context, id string) (int64, error)
	Topics(context.Context) ([]string, error)

	Status(context.Context) (gnode.Status, error)
	Blocks(context.Context) ([]gchain.Block, error)
	KnownPeers(context.Context) ([]string, error)
	FindTransaction(ctx context.Context, hash string) (gnode.TxStatus, error)
}

var _ Node = (*gnode.Node)(nil)

// maxBodySize bounds request bodies; submissions are tiny.
const maxBodySize = 64 << 10

type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	Node Node
}

// NewHTTPServer serves on cfg.Listener until ctx is canceled.
func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: NewHandler(log, cfg.Node),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

// NewHandler returns the API routes for n.
func NewHandler(log *slog.Logger, n Node) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/transactions/vote", handleSubmitVote(log, n)).Methods("POST")
	r.HandleFunc("/transactions/transfer", handleSubmitTransfer(log, n)).Methods("POST")
	r.HandleFunc("/transactions/{hash}", handleTransaction(log, n)).Methods("GET")

	r.HandleFunc("/votes", handleTopics(log, n)).Methods("GET")
	r.HandleFunc("/votes/{topic}", handleVotes(log, n)).Methods("GET")
	r.HandleFunc("/balances/{id}", handleBalance(log, n)).Methods("GET")

	r.HandleFunc("/status", handleStatus(log, n)).Methods("GET")
	r.HandleFunc("/blocks", handleBlocks(log, n)).Methods("GET")
	r.HandleFunc("/peers", handlePeers(log, n)).Methods("GET")

	return r
}

// statusFor maps node errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gnode.ErrMissingField), errors.Is(err, gtx.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, gnode.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gnode.ErrNoPeers):
		return http.StatusServiceUnavailable
	case errors.As(err, new(gapp.TxInvalidError)):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	writeJSON(log, w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to encode response", "err", err)
	}
}

func decodeBody(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
