// Package glog contains small helpers for structured logging with log/slog.
package glog

import "log/slog"

// Round returns a copy of log annotated with the chain length
// that seeds the current leader round.
func Round(log *slog.Logger, chainLen int) *slog.Logger {
	return log.With("chain_len", chainLen)
}

// Peer returns a copy of log annotated with a remote peer ID.
func Peer(log *slog.Logger, peerID string) *slog.Logger {
	return log.With("peer", peerID)
}
