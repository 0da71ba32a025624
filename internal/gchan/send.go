// Package gchan holds small channel helpers shared by the actor-style
// components (the node kernel, the loopback network, transports).
// Every helper logs cancellation in the same "Context canceled while ..." shape.
package gchan

import (
	"context"
	"log/slog"
)

// SendC sends val to out unless ctx is canceled first.
// On cancellation it logs "Context canceled while " + during and reports false.
func SendC[T any](ctx context.Context, log *slog.Logger, out chan<- T, val T, during string) (sent bool) {
	select {
	case <-ctx.Done():
		log.Info("Context canceled while "+during, "cause", context.Cause(ctx))
		return false
	case out <- val:
		return true
	}
}

// RecvC receives a value from in unless ctx is canceled first.
// On cancellation it logs "Context canceled while " + during,
// returns the zero value of T, and reports false.
func RecvC[T any](ctx context.Context, log *slog.Logger, in <-chan T, during string) (val T, received bool) {
	select {
	case <-ctx.Done():
		log.Info("Context canceled while "+during, "cause", context.Cause(ctx))
		return val, false
	case val := <-in:
		return val, true
	}
}

// ReqResp sends req to reqCh and then waits for a value on respCh.
// The respCh is expected to be buffered by the caller,
// so that the responder never blocks on a requester that gave up.
//
// If ctx is canceled during either step, the zero value of U is returned with ok=false.
func ReqResp[T, U any](
	ctx context.Context, log *slog.Logger,
	reqCh chan<- T, req T,
	respCh <-chan U,
	kind string,
) (resp U, ok bool) {
	if !SendC(ctx, log, reqCh, req, "making "+kind+" request") {
		return resp, false
	}

	return RecvC(ctx, log, respCh, "receiving "+kind+" response")
}
