// Package gchan contains helpers for common channel operations
// that must also respect a context's cancellation.
package gchan

import (
	"context"
	"log/slog"
)

// SendC sends val on ch, returning true if the send succeeded.
// If ctx is canceled first, the cancellation is logged
// at debug level with sendDesc, and SendC returns false.
func SendC[T any](
	ctx context.Context, log *slog.Logger,
	ch chan<- T, val T,
	sendDesc string,
) bool {
	select {
	case <-ctx.Done():
		log.Debug(
			"Context canceled while sending",
			"desc", sendDesc,
			"cause", context.Cause(ctx),
		)
		return false
	case ch <- val:
		return true
	}
}

// RecvC receives a value from ch, returning the value and true on success.
// If ctx is canceled first, the cancellation is logged
// at debug level with recvDesc, and RecvC returns the zero value and false.
// A closed channel also reports false.
func RecvC[T any](
	ctx context.Context, log *slog.Logger,
	ch <-chan T,
	recvDesc string,
) (T, bool) {
	select {
	case <-ctx.Done():
		log.Debug(
			"Context canceled while receiving",
			"desc", recvDesc,
			"cause", context.Cause(ctx),
		)
		var zero T
		return zero, false
	case val, ok := <-ch:
		return val, ok
	}
}

// ReqResp sends req on reqCh and then waits for a value on respCh.
// The respCh is typically a field on req, created by the caller
// with a buffer of 1 so that the responder never blocks.
func ReqResp[Req, Resp any](
	ctx context.Context, log *slog.Logger,
	reqCh chan<- Req, req Req,
	respCh <-chan Resp,
	desc string,
) (Resp, bool) {
	if !SendC(ctx, log, reqCh, req, desc+": making request") {
		var zero Resp
		return zero, false
	}

	return RecvC(ctx, log, respCh, desc+": receiving response")
}
