// Package gtest holds test helpers shared across gossipchain packages.
package gtest

import "time"

// TestingFatalHelper is the subset of [testing.TB] the channel helpers need.
// Keeping it small lets the helpers be tested with a fake.
type TestingFatalHelper interface {
	Helper()

	Fatalf(format string, args ...any)
}

const timeoutHint = "; if this only flakes on one machine, raise GOSSIPCHAIN_TEST_TIME_FACTOR above %d"

// ReceiveSoon receives from ch, failing the test after a short default timeout.
func ReceiveSoon[T any](tb TestingFatalHelper, ch <-chan T) T {
	tb.Helper()
	return ReceiveOrTimeout(tb, ch, ScaleMs(100))
}

// ReceiveOrTimeout receives from ch, failing the test after timeout.
// Prefer [ReceiveSoon] unless the test is known to need longer.
func ReceiveOrTimeout[T any](tb TestingFatalHelper, ch <-chan T, timeout ScaledDuration) T {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("refusing to block on receive from nil channel %T", ch)
		panic("unreachable")
	}

	timer := time.NewTimer(time.Duration(timeout))
	defer timer.Stop()

	select {
	case <-timer.C:
		tb.Fatalf("timed out receiving from channel %T"+timeoutHint, ch, TimeFactor)
		panic("unreachable")
	case x := <-ch:
		return x
	}
}

// SendSoon sends x to ch, failing the test after a short default timeout.
func SendSoon[T any](tb TestingFatalHelper, ch chan<- T, x T) {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("refusing to block on send to nil channel %T", ch)
		panic("unreachable")
	}

	timer := time.NewTimer(time.Duration(ScaleMs(100)))
	defer timer.Stop()

	select {
	case <-timer.C:
		tb.Fatalf("timed out sending to channel %T"+timeoutHint, ch, TimeFactor)
		panic("unreachable")
	case ch <- x:
	}
}

// NotSending fails the test if a value is immediately available on ch.
func NotSending[T any](tb TestingFatalHelper, ch <-chan T) {
	tb.Helper()

	select {
	case x := <-ch:
		tb.Fatalf("expected no value on channel %T; got %v", ch, x)
	default:
	}
}

// IsSending returns a value that must be immediately available on ch.
func IsSending[T any](tb TestingFatalHelper, ch <-chan T) T {
	tb.Helper()

	select {
	case x := <-ch:
		return x
	default:
		tb.Fatalf("expected a value to be ready on channel %T", ch)
		panic("unreachable")
	}
}

// NotSendingSoon fails the test if ch produces a value within a short window.
// [NotSending] is preferable when another synchronization point exists.
func NotSendingSoon[T any](tb TestingFatalHelper, ch <-chan T) {
	tb.Helper()

	timer := time.NewTimer(time.Duration(ScaleMs(75)))
	defer timer.Stop()

	select {
	case <-timer.C:
	case x := <-ch:
		tb.Fatalf("received %v on channel %T when no value was expected", x, ch)
		panic("unreachable")
	}
}
