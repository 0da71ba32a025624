package gtest_test

import (
	"fmt"
	"testing"

	"github.com/gordian-engine/gossipchain/internal/gtest"
	"github.com/stretchr/testify/require"
)

type fatalHelper struct {
	HelperCalled bool
	FatalMessage string
}

func (h *fatalHelper) Helper() { h.HelperCalled = true }

func (h *fatalHelper) Fatalf(format string, args ...any) {
	h.FatalMessage = fmt.Sprintf(format, args...)
}

func TestReceiveSoon(t *testing.T) {
	t.Run("value ready", func(t *testing.T) {
		t.Parallel()

		ch := make(chan int, 1)
		ch <- 3

		fh := new(fatalHelper)
		require.Equal(t, 3, gtest.ReceiveSoon(fh, ch))
		require.True(t, fh.HelperCalled)
		require.Empty(t, fh.FatalMessage)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		ch := make(chan int)

		fh := new(fatalHelper)
		require.Panics(t, func() {
			_ = gtest.ReceiveOrTimeout(fh, ch, gtest.ScaleMs(5))
		})
		require.Contains(t, fh.FatalMessage, "GOSSIPCHAIN_TEST_TIME_FACTOR")
	})

	t.Run("nil channel fails immediately", func(t *testing.T) {
		t.Parallel()

		var ch chan int

		fh := new(fatalHelper)
		require.Panics(t, func() {
			_ = gtest.ReceiveOrTimeout(fh, ch, gtest.ScaleMs(1_000_000))
		})
		require.NotEmpty(t, fh.FatalMessage)
	})
}

func TestNotSending(t *testing.T) {
	t.Parallel()

	ch := make(chan string, 1)

	fh := new(fatalHelper)
	gtest.NotSending(fh, ch)
	require.Empty(t, fh.FatalMessage)

	ch <- "x"
	gtest.NotSending(fh, ch)
	require.Contains(t, fh.FatalMessage, "got x")
}

func TestEventually(t *testing.T) {
	t.Parallel()

	n := 0
	gtest.Eventually(t, gtest.ScaleMs(100), func() bool {
		n++
		return n >= 3
	}, "counter reaches 3")
	require.GreaterOrEqual(t, n, 3)
}
