package gtest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TimeFactor multiplies every test timeout produced by [ScaleMs].
// It is read from GOSSIPCHAIN_TEST_TIME_FACTOR at init,
// so a loaded CI machine can stretch timeouts without editing tests.
var TimeFactor ScaledDuration = 1

func init() {
	f := os.Getenv("GOSSIPCHAIN_TEST_TIME_FACTOR")
	if f == "" {
		return
	}

	n, err := strconv.Atoi(f)
	if err != nil {
		panic(fmt.Errorf(
			"failed to parse GOSSIPCHAIN_TEST_TIME_FACTOR (%q) as integer: %w", f, err,
		))
	}
	if n <= 0 {
		panic(fmt.Errorf("GOSSIPCHAIN_TEST_TIME_FACTOR must be positive; got %d", n))
	}

	TimeFactor = ScaledDuration(n)
}

// ScaledDuration is a duration already multiplied by [TimeFactor].
type ScaledDuration time.Duration

// ScaleMs returns ms milliseconds multiplied by [TimeFactor].
func ScaleMs(ms int64) ScaledDuration {
	return TimeFactor * ScaledDuration(ms) * ScaledDuration(time.Millisecond)
}

// Sleep is time.Sleep for a ScaledDuration.
func Sleep(d ScaledDuration) {
	time.Sleep(time.Duration(d))
}

// Eventually polls cond every few milliseconds until it reports true,
// calling tb.Fatalf if it has not done so within timeout.
func Eventually(tb TestingFatalHelper, timeout ScaledDuration, cond func() bool, msg string) {
	tb.Helper()

	deadline := time.Now().Add(time.Duration(timeout))
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			tb.Fatalf("condition not met before timeout (time factor %d): %s", TimeFactor, msg)
			panic("unreachable")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
