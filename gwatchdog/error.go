package gwatchdog

import (
	"context"
	"errors"
)

// IsTermination reports whether ctx was canceled by a watchdog,
// as opposed to an ordinary shutdown.
func IsTermination(ctx context.Context) bool {
	cause := context.Cause(ctx)
	if cause == nil {
		return false
	}

	return errors.As(cause, new(FailureToRespondError)) ||
		errors.As(cause, new(ForcedTerminationError))
}

// FailureToRespondError is the cancellation cause when a monitored kernel
// does not answer a signal within its response timeout.
type FailureToRespondError struct {
	Name string
}

func (e FailureToRespondError) Error() string {
	return "watchdog: " + e.Name + " did not respond in time"
}

// ForcedTerminationError is the cancellation cause set by [*Watchdog.Terminate].
type ForcedTerminationError struct {
	Reason string
}

func (e ForcedTerminationError) Error() string {
	return "watchdog: forced termination: " + e.Reason
}
