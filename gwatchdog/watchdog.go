package gwatchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultResponseTimeout applies to monitors that leave ResponseTimeout unset.
const DefaultResponseTimeout = 5 * time.Second

type Watchdog struct {
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	responseTimeout time.Duration

	// Set for watchdogs built with NewNop.
	nop bool

	wg sync.WaitGroup
}

type Options struct {
	// ResponseTimeout is the default for [MonitorConfig.ResponseTimeout].
	// Zero means [DefaultResponseTimeout].
	ResponseTimeout time.Duration
}

// New returns a watchdog and a context derived from ctx.
// The context is canceled when a monitored kernel fails to respond,
// or when [*Watchdog.Terminate] is called.
func New(ctx context.Context, log *slog.Logger, opts Options) (*Watchdog, context.Context) {
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}

	wCtx, cancel := context.WithCancelCause(ctx)
	return &Watchdog{
		log:             log,
		ctx:             wCtx,
		cancel:          cancel,
		responseTimeout: opts.ResponseTimeout,
	}, wCtx
}

// NewNop returns a watchdog whose Monitor never signals.
// Terminate still cancels the returned context.
func NewNop(ctx context.Context, log *slog.Logger) (*Watchdog, context.Context) {
	w, wCtx := New(ctx, log, Options{})
	w.nop = true
	return w, wCtx
}

// Wait blocks until every monitor goroutine has stopped,
// which happens once the watchdog context is done.
// Monitor must not be called concurrently with or after Wait.
func (w *Watchdog) Wait() {
	w.wg.Wait()
}

// Terminate cancels the watchdog context with a [ForcedTerminationError].
// Only the first cancellation cause is kept.
func (w *Watchdog) Terminate(reason string) {
	w.cancel(ForcedTerminationError{Reason: reason})
}

type MonitorConfig struct {
	// Name identifies the kernel in logs and in [FailureToRespondError].
	Name string

	// Signals are sent every Interval, plus or minus up to Jitter.
	Interval, Jitter time.Duration

	// The kernel must receive the signal and close Alive within ResponseTimeout.
	// Zero uses the watchdog's default.
	ResponseTimeout time.Duration
}

func (c MonitorConfig) validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if c.Interval <= 0 {
		errs = append(errs, errors.New("Interval must be positive"))
	}
	if c.Jitter < 0 || c.Jitter >= c.Interval {
		errs = append(errs, errors.New("Jitter must be in [0, Interval)"))
	}
	if c.ResponseTimeout < 0 {
		errs = append(errs, errors.New("ResponseTimeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Signal is delivered to a monitored kernel,
// which must close Alive promptly.
type Signal struct {
	Alive chan<- struct{}
}

// Monitor starts polling a kernel and returns the channel the kernel
// must receive from in its main loop.
// A nop watchdog returns a nil channel, which never delivers.
//
// Monitor panics if cfg is invalid.
func (w *Watchdog) Monitor(ctx context.Context, cfg MonitorConfig) <-chan Signal {
	if err := cfg.validate(); err != nil {
		panic(fmt.Errorf("BUG: invalid watchdog MonitorConfig for %q: %w", cfg.Name, err))
	}

	if w.nop {
		return nil
	}

	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = w.responseTimeout
	}

	sigs := make(chan Signal)
	w.wg.Add(1)
	go w.poll(ctx, w.log.With("kernel", cfg.Name), cfg, sigs)
	return sigs
}

// poll runs until either ctx or the watchdog context is done,
// or until the kernel fails a check.
func (w *Watchdog) poll(ctx context.Context, log *slog.Logger, cfg MonitorConfig, sigs chan<- Signal) {
	defer w.wg.Done()

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	for {
		d := cfg.Interval
		if cfg.Jitter > 0 {
			d += time.Duration(rng.Int64N(int64(2*cfg.Jitter))) - cfg.Jitter
		}

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-w.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		if !w.check(ctx, cfg.ResponseTimeout, sigs) {
			if ctx.Err() != nil || w.ctx.Err() != nil {
				return
			}

			log.Error("Kernel failed to respond to watchdog; terminating", "timeout", cfg.ResponseTimeout)
			w.cancel(FailureToRespondError{Name: cfg.Name})
			return
		}
	}
}

// check reports whether the kernel both received a signal
// and closed its Alive channel before timeout elapsed.
func (w *Watchdog) check(ctx context.Context, timeout time.Duration, sigs chan<- Signal) bool {
	alive := make(chan struct{})

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-w.ctx.Done():
		return false
	case <-t.C:
		return false
	case sigs <- Signal{Alive: alive}:
	}

	select {
	case <-ctx.Done():
		return false
	case <-w.ctx.Done():
		return false
	case <-alive:
		return true
	case <-t.C:
		// Both may be ready; prefer the answer.
		select {
		case <-alive:
			return true
		default:
			return false
		}
	}
}
