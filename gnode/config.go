package gnode

import (
	"errors"
	"time"

	"github.com/gordian-engine/gossipchain/gassert"
	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/gordian-engine/gossipchain/gleader"
	"github.com/gordian-engine/gossipchain/gp2p"
	"github.com/gordian-engine/gossipchain/gwatchdog"
)

const DefaultWatchdogInterval = 10 * time.Second

// Config is everything a [Node] needs at construction.
//
// A zero interval disables the corresponding periodic task;
// the task can still be run through the matching Trigger method.
type Config struct {
	Conn gp2p.Connection

	Signer   gcrypto.Signer
	Registry *gcrypto.Registry

	// Fanout is the number of peers each relayed item is sent to.
	Fanout int

	// InitialTTL is the hop budget of items this node originates.
	InitialTTL uint32

	// BlockCapacity is the exact number of transactions in a block.
	BlockCapacity int

	// Selector picks the round leader. Nil means [gleader.RandomSelector].
	Selector gleader.Selector

	RoundInterval    time.Duration
	AnnounceInterval time.Duration

	// Missing parent requests are resent every RequestRetryInterval,
	// and abandoned after MaxRequestAttempts sends.
	RequestRetryInterval time.Duration
	MaxRequestAttempts   int

	// PendingMaxAge discards pending transactions older than this.
	// Zero keeps pending transactions forever.
	PendingMaxAge time.Duration

	// DefaultBalance is the starting balance of every account.
	// Zero means [gapp.DefaultBalance].
	DefaultBalance int64

	// GossipSeed seeds gossip target selection.
	GossipSeed uint64

	// Watchdog is optional. The kernel is polled every WatchdogInterval,
	// which defaults to DefaultWatchdogInterval.
	Watchdog         *gwatchdog.Watchdog
	WatchdogInterval time.Duration

	AssertEnv gassert.Env

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c Config) validate() error {
	var errs []error
	if c.Conn == nil {
		errs = append(errs, errors.New("Conn must be set"))
	}
	if c.Signer == nil {
		errs = append(errs, errors.New("Signer must be set"))
	}
	if c.Registry == nil {
		errs = append(errs, errors.New("Registry must be set"))
	}
	if c.Fanout < 1 {
		errs = append(errs, errors.New("Fanout must be positive"))
	}
	if c.InitialTTL < 1 {
		errs = append(errs, errors.New("InitialTTL must be positive"))
	}
	if c.BlockCapacity < 1 {
		errs = append(errs, errors.New("BlockCapacity must be positive"))
	}
	if c.RoundInterval < 0 || c.AnnounceInterval < 0 || c.RequestRetryInterval < 0 || c.PendingMaxAge < 0 || c.WatchdogInterval < 0 {
		errs = append(errs, errors.New("intervals must not be negative"))
	}
	if c.RequestRetryInterval > 0 && c.MaxRequestAttempts < 1 {
		errs = append(errs, errors.New("MaxRequestAttempts must be positive when retries are enabled"))
	}
	if c.DefaultBalance < 0 {
		errs = append(errs, errors.New("DefaultBalance must not be negative"))
	}
	return errors.Join(errs...)
}
