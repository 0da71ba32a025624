// Package gconfig loads node settings from defaults, a config file,
// environment variables, and command line flags, in increasing precedence.
package gconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gordian-engine/gossipchain/gleader"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix is the prefix of environment overrides,
// e.g. GOSSIPCHAIN_BLOCK_CAPACITY.
const DefaultEnvPrefix = "GOSSIPCHAIN"

type Config struct {
	// Libp2p multiaddrs to listen on.
	ListenAddrs []string `mapstructure:"listen_addrs"`

	// Full p2p multiaddrs dialed at startup.
	Bootstrap []string `mapstructure:"bootstrap"`

	// HTTPAddr is the API listen address. Empty disables the API.
	HTTPAddr string `mapstructure:"http_addr"`

	Fanout        int    `mapstructure:"fanout"`
	InitialTTL    uint32 `mapstructure:"initial_ttl"`
	BlockCapacity int    `mapstructure:"block_capacity"`

	RoundInterval    time.Duration `mapstructure:"round_interval"`
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`

	RequestRetryInterval time.Duration `mapstructure:"request_retry_interval"`
	MaxRequestAttempts   int           `mapstructure:"max_request_attempts"`

	PendingMaxAge time.Duration `mapstructure:"pending_max_age"`

	// LeaderStrategy is "random" or "round-robin".
	LeaderStrategy string `mapstructure:"leader_strategy"`

	GossipSeed uint64 `mapstructure:"gossip_seed"`

	// Per-peer inbound message limit, in messages per second.
	InboundRate  float64 `mapstructure:"inbound_rate"`
	InboundBurst int     `mapstructure:"inbound_burst"`

	// Zero disables the watchdog.
	WatchdogTimeout time.Duration `mapstructure:"watchdog_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func Default() Config {
	return Config{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9999"},
		HTTPAddr:    "127.0.0.1:8080",

		Fanout:        2,
		InitialTTL:    3,
		BlockCapacity: 10,

		RoundInterval:    5 * time.Second,
		AnnounceInterval: 30 * time.Second,

		RequestRetryInterval: 5 * time.Second,
		MaxRequestAttempts:   3,

		LeaderStrategy: gleader.StrategyRandom,

		InboundRate:  200,
		InboundBurst: 400,

		WatchdogTimeout: 10 * time.Second,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

func (c Config) Validate() error {
	var errs []error

	if len(c.ListenAddrs) == 0 {
		errs = append(errs, errors.New("listen_addrs must not be empty"))
	}
	if c.Fanout < 1 {
		errs = append(errs, fmt.Errorf("fanout must be positive (got %d)", c.Fanout))
	}
	if c.InitialTTL < 1 {
		errs = append(errs, errors.New("initial_ttl must be positive"))
	}
	if c.BlockCapacity < 1 {
		errs = append(errs, fmt.Errorf("block_capacity must be positive (got %d)", c.BlockCapacity))
	}
	for name, d := range map[string]time.Duration{
		"round_interval":         c.RoundInterval,
		"announce_interval":      c.AnnounceInterval,
		"request_retry_interval": c.RequestRetryInterval,
		"pending_max_age":        c.PendingMaxAge,
		"watchdog_timeout":       c.WatchdogTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative (got %s)", name, d))
		}
	}
	if c.RequestRetryInterval > 0 && c.MaxRequestAttempts < 1 {
		errs = append(errs, errors.New("max_request_attempts must be positive when request_retry_interval is set"))
	}
	if _, err := gleader.ParseStrategy(c.LeaderStrategy); err != nil {
		errs = append(errs, err)
	}
	if c.InboundRate <= 0 || c.InboundBurst < 1 {
		errs = append(errs, errors.New("inbound_rate and inbound_burst must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json (got %q)", c.LogFormat))
	}

	return errors.Join(errs...)
}

// AddFlags registers one flag per config key on fs.
// Flag names are the keys with dashes in place of underscores.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.StringSlice("listen-addrs", d.ListenAddrs, "libp2p multiaddrs to listen on")
	fs.StringSlice("bootstrap", nil, "full p2p multiaddrs of peers to dial at startup")
	fs.String("http-addr", d.HTTPAddr, "HTTP API listen address (empty disables the API)")

	fs.Int("fanout", d.Fanout, "number of peers each relayed item is sent to")
	fs.Uint32("initial-ttl", d.InitialTTL, "hop budget of originated transactions and announcements")
	fs.Int("block-capacity", d.BlockCapacity, "transactions per block")

	fs.Duration("round-interval", d.RoundInterval, "leader round interval (0 disables)")
	fs.Duration("announce-interval", d.AnnounceInterval, "peer announcement interval (0 disables)")
	fs.Duration("request-retry-interval", d.RequestRetryInterval, "missing block request retry interval (0 disables)")
	fs.Int("max-request-attempts", d.MaxRequestAttempts, "sends of one block request before it is abandoned")
	fs.Duration("pending-max-age", d.PendingMaxAge, "discard pending transactions older than this (0 keeps them)")

	fs.String("leader-strategy", d.LeaderStrategy, `leader selection strategy, "random" or "round-robin"`)
	fs.Uint64("gossip-seed", d.GossipSeed, "seed for gossip target selection (0 picks one at startup)")

	fs.Float64("inbound-rate", d.InboundRate, "inbound messages per second allowed from one peer")
	fs.Int("inbound-burst", d.InboundBurst, "inbound message burst allowed from one peer")

	fs.Duration("watchdog-timeout", d.WatchdogTimeout, "kernel liveness timeout (0 disables the watchdog)")

	fs.String("log-level", d.LogLevel, "debug, info, warn, or error")
	fs.String("log-format", d.LogFormat, "text or json")
}

// Load reads path (if non-empty), then environment variables
// with the given prefix, then any changed flags in fs (which may be nil).
// The result is validated.
func Load(path, envPrefix string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	if fs != nil {
		for _, key := range v.AllKeys() {
			f := fs.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("failed to bind flag %q: %w", f.Name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so that environment variables
// are seen by Unmarshal even when the config file omits the key.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("listen_addrs", d.ListenAddrs)
	v.SetDefault("bootstrap", []string{})
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("fanout", d.Fanout)
	v.SetDefault("initial_ttl", d.InitialTTL)
	v.SetDefault("block_capacity", d.BlockCapacity)
	v.SetDefault("round_interval", d.RoundInterval)
	v.SetDefault("announce_interval", d.AnnounceInterval)
	v.SetDefault("request_retry_interval", d.RequestRetryInterval)
	v.SetDefault("max_request_attempts", d.MaxRequestAttempts)
	v.SetDefault("pending_max_age", d.PendingMaxAge)
	v.SetDefault("leader_strategy", d.LeaderStrategy)
	v.SetDefault("gossip_seed", d.GossipSeed)
	v.SetDefault("inbound_rate", d.InboundRate)
	v.SetDefault("inbound_burst", d.InboundBurst)
	v.SetDefault("watchdog_timeout", d.WatchdogTimeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}
