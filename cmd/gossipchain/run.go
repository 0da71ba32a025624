package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"

	"github.com/gordian-engine/gossipchain/cmd/internal/gcmd"
	"github.com/gordian-engine/gossipchain/gapi"
	"github.com/gordian-engine/gossipchain/gconfig"
	"github.com/gordian-engine/gossipchain/gcrypto"
	"github.com/gordian-engine/gossipchain/gleader"
	"github.com/gordian-engine/gossipchain/gnode"
	"github.com/gordian-engine/gossipchain/gp2p/glibp2p"
	"github.com/gordian-engine/gossipchain/gwatchdog"
	"github.com/libp2p/go-libp2p"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "run INSECURE_PASSPHRASE",

		Short: "Run a node until interrupted",

		Args: cobra.ExactArgs(1),

		RunE: runNode,
	}

	cmd.Flags().String("config", "", "path to a JSON, YAML, or TOML config file")
	gconfig.AddFlags(cmd.Flags())
	addAssertFlags(cmd.Flags())

	return cmd
}

func runNode(cmd *cobra.Command, args []string) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := gconfig.Load(cfgPath, gconfig.DefaultEnvPrefix, cmd.Flags())
	if err != nil {
		return err
	}

	log := cfg.NewLogger(cmd.ErrOrStderr())

	assertEnv, err := assertEnvFromFlags(cmd.Flags(), log.With("sys", "assert"))
	if err != nil {
		return err
	}

	signer, err := gcmd.SignerFromInsecurePassphrase(args[0])
	if err != nil {
		return fmt.Errorf("failed to derive signing key: %w", err)
	}
	netKey, err := gcmd.Libp2pKeyFromInsecurePassphrase(args[0])
	if err != nil {
		return fmt.Errorf("failed to derive libp2p network key: %w", err)
	}

	// Cancel after the deferred Wait calls below,
	// each of which depends on context cancellation.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var wd *gwatchdog.Watchdog
	if cfg.WatchdogTimeout > 0 {
		wd, ctx = gwatchdog.New(ctx, log.With("sys", "watchdog"), gwatchdog.Options{
			ResponseTimeout: cfg.WatchdogTimeout,
		})
		defer wd.Wait()
		defer cancel()
	}

	h, err := glibp2p.NewHost(ctx, glibp2p.HostOptions{
		Options: []libp2p.Option{
			libp2p.Identity(netKey),
			libp2p.ListenAddrStrings(cfg.ListenAddrs...),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create libp2p host: %w", err)
	}

	conn, err := glibp2p.NewConnection(ctx, log.With("sys", "p2p"), h, glibp2p.ConnectionOptions{
		InboundRate:  rate.Limit(cfg.InboundRate),
		InboundBurst: cfg.InboundBurst,
	})
	if err != nil {
		if cErr := h.Close(); cErr != nil {
			log.Warn("Error closing libp2p host", "err", cErr)
		}
		return fmt.Errorf("failed to build libp2p connection: %w", err)
	}
	defer conn.Wait()
	defer conn.Disconnect()

	if len(cfg.Bootstrap) > 0 {
		if err := h.Dial(ctx, cfg.Bootstrap); err != nil {
			return fmt.Errorf("failed to dial bootstrap peers: %w", err)
		}
	}

	selector, err := gleader.ParseStrategy(cfg.LeaderStrategy)
	if err != nil {
		return err
	}

	seed := cfg.GossipSeed
	if seed == 0 {
		seed = rand.Uint64()
	}

	reg := new(gcrypto.Registry)
	gcrypto.RegisterEd25519(reg)

	node, err := gnode.New(ctx, log.With("sys", "node"), gnode.Config{
		Conn:     conn,
		Signer:   signer,
		Registry: reg,

		Fanout:        cfg.Fanout,
		InitialTTL:    cfg.InitialTTL,
		BlockCapacity: cfg.BlockCapacity,

		Selector: selector,

		RoundInterval:    cfg.RoundInterval,
		AnnounceInterval: cfg.AnnounceInterval,

		RequestRetryInterval: cfg.RequestRetryInterval,
		MaxRequestAttempts:   cfg.MaxRequestAttempts,

		PendingMaxAge: cfg.PendingMaxAge,

		GossipSeed: seed,

		Watchdog:  wd,
		AssertEnv: assertEnv,
	})
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer node.Wait()
	defer cancel()

	if cfg.HTTPAddr != "" {
		ln, err := (new(net.ListenConfig)).Listen(ctx, "tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for HTTP API: %w", err)
		}

		srv := gapi.NewHTTPServer(ctx, log.With("sys", "http"), gapi.HTTPServerConfig{
			Listener: ln,
			Node:     node,
		})
		defer srv.Wait()
		defer cancel()

		log.Info("HTTP API listening", "addr", ln.Addr().String())
	}

	addrs, err := h.FullAddrs()
	if err != nil {
		return fmt.Errorf("failed to list listen addresses: %w", err)
	}
	log.Info("Node running", "id", node.ID(), "addrs", addrs, "bootstrap", len(cfg.Bootstrap))
	log.Info("Press ^c to stop")

	<-ctx.Done()

	if gwatchdog.IsTermination(ctx) {
		return context.Cause(ctx)
	}
	return nil
}
