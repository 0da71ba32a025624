// Command gossipchain runs a transaction gossip and block finalization node.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gordian-engine/gossipchain/cmd/internal/gcmd"
	libp2ppeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"
)

func main() {
	if err := mainE(); err != nil {
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "gossipchain SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		SilenceUsage:  true,
		SilenceErrors: true,

		Long: `gossipchain runs a node that gossips signed transactions
and finalizes them into a chain of fixed-size blocks.

Keys are derived from an insecure passphrase, since nothing is persisted:

1. Print the node's peer ID, which is also its account ID:
     $ gossipchain peer-id 'my-passphrase'
2. Start a first node:
     $ gossipchain run 'my-passphrase' --http-addr 127.0.0.1:8080
3. Start more nodes, bootstrapping from a full address printed by the first:
     $ gossipchain run 'other' --listen-addrs /ip4/0.0.0.0/tcp/9998 \
         --http-addr 127.0.0.1:8081 --bootstrap /ip4/127.0.0.1/tcp/9999/p2p/$PEER_ID

Every run flag can also be set in a config file (--config)
or through GOSSIPCHAIN_* environment variables.
`,
	}

	rootCmd.AddCommand(
		NewPubKeyCmd(),
		NewPeerIDCmd(),
		NewRunCmd(),
	)

	return rootCmd
}

func NewPubKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use: "pubkey INSECURE_PASSPHRASE",

		Aliases: []string{"pub-key"},

		Short: "Print the signing public key derived from the given insecure passphrase",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := gcmd.SignerFromInsecurePassphrase(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", signer.PubKey().PubKeyBytes())
			return nil
		},
	}
}

func NewPeerIDCmd() *cobra.Command {
	return &cobra.Command{
		Use: "peer-id INSECURE_PASSPHRASE",

		Short: "Print the libp2p peer ID derived from the given insecure passphrase",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			privKey, err := gcmd.Libp2pKeyFromInsecurePassphrase(args[0])
			if err != nil {
				return fmt.Errorf("failed to generate libp2p network key: %w", err)
			}

			id, err := libp2ppeer.IDFromPrivateKey(privKey)
			if err != nil {
				return fmt.Errorf("failed to generate ID from libp2p private key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
