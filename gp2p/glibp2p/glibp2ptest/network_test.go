package glibp2ptest_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/gordian-engine/gossipchain/gp2p/glibp2p"
	"github.com/gordian-engine/gossipchain/gp2p/glibp2p/glibp2ptest"
	"github.com/gordian-engine/gossipchain/gp2p/gp2ptest"
)

func TestNetworkCompliance(t *testing.T) {
	gp2ptest.TestNetworkCompliance(t, func(ctx context.Context, log *slog.Logger) (gp2ptest.Network, error) {
		n, err := glibp2ptest.NewNetwork(ctx, log)
		if err != nil {
			return nil, err
		}
		return &gp2ptest.GenericNetwork[*glibp2p.Connection]{Network: n}, nil
	})
}
