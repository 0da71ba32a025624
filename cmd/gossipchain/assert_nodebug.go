//go:build !debug

package main

import (
	"log/slog"

	"github.com/gordian-engine/gossipchain/gassert"
	"github.com/spf13/pflag"
)

// Assertion flags exist only in debug builds.
func addAssertFlags(*pflag.FlagSet) {}

func assertEnvFromFlags(*pflag.FlagSet, *slog.Logger) (gassert.Env, error) {
	return gassert.Env{}, nil
}
