//go:build tools

// For the tools.go pattern, see:
// https://go.dev/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module

package gossipchain

import (
	// stringer, for the go:generate directives on enum types.
	_ "golang.org/x/tools/cmd/stringer"
)
