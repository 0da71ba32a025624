//go:build debug

package gasserttest

import "github.com/gordian-engine/gossipchain/gassert"

// DefaultEnv enables every check.
func DefaultEnv() gassert.Env {
	env, err := gassert.NewEnvironment("*")
	if err != nil {
		panic(err)
	}
	return env
}
