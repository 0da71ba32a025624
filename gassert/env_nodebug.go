//go:build !debug

package gassert

// Env is the assertion environment passed to components that run checks.
// Outside debug builds it is empty and has no methods.
type Env struct{}
