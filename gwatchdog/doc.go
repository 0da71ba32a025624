// Package gwatchdog watches long-running kernel goroutines.
//
// A kernel opts in with [*Watchdog.Monitor] and must answer each [Signal]
// from its select loop by closing Signal.Alive.
// A kernel that misses a signal is considered stuck,
// and the watchdog cancels the context returned by [New],
// which every other subsystem of the process derives from.
package gwatchdog
