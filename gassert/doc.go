// Package gassert gates expensive runtime invariant checks.
//
// Checks are compiled in only with the "debug" build tag.
// In other builds [Env] is an empty struct and callers guard
// their checks behind the same tag, so nothing is evaluated.
//
// In debug builds an [*Environment] holds a set of rules.
// A component asks [*Environment.Enabled] with a dot-separated name,
// such as "node.kernel.pool_disjoint", before running a check.
//
// Rules:
//   - "*" enables every check.
//   - "node.*" enables every check under "node.", but not "node" itself.
//   - "node.kernel.chain_index" enables exactly that check.
//   - "!node.kernel.chain_index" disables a check that a wildcard enabled.
//     Wildcards are not allowed in exclusions.
//
// [NewEnvironment] takes comma-separated rules.
// [ReadEnvironment] takes one rule per line and skips blank lines and lines starting with "#".
package gassert
