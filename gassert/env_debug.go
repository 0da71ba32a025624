//go:build debug

package gassert

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Env is an [*Environment] in debug builds.
// A nil Env has every check disabled.
type Env = *Environment

// Environment is safe for concurrent use once configured.
type Environment struct {
	// Each prefix ends with a dot; "" matches everything.
	prefixes []string

	exacts   map[string]struct{}
	excludes map[string]struct{}

	// Nil means failures panic.
	log *slog.Logger
}

// NewEnvironment parses a comma-separated list of rules.
func NewEnvironment(rules string) (*Environment, error) {
	e := newEnvironment()
	if rules == "" {
		return e, nil
	}

	var errs []error
	for _, r := range strings.Split(rules, ",") {
		if err := e.add(strings.TrimSpace(r)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return e, nil
}

// ReadEnvironment parses one rule per line from r.
func ReadEnvironment(r io.Reader) (*Environment, error) {
	e := newEnvironment()

	var errs []error
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		txt := strings.TrimSpace(s.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			continue
		}
		if err := e.add(txt); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
		}
	}
	if err := s.Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to read rules: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return e, nil
}

func newEnvironment() *Environment {
	return &Environment{
		exacts:   make(map[string]struct{}),
		excludes: make(map[string]struct{}),
	}
}

func (e *Environment) add(r string) error {
	if r == "" {
		return errors.New("empty rule")
	}

	if ex, ok := strings.CutPrefix(r, "!"); ok {
		if ex == "" || strings.ContainsAny(ex, "*!") {
			return fmt.Errorf("invalid exclusion %q: must name one check", r)
		}
		e.excludes[ex] = struct{}{}
		return nil
	}

	if strings.Contains(r, "!") {
		return fmt.Errorf("invalid rule %q: ! is only allowed at the start", r)
	}

	switch strings.Count(r, "*") {
	case 0:
		e.exacts[r] = struct{}{}
		return nil
	case 1:
		if r == "*" {
			e.prefixes = append(e.prefixes, "")
			return nil
		}
		if p, ok := strings.CutSuffix(r, ".*"); ok && p != "" {
			e.prefixes = append(e.prefixes, p+".")
			return nil
		}
	}
	return fmt.Errorf("invalid rule %q: * is only allowed as the final segment", r)
}

// OnlyLogFailures makes HandleAssertionFailure log at error level instead of panicking.
// It must be called before concurrent use.
func (e *Environment) OnlyLogFailures(log *slog.Logger) {
	e.log = log
}

// Enabled reports whether the check named rule should run.
// A wildcard match wins unless an exclusion names rule;
// otherwise only an exact rule enables it.
func (e *Environment) Enabled(rule string) bool {
	if e == nil {
		return false
	}

	for _, p := range e.prefixes {
		if strings.HasPrefix(rule, p) {
			_, excluded := e.excludes[rule]
			return !excluded
		}
	}

	_, ok := e.exacts[rule]
	return ok
}

// HandleAssertionFailure panics with err,
// or logs it if OnlyLogFailures was called.
func (e *Environment) HandleAssertionFailure(err error) {
	if err == nil {
		panic(errors.New("BUG: HandleAssertionFailure called with nil error"))
	}

	if e == nil || e.log == nil {
		panic(fmt.Errorf("assertion failure: %w", err))
	}

	e.log.Error("Assertion failure", "err", err)
}
