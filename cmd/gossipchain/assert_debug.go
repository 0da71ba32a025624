//go:build debug

package main

import (
	"log/slog"
	"os"

	"github.com/gordian-engine/gossipchain/gassert"
	"github.com/spf13/pflag"
)

func addAssertFlags(fs *pflag.FlagSet) {
	fs.String("assert-rules", "", "comma-separated runtime assertion rules, e.g. 'node.*'")
	fs.String("assert-rules-file", "", "file of assertion rules, one per line")
	fs.Bool("assert-log-only", false, "log assertion failures instead of panicking")
}

func assertEnvFromFlags(fs *pflag.FlagSet, log *slog.Logger) (gassert.Env, error) {
	rules, err := fs.GetString("assert-rules")
	if err != nil {
		return nil, err
	}
	path, err := fs.GetString("assert-rules-file")
	if err != nil {
		return nil, err
	}

	var env *gassert.Environment
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		env, err = gassert.ReadEnvironment(f)
		if err != nil {
			return nil, err
		}
	} else {
		env, err = gassert.NewEnvironment(rules)
		if err != nil {
			return nil, err
		}
	}

	logOnly, err := fs.GetBool("assert-log-only")
	if err != nil {
		return nil, err
	}
	if logOnly {
		env.OnlyLogFailures(log)
	}

	return env, nil
}
