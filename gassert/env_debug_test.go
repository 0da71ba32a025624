//go:build debug

package gassert_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gordian-engine/gossipchain/gassert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_Enabled(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		rules   string
		enabled []string
		off     []string
	}{
		{
			rules:   "*",
			enabled: []string{"node", "node.kernel", "node.kernel.chain_index"},
		},
		{
			rules:   "node.*",
			enabled: []string{"node.kernel", "node.kernel.chain_index"},
			off:     []string{"node", "nodes.x", "pool.x"},
		},
		{
			rules:   "node.kernel.chain_index,pool.order",
			enabled: []string{"node.kernel.chain_index", "pool.order"},
			off:     []string{"node.kernel", "node.kernel.chain_index_x", "pool"},
		},
		{
			rules:   "node.*,!node.kernel.chain_index",
			enabled: []string{"node.kernel.pool_disjoint"},
			off:     []string{"node.kernel.chain_index"},
		},
		{
			rules: "",
			off:   []string{"node", "node.kernel.chain_index"},
		},
	} {
		t.Run(tc.rules, func(t *testing.T) {
			t.Parallel()

			e, err := gassert.NewEnvironment(tc.rules)
			require.NoError(t, err)

			for _, r := range tc.enabled {
				require.Truef(t, e.Enabled(r), "%q should be enabled", r)
			}
			for _, r := range tc.off {
				require.Falsef(t, e.Enabled(r), "%q should be disabled", r)
			}
		})
	}
}

func TestEnvironment_invalidRules(t *testing.T) {
	t.Parallel()

	for _, rules := range []string{
		"node.*.kernel",
		"*.node",
		"node*",
		"!node.*",
		"!",
		"node!",
		"a,,b",
	} {
		_, err := gassert.NewEnvironment(rules)
		require.Errorf(t, err, "rules %q", rules)
	}
}

func TestReadEnvironment(t *testing.T) {
	t.Parallel()

	e, err := gassert.ReadEnvironment(strings.NewReader(`
# kernel checks
node.*

!node.kernel.chain_index
`))
	require.NoError(t, err)
	require.True(t, e.Enabled("node.kernel.pool_disjoint"))
	require.False(t, e.Enabled("node.kernel.chain_index"))

	_, err = gassert.ReadEnvironment(strings.NewReader("ok\nbad.*.rule\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestEnvironment_nilDisablesAll(t *testing.T) {
	t.Parallel()

	var e gassert.Env
	require.False(t, e.Enabled("node.kernel.chain_index"))
}

func TestEnvironment_HandleAssertionFailure(t *testing.T) {
	t.Parallel()

	e, err := gassert.NewEnvironment("*")
	require.NoError(t, err)

	require.Panics(t, func() { e.HandleAssertionFailure(errors.New("broken")) })
	require.Panics(t, func() { e.HandleAssertionFailure(nil) })

	var buf bytes.Buffer
	e.OnlyLogFailures(slog.New(slog.NewTextHandler(&buf, nil)))
	e.HandleAssertionFailure(errors.New("broken"))
	require.Contains(t, buf.String(), "broken")
}
