package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileGuardRequiresEnvTrue(t *testing.T) {
	g, err := compileGuard("requiresEnvTrue:ODOO_ENABLE_CLEANUP_TOOLS")
	require.NoError(t, err)

	cases := map[string]bool{
		"1": true, "true": true, "True": true, "YES": true,
		"0": false, "false": false, "": false, "maybe": false,
	}
	for value, want := range cases {
		ok, err := g.eval(map[string]string{"ODOO_ENABLE_CLEANUP_TOOLS": value})
		require.NoError(t, err)
		assert.Equal(t, want, ok, "value %q", value)
	}
}

func TestCompileGuardRequiresEnv(t *testing.T) {
	g, err := compileGuard("requiresEnv:ODOO_API_KEY")
	require.NoError(t, err)

	ok, err := g.eval(map[string]string{"ODOO_API_KEY": "x"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.eval(map[string]string{"ODOO_API_KEY": ""})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileGuardRejectsUnknownForm(t *testing.T) {
	_, err := compileGuard("somethingElse:X")
	assert.Error(t, err)
}

func TestEvalAllRequiresEveryGuard(t *testing.T) {
	g1, err := compileGuard("requiresEnv:A")
	require.NoError(t, err)
	g2, err := compileGuard("requiresEnvTrue:B")
	require.NoError(t, err)

	ok, err := evalAll([]*guard{g1, g2}, map[string]string{"A": "x", "B": "true"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evalAll([]*guard{g1, g2}, map[string]string{"A": "x", "B": "false"})
	require.NoError(t, err)
	assert.False(t, ok)
}
