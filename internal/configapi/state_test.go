package configapi

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAuthStateSeedsFromEnvironmentOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_UI_USERNAME", "admin")
	t.Setenv("CONFIG_UI_PASSWORD", "hunter2")
	t.Setenv("MCP_AUTH_ENABLED", "true")
	t.Setenv("MCP_AUTH_TOKEN", "seed-token")

	state, err := LoadAuthState(dir)
	require.NoError(t, err)

	enabled, token := state.AuthSnapshot()
	assert.True(t, enabled)
	assert.Equal(t, "seed-token", token)
	assert.True(t, state.VerifyLogin("admin", "hunter2"))
	assert.False(t, state.VerifyLogin("admin", "wrong"))

	_, err = os.Stat(dir + "/auth-state.json")
	assert.NoError(t, err)
}

func TestLoadAuthStatePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_UI_USERNAME", "")
	t.Setenv("CONFIG_UI_PASSWORD", "")
	t.Setenv("MCP_AUTH_ENABLED", "")
	t.Setenv("MCP_AUTH_TOKEN", "")

	first, err := LoadAuthState(dir)
	require.NoError(t, err)

	token, err := first.GenerateToken()
	require.NoError(t, err)
	require.NoError(t, first.SetEnabled(true))
	require.NoError(t, first.SetCredentials("root", "swordfish"))

	second, err := LoadAuthState(dir)
	require.NoError(t, err)

	enabled, gotToken := second.AuthSnapshot()
	assert.True(t, enabled)
	assert.Equal(t, token, gotToken)
	assert.True(t, second.VerifyLogin("root", "swordfish"))
	assert.Equal(t, first.JWTSigningSecret(), second.JWTSigningSecret())
}

func TestGenerateTokenProducesDistinctTokens(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_UI_USERNAME", "")
	t.Setenv("CONFIG_UI_PASSWORD", "")
	t.Setenv("MCP_AUTH_ENABLED", "")
	t.Setenv("MCP_AUTH_TOKEN", "")

	state, err := LoadAuthState(dir)
	require.NoError(t, err)

	first, err := state.GenerateToken()
	require.NoError(t, err)
	second, err := state.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestStatusReportsHasTokenOnlyAfterGeneration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_UI_USERNAME", "")
	t.Setenv("CONFIG_UI_PASSWORD", "")
	t.Setenv("MCP_AUTH_ENABLED", "")
	t.Setenv("MCP_AUTH_TOKEN", "")

	state, err := LoadAuthState(dir)
	require.NoError(t, err)

	_, hasToken := state.Status()
	assert.False(t, hasToken)

	_, err = state.GenerateToken()
	require.NoError(t, err)

	_, hasToken = state.Status()
	assert.True(t, hasToken)
}
