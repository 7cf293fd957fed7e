package configapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/transport"
)

func decodeJSON(resp *http.Response, v interface{}) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

func newTestAPI(t *testing.T) (*API, *AuthState) {
	t.Helper()
	storeDir := t.TempDir()
	store, err := config.NewStore(storeDir, nil, false)
	require.NoError(t, err)

	stateDir := t.TempDir()
	t.Setenv("CONFIG_UI_USERNAME", "admin")
	t.Setenv("CONFIG_UI_PASSWORD", "hunter2")
	t.Setenv("MCP_AUTH_ENABLED", "")
	t.Setenv("MCP_AUTH_TOKEN", "")
	state, err := LoadAuthState(stateDir)
	require.NoError(t, err)

	return New(store, state, transport.NewManager(), nil), state
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/config/auth/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, decodeJSON(resp, &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/config/auth/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"wrong"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthStatusRequiresLoginToken(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/config/auth/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := login(t, srv)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/config/auth/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestTokenGenerateAndAuthEnableRoundTrip(t *testing.T) {
	api, state := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	token := login(t, srv)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/config/auth/token/generate", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req2, err := http.NewRequest(http.MethodPost, srv.URL+"/api/config/auth/enable", strings.NewReader(`{"enabled":true}`))
	require.NoError(t, err)
	req2.Header.Set("Authorization", "Bearer "+token)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	enabled, mcpToken := state.AuthSnapshot()
	assert.True(t, enabled)
	assert.NotEmpty(t, mcpToken)
}

func TestGetToolsDocumentReturnsSeedDefaults(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	token := login(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/config/tools", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostInvalidToolsDocumentReportsFailureWithoutPanicking(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	token := login(t, srv)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/config/tools", strings.NewReader(`{"tools":[{"name":""}]}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result struct {
		Success           bool   `json:"success"`
		RollbackPerformed bool   `json:"rollback_performed"`
		Warning           string `json:"warning"`
	}
	require.NoError(t, decodeJSON(resp, &result))
	assert.False(t, result.Success)
	assert.True(t, result.RollbackPerformed)
	assert.NotEmpty(t, result.Warning)
}

func TestSessionsRouteReturnsEmptyListWhenNoneConnected(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	token := login(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/config/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var sessions []transport.SessionInfo
	require.NoError(t, decodeJSON(resp, &sessions))
	assert.Empty(t, sessions)
}

func TestHealthRequiresNoAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
