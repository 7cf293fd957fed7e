package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPHandlesInitializeAndReturnsSessionHeader(t *testing.T) {
	manager := NewManager()
	server := NewHTTPServer(newFakeSession, manager, fakeInstanceLister{names: []string{"default"}}, nil, nil)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`
	resp, err := http.Post(httpServer.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(sessionHeader))
}

func TestHTTPRejectsMissingBearerTokenWhenAuthEnabled(t *testing.T) {
	manager := NewManager()
	server := NewHTTPServer(newFakeSession, manager, fakeInstanceLister{}, StaticAuth{Enabled: true, Token: "secret"}, nil)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	resp, err := http.Post(httpServer.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPReusesSessionAcrossRequestsViaHeader(t *testing.T) {
	manager := NewManager()
	server := NewHTTPServer(newFakeSession, manager, fakeInstanceLister{}, nil, nil)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	initBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	initResp, err := http.Post(httpServer.URL+"/mcp", "application/json", strings.NewReader(initBody))
	require.NoError(t, err)
	defer initResp.Body.Close()
	sessionID := initResp.Header.Get(sessionHeader)
	require.NotEmpty(t, sessionID)

	listBody := `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`
	req, err := http.NewRequest(http.MethodPost, httpServer.URL+"/mcp", strings.NewReader(listBody))
	require.NoError(t, err)
	req.Header.Set(sessionHeader, sessionID)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()

	require.Equal(t, http.StatusOK, listResp.StatusCode)
	require.Equal(t, sessionID, listResp.Header.Get(sessionHeader))
}

func TestHTTPHealthReportsConfiguredInstances(t *testing.T) {
	manager := NewManager()
	server := NewHTTPServer(newFakeSession, manager, fakeInstanceLister{names: []string{"default", "staging"}}, nil, nil)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	resp, err := http.Get(httpServer.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
