package erpclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/odoo-mcp/internal/metrics"
)

func writeRPCResult(t *testing.T, w http.ResponseWriter, id int, result interface{}) {
	t.Helper()
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: mustMarshal(t, result)})
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestLegacyLoginThenSearchCount(t *testing.T) {
	var loginCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/web/session/authenticate":
			atomic.AddInt32(&loginCalls, 1)
			http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "sess-1"})
			writeRPCResult(t, w, req.ID, map[string]interface{}{"uid": 7})
		case "/web/dataset/call_kw":
			writeRPCResult(t, w, req.ID, 3)
		}
	}))
	defer srv.Close()

	c := NewLegacy("default", srv.URL, "mydb", "admin", "secret", 0, nil, nil)
	count, err := c.SearchCount(t.Context(), "res.partner", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.EqualValues(t, 1, atomic.LoadInt32(&loginCalls))
}

func TestLegacyTransparentReloginOnSessionExpiry(t *testing.T) {
	var loginCalls, callCount int32
	m := metrics.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/web/session/authenticate":
			atomic.AddInt32(&loginCalls, 1)
			http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "sess-fresh"})
			writeRPCResult(t, w, req.ID, map[string]interface{}{"uid": 7})
		case "/web/dataset/call_kw":
			n := atomic.AddInt32(&callCount, 1)
			if n == 1 {
				_ = json.NewEncoder(w).Encode(rpcResponse{
					JSONRPC: "2.0", ID: req.ID,
					Error: &rpcError{Code: 100, Message: "Session Expired"},
				})
				return
			}
			writeRPCResult(t, w, req.ID, []int{1, 2})
		}
	}))
	defer srv.Close()

	c := NewLegacy("default", srv.URL, "mydb", "admin", "secret", 0, nil, m)
	ids, err := c.Search(t.Context(), "res.partner", nil, SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)
	assert.EqualValues(t, 2, atomic.LoadInt32(&loginCalls), "expected initial login plus one re-login")

	metricFamilies, err := m.Gatherer.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range metricFamilies {
		if fam.GetName() == "erp_relogin_total" {
			found = true
			require.Len(t, fam.Metric, 1)
			assert.Equal(t, float64(1), fam.Metric[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "erp_relogin_total metric should be registered")
}

func TestLegacySecondExpiryIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/web/session/authenticate":
			http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "sess"})
			writeRPCResult(t, w, req.ID, map[string]interface{}{"uid": 1})
		case "/web/dataset/call_kw":
			_ = json.NewEncoder(w).Encode(rpcResponse{
				JSONRPC: "2.0", ID: req.ID,
				Error: &rpcError{Code: 100, Message: "session_expired"},
			})
		}
	}))
	defer srv.Close()

	c := NewLegacy("default", srv.URL, "mydb", "admin", "secret", 0, nil, nil)
	_, err := c.SearchCount(t.Context(), "res.partner", nil)
	require.Error(t, err)
	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, KindAuth, wireErr.Kind)
}
