package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tombee/odoo-mcp/internal/httpauth"
	"github.com/tombee/odoo-mcp/internal/mcpsession"
)

const sessionHeader = "Mcp-Session-Id"

// SessionFactory constructs a fresh, uninitialized session per MCP
// connection.
type SessionFactory func() *mcpsession.Session

// InstanceLister enumerates configured instance names for /health,
// which lists each one as "configured"; /health does not probe whether
// an instance is reachable.
type InstanceLister interface {
	InstanceNames() []string
}

// AuthProvider reports the gateway's current bearer-auth setting,
// mutable at runtime via ConfigHttpApi's /api/config/auth/enable and
// /api/config/auth/token/generate rather than fixed at process start.
type AuthProvider interface {
	AuthSnapshot() (enabled bool, token string)
}

// StaticAuth is an AuthProvider fixed for the life of the process, for
// callers (tests, simple deployments) that don't need runtime toggling.
type StaticAuth struct {
	Enabled bool
	Token   string
}

func (a StaticAuth) AuthSnapshot() (bool, string) { return a.Enabled, a.Token }

// HTTPServer is the streamable-HTTP MCP transport (§4.9): each request
// carries one JSON-RPC request, correlated to a session via the
// Mcp-Session-Id header, plus /health and /openapi.json outside the
// MCP envelope.
type HTTPServer struct {
	newSession SessionFactory
	manager    *Manager
	instances  InstanceLister
	auth       AuthProvider
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*mcpsession.Session
	started  time.Time
}

// NewHTTPServer builds an HTTPServer. auth governs whether /mcp
// requests must carry a matching Bearer token, re-checked on every
// request rather than frozen at construction.
func NewHTTPServer(newSession SessionFactory, manager *Manager, instances InstanceLister, auth AuthProvider, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = StaticAuth{}
	}
	return &HTTPServer{
		newSession: newSession,
		manager:    manager,
		instances:  instances,
		auth:       auth,
		logger:     logger,
		sessions:   make(map[string]*mcpsession.Session),
		started:    time.Now(),
	}
}

// RegisterRoutes wires this transport's handlers onto mux.
func (h *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", h.handleMCP)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/openapi.json", h.handleOpenAPI)
}

func (h *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if enabled, token := h.auth.AuthSnapshot(); enabled {
		if err := httpauth.Authenticate(r, token); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	session, sessionID := h.sessionFor(r)

	response := DispatchFrame(r.Context(), session, h.logger, body)

	w.Header().Set(sessionHeader, sessionID)
	w.Header().Set("Content-Type", "application/json")
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Write(response)
}

func (h *HTTPServer) sessionFor(r *http.Request) (*mcpsession.Session, string) {
	id := r.Header.Get(sessionHeader)

	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		if s, ok := h.sessions[id]; ok {
			return s, id
		}
	}

	session := h.newSession()
	h.sessions[session.ID] = session
	h.manager.Register(session.ID, KindHTTP, session)
	return session, session.ID
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := h.instances.InstanceNames()
	instances := make(map[string]string, len(names))
	for _, name := range names {
		instances[name] = "configured"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"uptime_s":  int(time.Since(h.started).Seconds()),
		"instances": instances,
	})
}

func (h *HTTPServer) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDescriptor)
}

var openAPIDescriptor = map[string]interface{}{
	"openapi": "3.0.3",
	"info": map[string]interface{}{
		"title":   "odoo-mcp configuration API",
		"version": "1.0.0",
	},
	"paths": map[string]interface{}{
		"/api/config/{kind}": map[string]interface{}{
			"get":  map[string]interface{}{"summary": "Return the current document for kind"},
			"post": map[string]interface{}{"summary": "Validate and save a new document for kind"},
		},
		"/api/config/auth/status":         map[string]interface{}{"get": map[string]interface{}{"summary": "Current auth status"}},
		"/api/config/auth/enable":         map[string]interface{}{"post": map[string]interface{}{"summary": "Toggle HTTP auth"}},
		"/api/config/auth/token/generate": map[string]interface{}{"post": map[string]interface{}{"summary": "Generate a new bearer token"}},
		"/api/config/auth/credentials":    map[string]interface{}{"post": map[string]interface{}{"summary": "Update config UI credentials"}},
		"/api/config/sessions":            map[string]interface{}{"get": map[string]interface{}{"summary": "List connected MCP sessions"}},
		"/health":                         map[string]interface{}{"get": map[string]interface{}{"summary": "Liveness"}},
	},
}
