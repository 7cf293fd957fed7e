package configapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/transport"
)

// API implements ConfigHttpApi (§4.10): the authenticated REST surface
// for reading/writing ConfigStore documents, toggling MCP bearer auth,
// and (SPEC_FULL supplement #5) listing connected MCP sessions.
type API struct {
	store   *config.Store
	state   *AuthState
	manager *transport.Manager
	logger  *slog.Logger
}

// New constructs an API. manager may be nil if session listing is not
// needed (e.g. validate-config subcommand).
func New(store *config.Store, state *AuthState, manager *transport.Manager, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{store: store, state: state, manager: manager, logger: logger}
}

// RegisterRoutes wires every ConfigHttpApi endpoint onto mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/config/auth/login", a.handleLogin)

	mux.HandleFunc("/api/config/auth/status", a.requireAuth(a.handleAuthStatus))
	mux.HandleFunc("/api/config/auth/enable", a.requireAuth(a.handleAuthEnable))
	mux.HandleFunc("/api/config/auth/token/generate", a.requireAuth(a.handleTokenGenerate))
	mux.HandleFunc("/api/config/auth/credentials", a.requireAuth(a.handleCredentials))
	mux.HandleFunc("/api/config/sessions", a.requireAuth(a.handleSessions))

	mux.HandleFunc("/api/config/instances", a.requireAuth(a.handleDocument(config.KindInstances)))
	mux.HandleFunc("/api/config/tools", a.requireAuth(a.handleDocument(config.KindTools)))
	mux.HandleFunc("/api/config/prompts", a.requireAuth(a.handleDocument(config.KindPrompts)))
	mux.HandleFunc("/api/config/server", a.requireAuth(a.handleDocument(config.KindServer)))

	mux.HandleFunc("/health", a.handleHealth)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed login body", http.StatusBadRequest)
		return
	}
	if !a.state.VerifyLogin(req.Username, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := issueLoginToken(a.state.JWTSigningSecret(), req.Username)
	if err != nil {
		a.logger.Error("issue login token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	enabled, hasToken := a.state.Status()
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled, "hasToken": hasToken})
}

func (a *API) handleAuthEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if err := a.state.SetEnabled(req.Enabled); err != nil {
		a.logger.Error("set auth enabled", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (a *API) handleTokenGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, err := a.state.GenerateToken()
	if err != nil {
		a.logger.Error("generate token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	if err := a.state.SetCredentials(req.Username, req.Password); err != nil {
		a.logger.Error("set credentials", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if a.manager == nil {
		writeJSON(w, http.StatusOK, []transport.SessionInfo{})
		return
	}
	writeJSON(w, http.StatusOK, a.manager.List())
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDocument returns a GET/POST handler for one ConfigStore kind,
// per §4.10's `{kind}` route pair.
func (a *API) handleDocument(kind config.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.loadDocument(w, kind)
		case http.MethodPost:
			a.saveDocument(w, r, kind)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (a *API) loadDocument(w http.ResponseWriter, kind config.Kind) {
	raw, err := a.store.LoadRaw(kind)
	if err != nil {
		a.logger.Error("load config document", "kind", kind, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// saveResult is the §4.10 POST response envelope.
type saveResult struct {
	Success           bool   `json:"success"`
	RollbackPerformed bool   `json:"rollback_performed"`
	Warning           string `json:"warning,omitempty"`
}

func (a *API) saveDocument(w http.ResponseWriter, r *http.Request, kind config.Kind) {
	body, err := decodeDocument(kind, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, saveResult{Success: false, Warning: err.Error()})
		return
	}

	rolledBack, err := a.store.Save(kind, body)
	if err != nil {
		var rolledBackErr *config.RolledBackError
		if errors.As(err, &rolledBackErr) {
			writeJSON(w, http.StatusOK, saveResult{Success: false, RollbackPerformed: true, Warning: err.Error()})
			return
		}
		var invalidErr *config.InvalidError
		if errors.As(err, &invalidErr) {
			writeJSON(w, http.StatusOK, saveResult{Success: false, RollbackPerformed: true, Warning: err.Error()})
			return
		}
		a.logger.Error("save config document", "kind", kind, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, saveResult{Success: true, RollbackPerformed: rolledBack})
}

// decodeDocument unmarshals the POST body into the concrete type Save
// expects for kind, mirroring Store.validateDocument's type switch.
func decodeDocument(kind config.Kind, r *http.Request) (interface{}, error) {
	var doc interface{}
	switch kind {
	case config.KindInstances:
		doc = &config.InstancesDocument{}
	case config.KindTools:
		doc = &config.ToolsDocument{}
	case config.KindPrompts:
		doc = &config.PromptsDocument{}
	case config.KindServer:
		doc = &config.ServerMetadata{}
	default:
		return nil, errors.New("unknown document kind")
	}
	if err := json.NewDecoder(r.Body).Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
