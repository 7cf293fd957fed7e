package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tombee/odoo-mcp/internal/mcpsession"
)

// sseConn is one connected GET stream, keyed by session ID.
type sseConn struct {
	out     chan []byte
	flusher http.Flusher
	writer  http.ResponseWriter
}

// SSEServer is the SSE+POST MCP transport (§4.9): a long-lived
// text/event-stream GET carries server->client messages, paired with a
// POST endpoint for client->server messages, correlated by session id.
type SSEServer struct {
	newSession SessionFactory
	manager    *Manager
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*mcpsession.Session
	conns    map[string]*sseConn
}

// NewSSEServer constructs an SSEServer.
func NewSSEServer(newSession SessionFactory, manager *Manager, logger *slog.Logger) *SSEServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSEServer{
		newSession: newSession,
		manager:    manager,
		logger:     logger,
		sessions:   make(map[string]*mcpsession.Session),
		conns:      make(map[string]*sseConn),
	}
}

// RegisterRoutes wires this transport's handlers onto mux.
func (s *SSEServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/sse", s.handleStream)
	mux.HandleFunc("/sse/messages", s.handleMessage)
}

func (s *SSEServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	session := s.newSession()
	s.manager.Register(session.ID, KindSSE, session)
	defer func() {
		s.manager.Unregister(session.ID)
		session.Close()
	}()

	conn := &sseConn{out: make(chan []byte, 32), flusher: flusher, writer: w}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.conns[session.ID] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, session.ID)
		delete(s.conns, session.ID)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	s.writeEvent(conn, "endpoint", map[string]string{"sessionId": session.ID})

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-conn.out:
			if !ok {
				return
			}
			s.writeEvent(conn, "message", json.RawMessage(frame))
		}
	}
}

func (s *SSEServer) writeEvent(conn *sseConn, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(conn.writer, "event: %s\ndata: %s\n\n", event, payload)
	conn.flusher.Flush()
}

// handleMessage is the paired POST endpoint: one JSON-RPC frame per
// call, correlated to a stream via ?sessionId=.
func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")

	s.mu.Lock()
	session, sessionOK := s.sessions[sessionID]
	conn, connOK := s.conns[sessionID]
	s.mu.Unlock()
	if !sessionOK || !connOK {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	response := DispatchFrame(r.Context(), session, s.logger, body)
	if response != nil {
		select {
		case conn.out <- response:
		default:
			s.logger.Warn("sse client too slow, dropping frame", "session_id", sessionID)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
