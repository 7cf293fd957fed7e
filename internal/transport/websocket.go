package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tombee/odoo-mcp/internal/httpauth"
	"github.com/tombee/odoo-mcp/internal/mcpsession"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WebSocketServer is the WebSocket MCP transport (§4.9): one JSON-RPC
// frame per text message, one connection per session.
type WebSocketServer struct {
	newSession SessionFactory
	manager    *Manager
	auth       AuthProvider
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewWebSocketServer builds a WebSocketServer. auth governs whether the
// upgrade request must carry a matching Bearer token, re-checked on
// every connection attempt rather than frozen at construction.
func NewWebSocketServer(newSession SessionFactory, manager *Manager, auth AuthProvider, logger *slog.Logger) *WebSocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = StaticAuth{}
	}
	return &WebSocketServer{
		newSession: newSession,
		manager:    manager,
		auth:       auth,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes wires this transport's handler onto mux.
func (s *WebSocketServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleUpgrade)
}

func (s *WebSocketServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if enabled, token := s.auth.AuthSnapshot(); enabled {
		if err := httpauth.Authenticate(r, token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	session := s.newSession()
	s.manager.Register(session.ID, KindWebSocket, session)
	s.logger.Info("websocket connection established", "remote", r.RemoteAddr, "session_id", session.ID)

	go s.serve(conn, session)
}

// serve owns the connection's read loop and ping keepalive, mirroring
// the teacher's handleConnection but dispatching every text frame
// through the session instead of discarding it as a placeholder.
func (s *WebSocketServer) serve(conn *websocket.Conn, session *mcpsession.Session) {
	var writeMu sync.Mutex
	done := make(chan struct{})

	defer func() {
		close(done)
		s.manager.Unregister(session.ID)
		session.Close()
		conn.Close()
		s.logger.Info("websocket connection closed", "session_id", session.ID)
	}()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	go s.pingLoop(conn, &writeMu, done)

	ctx := context.Background()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", "error", err, "session_id", session.ID)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		response := DispatchFrame(ctx, session, s.logger, data)
		if response == nil {
			continue
		}

		writeMu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, response)
		writeMu.Unlock()
		if err != nil {
			s.logger.Warn("websocket write error", "error", err, "session_id", session.ID)
			return
		}
	}
}

func (s *WebSocketServer) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
