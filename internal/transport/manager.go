// Package transport implements the four MCP framings of §4.9: stdio,
// streamable HTTP, SSE+POST, and WebSocket, all delivering the same
// JSON-RPC payloads to an mcpsession.Session.
package transport

import (
	"sync"
)

// Kind identifies which framing a connected session arrived over.
type Kind string

const (
	KindStdio     Kind = "stdio"
	KindHTTP      Kind = "http"
	KindSSE       Kind = "sse"
	KindWebSocket Kind = "websocket"
)

// SessionInfo is what ConfigHttpApi's GET /api/config/sessions exposes
// per connected session (SPEC_FULL supplemented feature #5).
type SessionInfo struct {
	ID              string `json:"id"`
	Transport       Kind   `json:"transport"`
	ProtocolVersion string `json:"protocolVersion"`
}

// sessionHandle is anything a transport can report status for.
type sessionHandle interface {
	ProtocolVersion() string
}

// Manager tracks every currently connected session across all
// transports in one process, for the config UI's operational view.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]entry
}

type entry struct {
	kind   Kind
	handle sessionHandle
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]entry)}
}

// Register records a newly connected session. Call Unregister when it
// disconnects.
func (m *Manager) Register(id string, kind Kind, handle sessionHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = entry{kind: kind, handle: handle}
}

// Unregister drops a session from the tracked set.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List returns a snapshot of every currently connected session.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for id, e := range m.sessions {
		out = append(out, SessionInfo{
			ID:              id,
			Transport:       e.kind,
			ProtocolVersion: e.handle.ProtocolVersion(),
		})
	}
	return out
}
