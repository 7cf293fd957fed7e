package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionHandle string

func (h fakeSessionHandle) ProtocolVersion() string { return string(h) }

func TestManagerRegisterAndList(t *testing.T) {
	m := NewManager()
	m.Register("s1", KindHTTP, fakeSessionHandle("2024-11-05"))
	m.Register("s2", KindWebSocket, fakeSessionHandle("2024-11-05"))

	sessions := m.List()
	require.Len(t, sessions, 2)

	byID := map[string]SessionInfo{}
	for _, s := range sessions {
		byID[s.ID] = s
	}
	assert.Equal(t, KindHTTP, byID["s1"].Transport)
	assert.Equal(t, KindWebSocket, byID["s2"].Transport)
	assert.Equal(t, "2024-11-05", byID["s1"].ProtocolVersion)
}

func TestManagerUnregisterRemovesSession(t *testing.T) {
	m := NewManager()
	m.Register("s1", KindStdio, fakeSessionHandle("2024-11-05"))
	m.Unregister("s1")
	assert.Empty(t, m.List())
}
