package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioServeRoundTripsFrames(t *testing.T) {
	session := newFakeSession()
	manager := NewManager()
	server := NewStdioServer(session, manager, nil)

	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}` + "\n",
	)
	var out bytes.Buffer

	err := server.Serve(context.Background(), input, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"protocolVersion"`)
	assert.Contains(t, lines[1], `"tools"`)
}

func TestStdioServeSkipsBlankLines(t *testing.T) {
	session := newFakeSession()
	manager := NewManager()
	server := NewStdioServer(session, manager, nil)

	input := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n\n")
	var out bytes.Buffer

	err := server.Serve(context.Background(), input, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
}

func TestStdioServeStopsOnContextCancellation(t *testing.T) {
	session := newFakeSession()
	manager := NewManager()
	server := NewStdioServer(session, manager, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n")
	var out bytes.Buffer

	err := server.Serve(ctx, input, &out)
	require.Error(t, err)
}
