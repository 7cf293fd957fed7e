package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestRoundTrips(t *testing.T) {
	req, err := NewRequest(float64(1), "tools/call", map[string]string{"name": "search_partners"})
	require.NoError(t, err)

	data, err := Marshal(req)
	require.NoError(t, err)

	parsed, err := ParseRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "tools/call", parsed.Method)
	assert.False(t, parsed.IsNotification())

	var params map[string]string
	require.NoError(t, parsed.UnmarshalParams(&params))
	assert.Equal(t, "search_partners", params["name"])
}

func TestNewRequestWithNilIDIsNotification(t *testing.T) {
	req, err := NewRequest(nil, "notifications/cancelled", nil)
	require.NoError(t, err)
	assert.True(t, req.IsNotification())
}

func TestParseRequestRejectsWrongVersion(t *testing.T) {
	_, err := ParseRequest([]byte(`{"jsonrpc":"1.0","method":"ping","id":1}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestParseRequestRejectsMissingMethod(t *testing.T) {
	_, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":1}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestNewResultRoundTrips(t *testing.T) {
	id := NewID(float64(7))
	resp, err := NewResult(id, map[string]int{"count": 3})
	require.NoError(t, err)

	data, err := Marshal(resp)
	require.NoError(t, err)

	var parsed Response
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, id.String(), parsed.ID.String())
	assert.Nil(t, parsed.Error)
}

func TestNewErrorSetsCodeAndMessage(t *testing.T) {
	id := NewID("abc")
	resp := NewError(id, CodeMethodNotFound, "unknown tool", map[string]string{"tool": "ghost"})
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "unknown tool", resp.Error.Message)
	assert.NotNil(t, resp.Error.Data)
}

func TestIDZeroValueIsNotification(t *testing.T) {
	var id ID
	assert.True(t, id.IsZero())
	assert.Equal(t, "", id.String())
}
