package httpauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerTokenHappyPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	token, err := ExtractBearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
}

func TestExtractBearerTokenCaseInsensitivePrefix(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer secret-token")
	token, err := ExtractBearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
}

func TestExtractBearerTokenMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractBearerToken(r)
	require.Error(t, err)
}

func TestExtractBearerTokenWrongScheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err := ExtractBearerToken(r)
	require.Error(t, err)
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	err := Authenticate(r, "correct")
	require.Error(t, err)
}

func TestAuthenticateAcceptsCorrectToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer correct")
	err := Authenticate(r, "correct")
	require.NoError(t, err)
}

func TestVerifyRejectsEmptySecret(t *testing.T) {
	assert.False(t, Verify("anything", ""))
}
