// Package configapi implements ConfigHttpApi: the authenticated REST
// surface for reading/writing ConfigStore documents and toggling the
// gateway's bearer-auth settings.
package configapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/tombee/odoo-mcp/internal/config"
)

const (
	argon2Time        = 3
	argon2Memory      = 64 * 1024
	argon2Parallelism = 4
	argon2KeyLength   = 32
	saltLength        = 16
	jwtSecretLength   = 32

	stateFilename = "auth-state.json"
)

// authStateWire is the on-disk shape of the auth state file.
type authStateWire struct {
	MCPAuthEnabled   bool   `json:"mcpAuthEnabled"`
	MCPAuthToken     string `json:"mcpAuthToken"`
	Username         string `json:"username"`
	PasswordSalt     []byte `json:"passwordSalt"`
	PasswordHash     []byte `json:"passwordHash"`
	JWTSigningSecret []byte `json:"jwtSigningSecret"`
}

// AuthState persists the gateway's bearer-auth settings (MCP transport
// token + config UI login credentials) to a JSON file in the config
// directory, separately from ConfigStore's four documents: this is
// ConfigHttpApi's own bookkeeping, not something Registry reloads.
// It satisfies transport.AuthProvider.
type AuthState struct {
	path string

	mu    sync.RWMutex
	state authStateWire
}

// LoadAuthState reads dir/auth-state.json, seeding it from
// CONFIG_UI_USERNAME/CONFIG_UI_PASSWORD/MCP_AUTH_ENABLED/MCP_AUTH_TOKEN
// on first run since the config UI is not permitted to rewrite the
// process environment.
func LoadAuthState(dir string) (*AuthState, error) {
	path := filepath.Join(dir, stateFilename)
	s := &AuthState{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, s.seedFromEnvironment()
	}
	if err != nil {
		return nil, fmt.Errorf("configapi: read auth state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("configapi: parse auth state: %w", err)
	}
	return s, nil
}

func (s *AuthState) seedFromEnvironment() error {
	settings := config.LiveSettings()
	s.state.MCPAuthEnabled = settings["MCP_AUTH_ENABLED"] == "true" || settings["MCP_AUTH_ENABLED"] == "1"
	s.state.MCPAuthToken = settings["MCP_AUTH_TOKEN"]
	s.state.Username = settings["CONFIG_UI_USERNAME"]

	secret, err := randomBytes(jwtSecretLength)
	if err != nil {
		return err
	}
	s.state.JWTSigningSecret = secret

	if password := settings["CONFIG_UI_PASSWORD"]; password != "" {
		if err := s.setPasswordLocked(password); err != nil {
			return err
		}
	}
	return s.saveLocked()
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("configapi: generate random bytes: %w", err)
	}
	return b, nil
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
}

// AuthSnapshot implements transport.AuthProvider.
func (s *AuthState) AuthSnapshot() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.MCPAuthEnabled, s.state.MCPAuthToken
}

// Status reports the current MCP bearer-auth toggle plus whether an MCP
// bearer token is set, generated or seeded from MCP_AUTH_TOKEN
// (GET /api/config/auth/status).
func (s *AuthState) Status() (enabled bool, hasToken bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.MCPAuthEnabled, s.state.MCPAuthToken != ""
}

// SetEnabled toggles MCP bearer-auth enforcement (POST /api/config/auth/enable).
func (s *AuthState) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MCPAuthEnabled = enabled
	return s.saveLocked()
}

// GenerateToken issues a new random MCP bearer token and persists it
// (POST /api/config/auth/token/generate).
func (s *AuthState) GenerateToken() (string, error) {
	raw, err := randomBytes(24)
	if err != nil {
		return "", err
	}
	token := fmt.Sprintf("%x", raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MCPAuthToken = token
	if err := s.saveLocked(); err != nil {
		return "", err
	}
	return token, nil
}

// SetCredentials updates the config UI's own login username/password
// (POST /api/config/auth/credentials).
func (s *AuthState) SetCredentials(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Username = username
	if password != "" {
		if err := s.setPasswordLocked(password); err != nil {
			return err
		}
	}
	return s.saveLocked()
}

func (s *AuthState) setPasswordLocked(password string) error {
	salt, err := randomBytes(saltLength)
	if err != nil {
		return err
	}
	s.state.PasswordSalt = salt
	s.state.PasswordHash = hashPassword(password, salt)
	return nil
}

// VerifyLogin checks username/password against the persisted
// credentials in constant time.
func (s *AuthState) VerifyLogin(username, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Username == "" || len(s.state.PasswordHash) == 0 {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.state.Username)) != 1 {
		return false
	}
	candidate := hashPassword(password, s.state.PasswordSalt)
	return subtle.ConstantTimeCompare(candidate, s.state.PasswordHash) == 1
}

// JWTSigningSecret returns the key used to sign config UI login tokens.
func (s *AuthState) JWTSigningSecret() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.JWTSigningSecret
}

func (s *AuthState) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("configapi: marshal auth state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("configapi: write auth state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("configapi: rename auth state: %w", err)
	}
	return nil
}
