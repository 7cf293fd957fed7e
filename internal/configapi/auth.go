package configapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtIssuer = "odoo-mcp-configapi"

// loginClaims is the config UI's own session token, distinct from the
// opaque MCP_AUTH_TOKEN bearer used by the MCP transports.
type loginClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// issueLoginToken signs a short-lived HS256 token for username,
// grounded on the gateway's JWTConfig/GenerateJWT pattern but
// simplified to the single symmetric-key case: this config UI has no
// need for the asymmetric EdDSA branch.
func issueLoginToken(secret []byte, username string) (string, error) {
	claims := loginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("configapi: sign login token: %w", err)
	}
	return signed, nil
}

func validateLoginToken(tokenString string, secret []byte) (*loginClaims, error) {
	parser := jwt.NewParser(jwt.WithLeeway(5 * time.Second))
	token, err := parser.ParseWithClaims(tokenString, &loginClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("configapi: parse login token: %w", err)
	}
	claims, ok := token.Claims.(*loginClaims)
	if !ok || !token.Valid || claims.Issuer != jwtIssuer {
		return nil, fmt.Errorf("configapi: invalid login token")
	}
	return claims, nil
}

// requireAuth wraps handler with login-token enforcement. It is
// applied to every /api/config/* route except /login itself.
func (a *API) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if _, err := validateLoginToken(token, a.state.JWTSigningSecret()); err != nil {
			http.Error(w, "invalid or expired session token", http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}
}

func extractBearer(r *http.Request) (string, error) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", fmt.Errorf("missing or malformed Authorization header")
	}
	return auth[len(prefix):], nil
}
