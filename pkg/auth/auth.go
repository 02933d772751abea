package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a connection must carry a valid token and does not
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is what the gateway knows about the peer of a connection.
// An empty UserID means anonymous.
type Identity struct {
	UserID        string
	Authenticated bool
}

// Authenticator decides whether a connection may be opened and who opened it.
// This is the gateway's trust boundary.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// AllowAll accepts every connection as anonymous.
// Authentication is expected to happen in front of the gateway.
type AllowAll struct{}

func (AllowAll) Authenticate(*http.Request) (Identity, error) {
	return Identity{}, nil
}

// JWTAuthenticator reads an HS256 bearer token to label connections with a
// user ID. Unless required is set, a missing or invalid token still yields an
// anonymous connection.
type JWTAuthenticator struct {
	secret   []byte
	required bool
	parser   *jwt.Parser
}

// NewJWTAuthenticator creates an authenticator validating tokens with secret
func NewJWTAuthenticator(secret []byte, required bool) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:   secret,
		required: required,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return a.reject(errors.New("no token"))
	}

	userID, err := a.userID(raw)
	if err != nil {
		return a.reject(err)
	}
	return Identity{UserID: userID, Authenticated: true}, nil
}

func (a *JWTAuthenticator) reject(cause error) (Identity, error) {
	if a.required {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, cause)
	}
	return Identity{}, nil
}

func (a *JWTAuthenticator) userID(raw string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if id, ok := claims["userId"].(string); ok && id != "" {
		return id, nil
	}
	return "", errors.New("token carries no subject")
}

// TokenFromRequest returns the bearer token from the Authorization header or
// the token query parameter (browsers cannot set headers on WebSocket upgrades).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
