package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestAllowAll(t *testing.T) {
	id, err := AllowAll{}.Authenticate(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Empty(t, id.UserID)
	assert.False(t, id.Authenticated)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestJWTAuthenticator(t *testing.T) {
	valid := signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)
	legacy := signToken(t, jwt.MapClaims{"userId": "u2"}, testSecret)
	expired := signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret)
	forged := signToken(t, jwt.MapClaims{"sub": "u1"}, []byte("other"))
	anonymous := signToken(t, jwt.MapClaims{"role": "guest"}, testSecret)

	tests := []struct {
		name     string
		token    string
		required bool
		wantUser string
		wantErr  bool
	}{
		{"valid subject", valid, false, "u1", false},
		{"userId claim", legacy, false, "u2", false},
		{"expired optional", expired, false, "", false},
		{"expired required", expired, true, "", true},
		{"forged optional", forged, false, "", false},
		{"forged required", forged, true, "", true},
		{"no subject required", anonymous, true, "", true},
		{"missing optional", "", false, "", false},
		{"missing required", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewJWTAuthenticator(testSecret, tt.required)
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}

			id, err := a.Authenticate(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, id.UserID)
			assert.Equal(t, tt.wantUser != "", id.Authenticated)
		})
	}
}
