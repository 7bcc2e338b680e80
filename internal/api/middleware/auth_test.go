package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barbersync/barbersync/internal/api/middleware"
)

var testSigningKey = []byte("test-signing-key-for-service-auth")

func signServiceToken(t *testing.T, key []byte, subject string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func authProtected() http.Handler {
	return middleware.ServiceAuth(testSigningKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(middleware.GetServiceSubject(r.Context())))
	}))
}

func TestServiceAuth_ValidToken(t *testing.T) {
	token := signServiceToken(t, testSigningKey, "scheduler", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	authProtected().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scheduler", rec.Body.String())
}

func TestServiceAuth_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	rec := httptest.NewRecorder()

	authProtected().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestServiceAuth_MalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()

	authProtected().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization header format")
}

func TestServiceAuth_ExpiredToken(t *testing.T) {
	token := signServiceToken(t, testSigningKey, "scheduler", time.Now().Add(-time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	authProtected().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "service token has expired")
}

func TestServiceAuth_WrongKey(t *testing.T) {
	token := signServiceToken(t, []byte("another-key"), "scheduler", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	authProtected().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid service token")
}

func TestServiceAuth_MissingSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(testSigningKey)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	authProtected().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetServiceSubject_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetServiceSubject(req.Context()))
}
