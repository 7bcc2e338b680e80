package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/barbersync/barbersync/internal/api/models"
)

// serviceSubjectKey is the context key for the authenticated service subject.
type serviceSubjectKey struct{}

// ServiceAuth creates authentication middleware that validates HS256 bearer
// tokens issued to internal services. The status endpoint is the only
// authenticated route on the ops surface.
func ServiceAuth(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			subject, err := validateServiceToken(tokenString, signingKey)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					writeUnauthorized(w, r, "service token has expired")
				default:
					writeUnauthorized(w, r, "invalid service token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), serviceSubjectKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateServiceToken parses and verifies an HS256 token and returns its subject.
func validateServiceToken(tokenString string, signingKey []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return subject, nil
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetServiceSubject retrieves the authenticated service subject from the context.
// Returns an empty string if not authenticated.
func GetServiceSubject(ctx context.Context) string {
	if subject, ok := ctx.Value(serviceSubjectKey{}).(string); ok {
		return subject
	}
	return ""
}
