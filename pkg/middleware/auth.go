package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/ingresso/pkg/contextkeys"
	"github.com/platinummonkey/ingresso/pkg/gateway"
	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/session"
)

// Authenticator resolves a bearer session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (*identity.User, error)
}

// SessionAuth validates the Authorization bearer token against the session
// store and puts the resolved user on the request context.
type SessionAuth struct {
	gateway Authenticator
}

// NewSessionAuth creates a new session authentication middleware
func NewSessionAuth(gw Authenticator) *SessionAuth {
	return &SessionAuth{gateway: gw}
}

// Handler wraps an HTTP handler with session authentication. A missing or
// unknown token is 401, a blocked user is 403 and a store failure is 500:
// callers must be able to tell an expired session from an outage.
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}
		token := parts[1]

		user, err := m.gateway.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNotFound):
				unauthorizedResponse(w, "invalid or expired session")
			case errors.Is(err, gateway.ErrBlocked):
				forbiddenResponse(w, "user is blocked")
			default:
				internalErrorResponse(w, "session lookup failed")
			}
			return
		}

		ctx := contextkeys.WithSessionUser(r.Context(), user)
		ctx = contextkeys.WithSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionUser extracts the authenticated user from the request
func GetSessionUser(r *http.Request) *identity.User {
	user, ok := contextkeys.GetSessionUser(r.Context()).(*identity.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionToken extracts the bearer session token from the request
func GetSessionToken(r *http.Request) string {
	return contextkeys.GetSessionToken(r.Context())
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func internalErrorResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
