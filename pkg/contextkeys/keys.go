// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/platinummonkey/ingresso/pkg/contextkeys"
//   ctx = contextkeys.WithSessionUser(ctx, user)
//   user := contextkeys.GetSessionUser(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionUserKey contains the authenticated session user
	// Set by: middleware.SessionAuth (pkg/middleware/auth.go)
	// Required by: All session-protected API endpoints
	// Type: *identity.User
	SessionUserKey Key = "session_user"

	// SessionTokenKey contains the bearer session token string
	// Set by: middleware.SessionAuth after validating the Authorization header
	// Used by: Logout handler, which deletes the token's session bundle
	// Type: string
	SessionTokenKey Key = "session_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"
)

// Helper functions for type-safe context operations

// WithSessionUser adds the authenticated user to the context. The value is
// stored as interface{} so this package stays free of domain imports.
func WithSessionUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, SessionUserKey, user)
}

// WithSessionToken adds the bearer session token to the context
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, SessionTokenKey, token)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetSessionUser retrieves the authenticated user from context
func GetSessionUser(ctx context.Context) interface{} {
	return ctx.Value(SessionUserKey)
}

// GetSessionToken retrieves the bearer session token from context
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
