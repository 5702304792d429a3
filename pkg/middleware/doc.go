// Package middleware provides HTTP middleware for session authentication and rate limiting.
//
// # Overview
//
// This package implements request processing middleware: bearer session token
// authentication against the gateway and Redis-backed rate limiting shared
// across instances.
//
// # Middleware Components
//
// SessionAuth: Bearer session token authentication
//
//	auth := middleware.NewSessionAuth(gatewayService)
//	router.Use(auth.Handler)
//	// Validates the token, adds the user to the request context
//
// RateLimiter: Redis-backed per-client-IP rate limiting
//
//	limiter := middleware.NewRateLimiter(redisClient, middleware.LoginRateLimitConfig(), "ratelimit:login")
//	router.Use(limiter.Handler)
//
// # Status Codes
//
// SessionAuth distinguishes failure modes so clients can react correctly:
// 401 for a missing or expired session, 403 for a blocked user, 500 for a
// store failure.
//
// # Related Packages
//
//   - pkg/gateway: Session token resolution
//   - pkg/contextkeys: Context key definitions
package middleware
