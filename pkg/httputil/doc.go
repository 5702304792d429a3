// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, user)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Session expired")
//	httputil.WriteForbidden(w, "User is blocked")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req BlockUserRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	fiscalCode, ok := httputil.ParsePathStringOrError(w, r, "fiscalCode")
//
// Query parameters:
//
//	entityID := httputil.ParseQueryString(r, "entityID", "")
//
// # Validation
//
//	if !httputil.RequireNonEmpty(w, entityID, "entityID") {
//		return
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(256*1024),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Session authentication and rate limiting middleware
package httputil
