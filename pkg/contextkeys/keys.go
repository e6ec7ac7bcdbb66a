// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthorizerKey contains the request-scoped *authz.Service.
	// Set by: middleware.PrincipalMiddleware (pkg/middleware/principal.go)
	// Required by: all mutation handlers and the tree mutator
	AuthorizerKey Key = "authorizer"

	// PrincipalIDKey contains the verified principal id string.
	// Set by: middleware.PrincipalMiddleware
	// Used by: audit stamps, logger enrichment
	PrincipalIDKey Key = "principal_id"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestIDMiddleware
	// Used by: logger, response headers
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger enriched with request fields.
	// Set by: middleware.RequestIDMiddleware
	LoggerKey Key = "logger"
)

// WithPrincipalID adds the verified principal id to the context
func WithPrincipalID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, PrincipalIDKey, principalID)
}

// GetPrincipalID retrieves the principal id from context
func GetPrincipalID(ctx context.Context) string {
	if id, ok := ctx.Value(PrincipalIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
