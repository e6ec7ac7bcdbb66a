package authz

import "errors"

var (
	// ErrUnauthorized means the principal's effective rules do not grant the
	// requested permission. Never silently degraded.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPrincipalNotFound means the principal id does not resolve to a
	// known (enabled or disabled) principal.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrPrincipalDisabled means the principal exists but is disabled.
	ErrPrincipalDisabled = errors.New("principal disabled")

	// ErrNoAuthorizer means a mutation was attempted without a request-scoped
	// authorization service in the context. Treated as a programming error
	// and always fails closed.
	ErrNoAuthorizer = errors.New("no authorization service in request context")
)
