package middleware

import (
	"errors"
	"net/http"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/contextkeys"
	"github.com/arborcms/arbor/pkg/httputil"
)

// PrincipalHeader carries the verified principal id. Authentication itself
// happens upstream (SSO proxy); this service trusts the header.
const PrincipalHeader = "X-Arbor-Principal"

// PrincipalMiddleware resolves the acting principal and attaches a
// request-scoped authorization service to the context. Requests without a
// principal are rejected; handlers never see an unauthenticated context.
type PrincipalMiddleware struct {
	factory *authz.ServiceFactory
}

// NewPrincipalMiddleware creates the principal resolution middleware
func NewPrincipalMiddleware(factory *authz.ServiceFactory) *PrincipalMiddleware {
	return &PrincipalMiddleware{factory: factory}
}

// Handler wraps an HTTP handler with principal resolution
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID := r.Header.Get(PrincipalHeader)
		if principalID == "" {
			httputil.WriteUnauthorized(w, "missing principal header")
			return
		}

		svc, err := m.factory.ForPrincipal(r.Context(), principalID)
		if err != nil {
			switch {
			case errors.Is(err, authz.ErrPrincipalNotFound):
				httputil.WriteUnauthorized(w, "unknown principal")
			case errors.Is(err, authz.ErrPrincipalDisabled):
				httputil.WriteForbidden(w, "principal is disabled")
			default:
				httputil.WriteInternalError(w, err)
			}
			return
		}

		ctx := contextkeys.WithPrincipalID(r.Context(), principalID)
		ctx = authz.WithService(ctx, svc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
