package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/contextkeys"
)

type stubRuleStore struct {
	principals map[string]*authz.Principal
}

func (s *stubRuleStore) GetPrincipal(ctx context.Context, id string) (*authz.Principal, error) {
	p, ok := s.principals[id]
	if !ok {
		return nil, authz.ErrPrincipalNotFound
	}
	return p, nil
}

func (s *stubRuleStore) DirectRoles(ctx context.Context, principalID string) ([]authz.Role, error) {
	return nil, nil
}

func (s *stubRuleStore) GroupsOf(ctx context.Context, principalID string) ([]int64, error) {
	return nil, nil
}

func (s *stubRuleStore) RolesForGroups(ctx context.Context, groupIDs []int64) ([]authz.Role, error) {
	return nil, nil
}

func (s *stubRuleStore) RulesForRoles(ctx context.Context, kind authz.RuleKind, roleIDs []int64) ([]authz.Rule, error) {
	return nil, nil
}

func newTestPrincipalMiddleware() *PrincipalMiddleware {
	store := &stubRuleStore{principals: map[string]*authz.Principal{
		"alice":   {ID: "alice", Enabled: true},
		"mallory": {ID: "mallory", Enabled: false},
	}}
	factory := authz.NewServiceFactory(store, nil, "")
	return NewPrincipalMiddleware(factory)
}

func TestPrincipalMiddleware_AttachesService(t *testing.T) {
	m := newTestPrincipalMiddleware()

	var gotPrincipal string
	var hadService bool
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal = contextkeys.GetPrincipalID(r.Context())
		_, err := authz.FromContext(r.Context())
		hadService = err == nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set(PrincipalHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if gotPrincipal != "alice" {
		t.Errorf("Expected principal id in context, got %q", gotPrincipal)
	}
	if !hadService {
		t.Error("Expected authorization service in context")
	}
}

func TestPrincipalMiddleware_MissingHeader(t *testing.T) {
	m := newTestPrincipalMiddleware()

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run without a principal")
	}))

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestPrincipalMiddleware_UnknownPrincipal(t *testing.T) {
	m := newTestPrincipalMiddleware()

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run for an unknown principal")
	}))

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set(PrincipalHeader, "nobody")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestPrincipalMiddleware_DisabledPrincipal(t *testing.T) {
	m := newTestPrincipalMiddleware()

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run for a disabled principal")
	}))

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set(PrincipalHeader, "mallory")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}
