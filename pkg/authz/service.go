package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/arborcms/arbor/pkg/contextkeys"
)

// RuleStore is the read surface the service needs. Satisfied by *Store.
type RuleStore interface {
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	DirectRoles(ctx context.Context, principalID string) ([]Role, error)
	GroupsOf(ctx context.Context, principalID string) ([]int64, error)
	RolesForGroups(ctx context.Context, groupIDs []int64) ([]Role, error)
	RulesForRoles(ctx context.Context, kind RuleKind, roleIDs []int64) ([]Rule, error)
}

// Service is the request-scoped authorization façade. It resolves the
// principal's effective role set once, loads each rule kind at most once,
// and answers HavePermission by OR-aggregating applicable rules.
//
// A Service must never be shared across requests or principals; the
// memoized state belongs to one logical request.
type Service struct {
	store     RuleStore
	groups    *GroupService
	principal Principal
	renderID  string

	mu          sync.Mutex
	roles       []Role
	rolesLoaded bool
	rules       map[RuleKind][]Rule
}

// ServiceFactory builds per-request Services from shared collaborators.
type ServiceFactory struct {
	store    RuleStore
	groups   *GroupService
	renderID string
}

// NewServiceFactory wires the shared store and group cache. renderID is the
// designated render/service principal id; empty disables the bypass.
func NewServiceFactory(store RuleStore, groups *GroupService, renderID string) *ServiceFactory {
	return &ServiceFactory{store: store, groups: groups, renderID: renderID}
}

// ForPrincipal resolves the principal and builds a request-scoped Service.
// Disabled principals are rejected here so no later check can forget.
func (f *ServiceFactory) ForPrincipal(ctx context.Context, principalID string) (*Service, error) {
	p, err := f.store.GetPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !p.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrPrincipalDisabled, principalID)
	}
	return &Service{
		store:     f.store,
		groups:    f.groups,
		principal: *p,
		renderID:  f.renderID,
		rules:     make(map[RuleKind][]Rule),
	}, nil
}

// Principal returns the principal this service was built for.
func (s *Service) Principal() Principal {
	return s.principal
}

// isRenderPrincipal reports whether the designated non-interactive render
// identity is acting. The render bypass covers the view grant only.
func (s *Service) isRenderPrincipal() bool {
	return s.renderID != "" && s.principal.ID == s.renderID
}

// EffectiveRoles returns the principal's direct roles plus every role held
// by a group the principal is in, directly or through ancestor groups.
// Deduplicated by role id and memoized for the request.
func (s *Service) EffectiveRoles(ctx context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveRolesLocked(ctx)
}

func (s *Service) effectiveRolesLocked(ctx context.Context) ([]Role, error) {
	if s.rolesLoaded {
		return s.roles, nil
	}

	direct, err := s.store.DirectRoles(ctx, s.principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve direct roles: %w", err)
	}

	groupIDs, err := s.store.GroupsOf(ctx, s.principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group memberships: %w", err)
	}

	var groupRoles []Role
	if len(groupIDs) > 0 {
		// Group-derived permissions are unavailable if the graph cannot be
		// loaded. Fail closed.
		graph, err := s.groups.Graph(ctx)
		if err != nil {
			return nil, err
		}

		all := make(map[int64]struct{}, len(groupIDs))
		for _, id := range groupIDs {
			all[id] = struct{}{}
			for anc := range graph.AncestorsOf(id) {
				all[anc] = struct{}{}
			}
		}
		ids := make([]int64, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}

		groupRoles, err = s.store.RolesForGroups(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group roles: %w", err)
		}
	}

	seen := make(map[int64]struct{}, len(direct)+len(groupRoles))
	roles := make([]Role, 0, len(direct)+len(groupRoles))
	for _, r := range direct {
		if _, ok := seen[r.ID]; !ok {
			seen[r.ID] = struct{}{}
			roles = append(roles, r)
		}
	}
	for _, r := range groupRoles {
		if _, ok := seen[r.ID]; !ok {
			seen[r.ID] = struct{}{}
			roles = append(roles, r)
		}
	}

	s.roles = roles
	s.rolesLoaded = true
	return roles, nil
}

// rulesOf loads and memoizes the flattened rule list of one kind across the
// effective role set.
func (s *Service) rulesOf(ctx context.Context, kind RuleKind) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rules, ok := s.rules[kind]; ok {
		return rules, nil
	}

	roles, err := s.effectiveRolesLocked(ctx)
	if err != nil {
		return nil, err
	}

	roleIDs := make([]int64, len(roles))
	for i, r := range roles {
		roleIDs[i] = r.ID
	}

	rules, err := s.store.RulesForRoles(ctx, kind, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rules: %w", kind, err)
	}
	s.rules[kind] = rules
	return rules, nil
}

// HavePermission reports whether any applicable rule grants the named
// capability on the resource. Targets marked for delete additionally demand
// the delete grant; finalized targets demand undelete.
func (s *Service) HavePermission(ctx context.Context, res Resource, grant string) (bool, error) {
	if s.isRenderPrincipal() && grant == GrantView && res.Kind.PathScoped() {
		return true, nil
	}

	rules, err := s.rulesOf(ctx, res.Kind)
	if err != nil {
		return false, err
	}

	if !GrantedAny(rules, res, grant) {
		return false, nil
	}
	return s.deleteStatePermitted(rules, res, grant), nil
}

// MayView is HavePermission for the view grant, widened so containers light
// up when children are individually visible and ancestors of a permitted
// path stay browsable.
func (s *Service) MayView(ctx context.Context, res Resource) (bool, error) {
	if s.isRenderPrincipal() && res.Kind.PathScoped() {
		return true, nil
	}

	rules, err := s.rulesOf(ctx, res.Kind)
	if err != nil {
		return false, err
	}

	visible := GrantedAny(rules, res, GrantView) ||
		ViewableAsContainer(rules, res, GrantView)
	if !visible {
		return false, nil
	}
	return s.deleteStatePermitted(rules, res, GrantView), nil
}

func (s *Service) deleteStatePermitted(rules []Rule, res Resource, grant string) bool {
	if res.MarkedForDelete && grant != GrantDelete && !GrantedAny(rules, res, GrantDelete) {
		return false
	}
	if res.Deleted && grant != GrantUndelete && !GrantedAny(rules, res, GrantUndelete) {
		return false
	}
	return true
}

// Require is HavePermission that converts a false answer into
// ErrUnauthorized, for call sites where denial aborts the operation.
func (s *Service) Require(ctx context.Context, res Resource, grant string) error {
	ok, err := s.HavePermission(ctx, res, grant)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: principal %s lacks %s on %s %s",
			ErrUnauthorized, s.principal.ID, grant, res.Kind, res.Path)
	}
	return nil
}

// WithService attaches a request-scoped service to the context.
func WithService(ctx context.Context, s *Service) context.Context {
	return context.WithValue(ctx, contextkeys.AuthorizerKey, s)
}

// FromContext retrieves the request's authorization service. Callers must
// treat a nil result as an unauthorized request, never as a bypass.
func FromContext(ctx context.Context) (*Service, error) {
	if s, ok := ctx.Value(contextkeys.AuthorizerKey).(*Service); ok && s != nil {
		return s, nil
	}
	return nil, ErrNoAuthorizer
}
