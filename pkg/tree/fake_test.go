package tree

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/content"
	"github.com/arborcms/arbor/pkg/observability"
	"github.com/arborcms/arbor/pkg/pathtree"
	"github.com/arborcms/arbor/pkg/storage"
)

// fakeStore is an in-memory Store with snapshot-rollback transactions, so
// mutator tests can verify all-or-nothing semantics without a database.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	entities map[int64]*PathEntity
	entries  map[int64]*DataEntry

	// lockedScopes records every LockScope call, keyed like scopeKey.
	lockedScopes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		entities: map[int64]*PathEntity{},
		entries:  map[int64]*DataEntry{},
	}
}

// seed inserts an entity directly, assigning its internal id.
func (s *fakeStore) seed(e PathEntity) *PathEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.InternalID = s.nextID
	s.nextID++
	if e.DeleteState == "" {
		e.DeleteState = NotDeleted
	}
	s.entities[e.InternalID] = &e
	return &e
}

func (s *fakeStore) snapshot() (map[int64]*PathEntity, map[int64]*DataEntry, int64) {
	ents := make(map[int64]*PathEntity, len(s.entities))
	for id, e := range s.entities {
		cp := *e
		ents[id] = &cp
	}
	entries := make(map[int64]*DataEntry, len(s.entries))
	for id, e := range s.entries {
		cp := *e
		entries[id] = &cp
	}
	return ents, entries, s.nextID
}

func (s *fakeStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ents, entries, nextID := s.snapshot()
	if err := fn(&fakeTx{s: s}); err != nil {
		s.entities, s.entries, s.nextID = ents, entries, nextID
		return err
	}
	return nil
}

func (s *fakeStore) GetByInternalID(ctx context.Context, kind Kind, id int64) (*PathEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(kind, id)
}

func (s *fakeStore) GetByExternalID(ctx context.Context, kind Kind, externalID string) (*PathEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities {
		if e.Kind == kind && e.ExternalID == externalID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) Find(ctx context.Context, kind Kind, filter Filter) ([]PathEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := map[DeleteState]bool{}
	for _, st := range filter.EffectiveDeleteStates() {
		states[st] = true
	}

	var out []PathEntity
	for _, e := range s.entities {
		if e.Kind != kind || !states[e.DeleteState] {
			continue
		}
		if filter.BeneathPath != "" &&
			!pathtree.IsDescendantPath(e.Path, filter.BeneathPath) {
			continue
		}
		if filter.Name != "" && e.Name != filter.Name {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (s *fakeStore) EntriesOf(ctx context.Context, folderID int64) ([]DataEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesOf(folderID), nil
}

func (s *fakeStore) get(kind Kind, id int64) (*PathEntity, error) {
	e, ok := s.entities[id]
	if !ok || e.Kind != kind {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) entriesOf(folderID int64) []DataEntry {
	var out []DataEntry
	for _, e := range s.entries {
		if e.FolderID == folderID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) GetByInternalID(ctx context.Context, kind Kind, id int64) (*PathEntity, error) {
	return t.s.get(kind, id)
}

func (t *fakeTx) LockForUpdate(ctx context.Context, kind Kind, id int64) (*PathEntity, error) {
	return t.s.get(kind, id)
}

func (t *fakeTx) LockScope(ctx context.Context, scope SiblingScope) error {
	t.s.lockedScopes = append(t.s.lockedScopes, scopeKey(scope))
	return nil
}

func (t *fakeTx) ChildrenOf(ctx context.Context, scope SiblingScope) ([]PathEntity, error) {
	var out []PathEntity
	for _, e := range t.s.entities {
		if e.Kind == scope.Kind && e.SiteID == scope.SiteID &&
			samePagetree(e.PagetreeID, scope.PagetreeID) && e.Path == scope.ParentPath {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (t *fakeTx) Subtree(ctx context.Context, kind Kind, e *PathEntity) ([]PathEntity, error) {
	rp := e.ResourcePath()
	var out []PathEntity
	for _, cand := range t.s.entities {
		if cand.Kind != kind {
			continue
		}
		if cand.InternalID == e.InternalID || pathtree.IsDescendantPath(cand.Path, rp) {
			out = append(out, *cand)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (t *fakeTx) Insert(ctx context.Context, e *PathEntity) error {
	for _, existing := range t.s.entities {
		if existing.Kind == e.Kind && existing.ExternalID == e.ExternalID {
			return fmt.Errorf("%w: duplicate external id %s", storage.ErrTransientConflict, e.ExternalID)
		}
	}
	e.InternalID = t.s.nextID
	t.s.nextID++
	cp := *e
	t.s.entities[e.InternalID] = &cp
	return nil
}

func (t *fakeTx) SetPlacement(ctx context.Context, kind Kind, id int64, path string, order int) error {
	e, ok := t.s.entities[id]
	if !ok || e.Kind != kind {
		return ErrNotFound
	}
	e.Path = path
	e.DisplayOrder = order
	return nil
}

func (t *fakeTx) RewriteDescendantPaths(ctx context.Context, kind Kind, oldPrefix, newPrefix string) error {
	for _, e := range t.s.entities {
		if e.Kind == kind && pathtree.IsDescendantPath(e.Path, oldPrefix) {
			e.Path = pathtree.ReplacePrefix(e.Path, oldPrefix, newPrefix)
		}
	}
	return nil
}

func (t *fakeTx) ShiftOrders(ctx context.Context, scope SiblingScope, fromOrder, delta int) error {
	for _, e := range t.s.entities {
		if e.Kind == scope.Kind && e.SiteID == scope.SiteID &&
			samePagetree(e.PagetreeID, scope.PagetreeID) &&
			e.Path == scope.ParentPath && e.DisplayOrder >= fromOrder {
			e.DisplayOrder += delta
		}
	}
	return nil
}

func (t *fakeTx) CompactOrders(ctx context.Context, scope SiblingScope) error {
	siblings, _ := t.ChildrenOf(ctx, scope)
	for i, sib := range siblings {
		t.s.entities[sib.InternalID].DisplayOrder = i + 1
	}
	return nil
}

func (t *fakeTx) StampSubtree(ctx context.Context, kind Kind, e *PathEntity, state DeleteState, actor string, at time.Time) error {
	rp := e.ResourcePath()
	for _, cand := range t.s.entities {
		if cand.Kind != kind {
			continue
		}
		if cand.InternalID == e.InternalID || pathtree.IsDescendantPath(cand.Path, rp) {
			cand.DeleteState = state
			stamp := at
			cand.DeletedAt = &stamp
			cand.DeletedBy = actor
		}
	}
	return nil
}

func (t *fakeTx) ClearDeleteState(ctx context.Context, kind Kind, ids []int64) error {
	for _, id := range ids {
		if e, ok := t.s.entities[id]; ok && e.Kind == kind {
			e.DeleteState = NotDeleted
			e.DeletedAt = nil
			e.DeletedBy = ""
		}
	}
	return nil
}

func (t *fakeTx) SetExternalID(ctx context.Context, kind Kind, id int64, externalID string) error {
	e, ok := t.s.entities[id]
	if !ok || e.Kind != kind {
		return ErrNotFound
	}
	e.ExternalID = externalID
	return nil
}

func (t *fakeTx) InsertEntry(ctx context.Context, entry *DataEntry) error {
	entry.InternalID = t.s.nextID
	t.s.nextID++
	cp := *entry
	t.s.entries[entry.InternalID] = &cp
	return nil
}

func (t *fakeTx) EntriesOf(ctx context.Context, folderID int64) ([]DataEntry, error) {
	return t.s.entriesOf(folderID), nil
}

// fakeRegistry answers template questions from fixed maps. A nil allowed
// map places no restriction.
type fakeRegistry struct {
	unknown map[string]bool
	allowed map[string]map[string]bool
}

func (r *fakeRegistry) IsTemplateKnown(ctx context.Context, key string) (bool, error) {
	return !r.unknown[key], nil
}

func (r *fakeRegistry) TemplateType(ctx context.Context, key string) (content.TemplateType, error) {
	return content.TemplatePage, nil
}

func (r *fakeRegistry) AllowedChildren(ctx context.Context, templateKey, areaName string) (map[string]bool, error) {
	if r.allowed == nil {
		return nil, nil
	}
	return r.allowed[templateKey], nil
}

// grantingRuleStore serves one path-scoped rule per kind anchored at the
// root with the given grants, so the whole tree is covered.
type grantingRuleStore struct {
	grants authz.Grants
}

func (s *grantingRuleStore) GetPrincipal(ctx context.Context, id string) (*authz.Principal, error) {
	return &authz.Principal{ID: id, Enabled: true}, nil
}

func (s *grantingRuleStore) DirectRoles(ctx context.Context, principalID string) ([]authz.Role, error) {
	return []authz.Role{{ID: 1, Name: "test-role"}}, nil
}

func (s *grantingRuleStore) GroupsOf(ctx context.Context, principalID string) ([]int64, error) {
	return nil, nil
}

func (s *grantingRuleStore) RolesForGroups(ctx context.Context, groupIDs []int64) ([]authz.Role, error) {
	return nil, nil
}

func (s *grantingRuleStore) RulesForRoles(ctx context.Context, kind authz.RuleKind, roleIDs []int64) ([]authz.Rule, error) {
	if !kind.PathScoped() {
		return nil, nil
	}
	return []authz.Rule{{
		Kind:   kind,
		RoleID: 1,
		Path:   pathtree.Root,
		Mode:   authz.ModeSelfAndSub,
		Grants: s.grants,
	}}, nil
}

func (s *grantingRuleStore) LoadGroupGraph(ctx context.Context) ([]authz.Group, []authz.GroupEdge, error) {
	return nil, nil, nil
}

// authzContext builds a request context carrying an authorization service
// whose rules grant exactly the given capabilities everywhere.
func authzContext(t *testing.T, grants authz.Grants) context.Context {
	t.Helper()
	store := &grantingRuleStore{grants: grants}
	groups := authz.NewGroupService(store, time.Minute, 5*time.Minute)
	svc, err := authz.NewServiceFactory(store, groups, "").ForPrincipal(context.Background(), "tester")
	if err != nil {
		t.Fatalf("Failed to build authorization service: %v", err)
	}
	return authz.WithService(context.Background(), svc)
}

func allGrants() authz.Grants {
	return authz.Grants{
		authz.GrantCreate:   true,
		authz.GrantUpdate:   true,
		authz.GrantMove:     true,
		authz.GrantDelete:   true,
		authz.GrantUndelete: true,
		authz.GrantView:     true,
	}
}

// sequenceIDs returns an id generator yielding the given values, then
// falling back to generated ones.
func sequenceIDs(ids ...string) func() string {
	i := 0
	return func() string {
		if i < len(ids) {
			id := ids[i]
			i++
			return id
		}
		i++
		return fmt.Sprintf("generated-%d", i)
	}
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestMutator(store Store) *Mutator {
	m := NewMutator(store, &fakeRegistry{}, nil, testLogger())
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.newID = sequenceIDs()
	return m
}

// seedTree builds a parent with n children and returns them. The parent
// sits at the tree root of site 1.
func seedTree(s *fakeStore, kind Kind, childNames ...string) (*PathEntity, []*PathEntity) {
	parent := s.seed(PathEntity{
		Kind: kind, ExternalID: "parent", Path: pathtree.Root,
		Name: "parent", DisplayOrder: 1, SiteID: 1, TemplateKey: "folder",
	})
	children := make([]*PathEntity, len(childNames))
	for i, name := range childNames {
		children[i] = s.seed(PathEntity{
			Kind: kind, ExternalID: "child-" + name, Path: parent.ResourcePath(),
			Name: name, DisplayOrder: i + 1, SiteID: 1, TemplateKey: "page",
		})
	}
	return parent, children
}

func entityNames(entities []PathEntity) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names
}

func namesJoined(entities []PathEntity) string {
	return strings.Join(entityNames(entities), ",")
}
