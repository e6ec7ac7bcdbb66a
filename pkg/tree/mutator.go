package tree

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/content"
	"github.com/arborcms/arbor/pkg/observability"
	"github.com/arborcms/arbor/pkg/pathtree"
	"github.com/arborcms/arbor/pkg/storage"
)

// Grant names shared with the authorization rules.
const (
	grantCreate   = authz.GrantCreate
	grantMove     = authz.GrantMove
	grantView     = authz.GrantView
	grantDelete   = authz.GrantDelete
	grantUndelete = authz.GrantUndelete
)

// tempOrderBase parks moved rows past any real display order until the
// destination list is renumbered.
const tempOrderBase = 1 << 30

// Mutator executes create, move, copy, delete and undelete as single
// transactions. Every operation authorizes against the request's
// authorization service before touching the tree, and leaves the tree
// unmodified on failure.
type Mutator struct {
	store    Store
	registry content.TemplateRegistry
	cache    *EntityCache
	log      *observability.Logger

	now   func() time.Time
	newID func() string
}

// NewMutator wires the mutator. cache may be nil when no entity cache is
// configured.
func NewMutator(store Store, registry content.TemplateRegistry, cache *EntityCache, log *observability.Logger) *Mutator {
	return &Mutator{
		store:    store,
		registry: registry,
		cache:    cache,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// destination is the resolved placement of a create, move or copy: the
// parent's sibling scope, the parent itself when it is a tree entity, and
// the sibling the batch goes above, if any.
type destination struct {
	parent *PathEntity
	above  *PathEntity
	scope  SiblingScope
}

// resolveDestination turns (targetID, above) into a locked placement. With
// above=false the target is the parent; with above=true the target is a
// sibling and its parent is resolved from the sibling's path. The parent row
// is locked so concurrent writers against the same sibling list serialize;
// a root-level sibling has no parent row, so its scope is locked instead.
func (m *Mutator) resolveDestination(ctx context.Context, tx Tx, kind Kind, targetID int64, above bool) (*destination, error) {
	if !above {
		parent, err := tx.LockForUpdate(ctx, kind, targetID)
		if err != nil {
			return nil, err
		}
		return &destination{parent: parent, scope: ScopeOf(parent)}, nil
	}

	sibling, err := tx.GetByInternalID(ctx, kind, targetID)
	if err != nil {
		return nil, err
	}

	dest := &destination{
		above: sibling,
		scope: SiblingScope{
			Kind:       kind,
			SiteID:     sibling.SiteID,
			PagetreeID: sibling.PagetreeID,
			ParentPath: sibling.Path,
		},
	}
	if parentID := pathtree.LastSegment(sibling.Path); parentID != 0 {
		parent, err := tx.LockForUpdate(ctx, kind, parentID)
		if err != nil {
			return nil, err
		}
		dest.parent = parent
	} else if err := tx.LockScope(ctx, dest.scope); err != nil {
		return nil, err
	}
	return dest, nil
}

// createResource is the permission target for placing something under the
// destination: the parent entity when there is one, otherwise the root of
// the sibling scope.
func (d *destination) createResource(kind Kind) authz.Resource {
	if d.parent != nil {
		return d.parent.Resource()
	}
	siteID := d.scope.SiteID
	var pt *authz.PagetreeType
	if d.above != nil {
		pt = d.above.PagetreeType
	}
	return authz.Resource{
		Kind:     kind.RuleKind(),
		SiteID:   &siteID,
		Path:     d.scope.ParentPath,
		Pagetree: pt,
	}
}

// CreateRequest describes one new entity. With Above=false TargetID is the
// parent; with Above=true it is the sibling the new entity is placed above.
type CreateRequest struct {
	Kind        Kind
	TargetID    int64
	Above       bool
	Name        string
	TemplateKey string
	Actor       string
}

// Create inserts a new entity under the resolved parent. Sibling-name
// conflicts and unknown templates come back as a ValidationError rather
// than a failure; duplicate generated identifiers are retried once with a
// fresh identifier.
func (m *Mutator) Create(ctx context.Context, req CreateRequest) (*PathEntity, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var created *PathEntity
	err = storage.RetryTransient(ctx, func(ctx context.Context) error {
		return m.store.InTx(ctx, func(tx Tx) error {
			dest, err := m.resolveDestination(ctx, tx, req.Kind, req.TargetID, req.Above)
			if err != nil {
				return err
			}
			if err := svc.Require(ctx, dest.createResource(req.Kind), grantCreate); err != nil {
				return err
			}

			var messages []ValidationMessage
			if req.Name == "" {
				messages = append(messages, ValidationMessage{Path: "name", Message: "name must not be empty"})
			}
			if msg := m.checkTemplate(ctx, dest.parent, req.TemplateKey); msg != nil {
				messages = append(messages, *msg)
			}

			siblings, err := tx.ChildrenOf(ctx, dest.scope)
			if err != nil {
				return err
			}
			if nameTaken(siblings, req.Name) {
				messages = append(messages, ValidationMessage{
					Path:    "name",
					Message: fmt.Sprintf("an entity named %q already exists here", req.Name),
				})
			}
			if len(messages) > 0 {
				return &ValidationError{Messages: messages}
			}

			order := len(siblings) + 1
			if req.Above {
				order = dest.above.DisplayOrder
				if err := tx.ShiftOrders(ctx, dest.scope, order, 1); err != nil {
					return err
				}
			}

			e := &PathEntity{
				Kind:         req.Kind,
				ExternalID:   m.newID(),
				Path:         dest.scope.ParentPath,
				Name:         req.Name,
				DisplayOrder: order,
				DeleteState:  NotDeleted,
				SiteID:       dest.scope.SiteID,
				PagetreeID:   dest.scope.PagetreeID,
				TemplateKey:  req.TemplateKey,
				CreatedAt:    m.now(),
				CreatedBy:    req.Actor,
			}
			if dest.parent != nil {
				e.PagetreeType = dest.parent.PagetreeType
			} else if dest.above != nil {
				e.PagetreeType = dest.above.PagetreeType
			}
			if err := tx.Insert(ctx, e); err != nil {
				return err
			}
			created = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.invalidate(ctx, created.ExternalID)
	m.log.WithFields(map[string]interface{}{
		"kind": string(req.Kind),
		"id":   created.InternalID,
		"path": created.Path,
	}).Info("entity created")
	return created, nil
}

// MoveRequest moves a batch of entities to a new placement. The batch keeps
// the relative order it had before the move, regardless of the order of IDs.
type MoveRequest struct {
	Kind     Kind
	IDs      []int64
	TargetID int64
	Above    bool
	Actor    string
}

// Move re-parents the batch, rewriting the paths of every moved subtree and
// renumbering both the source and destination sibling lists. Moving an
// entity to its current parent with Above=false is a no-op success.
func (m *Mutator) Move(ctx context.Context, req MoveRequest) error {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return nil
	}

	var touched []string
	err = m.store.InTx(ctx, func(tx Tx) error {
		dest, err := m.resolveDestination(ctx, tx, req.Kind, req.TargetID, req.Above)
		if err != nil {
			return err
		}
		if err := svc.Require(ctx, dest.createResource(req.Kind), grantCreate); err != nil {
			return err
		}

		moved := make([]*PathEntity, 0, len(req.IDs))
		for _, id := range req.IDs {
			e, err := tx.GetByInternalID(ctx, req.Kind, id)
			if err != nil {
				return fmt.Errorf("moved entity %d: %w", id, err)
			}
			if err := svc.Require(ctx, e.Resource(), grantMove); err != nil {
				return err
			}
			moved = append(moved, e)
			touched = append(touched, e.ExternalID)
		}

		for _, e := range moved {
			if e.SiteID != dest.scope.SiteID || !samePagetree(e.PagetreeID, dest.scope.PagetreeID) {
				return fmt.Errorf("%w: entity %d", ErrCrossPagetree, e.InternalID)
			}
			// The destination may not sit at or beneath any moved
			// subtree; this also catches moving an entity onto itself.
			if pathtree.IsDescendantPath(dest.scope.ParentPath, e.ResourcePath()) {
				return fmt.Errorf("%w: entity %d", ErrCycle, e.InternalID)
			}
		}

		// An entity beneath another batch member already travels with
		// that member's subtree; its row is rewritten by the ancestor's
		// prefix rewrite, so it is dropped from the batch.
		moved = dropNested(moved)

		if !req.Above && allAlreadyUnder(moved, dest.scope.ParentPath) {
			return nil
		}

		// Batch order is the entities' pre-move order, not caller order.
		sort.SliceStable(moved, func(i, j int) bool {
			if moved[i].Path != moved[j].Path {
				return moved[i].Path < moved[j].Path
			}
			return moved[i].DisplayOrder < moved[j].DisplayOrder
		})

		// Anchor for the above placement: the target itself, or the
		// first following sibling that is not moving when the target is
		// part of the batch. Resolved before any order changes.
		var anchorID int64
		if req.Above {
			if !containsID(moved, dest.above.InternalID) {
				anchorID = dest.above.InternalID
			} else {
				siblings, err := tx.ChildrenOf(ctx, dest.scope)
				if err != nil {
					return err
				}
				for _, sib := range siblings {
					if sib.DisplayOrder > dest.above.DisplayOrder && !containsID(moved, sib.InternalID) {
						anchorID = sib.InternalID
						break
					}
				}
			}
		}

		sourceScopes := map[string]SiblingScope{}
		for i, e := range moved {
			scope := siblingScopeOf(e)
			sourceScopes[scopeKey(scope)] = scope

			oldPrefix := e.ResourcePath()
			if err := tx.SetPlacement(ctx, req.Kind, e.InternalID, dest.scope.ParentPath, tempOrderBase+i); err != nil {
				return err
			}
			newPrefix := pathtree.ChildPath(dest.scope.ParentPath, e.InternalID)
			if err := tx.RewriteDescendantPaths(ctx, req.Kind, oldPrefix, newPrefix); err != nil {
				return err
			}
		}

		// Close the gaps the batch left behind, and fold the batch onto
		// the end of the destination list.
		sourceScopes[scopeKey(dest.scope)] = dest.scope
		for _, scope := range sourceScopes {
			if err := tx.CompactOrders(ctx, scope); err != nil {
				return err
			}
		}

		if anchorID != 0 {
			anchor, err := tx.GetByInternalID(ctx, req.Kind, anchorID)
			if err != nil {
				return err
			}
			if err := tx.ShiftOrders(ctx, dest.scope, anchor.DisplayOrder, len(moved)); err != nil {
				return err
			}
			for i, e := range moved {
				if err := tx.SetPlacement(ctx, req.Kind, e.InternalID, dest.scope.ParentPath, anchor.DisplayOrder+i); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.invalidate(ctx, touched...)
	m.log.WithFields(map[string]interface{}{
		"kind":  string(req.Kind),
		"count": len(req.IDs),
	}).Info("entities moved")
	return nil
}

// CopyRequest duplicates a batch beneath a new placement, optionally with
// each entity's whole subtree.
type CopyRequest struct {
	Kind            Kind
	IDs             []int64
	TargetID        int64
	Above           bool
	WithDescendants bool
	Actor           string
}

// Copy duplicates the batch with fresh internal and external identifiers,
// avoiding sibling-name collisions with numeric suffixes. Template
// compatibility of the whole batch is checked before any write; one
// incompatible item rejects everything.
func (m *Mutator) Copy(ctx context.Context, req CopyRequest) ([]PathEntity, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.IDs) == 0 {
		return nil, nil
	}

	var copies []PathEntity
	err = storage.RetryTransient(ctx, func(ctx context.Context) error {
		copies = copies[:0]
		return m.store.InTx(ctx, func(tx Tx) error {
			dest, err := m.resolveDestination(ctx, tx, req.Kind, req.TargetID, req.Above)
			if err != nil {
				return err
			}
			if err := svc.Require(ctx, dest.createResource(req.Kind), grantCreate); err != nil {
				return err
			}

			sources := make([]*PathEntity, 0, len(req.IDs))
			for _, id := range req.IDs {
				e, err := tx.GetByInternalID(ctx, req.Kind, id)
				if err != nil {
					return fmt.Errorf("copied entity %d: %w", id, err)
				}
				if err := svc.Require(ctx, e.Resource(), grantView); err != nil {
					return err
				}
				sources = append(sources, e)
			}

			// Whole-batch compatibility gate before the first write.
			for _, e := range sources {
				if msg := m.checkTemplate(ctx, dest.parent, e.TemplateKey); msg != nil {
					return fmt.Errorf("%w: %s", ErrTemplateIncompatible, e.TemplateKey)
				}
			}

			siblings, err := tx.ChildrenOf(ctx, dest.scope)
			if err != nil {
				return err
			}
			used := map[string]bool{}
			for _, sib := range siblings {
				if sib.DeleteState != Deleted {
					used[sib.Name] = true
				}
			}

			order := len(siblings) + 1
			if req.Above {
				order = dest.above.DisplayOrder
				if err := tx.ShiftOrders(ctx, dest.scope, order, len(sources)); err != nil {
					return err
				}
			}

			now := m.now()
			for i, src := range sources {
				name := freeName(src.Name, used)
				used[name] = true

				root := &PathEntity{
					Kind:         req.Kind,
					ExternalID:   m.newID(),
					Path:         dest.scope.ParentPath,
					Name:         name,
					DisplayOrder: order + i,
					DeleteState:  NotDeleted,
					SiteID:       dest.scope.SiteID,
					PagetreeID:   dest.scope.PagetreeID,
					PagetreeType: src.PagetreeType,
					TemplateKey:  src.TemplateKey,
					CreatedAt:    now,
					CreatedBy:    req.Actor,
				}
				if err := tx.Insert(ctx, root); err != nil {
					return err
				}
				copies = append(copies, *root)

				if req.WithDescendants {
					if err := m.copySubtree(ctx, tx, src, root, req.Actor, now); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(map[string]interface{}{
		"kind":  string(req.Kind),
		"count": len(copies),
	}).Info("entities copied")
	return copies, nil
}

// copySubtree duplicates src's descendants beneath newRoot. Parents come
// before children in subtree order, so every descendant's copied parent is
// already known when its turn comes.
func (m *Mutator) copySubtree(ctx context.Context, tx Tx, src, newRoot *PathEntity, actor string, now time.Time) error {
	subtree, err := tx.Subtree(ctx, src.Kind, src)
	if err != nil {
		return err
	}

	copied := map[int64]*PathEntity{src.InternalID: newRoot}
	orderByParent := map[int64]int{}

	for i := range subtree {
		desc := &subtree[i]
		if desc.InternalID == src.InternalID || desc.DeleteState == Deleted {
			continue
		}

		parentCopy, ok := copied[pathtree.LastSegment(desc.Path)]
		if !ok {
			// Parent was finalized-deleted and skipped; skip the branch.
			continue
		}

		orderByParent[parentCopy.InternalID]++
		dup := &PathEntity{
			Kind:         desc.Kind,
			ExternalID:   m.newID(),
			Path:         parentCopy.ResourcePath(),
			Name:         desc.Name,
			DisplayOrder: orderByParent[parentCopy.InternalID],
			DeleteState:  NotDeleted,
			SiteID:       newRoot.SiteID,
			PagetreeID:   newRoot.PagetreeID,
			PagetreeType: desc.PagetreeType,
			TemplateKey:  desc.TemplateKey,
			CreatedAt:    now,
			CreatedBy:    actor,
		}
		if err := tx.Insert(ctx, dup); err != nil {
			return err
		}
		copied[desc.InternalID] = dup
	}
	return nil
}

// DeleteRequest soft-deletes a batch. Finalize moves the batch to DELETED
// instead of MARKEDFORDELETE and frees the external identifiers for reuse.
type DeleteRequest struct {
	Kind     Kind
	IDs      []int64
	Finalize bool
	Actor    string
}

// Delete stamps each requested entity and its whole subtree with the same
// actor and timestamp. Entities are never physically removed.
func (m *Mutator) Delete(ctx context.Context, req DeleteRequest) error {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return err
	}

	state := MarkedForDelete
	if req.Finalize {
		state = Deleted
	}

	var touched []string
	err = storage.RetryTransient(ctx, func(ctx context.Context) error {
		touched = touched[:0]
		return m.store.InTx(ctx, func(tx Tx) error {
			at := m.now()
			for _, id := range req.IDs {
				e, err := tx.GetByInternalID(ctx, req.Kind, id)
				if err != nil {
					return fmt.Errorf("deleted entity %d: %w", id, err)
				}
				if err := svc.Require(ctx, e.Resource(), grantDelete); err != nil {
					return err
				}

				if err := tx.StampSubtree(ctx, req.Kind, e, state, req.Actor, at); err != nil {
					return err
				}
				touched = append(touched, e.ExternalID)

				if req.Finalize {
					// Scramble identifiers so names and ids free up
					// for reuse by live entities.
					subtree, err := tx.Subtree(ctx, req.Kind, e)
					if err != nil {
						return err
					}
					for _, node := range subtree {
						touched = append(touched, node.ExternalID)
						if err := tx.SetExternalID(ctx, req.Kind, node.InternalID, m.newID()); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	m.invalidate(ctx, touched...)
	m.log.WithFields(map[string]interface{}{
		"kind":     string(req.Kind),
		"count":    len(req.IDs),
		"finalize": req.Finalize,
	}).Info("entities deleted")
	return nil
}

// UndeleteRequest reverses delete stamps on exactly the requested entities,
// plus their descendants when IncludeDescendants is set.
type UndeleteRequest struct {
	Kind               Kind
	IDs                []int64
	IncludeDescendants bool
	Actor              string
}

// Undelete clears the delete stamp on the requested set. A child that was
// independently deleted before its parent stays deleted unless the caller
// names it or asks for descendants.
func (m *Mutator) Undelete(ctx context.Context, req UndeleteRequest) error {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return err
	}

	var touched []string
	err = m.store.InTx(ctx, func(tx Tx) error {
		ids := make([]int64, 0, len(req.IDs))
		for _, id := range req.IDs {
			e, err := tx.GetByInternalID(ctx, req.Kind, id)
			if err != nil {
				return fmt.Errorf("undeleted entity %d: %w", id, err)
			}
			if err := svc.Require(ctx, e.Resource(), grantUndelete); err != nil {
				return err
			}
			ids = append(ids, e.InternalID)
			touched = append(touched, e.ExternalID)

			if req.IncludeDescendants {
				subtree, err := tx.Subtree(ctx, req.Kind, e)
				if err != nil {
					return err
				}
				for _, node := range subtree {
					if node.InternalID == e.InternalID {
						continue
					}
					ids = append(ids, node.InternalID)
					touched = append(touched, node.ExternalID)
				}
			}
		}
		return tx.ClearDeleteState(ctx, req.Kind, ids)
	})
	if err != nil {
		return err
	}

	m.invalidate(ctx, touched...)
	m.log.WithFields(map[string]interface{}{
		"kind":  string(req.Kind),
		"count": len(req.IDs),
	}).Info("entities undeleted")
	return nil
}

// CreateEntryRequest appends an ordered entry to a data folder.
type CreateEntryRequest struct {
	FolderID    int64
	Name        string
	TemplateKey string
	Actor       string
}

// CreateEntry inserts a data entry at the end of its folder's order.
func (m *Mutator) CreateEntry(ctx context.Context, req CreateEntryRequest) (*DataEntry, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var created *DataEntry
	err = storage.RetryTransient(ctx, func(ctx context.Context) error {
		return m.store.InTx(ctx, func(tx Tx) error {
			folder, err := tx.LockForUpdate(ctx, KindDataFolder, req.FolderID)
			if err != nil {
				return err
			}
			if err := svc.Require(ctx, folder.Resource(), grantCreate); err != nil {
				return err
			}

			entries, err := tx.EntriesOf(ctx, folder.InternalID)
			if err != nil {
				return err
			}
			entry := &DataEntry{
				ExternalID:   m.newID(),
				FolderID:     folder.InternalID,
				Name:         req.Name,
				DisplayOrder: len(entries) + 1,
				DeleteState:  NotDeleted,
				TemplateKey:  req.TemplateKey,
				CreatedAt:    m.now(),
				CreatedBy:    req.Actor,
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return err
			}
			created = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// checkTemplate validates the template against the registry and, when a
// parent entity exists, against its allowed-children set.
func (m *Mutator) checkTemplate(ctx context.Context, parent *PathEntity, templateKey string) *ValidationMessage {
	if templateKey == "" {
		return &ValidationMessage{Path: "template", Message: "template must not be empty"}
	}
	known, err := m.registry.IsTemplateKnown(ctx, templateKey)
	if err != nil {
		return &ValidationMessage{Path: "template", Message: fmt.Sprintf("template lookup failed: %v", err)}
	}
	if !known {
		return &ValidationMessage{Path: "template", Message: fmt.Sprintf("unknown template %q", templateKey)}
	}
	if parent == nil || parent.TemplateKey == "" {
		return nil
	}
	allowed, err := m.registry.AllowedChildren(ctx, parent.TemplateKey, "")
	if err != nil {
		return &ValidationMessage{Path: "template", Message: fmt.Sprintf("template lookup failed: %v", err)}
	}
	if allowed != nil && !allowed[templateKey] {
		return &ValidationMessage{
			Path:    "template",
			Message: fmt.Sprintf("template %q not allowed beneath %q", templateKey, parent.TemplateKey),
		}
	}
	return nil
}

func (m *Mutator) invalidate(ctx context.Context, externalIDs ...string) {
	if m.cache == nil {
		return
	}
	for _, id := range externalIDs {
		if err := m.cache.Invalidate(ctx, id); err != nil {
			m.log.WithError(err).WithField("external_id", id).Warn("failed to invalidate entity cache")
		}
	}
}

// freeName finds the first unused sibling name: name, name-1, name-2, …
func freeName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !used[candidate] {
			return candidate
		}
	}
}

func nameTaken(siblings []PathEntity, name string) bool {
	for _, sib := range siblings {
		if sib.DeleteState != Deleted && sib.Name == name {
			return true
		}
	}
	return false
}

func samePagetree(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func allAlreadyUnder(moved []*PathEntity, parentPath string) bool {
	for _, e := range moved {
		if e.Path != parentPath {
			return false
		}
	}
	return true
}

// dropNested removes every batch member that sits at or beneath another
// member's subtree; the ancestor's move carries it along.
func dropNested(moved []*PathEntity) []*PathEntity {
	kept := make([]*PathEntity, 0, len(moved))
	for _, e := range moved {
		nested := false
		for _, other := range moved {
			if other != e && pathtree.IsDescendantPath(e.Path, other.ResourcePath()) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, e)
		}
	}
	return kept
}

func containsID(entities []*PathEntity, id int64) bool {
	for _, e := range entities {
		if e.InternalID == id {
			return true
		}
	}
	return false
}

func siblingScopeOf(e *PathEntity) SiblingScope {
	return SiblingScope{
		Kind:       e.Kind,
		SiteID:     e.SiteID,
		PagetreeID: e.PagetreeID,
		ParentPath: e.Path,
	}
}

// scopeKey is a comparable identity for a sibling scope; the pagetree id is
// folded in by value so equal scopes dedupe regardless of pointer identity.
func scopeKey(s SiblingScope) string {
	pt := int64(-1)
	if s.PagetreeID != nil {
		pt = *s.PagetreeID
	}
	return fmt.Sprintf("%s|%d|%d|%s", s.Kind, s.SiteID, pt, s.ParentPath)
}
