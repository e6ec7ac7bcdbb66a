package tree

import (
	"context"
	"time"
)

// SiblingScope identifies one sibling list: the children of a single parent.
// ParentPath is the parent's resource path; every child row stores it as its
// own Path. Site and pagetree ids disambiguate root-level lists, where
// multiple trees share the bare "/" path.
type SiblingScope struct {
	Kind       Kind
	SiteID     int64
	PagetreeID *int64
	ParentPath string
}

// ScopeOf returns the sibling scope of the given parent's children.
func ScopeOf(parent *PathEntity) SiblingScope {
	return SiblingScope{
		Kind:       parent.Kind,
		SiteID:     parent.SiteID,
		PagetreeID: parent.PagetreeID,
		ParentPath: parent.ResourcePath(),
	}
}

// Store is the read surface plus the transaction entry point. Mutations go
// through InTx so a whole operation commits or rolls back as one unit.
type Store interface {
	GetByInternalID(ctx context.Context, kind Kind, id int64) (*PathEntity, error)
	GetByExternalID(ctx context.Context, kind Kind, externalID string) (*PathEntity, error)
	Find(ctx context.Context, kind Kind, filter Filter) ([]PathEntity, error)
	EntriesOf(ctx context.Context, folderID int64) ([]DataEntry, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write surface available inside one transaction.
type Tx interface {
	GetByInternalID(ctx context.Context, kind Kind, id int64) (*PathEntity, error)

	// LockForUpdate loads an entity under a row lock, serializing
	// concurrent writers that target the same parent.
	LockForUpdate(ctx context.Context, kind Kind, id int64) (*PathEntity, error)

	// LockScope locks the serialization point of a root-level sibling
	// list, which has no parent row to lock: the owning pagetree row
	// when the scope has one, otherwise the site row.
	LockScope(ctx context.Context, scope SiblingScope) error

	// ChildrenOf returns a parent's direct children in display order,
	// every delete state included.
	ChildrenOf(ctx context.Context, scope SiblingScope) ([]PathEntity, error)

	// Subtree returns the entity plus every descendant, resolved by path
	// prefix match rather than recursive traversal.
	Subtree(ctx context.Context, kind Kind, e *PathEntity) ([]PathEntity, error)

	// Insert writes a new entity and assigns its InternalID.
	Insert(ctx context.Context, e *PathEntity) error

	// SetPlacement rewrites one entity's own path and display order.
	SetPlacement(ctx context.Context, kind Kind, id int64, path string, order int) error

	// RewriteDescendantPaths swaps oldPrefix for newPrefix on every path
	// at or beneath oldPrefix.
	RewriteDescendantPaths(ctx context.Context, kind Kind, oldPrefix, newPrefix string) error

	// ShiftOrders adds delta to the display order of every sibling at or
	// after fromOrder.
	ShiftOrders(ctx context.Context, scope SiblingScope, fromOrder, delta int) error

	// CompactOrders renumbers a sibling list to 1..n with no gaps,
	// preserving relative order.
	CompactOrders(ctx context.Context, scope SiblingScope) error

	// StampSubtree sets delete state, actor and timestamp on the entity
	// and its whole subtree atomically.
	StampSubtree(ctx context.Context, kind Kind, e *PathEntity, state DeleteState, actor string, at time.Time) error

	// ClearDeleteState resets exactly the given entities to NOTDELETED,
	// clearing their actor and timestamp stamps.
	ClearDeleteState(ctx context.Context, kind Kind, ids []int64) error

	// SetExternalID replaces an entity's external identifier. Used when a
	// finalized delete frees the identifier for reuse.
	SetExternalID(ctx context.Context, kind Kind, id int64, externalID string) error

	InsertEntry(ctx context.Context, entry *DataEntry) error
	EntriesOf(ctx context.Context, folderID int64) ([]DataEntry, error)
}
