// Package tree owns the materialized-path entity model and its transactional
// mutations: create, move, copy, delete and undelete over pages, asset
// folders and data folders.
package tree

import (
	"time"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/pathtree"
)

// Kind identifies which hierarchy an entity belongs to.
type Kind string

const (
	KindPage        Kind = "page"
	KindAssetFolder Kind = "assetfolder"
	KindDataFolder  Kind = "datafolder"
)

// RuleKind maps a tree kind to the rule kind that governs it.
func (k Kind) RuleKind() authz.RuleKind {
	switch k {
	case KindPage:
		return authz.RulePage
	case KindAssetFolder:
		return authz.RuleAsset
	case KindDataFolder:
		return authz.RuleData
	}
	return ""
}

// DeleteState is the soft-delete lifecycle of an entity.
type DeleteState string

const (
	NotDeleted      DeleteState = "NOTDELETED"
	MarkedForDelete DeleteState = "MARKEDFORDELETE"
	Deleted         DeleteState = "DELETED"
)

// PathEntity is one node of a materialized-path hierarchy. Path holds the
// ancestor internal-id chain only; the entity's own id never appears in it.
type PathEntity struct {
	Kind         Kind
	InternalID   int64
	ExternalID   string
	Path         string
	Name         string
	DisplayOrder int
	DeleteState  DeleteState
	DeletedAt    *time.Time
	DeletedBy    string
	SiteID       int64
	PagetreeID   *int64
	PagetreeType *authz.PagetreeType
	TemplateKey  string
	CreatedAt    time.Time
	CreatedBy    string
}

// ResourcePath is the entity's own position in the tree: its ancestor path
// with its own id appended. Rules anchor on this, and children carry it as
// their Path.
func (e *PathEntity) ResourcePath() string {
	return pathtree.ChildPath(e.Path, e.InternalID)
}

// Resource maps the entity into the shape permission checks consume.
func (e *PathEntity) Resource() authz.Resource {
	siteID := e.SiteID
	return authz.Resource{
		Kind:            e.Kind.RuleKind(),
		SiteID:          &siteID,
		Path:            e.ResourcePath(),
		Pagetree:        e.PagetreeType,
		TemplateKey:     e.TemplateKey,
		MarkedForDelete: e.DeleteState == MarkedForDelete,
		Deleted:         e.DeleteState == Deleted,
	}
}

// DataEntry is an ordered record inside a data folder. Entries carry no path
// of their own; they hang off their folder by internal id.
type DataEntry struct {
	InternalID   int64
	ExternalID   string
	FolderID     int64
	Name         string
	DisplayOrder int
	DeleteState  DeleteState
	DeletedAt    *time.Time
	DeletedBy    string
	TemplateKey  string
	CreatedAt    time.Time
	CreatedBy    string
}

// Filter narrows entity queries. Zero value matches every live entity of a
// kind. The default delete-state view shows NOTDELETED and MARKEDFORDELETE
// but hides DELETED; it also hides orphaned entities, i.e. those whose
// owning site or pagetree is itself soft-deleted.
type Filter struct {
	InternalIDs []int64
	ExternalIDs []string
	Path        string // exact match on the entity's own resource path
	BeneathPath string // entity's resource path strictly beneath this one
	ChildrenOf  int64  // direct children of this internal id
	SiteID      *int64
	PagetreeID  *int64
	Name        string

	DeleteStates    []DeleteState
	IncludeOrphaned bool
}

// EffectiveDeleteStates resolves the delete-state filter, applying the
// default view when none was requested.
func (f Filter) EffectiveDeleteStates() []DeleteState {
	if len(f.DeleteStates) > 0 {
		return f.DeleteStates
	}
	return []DeleteState{NotDeleted, MarkedForDelete}
}

// Site is the owning site of a tree. Sites soft-delete like entities; a
// deleted site orphans everything inside it.
type Site struct {
	ID          int64
	Name        string
	DeleteState DeleteState
}

// Pagetree is one tree of a site (PRIMARY, SANDBOX or ARCHIVE).
type Pagetree struct {
	ID          int64
	SiteID      int64
	Type        authz.PagetreeType
	DeleteState DeleteState
}
