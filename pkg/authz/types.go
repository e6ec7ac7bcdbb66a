package authz

import (
	"time"
)

// RuleKind discriminates the rule union. Each kind carries its own grant
// vocabulary and applicability fields.
type RuleKind string

const (
	RuleGlobal   RuleKind = "global"
	RuleSite     RuleKind = "site"
	RulePage     RuleKind = "page"
	RuleAsset    RuleKind = "asset"
	RuleData     RuleKind = "data"
	RuleTemplate RuleKind = "template"
)

// PathScoped reports whether rules of this kind are anchored to a
// materialized path.
func (k RuleKind) PathScoped() bool {
	return k == RulePage || k == RuleAsset || k == RuleData
}

// RuleMode governs how a path-scoped rule relates to its anchor path.
type RuleMode string

const (
	// ModeSelf applies to the exact anchor path only.
	ModeSelf RuleMode = "SELF"
	// ModeSelfAndSub applies to the anchor path and all of its descendants.
	ModeSelfAndSub RuleMode = "SELFANDSUB"
	// ModeSub applies only to descendants, excluding the anchor itself.
	ModeSub RuleMode = "SUB"
)

// PagetreeType classifies a page tree. Page rules may be restricted to one.
type PagetreeType string

const (
	PagetreePrimary PagetreeType = "PRIMARY"
	PagetreeSandbox PagetreeType = "SANDBOX"
	PagetreeArchive PagetreeType = "ARCHIVE"
)

// Grant names. The set that is meaningful varies by rule kind; unknown names
// simply never aggregate to true.
const (
	GrantCreate      = "create"
	GrantUpdate      = "update"
	GrantMove        = "move"
	GrantPublish     = "publish"
	GrantUnpublish   = "unpublish"
	GrantDelete      = "delete"
	GrantUndelete    = "undelete"
	GrantView        = "view"
	GrantViewForEdit = "viewForEdit"

	GrantLaunch      = "launch"
	GrantRename      = "rename"
	GrantManageState = "manageState"

	GrantManageAccess    = "manageAccess"
	GrantCreateSites     = "createSites"
	GrantManageTemplates = "manageTemplates"
	GrantViewSiteList    = "viewSiteList"

	GrantUse = "use"
)

// GrantsForKind lists the grant vocabulary meaningful for a rule kind, in
// the order UI affordance responses report them.
func GrantsForKind(kind RuleKind) []string {
	switch kind {
	case RuleGlobal:
		return []string{GrantManageAccess, GrantCreateSites, GrantManageTemplates, GrantViewSiteList}
	case RuleSite:
		return []string{GrantLaunch, GrantRename, GrantManageState, GrantDelete}
	case RulePage:
		return []string{GrantCreate, GrantUpdate, GrantMove, GrantPublish, GrantUnpublish,
			GrantDelete, GrantUndelete, GrantView, GrantViewForEdit}
	case RuleAsset:
		return []string{GrantCreate, GrantUpdate, GrantMove, GrantDelete, GrantUndelete, GrantView}
	case RuleData:
		return []string{GrantCreate, GrantUpdate, GrantMove, GrantPublish, GrantUnpublish,
			GrantDelete, GrantUndelete, GrantView}
	case RuleTemplate:
		return []string{GrantUse}
	}
	return nil
}

// Grants is a record of named boolean capabilities carried by a rule.
type Grants map[string]bool

// Has reports whether the named grant is set true.
func (g Grants) Has(name string) bool {
	return g[name]
}

// Rule is one record of the rule union. Kind decides which fields are
// meaningful: SiteID applies to all kinds but global/template, Path+Mode to
// path-scoped kinds, Pagetree to page rules, TemplateKey to template rules.
type Rule struct {
	ID          int64         `json:"id"`
	Kind        RuleKind      `json:"kind"`
	RoleID      int64         `json:"role_id"`
	SiteID      *int64        `json:"site_id,omitempty"` // nil = all sites
	Path        string        `json:"path,omitempty"`
	Mode        RuleMode      `json:"mode,omitempty"`
	Pagetree    *PagetreeType `json:"pagetree,omitempty"` // nil = all pagetrees
	TemplateKey string        `json:"template_key,omitempty"`
	Grants      Grants        `json:"grants"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Role is a named bundle of rules, owned by principals directly and by
// groups (through which principals inherit it).
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is an authenticated actor. The identifier is opaque here;
// verification happens upstream of this service.
type Principal struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Group is a node in the group-membership graph.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GroupEdge is a parent→child relation between groups. Multi-parent is
// allowed and the graph is not guaranteed acyclic by construction.
type GroupEdge struct {
	ParentID int64 `json:"parent_id"`
	ChildID  int64 `json:"child_id"`
}

// Resource identifies the target of a permission check. MarkedForDelete and
// Deleted are explicit policy switches: a target in either state demands the
// corresponding grant in addition to the requested one.
type Resource struct {
	Kind        RuleKind
	SiteID      *int64
	Path        string
	Pagetree    *PagetreeType
	TemplateKey string

	MarkedForDelete bool
	Deleted         bool
}
