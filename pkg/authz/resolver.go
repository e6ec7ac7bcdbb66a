package authz

import (
	"github.com/arborcms/arbor/pkg/pathtree"
)

// Rule applicability predicates. These are pure functions over rule records;
// the per-request service feeds them the memoized rule set and OR-aggregates
// the grants of every rule that applies.

// AppliesToSite reports whether the rule covers the target's site. A rule
// without a site scope covers every site.
func AppliesToSite(r Rule, siteID *int64) bool {
	if r.SiteID == nil {
		return true
	}
	return siteID != nil && *r.SiteID == *siteID
}

// AppliesToPath reports whether the rule's anchor path and mode cover the
// target path.
func AppliesToPath(r Rule, path string) bool {
	switch r.Mode {
	case ModeSelf:
		return r.Path == path
	case ModeSelfAndSub:
		return pathtree.IsDescendantPath(path, r.Path)
	case ModeSub:
		return path != r.Path && pathtree.IsDescendantPath(path, r.Path)
	default:
		return false
	}
}

// AppliesToChildOfPath reports whether the rule's own scope (SELF or
// SELFANDSUB) covers the parent of the given path. Used to light up a
// container whose children are individually visible without granting view on
// the container's own content.
func AppliesToChildOfPath(r Rule, path string) bool {
	if r.Mode == ModeSub {
		return false
	}
	return AppliesToPath(r, pathtree.ParentPath(path))
}

// AppliesToParentOfPath reports whether the rule is anchored at or beneath
// the given path, making the path browsable as an ancestor of a permitted
// subtree.
func AppliesToParentOfPath(r Rule, path string) bool {
	return pathtree.IsDescendantPath(r.Path, path)
}

// AppliesToPagetree reports whether the rule covers the target's pagetree
// type. Only page rules carry the filter; an unset filter covers all trees.
func AppliesToPagetree(r Rule, pt *PagetreeType) bool {
	if r.Pagetree == nil {
		return true
	}
	return pt != nil && *r.Pagetree == *pt
}

// Applies combines every applicability predicate relevant to the rule's kind
// against a target resource.
func Applies(r Rule, res Resource) bool {
	if r.Kind != res.Kind {
		return false
	}
	switch r.Kind {
	case RuleGlobal:
		return true
	case RuleSite:
		return AppliesToSite(r, res.SiteID)
	case RuleTemplate:
		return r.TemplateKey == "" || r.TemplateKey == res.TemplateKey
	case RulePage:
		return AppliesToSite(r, res.SiteID) &&
			AppliesToPagetree(r, res.Pagetree) &&
			AppliesToPath(r, res.Path)
	case RuleAsset, RuleData:
		return AppliesToSite(r, res.SiteID) && AppliesToPath(r, res.Path)
	default:
		return false
	}
}

// GrantedAny reports whether any applicable rule carries the named grant.
// Aggregation is a logical OR across rules and across roles, never an AND.
func GrantedAny(rules []Rule, res Resource, grant string) bool {
	for _, r := range rules {
		if Applies(r, res) && r.Grants.Has(grant) {
			return true
		}
	}
	return false
}

// ViewableAsContainer reports whether any rule lights the path up for
// browsing: either a SELF/SELFANDSUB rule covering its parent (children
// individually visible) or a rule anchored somewhere beneath it (deep grant
// makes ancestors browsable).
func ViewableAsContainer(rules []Rule, res Resource, grant string) bool {
	for _, r := range rules {
		if r.Kind != res.Kind || !r.Grants.Has(grant) {
			continue
		}
		if !AppliesToSite(r, res.SiteID) {
			continue
		}
		if r.Kind == RulePage && !AppliesToPagetree(r, res.Pagetree) {
			continue
		}
		if AppliesToChildOfPath(r, res.Path) || AppliesToParentOfPath(r, res.Path) {
			return true
		}
	}
	return false
}
