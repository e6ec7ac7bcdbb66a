package authz

import (
	"testing"
)

func pageRule(roleID int64, path string, mode RuleMode, grants Grants) Rule {
	return Rule{Kind: RulePage, RoleID: roleID, Path: path, Mode: mode, Grants: grants}
}

func TestAppliesToPath_Modes(t *testing.T) {
	tests := []struct {
		name   string
		mode   RuleMode
		anchor string
		target string
		want   bool
	}{
		{"self exact", ModeSelf, "/site1", "/site1", true},
		{"self child", ModeSelf, "/site1", "/site1/about", false},
		{"selfandsub exact", ModeSelfAndSub, "/site1", "/site1", true},
		{"selfandsub child", ModeSelfAndSub, "/site1", "/site1/about", true},
		{"selfandsub sibling prefix", ModeSelfAndSub, "/site1", "/site10", false},
		{"sub exact excluded", ModeSub, "/site1", "/site1", false},
		{"sub child", ModeSub, "/site1", "/site1/about", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pageRule(1, tt.anchor, tt.mode, Grants{GrantUpdate: true})
			if got := AppliesToPath(r, tt.target); got != tt.want {
				t.Errorf("AppliesToPath(%s@%s, %s) = %v, want %v", tt.mode, tt.anchor, tt.target, got, tt.want)
			}
		})
	}
}

func TestAppliesToSite(t *testing.T) {
	site1 := int64(1)
	site2 := int64(2)

	unscoped := Rule{Kind: RulePage}
	if !AppliesToSite(unscoped, &site1) {
		t.Error("Rule without site scope should apply to any site")
	}

	scoped := Rule{Kind: RulePage, SiteID: &site1}
	if !AppliesToSite(scoped, &site1) {
		t.Error("Rule scoped to site1 should apply to site1")
	}
	if AppliesToSite(scoped, &site2) {
		t.Error("Rule scoped to site1 should not apply to site2")
	}
	if AppliesToSite(scoped, nil) {
		t.Error("Site-scoped rule should not apply to a target without a site")
	}
}

func TestAppliesToPagetree(t *testing.T) {
	primary := PagetreePrimary
	sandbox := PagetreeSandbox

	unfiltered := Rule{Kind: RulePage}
	if !AppliesToPagetree(unfiltered, &primary) {
		t.Error("Rule without pagetree filter should apply to any tree")
	}

	filtered := Rule{Kind: RulePage, Pagetree: &primary}
	if !AppliesToPagetree(filtered, &primary) {
		t.Error("PRIMARY rule should apply to a PRIMARY tree")
	}
	if AppliesToPagetree(filtered, &sandbox) {
		t.Error("PRIMARY rule should not apply to a SANDBOX tree")
	}
}

func TestAppliesToChildOfPath(t *testing.T) {
	r := pageRule(1, "/site1", ModeSelf, Grants{GrantView: true})

	// Rule at /site1 covers the parent of /site1/about, so the container
	// lights up for browsing.
	if !AppliesToChildOfPath(r, "/site1/about") {
		t.Error("SELF rule at /site1 should cover children of /site1")
	}
	if AppliesToChildOfPath(r, "/site1/about/team") {
		t.Error("SELF rule at /site1 should not cover grandchildren")
	}

	sub := pageRule(1, "/site1", ModeSub, Grants{GrantView: true})
	if AppliesToChildOfPath(sub, "/site1/about") {
		t.Error("SUB rules do not participate in child-of checks")
	}
}

func TestAppliesToParentOfPath(t *testing.T) {
	r := pageRule(1, "/site1/about/team", ModeSelfAndSub, Grants{GrantView: true})

	if !AppliesToParentOfPath(r, "/site1") {
		t.Error("Deep rule should make /site1 browsable")
	}
	if !AppliesToParentOfPath(r, "/site1/about") {
		t.Error("Deep rule should make /site1/about browsable")
	}
	if AppliesToParentOfPath(r, "/site2") {
		t.Error("Deep rule should not make an unrelated path browsable")
	}
}

// Grant OR-aggregation with concrete fixtures: a SELF rule at /site1 must not
// grant update at /site1/about; a SELFANDSUB rule must grant at both; two
// roles where only one grants still yield the grant.
func TestGrantedAny_ORAggregation(t *testing.T) {
	selfOnly := []Rule{pageRule(1, "/site1", ModeSelf, Grants{GrantUpdate: true})}

	if !GrantedAny(selfOnly, Resource{Kind: RulePage, Path: "/site1"}, GrantUpdate) {
		t.Error("SELF rule at /site1 should grant update at /site1")
	}
	if GrantedAny(selfOnly, Resource{Kind: RulePage, Path: "/site1/about"}, GrantUpdate) {
		t.Error("SELF rule at /site1 must not grant update at /site1/about")
	}

	selfAndSub := []Rule{pageRule(1, "/site1", ModeSelfAndSub, Grants{GrantUpdate: true})}
	for _, path := range []string{"/site1", "/site1/about"} {
		if !GrantedAny(selfAndSub, Resource{Kind: RulePage, Path: path}, GrantUpdate) {
			t.Errorf("SELFANDSUB rule at /site1 should grant update at %s", path)
		}
	}

	// Two roles: role 1 denies (no grant), role 2 grants. OR semantics win.
	twoRoles := []Rule{
		pageRule(1, "/site1", ModeSelfAndSub, Grants{GrantUpdate: false}),
		pageRule(2, "/site1", ModeSelfAndSub, Grants{GrantUpdate: true}),
	}
	if !GrantedAny(twoRoles, Resource{Kind: RulePage, Path: "/site1/about"}, GrantUpdate) {
		t.Error("A granting role must win over a non-granting role (OR, never AND)")
	}
}

func TestApplies_KindMismatch(t *testing.T) {
	r := pageRule(1, "/site1", ModeSelfAndSub, Grants{GrantView: true})
	if Applies(r, Resource{Kind: RuleAsset, Path: "/site1"}) {
		t.Error("Page rule must not apply to an asset resource")
	}
}

func TestApplies_TemplateRule(t *testing.T) {
	r := Rule{Kind: RuleTemplate, TemplateKey: "standardpage", Grants: Grants{GrantUse: true}}

	if !Applies(r, Resource{Kind: RuleTemplate, TemplateKey: "standardpage"}) {
		t.Error("Template rule should apply to its own template key")
	}
	if Applies(r, Resource{Kind: RuleTemplate, TemplateKey: "other"}) {
		t.Error("Template rule should not apply to a different template key")
	}

	any := Rule{Kind: RuleTemplate, Grants: Grants{GrantUse: true}}
	if !Applies(any, Resource{Kind: RuleTemplate, TemplateKey: "other"}) {
		t.Error("Template rule without a key should apply to any template")
	}
}

func TestViewableAsContainer(t *testing.T) {
	rules := []Rule{pageRule(1, "/site1/about/team", ModeSelfAndSub, Grants{GrantView: true})}

	// Ancestors of the permitted subtree are browsable.
	if !ViewableAsContainer(rules, Resource{Kind: RulePage, Path: "/site1"}, GrantView) {
		t.Error("/site1 should be viewable as an ancestor of a permitted path")
	}
	// Unrelated siblings are not.
	if ViewableAsContainer(rules, Resource{Kind: RulePage, Path: "/site2"}, GrantView) {
		t.Error("/site2 should not be viewable")
	}
	// A rule without the grant never lights anything up.
	noGrant := []Rule{pageRule(1, "/site1/about", ModeSelfAndSub, Grants{GrantUpdate: true})}
	if ViewableAsContainer(noGrant, Resource{Kind: RulePage, Path: "/site1"}, GrantView) {
		t.Error("Rules lacking the view grant must not make ancestors viewable")
	}
}
