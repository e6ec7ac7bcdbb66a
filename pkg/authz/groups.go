package authz

import (
	"context"
	"fmt"
	"time"
)

// GroupGraph is an in-memory closure of the group-membership graph. Edges
// run parent→child. The graph is rebuilt wholesale on each cache refresh;
// individual queries walk lazily from the queried node.
//
// The graph is not guaranteed acyclic. Every walk carries a visited set, so
// a cycle member simply sees every node reachable in the walked direction,
// including back through the cycle.
type GroupGraph struct {
	groups   map[int64]Group
	parents  map[int64][]int64
	children map[int64][]int64
}

// BuildGroupGraph indexes the given groups and edges for traversal.
func BuildGroupGraph(groups []Group, edges []GroupEdge) *GroupGraph {
	g := &GroupGraph{
		groups:   make(map[int64]Group, len(groups)),
		parents:  make(map[int64][]int64),
		children: make(map[int64][]int64),
	}
	for _, grp := range groups {
		g.groups[grp.ID] = grp
	}
	for _, e := range edges {
		g.parents[e.ChildID] = append(g.parents[e.ChildID], e.ParentID)
		g.children[e.ParentID] = append(g.children[e.ParentID], e.ChildID)
	}
	return g
}

// AncestorsOf returns every group reachable by walking parent edges up from
// the given group. The group itself is not included.
func (g *GroupGraph) AncestorsOf(groupID int64) map[int64]struct{} {
	return g.walk(groupID, g.parents)
}

// DescendantsOf returns every group reachable by walking child edges down
// from the given group. The group itself is not included.
func (g *GroupGraph) DescendantsOf(groupID int64) map[int64]struct{} {
	return g.walk(groupID, g.children)
}

func (g *GroupGraph) walk(start int64, edges map[int64][]int64) map[int64]struct{} {
	seen := map[int64]struct{}{start: {}}
	stack := append([]int64(nil), edges[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		stack = append(stack, edges[n]...)
	}
	delete(seen, start)
	return seen
}

// Group returns the group record for an id, if present in the closure.
func (g *GroupGraph) Group(id int64) (Group, bool) {
	grp, ok := g.groups[id]
	return grp, ok
}

// GraphLoader loads all groups touched by an edge plus all edges.
type GraphLoader interface {
	LoadGroupGraph(ctx context.Context) ([]Group, []GroupEdge, error)
}

const groupGraphKey = "group-graph"

// GroupService serves the group graph through a refresh-ahead cache. A load
// failure is returned to the caller: group-derived permissions are treated
// as unavailable rather than empty.
type GroupService struct {
	loader GraphLoader
	cache  *RefreshCache[*GroupGraph]
}

// NewGroupService builds a group service with the given cache windows.
func NewGroupService(loader GraphLoader, fresh, stale time.Duration) *GroupService {
	return &GroupService{
		loader: loader,
		cache:  NewRefreshCache[*GroupGraph](fresh, stale),
	}
}

// Graph returns the current group graph, refreshing per cache policy.
func (s *GroupService) Graph(ctx context.Context) (*GroupGraph, error) {
	g, err := s.cache.Get(ctx, groupGraphKey, s.load)
	if err != nil {
		return nil, fmt.Errorf("failed to load group graph: %w", err)
	}
	return g, nil
}

// Refresh eagerly reloads the graph if it is no longer fresh. Wired to the
// scheduled maintenance job.
func (s *GroupService) Refresh(ctx context.Context) error {
	return s.cache.Warm(ctx, groupGraphKey, s.load)
}

// Invalidate drops the cached graph, forcing a synchronous reload on the
// next query. Called after group membership mutations.
func (s *GroupService) Invalidate() {
	s.cache.Invalidate(groupGraphKey)
}

func (s *GroupService) load(ctx context.Context) (*GroupGraph, error) {
	groups, edges, err := s.loader.LoadGroupGraph(ctx)
	if err != nil {
		return nil, err
	}
	return BuildGroupGraph(groups, edges), nil
}
