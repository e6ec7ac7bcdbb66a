// Package pathtree implements materialized-path arithmetic shared by the
// page, asset-folder and data-folder trees.
//
// A materialized path encodes an entity's full ancestor chain as "/" followed
// by the "/"-joined internal ids of its ancestors, root first. The root path
// is "/". An entity's own id never appears in its own path; appending the id
// to the path yields the prefix under which its children live.
//
// Everything here is a pure function so that the tree mutator and the rule
// resolver share one implementation and one test surface.
package pathtree

import (
	"fmt"
	"strconv"
	"strings"
)

// Root is the path of a tree root entity.
const Root = "/"

// AncestorIDs parses a materialized path into the ordered chain of ancestor
// internal ids, root first. The root path yields an empty slice.
func AncestorIDs(path string) ([]int64, error) {
	ids := make([]int64, 0, strings.Count(path, "/"))
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		id, err := strconv.ParseInt(seg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q in %q: %w", seg, path, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ChildPath returns the path under which children of the given entity live.
// The root path does not get a doubled slash.
func ChildPath(parentPath string, parentID int64) string {
	if parentPath == Root {
		return Root + strconv.FormatInt(parentID, 10)
	}
	return parentPath + "/" + strconv.FormatInt(parentID, 10)
}

// IsDescendantPath reports whether candidate lies at or beneath of. The exact
// path counts as a descendant so that self-move checks catch the degenerate
// case of moving an entity onto itself.
func IsDescendantPath(candidate, of string) bool {
	if candidate == of {
		return true
	}
	if of == Root {
		return strings.HasPrefix(candidate, Root)
	}
	return strings.HasPrefix(candidate, of+"/")
}

// Depth returns the number of ancestors encoded in the path. Root entities
// have depth 0.
func Depth(path string) int {
	if path == Root {
		return 0
	}
	return strings.Count(path, "/")
}

// ParentPath returns the path of the entity's parent, i.e. the path with its
// last segment removed. The parent of a depth-1 path is the root path.
func ParentPath(path string) string {
	if path == Root {
		return Root
	}
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return Root
	}
	return path[:idx]
}

// LastSegment returns the final ancestor id of the path, which is the
// internal id of the entity's direct parent. Returns 0 for root paths.
func LastSegment(path string) int64 {
	if path == Root {
		return 0
	}
	idx := strings.LastIndex(path, "/")
	id, err := strconv.ParseInt(path[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ReplacePrefix rewrites a descendant path when its ancestor subtree moves
// from oldPrefix to newPrefix. The caller is responsible for only passing
// paths that actually lie beneath oldPrefix.
func ReplacePrefix(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}
	rest := path
	if oldPrefix != Root {
		rest = strings.TrimPrefix(path, oldPrefix)
	}
	if newPrefix == Root {
		return rest
	}
	return newPrefix + rest
}
