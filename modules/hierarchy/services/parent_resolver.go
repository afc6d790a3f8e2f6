package services

import "strings"

// ResolveParents computes each node's parent path: all path segments except
// the last, or nil for depth-0 nodes. A node whose true parent is absent from
// the set keeps a non-nil parent path that matches nothing; the integrity
// validator catches that case.
func ResolveParents(nodes []HierarchyNode) {
	for i := range nodes {
		segs := nodes[i].PathSegments()
		if len(segs) <= 1 {
			nodes[i].ParentPath = nil
			continue
		}
		parent := strings.Join(segs[:len(segs)-1], PathDelimiter)
		nodes[i].ParentPath = &parent
	}
}
