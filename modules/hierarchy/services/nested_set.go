package services

import (
	"fmt"
	"sort"
)

// EncodeNestedSets assigns modified-preorder (lft/rght) boundaries over the
// finalized parent/child graph. Roots and siblings are visited in ascending
// final id order; the counter starts at 1. The traversal is an explicit-stack
// DFS keyed by record index, so malformed parent references surface as cycle
// errors instead of unbounded recursion.
func EncodeNestedSets(records []HierarchyRecord) error {
	if len(records) == 0 {
		return nil
	}

	children := make(map[int64][]int, len(records))
	roots := make([]int, 0, 4)
	for i, r := range records {
		if r.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		children[*r.ParentID] = append(children[*r.ParentID], i)
	}

	sort.Slice(roots, func(a, b int) bool { return records[roots[a]].ID < records[roots[b]].ID })
	for parentID := range children {
		kids := children[parentID]
		sort.Slice(kids, func(a, b int) bool { return records[kids[a]].ID < records[kids[b]].ID })
		children[parentID] = kids
	}

	type frame struct {
		idx  int
		next int
	}

	counter := 1
	visited := make([]bool, len(records))
	stack := make([]frame, 0, len(records))

	for _, root := range roots {
		visited[root] = true
		records[root].Lft = counter
		counter++
		stack = append(stack, frame{idx: root})

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			kids := children[records[f.idx].ID]
			if f.next < len(kids) {
				child := kids[f.next]
				f.next++
				if visited[child] {
					return cycleError(records[child])
				}
				visited[child] = true
				records[child].Lft = counter
				counter++
				stack = append(stack, frame{idx: child})
				continue
			}
			records[f.idx].Rght = counter
			counter++
			stack = stack[:len(stack)-1]
		}
	}

	for i := range records {
		if !visited[i] {
			return cycleError(records[i])
		}
	}
	return nil
}

func cycleError(r HierarchyRecord) *DataValidationError {
	return &DataValidationError{
		Code:     ErrCodeCycle,
		Level:    r.Level,
		FullPath: r.FullPath,
		Message:  fmt.Sprintf("parent/child graph is not a forest at %s %q (id %d)", r.RankName, r.RankValue, r.ID),
	}
}
