package services

import "fmt"

// ValidateHierarchy enforces structural integrity of the extracted node set
// before any identifier is assigned:
//
//   - every node's path must have exactly level+1 segments;
//   - every node above depth 0 must have its parent path present as a node,
//     unless the missing parent is an "Unknown <rank>" placeholder from the
//     fill_unknown policy.
//
// The first violation aborts the extraction. Nodes are expected in
// (level, full_path) order so the shallowest offender is reported.
func ValidateHierarchy(nodes []HierarchyNode, levels []HierarchyLevel) error {
	paths := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		paths[n.FullPath] = struct{}{}
	}

	for _, n := range nodes {
		segs := n.PathSegments()
		expected := n.Level + 1
		if len(segs) == expected {
			continue
		}
		e := &DataValidationError{
			Code:           ErrCodePathMismatch,
			Level:          n.Level,
			FullPath:       n.FullPath,
			ExpectedLength: expected,
			ActualLength:   len(segs),
		}
		if len(segs) < expected && len(segs)-1 < len(levels) {
			e.MissingRank = levels[len(segs)-1].Name
		}
		if e.MissingRank != "" {
			e.Message = fmt.Sprintf(
				"path %q has %d segments, expected %d for %s %q: missing %s ancestor",
				n.FullPath, len(segs), expected, n.RankName, n.RankValue, e.MissingRank,
			)
		} else {
			e.Message = fmt.Sprintf(
				"path %q has %d segments, expected %d for %s %q",
				n.FullPath, len(segs), expected, n.RankName, n.RankValue,
			)
		}
		return e
	}

	for _, n := range nodes {
		if n.ParentPath == nil {
			continue
		}
		if _, ok := paths[*n.ParentPath]; ok {
			continue
		}
		segs := n.PathSegments()
		missingValue := segs[len(segs)-2]
		missingRank := ""
		if n.Level-1 < len(levels) {
			missingRank = levels[n.Level-1].Name
		}
		// fill_unknown placeholders stand for intentionally incomplete data.
		if missingRank != "" && missingValue == UnknownPrefix+missingRank {
			continue
		}
		return &DataValidationError{
			Code:         ErrCodeGap,
			Level:        n.Level,
			FullPath:     n.FullPath,
			MissingRank:  missingRank,
			MissingValue: missingValue,
			Message: fmt.Sprintf(
				"hierarchy gap: %s %q has no parent %s %q in the extracted set",
				n.RankName, n.RankValue, missingRank, missingValue,
			),
		}
	}

	return nil
}
