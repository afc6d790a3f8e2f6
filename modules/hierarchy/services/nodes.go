package services

import "strings"

// PathDelimiter separates rank values inside a node's full path.
const PathDelimiter = "|"

// UnknownPrefix marks placeholder rank values produced by the fill_unknown
// incomplete-rows policy ("Unknown family", "Unknown genus", ...).
const UnknownPrefix = "Unknown "

// HierarchyNode is one distinct (level, value-path) combination returned by
// the extraction query. Nodes only live for the duration of one extraction
// call; the persisted output is HierarchyRecord.
type HierarchyNode struct {
	Level      int
	RankName   string
	RankValue  string
	FullPath   string
	ExternalID *int64
	FullName   *string

	// ParentPath is the full path minus the last segment, nil at depth 0.
	// Populated by ResolveParents.
	ParentPath *string
}

func (n HierarchyNode) PathSegments() []string {
	return strings.Split(n.FullPath, PathDelimiter)
}

// HierarchyRecord is one persisted output row with final identifiers and
// nested-set boundaries.
type HierarchyRecord struct {
	ID         int64
	ParentID   *int64
	Level      int
	RankName   string
	RankValue  string
	FullPath   string
	Lft        int
	Rght       int
	ExternalID *int64
	FullName   *string
}
