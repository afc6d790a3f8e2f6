package services

import "time"

// HierarchyExtractedEvent is published after a successful apply so exporter
// glue can refresh derived artifacts for the entity.
type HierarchyExtractedEvent struct {
	EntityName  string
	SourceTable string
	RowCount    int64
	IDStrategy  IDStrategy
	RequestID   string
	ExtractedAt time.Time
}
