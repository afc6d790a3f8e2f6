package services

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// AssignIDs converts validated nodes into records with final integer
// identifiers and re-resolves every parent reference through a
// full_path -> final id map. Nodes whose parent path is nil (or was tolerated
// as a missing fill_unknown placeholder) keep a nil parent id.
func AssignIDs(nodes []HierarchyNode, cfg ExtractionConfig) ([]HierarchyRecord, error) {
	switch cfg.IDStrategy {
	case IDStrategyHash, IDStrategySequence:
	case IDStrategyExternal:
		if cfg.IDColumn == "" {
			return nil, newConfigurationError(ErrCodeNoExternalIDColumn,
				"id_strategy=external requires an external id column")
		}
	default:
		return nil, newConfigurationError(ErrCodeUnsupportedStrategy,
			"unsupported id strategy: %q", cfg.IDStrategy)
	}

	records := make([]HierarchyRecord, len(nodes))
	idByPath := make(map[string]int64, len(nodes))
	pathByID := make(map[int64]string, len(nodes))

	for i, n := range nodes {
		var id int64
		switch cfg.IDStrategy {
		case IDStrategyHash:
			id = hashID(n.FullPath)
		case IDStrategySequence:
			id = int64(i + 1)
		case IDStrategyExternal:
			if n.ExternalID == nil {
				return nil, &DataValidationError{
					Code:     ErrCodeMissingExternalID,
					Level:    n.Level,
					FullPath: n.FullPath,
					Message: fmt.Sprintf("id_strategy=external but %s %q carries no external id",
						n.RankName, n.RankValue),
				}
			}
			id = *n.ExternalID
		}

		if prev, dup := pathByID[id]; dup {
			return nil, &DataValidationError{
				Code:     ErrCodeDuplicateID,
				Level:    n.Level,
				FullPath: n.FullPath,
				Message:  fmt.Sprintf("final id %d collides between paths %q and %q", id, prev, n.FullPath),
			}
		}
		pathByID[id] = n.FullPath
		idByPath[n.FullPath] = id

		records[i] = HierarchyRecord{
			ID:         id,
			Level:      n.Level,
			RankName:   n.RankName,
			RankValue:  n.RankValue,
			FullPath:   n.FullPath,
			ExternalID: n.ExternalID,
			FullName:   n.FullName,
		}
	}

	for i, n := range nodes {
		if n.ParentPath == nil {
			continue
		}
		if id, ok := idByPath[*n.ParentPath]; ok {
			parentID := id
			records[i].ParentID = &parentID
		}
	}

	return records, nil
}

// hashID takes the first 64 bits of the path's SHA-256 digest reduced modulo
// 2^63 so it fits a signed BIGINT column. Identical paths hash identically
// across runs, which is what makes hash-strategy trees re-extractable and
// diffable.
func hashID(fullPath string) int64 {
	sum := sha256.Sum256([]byte(fullPath))
	return int64(binary.BigEndian.Uint64(sum[:8]) % (1 << 63))
}
