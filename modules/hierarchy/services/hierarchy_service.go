package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ecodex-io/ecodex/pkg/eventbus"
)

// HierarchyLevel is one ordered depth layer of the tree: index 0 is the
// shallowest (root) level.
type HierarchyLevel struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

type IncompleteRowsPolicy string

const (
	IncompleteRowsError       IncompleteRowsPolicy = "error"
	IncompleteRowsSkip        IncompleteRowsPolicy = "skip"
	IncompleteRowsFillUnknown IncompleteRowsPolicy = "fill_unknown"
)

type IDStrategy string

const (
	IDStrategyHash     IDStrategy = "hash"
	IDStrategySequence IDStrategy = "sequence"
	IDStrategyExternal IDStrategy = "external"
)

// ExtractionConfig is supplied fully resolved by the caller; the core never
// sees plugin names, files or flags.
type ExtractionConfig struct {
	Levels            []HierarchyLevel
	IDColumn          string
	NameColumn        string
	AdditionalColumns []string
	IncompleteRows    IncompleteRowsPolicy
	IDStrategy        IDStrategy
}

func (c ExtractionConfig) Validate() error {
	if len(c.Levels) == 0 {
		return newConfigurationError(ErrCodeInvalidConfig, "at least one hierarchy level is required")
	}
	for _, level := range c.Levels {
		if strings.TrimSpace(level.Name) == "" || strings.TrimSpace(level.Column) == "" {
			return newConfigurationError(ErrCodeInvalidConfig,
				"hierarchy level needs both a name and a column (got name=%q column=%q)", level.Name, level.Column)
		}
	}
	switch c.IncompleteRows {
	case IncompleteRowsError, IncompleteRowsSkip, IncompleteRowsFillUnknown:
	default:
		return newConfigurationError(ErrCodeInvalidConfig,
			"unknown incomplete_rows policy: %q", c.IncompleteRows)
	}
	switch c.IDStrategy {
	case IDStrategyHash, IDStrategySequence:
	case IDStrategyExternal:
		if c.IDColumn == "" {
			return newConfigurationError(ErrCodeNoExternalIDColumn,
				"id_strategy=external requires an external id column")
		}
	default:
		return newConfigurationError(ErrCodeUnsupportedStrategy,
			"unsupported id strategy: %q", c.IDStrategy)
	}
	return nil
}

// Registration is the metadata the importer/registry collaborator keeps about
// one extraction run.
type Registration struct {
	EntityName     string               `json:"entity_name"`
	SourceTable    string               `json:"source_table"`
	Levels         []HierarchyLevel     `json:"levels"`
	IDStrategy     IDStrategy           `json:"id_strategy"`
	IncompleteRows IncompleteRowsPolicy `json:"incomplete_rows"`
	IDColumn       string               `json:"id_column,omitempty"`
	NameColumn     string               `json:"name_column,omitempty"`
	RowCount       int64                `json:"row_count"`
	RequestID      string               `json:"request_id"`
	ExtractedAt    time.Time            `json:"extracted_at"`
}

type HierarchyRepository interface {
	// FetchNodes runs the single aggregation query against the source table
	// and returns the distinct per-level node set, ordered by (level, full_path).
	FetchNodes(ctx context.Context, sourceTable, entityName string, cfg ExtractionConfig) ([]HierarchyNode, error)
	// Persist fully replaces the entity's hierarchy table and upserts the
	// registry row in one transaction.
	Persist(ctx context.Context, entityName string, records []HierarchyRecord, reg Registration) error
}

type ExtractInput struct {
	SourceTable string
	EntityName  string
	Config      ExtractionConfig
	RequestID   string
	Apply       bool
}

type ExtractResult struct {
	EntityName     string               `json:"entity_name"`
	SourceTable    string               `json:"source_table"`
	RowCount       int64                `json:"row_count"`
	IDStrategy     IDStrategy           `json:"id_strategy"`
	IncompleteRows IncompleteRowsPolicy `json:"incomplete_rows"`
	DryRun         bool                 `json:"dry_run"`
	RequestID      string               `json:"request_id"`
	ExtractedAt    time.Time            `json:"extracted_at"`
}

type HierarchyService struct {
	repo      HierarchyRepository
	publisher eventbus.EventBus
}

func NewHierarchyService(repo HierarchyRepository, publisher eventbus.EventBus) *HierarchyService {
	return &HierarchyService{repo: repo, publisher: publisher}
}

// Extract runs the whole pipeline for one source table: fetch distinct
// per-level nodes, resolve parents, clean external ids, validate, assign
// final ids, encode nested sets, and (when Apply is set) persist the result
// and register the entity. Any integrity violation aborts before persistence.
func (s *HierarchyService) Extract(ctx context.Context, in ExtractInput) (res *ExtractResult, err error) {
	defer func() { recordExtractRun(in.Config.IDStrategy, err) }()

	if strings.TrimSpace(in.SourceTable) == "" || strings.TrimSpace(in.EntityName) == "" {
		return nil, newConfigurationError(ErrCodeInvalidConfig, "source table and entity name are required")
	}
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	nodes, err := s.repo.FetchNodes(ctx, in.SourceTable, in.EntityName, in.Config)
	if err != nil {
		return nil, err
	}

	records, err := BuildHierarchy(nodes, in.Config)
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "hierarchy.extract.rejected", logrus.Fields{
			"entity":     in.EntityName,
			"source":     in.SourceTable,
			"request_id": in.RequestID,
			"error":      err.Error(),
		})
		return nil, err
	}

	extractedAt := time.Now().UTC()
	result := &ExtractResult{
		EntityName:     in.EntityName,
		SourceTable:    in.SourceTable,
		RowCount:       int64(len(records)),
		IDStrategy:     in.Config.IDStrategy,
		IncompleteRows: in.Config.IncompleteRows,
		DryRun:         !in.Apply,
		RequestID:      in.RequestID,
		ExtractedAt:    extractedAt,
	}

	if in.Apply {
		reg := Registration{
			EntityName:     in.EntityName,
			SourceTable:    in.SourceTable,
			Levels:         in.Config.Levels,
			IDStrategy:     in.Config.IDStrategy,
			IncompleteRows: in.Config.IncompleteRows,
			IDColumn:       in.Config.IDColumn,
			NameColumn:     in.Config.NameColumn,
			RowCount:       result.RowCount,
			RequestID:      in.RequestID,
			ExtractedAt:    extractedAt,
		}
		if err := s.repo.Persist(ctx, in.EntityName, records, reg); err != nil {
			return nil, err
		}
		recordExtractRows(in.EntityName, result.RowCount)
		if s.publisher != nil {
			s.publisher.Publish(&HierarchyExtractedEvent{
				EntityName:  in.EntityName,
				SourceTable: in.SourceTable,
				RowCount:    result.RowCount,
				IDStrategy:  in.Config.IDStrategy,
				RequestID:   in.RequestID,
				ExtractedAt: extractedAt,
			})
		}
	}

	logWithFields(ctx, logrus.InfoLevel, "hierarchy.extract.completed", logrus.Fields{
		"entity":     in.EntityName,
		"source":     in.SourceTable,
		"rows":       result.RowCount,
		"strategy":   string(in.Config.IDStrategy),
		"dry_run":    result.DryRun,
		"request_id": in.RequestID,
	})
	return result, nil
}

// BuildHierarchy is the pure in-memory pipeline over an already-fetched node
// set. An empty input yields an empty output without error.
func BuildHierarchy(nodes []HierarchyNode, cfg ExtractionConfig) ([]HierarchyRecord, error) {
	if len(nodes) == 0 {
		return []HierarchyRecord{}, nil
	}

	// The query orders by (level, full_path) already; re-sort so sequence ids
	// and validation order never depend on the store's whims.
	sorted := make([]HierarchyNode, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level < sorted[j].Level
		}
		return sorted[i].FullPath < sorted[j].FullPath
	})

	ResolveParents(sorted)
	if cfg.IDColumn != "" {
		CleanExternalIDs(sorted)
	}
	if err := ValidateHierarchy(sorted, cfg.Levels); err != nil {
		return nil, err
	}

	records, err := AssignIDs(sorted, cfg)
	if err != nil {
		return nil, err
	}
	if err := EncodeNestedSets(records); err != nil {
		return nil, err
	}
	return records, nil
}
