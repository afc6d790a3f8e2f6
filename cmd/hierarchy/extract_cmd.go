package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecodex-io/ecodex/modules/hierarchy/infrastructure/persistence"
	"github.com/ecodex-io/ecodex/modules/hierarchy/services"
	"github.com/ecodex-io/ecodex/pkg/composables"
	"github.com/ecodex-io/ecodex/pkg/configuration"
	"github.com/ecodex-io/ecodex/pkg/eventbus"
)

type extractOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newExtractCmd() *cobra.Command {
	var (
		sourceTable    string
		entityName     string
		levelSpecs     []string
		idColumn       string
		nameColumn     string
		extraColumns   []string
		idStrategy     string
		incompleteRows string
		apply          bool
		requestID      string
	)

	conf := configuration.Use()

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a nested-set hierarchy from a flat source table",
		RunE: func(cmd *cobra.Command, args []string) error {
			levels, err := parseLevels(levelSpecs)
			if err != nil {
				return err
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			ctx = composables.WithLogger(ctx, conf.Logger())
			ctx = composables.WithRequestID(ctx, requestID)

			publisher := eventbus.NewEventPublisher(conf.Logger())
			publisher.Subscribe(func(e *services.HierarchyExtractedEvent) {
				conf.Logger().WithFields(logrus.Fields{
					"entity":     e.EntityName,
					"rows":       e.RowCount,
					"request_id": e.RequestID,
				}).Info("hierarchy.extracted")
			})

			svc := services.NewHierarchyService(persistence.NewHierarchyRepository(), publisher)

			start := time.Now()
			res, err := svc.Extract(ctx, services.ExtractInput{
				SourceTable: sourceTable,
				EntityName:  entityName,
				RequestID:   requestID,
				Apply:       apply,
				Config: services.ExtractionConfig{
					Levels:            levels,
					IDColumn:          idColumn,
					NameColumn:        nameColumn,
					AdditionalColumns: extraColumns,
					IncompleteRows:    services.IncompleteRowsPolicy(incompleteRows),
					IDStrategy:        services.IDStrategy(idStrategy),
				},
			})
			if err != nil {
				return err
			}

			return writeJSON(extractOutput{
				Command:    "hierarchy extract",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     res,
			})
		},
	}

	cmd.Flags().StringVar(&sourceTable, "source", "", "Source table name (required)")
	cmd.Flags().StringVar(&entityName, "entity", "", "Entity name used for the output table and registry (required)")
	cmd.Flags().StringSliceVar(&levelSpecs, "level", nil, "Hierarchy level as name[:column], shallowest first (repeatable, required)")
	cmd.Flags().StringVar(&idColumn, "id-column", "", "Source column carrying the external id")
	cmd.Flags().StringVar(&nameColumn, "name-column", "", "Source column carrying the display name")
	cmd.Flags().StringSliceVar(&extraColumns, "additional-column", nil, "Extra source columns carried through deduplication")
	cmd.Flags().StringVar(&idStrategy, "strategy", conf.Hierarchy.IDStrategy, "Id strategy: hash|sequence|external")
	cmd.Flags().StringVar(&incompleteRows, "incomplete-rows", conf.Hierarchy.IncompleteRows, "Incomplete-rows policy: error|skip|fill_unknown")
	cmd.Flags().BoolVar(&apply, "apply", false, "Persist the result (default dry-run)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Request id (optional)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

// parseLevels turns "family:family_col" specs into ordered levels; the column
// defaults to the level name.
func parseLevels(specs []string) ([]services.HierarchyLevel, error) {
	levels := make([]services.HierarchyLevel, 0, len(specs))
	for _, spec := range specs {
		name, column, found := strings.Cut(spec, ":")
		if !found {
			column = name
		}
		name = strings.TrimSpace(name)
		column = strings.TrimSpace(column)
		if name == "" || column == "" {
			return nil, fmt.Errorf("invalid --level %q (expected name[:column])", spec)
		}
		levels = append(levels, services.HierarchyLevel{Name: name, Column: column})
	}
	return levels, nil
}
