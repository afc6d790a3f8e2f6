package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/ecodex-io/ecodex/modules/hierarchy/services"
	"github.com/ecodex-io/ecodex/pkg/composables"
	"github.com/ecodex-io/ecodex/pkg/repo"
)

const registryUpsertSQL = `
INSERT INTO hierarchy_registry (
	entity_name,
	source_table,
	levels,
	id_strategy,
	incomplete_rows,
	id_column,
	name_column,
	row_count,
	request_id,
	extracted_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (entity_name) DO UPDATE SET
	source_table = EXCLUDED.source_table,
	levels = EXCLUDED.levels,
	id_strategy = EXCLUDED.id_strategy,
	incomplete_rows = EXCLUDED.incomplete_rows,
	id_column = EXCLUDED.id_column,
	name_column = EXCLUDED.name_column,
	row_count = EXCLUDED.row_count,
	request_id = EXCLUDED.request_id,
	extracted_at = EXCLUDED.extracted_at
`

type HierarchyRepository struct{}

func NewHierarchyRepository() *HierarchyRepository {
	return &HierarchyRepository{}
}

func (r *HierarchyRepository) FetchNodes(
	ctx context.Context,
	sourceTable, entityName string,
	cfg services.ExtractionConfig,
) ([]services.HierarchyNode, error) {
	query, err := BuildExtractionQuery(sourceTable, entityName, cfg)
	if err != nil {
		return nil, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "extraction query against %s failed", sourceTable)
	}
	defer rows.Close()

	nodes := make([]services.HierarchyNode, 0, 64)
	for rows.Next() {
		var n services.HierarchyNode
		if err := rows.Scan(&n.Level, &n.RankName, &n.RankValue, &n.FullPath, &n.ExternalID, &n.FullName); err != nil {
			return nil, errors.Wrap(err, "scan hierarchy node")
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read hierarchy nodes")
	}
	return nodes, nil
}

// Persist fully replaces the entity's hierarchy table (drop + recreate +
// bulk copy) and upserts the registry row, all in one transaction.
func (r *HierarchyRepository) Persist(
	ctx context.Context,
	entityName string,
	records []services.HierarchyRecord,
	reg services.Registration,
) error {
	if err := repo.ValidateIdent(entityName); err != nil {
		return err
	}
	tableName := entityName + "_hierarchy"
	extIDColumn := entityName + "_id"

	levelsJSON, err := json.Marshal(reg.Levels)
	if err != nil {
		return errors.Wrap(err, "marshal hierarchy levels")
	}

	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(txCtx, "DROP TABLE IF EXISTS "+repo.QuoteIdent(tableName)); err != nil {
			return errors.Wrapf(err, "drop %s", tableName)
		}
		if _, err := tx.Exec(txCtx, createTableSQL(tableName, extIDColumn)); err != nil {
			return errors.Wrapf(err, "create %s", tableName)
		}
		indexSQL := fmt.Sprintf("CREATE INDEX %s ON %s (lft, rght)",
			repo.QuoteIdent(tableName+"_lft_rght_idx"), repo.QuoteIdent(tableName))
		if _, err := tx.Exec(txCtx, indexSQL); err != nil {
			return errors.Wrapf(err, "index %s", tableName)
		}

		columns := []string{"id", "parent_id", "level", "rank_name", "rank_value", "full_path", "lft", "rght", extIDColumn, "full_name"}
		_, err = tx.CopyFrom(txCtx, pgx.Identifier{tableName}, columns,
			pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
				rec := records[i]
				return []any{
					rec.ID, rec.ParentID, rec.Level, rec.RankName, rec.RankValue,
					rec.FullPath, rec.Lft, rec.Rght, rec.ExternalID, rec.FullName,
				}, nil
			}))
		if err != nil {
			return errors.Wrapf(err, "copy %d records into %s", len(records), tableName)
		}

		_, err = tx.Exec(txCtx, registryUpsertSQL,
			reg.EntityName,
			reg.SourceTable,
			levelsJSON,
			string(reg.IDStrategy),
			string(reg.IncompleteRows),
			nullableText(reg.IDColumn),
			nullableText(reg.NameColumn),
			reg.RowCount,
			reg.RequestID,
			reg.ExtractedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "register hierarchy entity %s", reg.EntityName)
		}
		return nil
	})
}

func createTableSQL(tableName, extIDColumn string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(repo.QuoteIdent(tableName))
	b.WriteString(" (\n")
	b.WriteString("\tid BIGINT PRIMARY KEY,\n")
	b.WriteString("\tparent_id BIGINT,\n")
	b.WriteString("\tlevel INTEGER NOT NULL,\n")
	b.WriteString("\trank_name TEXT NOT NULL,\n")
	b.WriteString("\trank_value TEXT NOT NULL,\n")
	b.WriteString("\tfull_path TEXT NOT NULL UNIQUE,\n")
	b.WriteString("\tlft INTEGER NOT NULL,\n")
	b.WriteString("\trght INTEGER NOT NULL,\n")
	b.WriteString("\t" + repo.QuoteIdent(extIDColumn) + " BIGINT,\n")
	b.WriteString("\tfull_name TEXT\n")
	b.WriteString(")")
	return b.String()
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
