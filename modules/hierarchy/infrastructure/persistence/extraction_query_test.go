package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecodex-io/ecodex/modules/hierarchy/services"
)

func taxonConfig(policy services.IncompleteRowsPolicy) services.ExtractionConfig {
	return services.ExtractionConfig{
		Levels: []services.HierarchyLevel{
			{Name: "family", Column: "family"},
			{Name: "genus", Column: "genus"},
			{Name: "species", Column: "species"},
		},
		IDColumn:       "id",
		NameColumn:     "scientific_name",
		IncompleteRows: policy,
		IDStrategy:     services.IDStrategyHash,
	}
}

func TestBuildExtractionQuery_Shape(t *testing.T) {
	sql, err := BuildExtractionQuery("taxa_raw", "taxon", taxonConfig(services.IncompleteRowsSkip))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(sql, "WITH distinct_rows AS ("))
	require.Contains(t, sql, `FROM "taxa_raw"`)
	require.Contains(t, sql, `SELECT DISTINCT "family", "genus", "species", "id", "scientific_name"`)

	// One exploder per depth.
	require.Contains(t, sql, "0 AS level")
	require.Contains(t, sql, "1 AS level")
	require.Contains(t, sql, "2 AS level")
	require.Contains(t, sql, `'family' AS rank_name`)
	require.Contains(t, sql, `'genus' AS rank_name`)
	require.Contains(t, sql, `'species' AS rank_name`)
	require.Equal(t, 2, strings.Count(sql, "UNION ALL"))

	// Cumulative pipe-delimited paths.
	require.Contains(t, sql, `concat_ws('|', "family")`)
	require.Contains(t, sql, `concat_ws('|', "family", "genus")`)
	require.Contains(t, sql, `concat_ws('|', "family", "genus", "species")`)

	// External ids aggregate at every depth; full_name only at the deepest.
	require.Equal(t, 3, strings.Count(sql, `MIN("id")::bigint AS "taxon_id"`))
	require.Equal(t, 1, strings.Count(sql, `MIN("scientific_name") AS full_name`))
	require.Equal(t, 2, strings.Count(sql, "NULL::text AS full_name"))

	require.Contains(t, sql, `GROUP BY "family", "genus", "species"`)
	require.True(t, strings.HasSuffix(sql, "ORDER BY level, full_path"))
}

func TestBuildExtractionQuery_SkipPolicyFilters(t *testing.T) {
	sql, err := BuildExtractionQuery("taxa_raw", "taxon", taxonConfig(services.IncompleteRowsSkip))
	require.NoError(t, err)

	// Each depth requires its whole ancestor chain.
	require.Contains(t, sql, `WHERE btrim(coalesce("family", '')) <> ''`+"\n")
	require.Contains(t, sql, `WHERE btrim(coalesce("family", '')) <> '' AND btrim(coalesce("genus", '')) <> ''`)
	require.NotContains(t, sql, "NOT (")
}

func TestBuildExtractionQuery_ErrorPolicy(t *testing.T) {
	sql, err := BuildExtractionQuery("taxa_raw", "taxon", taxonConfig(services.IncompleteRowsError))
	require.NoError(t, err)

	// Rows with no usable level values are dropped in the CTE; partial rows
	// survive and produce short paths for the validator to reject.
	require.Contains(t, sql, `WHERE NOT (btrim(coalesce("family", '')) = '' AND btrim(coalesce("genus", '')) = '' AND btrim(coalesce("species", '')) = '')`)
	require.Contains(t, sql, `CASE WHEN btrim(coalesce("family", '')) = '' THEN NULL ELSE "family" END`)
	require.Contains(t, sql, `WHERE btrim(coalesce("genus", '')) <> ''`)
}

func TestBuildExtractionQuery_FillUnknownPolicy(t *testing.T) {
	sql, err := BuildExtractionQuery("taxa_raw", "taxon", taxonConfig(services.IncompleteRowsFillUnknown))
	require.NoError(t, err)

	require.Contains(t, sql, `CASE WHEN btrim(coalesce("family", '')) = '' THEN 'Unknown family' ELSE "family" END AS "family"`)
	require.Contains(t, sql, `CASE WHEN btrim(coalesce("species", '')) = '' THEN 'Unknown species' ELSE "species" END AS "species"`)
	// Substitution happens once in the CTE; the exploders see clean columns.
	require.NotContains(t, sql, "WHERE")
}

func TestBuildExtractionQuery_WithoutOptionalColumns(t *testing.T) {
	cfg := taxonConfig(services.IncompleteRowsSkip)
	cfg.IDColumn = ""
	cfg.NameColumn = ""
	cfg.IDStrategy = services.IDStrategySequence

	sql, err := BuildExtractionQuery("taxa_raw", "taxon", cfg)
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(sql, `NULL::bigint AS "taxon_id"`))
	require.Equal(t, 3, strings.Count(sql, "NULL::text AS full_name"))
}

func TestBuildExtractionQuery_AdditionalColumnsDeduped(t *testing.T) {
	cfg := taxonConfig(services.IncompleteRowsSkip)
	cfg.AdditionalColumns = []string{"authority", "year_described"}

	sql, err := BuildExtractionQuery("taxa_raw", "taxon", cfg)
	require.NoError(t, err)
	require.Contains(t, sql, `SELECT DISTINCT "family", "genus", "species", "id", "scientific_name", "authority", "year_described"`)
}

func TestBuildExtractionQuery_RejectsHostileIdentifiers(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(cfg *services.ExtractionConfig) (table string)
	}{
		{"table", func(cfg *services.ExtractionConfig) string { return "taxa_raw; DROP TABLE users" }},
		{"level column", func(cfg *services.ExtractionConfig) string {
			cfg.Levels[0].Column = `family" --`
			return "taxa_raw"
		}},
		{"id column", func(cfg *services.ExtractionConfig) string {
			cfg.IDColumn = "id, secret"
			return "taxa_raw"
		}},
		{"additional column", func(cfg *services.ExtractionConfig) string {
			cfg.AdditionalColumns = []string{"ok", "not ok"}
			return "taxa_raw"
		}},
	} {
		cfg := taxonConfig(services.IncompleteRowsSkip)
		table := tc.mutate(&cfg)
		_, err := BuildExtractionQuery(table, "taxon", cfg)
		require.Error(t, err, tc.name)
	}
}

func TestBuildExtractionQuery_EscapesLevelNameLiterals(t *testing.T) {
	cfg := taxonConfig(services.IncompleteRowsFillUnknown)
	cfg.Levels[1].Name = "grower's rank"

	sql, err := BuildExtractionQuery("taxa_raw", "taxon", cfg)
	require.NoError(t, err)
	require.Contains(t, sql, `'grower''s rank' AS rank_name`)
	require.Contains(t, sql, `'Unknown grower''s rank'`)
}
