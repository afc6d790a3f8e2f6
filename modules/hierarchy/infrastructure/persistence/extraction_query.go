package persistence

import (
	"fmt"
	"strings"

	"github.com/ecodex-io/ecodex/modules/hierarchy/services"
	"github.com/ecodex-io/ecodex/pkg/repo"
)

// BuildExtractionQuery composes the single aggregation statement that derives
// the per-level node set from a flat source table:
//
//  1. a dedup CTE selecting distinct level-column combinations, with the
//     incomplete-rows policy applied (fill_unknown substitution, or dropping
//     rows with no usable level values);
//  2. one exploder sub-query per hierarchy depth, each emitting level,
//     rank_name, rank_value, the cumulative pipe-delimited full_path, the
//     aggregated external id, and full_name at the deepest level only;
//  3. UNION ALL of the depths, deduplicated and ordered by (level, full_path).
//
// Table/column names originate from configuration, so every identifier is
// allow-listed and quoted; level names are embedded as escaped literals.
func BuildExtractionQuery(sourceTable, entityName string, cfg services.ExtractionConfig) (string, error) {
	if err := validateIdentifiers(sourceTable, entityName, cfg); err != nil {
		return "", err
	}

	extIDColumn := entityName + "_id"
	var b strings.Builder

	b.WriteString("WITH distinct_rows AS (\n")
	b.WriteString("\tSELECT DISTINCT ")
	b.WriteString(strings.Join(dedupColumns(cfg), ", "))
	b.WriteString("\n\tFROM ")
	b.WriteString(repo.QuoteIdent(sourceTable))
	if where := dedupFilter(cfg); where != "" {
		b.WriteString("\n\tWHERE ")
		b.WriteString(where)
	}
	b.WriteString("\n)\n")

	subQueries := make([]string, 0, len(cfg.Levels))
	for i := range cfg.Levels {
		subQueries = append(subQueries, levelSubQuery(i, extIDColumn, cfg))
	}

	b.WriteString("SELECT DISTINCT level, rank_name, rank_value, full_path, ")
	b.WriteString(repo.QuoteIdent(extIDColumn))
	b.WriteString(", full_name\nFROM (\n")
	b.WriteString(strings.Join(subQueries, "\n\tUNION ALL\n"))
	b.WriteString("\n) AS level_nodes\nORDER BY level, full_path")

	return b.String(), nil
}

func validateIdentifiers(sourceTable, entityName string, cfg services.ExtractionConfig) error {
	names := []string{sourceTable, entityName}
	for _, level := range cfg.Levels {
		names = append(names, level.Column)
	}
	if cfg.IDColumn != "" {
		names = append(names, cfg.IDColumn)
	}
	if cfg.NameColumn != "" {
		names = append(names, cfg.NameColumn)
	}
	names = append(names, cfg.AdditionalColumns...)

	for _, name := range names {
		if err := repo.ValidateIdent(name); err != nil {
			return err
		}
	}
	return nil
}

// blankExpr is true when the column is NULL or whitespace-only.
func blankExpr(column string) string {
	return fmt.Sprintf("btrim(coalesce(%s, '')) = ''", repo.QuoteIdent(column))
}

func presentExpr(column string) string {
	return fmt.Sprintf("btrim(coalesce(%s, '')) <> ''", repo.QuoteIdent(column))
}

func dedupColumns(cfg services.ExtractionConfig) []string {
	cols := make([]string, 0, len(cfg.Levels)+2+len(cfg.AdditionalColumns))
	for _, level := range cfg.Levels {
		quoted := repo.QuoteIdent(level.Column)
		if cfg.IncompleteRows == services.IncompleteRowsFillUnknown {
			cols = append(cols, fmt.Sprintf(
				"CASE WHEN %s THEN %s ELSE %s END AS %s",
				blankExpr(level.Column),
				repo.QuoteLiteral(services.UnknownPrefix+level.Name),
				quoted, quoted,
			))
			continue
		}
		cols = append(cols, quoted)
	}
	if cfg.IDColumn != "" {
		cols = append(cols, repo.QuoteIdent(cfg.IDColumn))
	}
	if cfg.NameColumn != "" {
		cols = append(cols, repo.QuoteIdent(cfg.NameColumn))
	}
	for _, extra := range cfg.AdditionalColumns {
		cols = append(cols, repo.QuoteIdent(extra))
	}
	return cols
}

// dedupFilter drops rows with no usable hierarchy values under the error
// policy. Rows with partial gaps are kept: the integrity validator is the
// component that turns those into a hard failure.
func dedupFilter(cfg services.ExtractionConfig) string {
	if cfg.IncompleteRows != services.IncompleteRowsError {
		return ""
	}
	blanks := make([]string, 0, len(cfg.Levels))
	for _, level := range cfg.Levels {
		blanks = append(blanks, blankExpr(level.Column))
	}
	return "NOT (" + strings.Join(blanks, " AND ") + ")"
}

func levelSubQuery(depth int, extIDColumn string, cfg services.ExtractionConfig) string {
	level := cfg.Levels[depth]
	deepest := depth == len(cfg.Levels)-1

	extIDExpr := "NULL::bigint"
	if cfg.IDColumn != "" {
		extIDExpr = fmt.Sprintf("MIN(%s)::bigint", repo.QuoteIdent(cfg.IDColumn))
	}
	fullNameExpr := "NULL::text"
	if deepest && cfg.NameColumn != "" {
		fullNameExpr = fmt.Sprintf("MIN(%s)", repo.QuoteIdent(cfg.NameColumn))
	}

	groupBy := make([]string, 0, depth+1)
	for i := 0; i <= depth; i++ {
		groupBy = append(groupBy, repo.QuoteIdent(cfg.Levels[i].Column))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\tSELECT\n")
	fmt.Fprintf(&b, "\t\t%d AS level,\n", depth)
	fmt.Fprintf(&b, "\t\t%s AS rank_name,\n", repo.QuoteLiteral(level.Name))
	fmt.Fprintf(&b, "\t\t%s AS rank_value,\n", repo.QuoteIdent(level.Column))
	fmt.Fprintf(&b, "\t\t%s AS full_path,\n", pathExpr(depth, cfg))
	fmt.Fprintf(&b, "\t\t%s AS %s,\n", extIDExpr, repo.QuoteIdent(extIDColumn))
	fmt.Fprintf(&b, "\t\t%s AS full_name\n", fullNameExpr)
	fmt.Fprintf(&b, "\tFROM distinct_rows\n")
	if where := levelFilter(depth, cfg); where != "" {
		fmt.Fprintf(&b, "\tWHERE %s\n", where)
	}
	fmt.Fprintf(&b, "\tGROUP BY %s", strings.Join(groupBy, ", "))
	return b.String()
}

// pathExpr builds the cumulative pipe-delimited path over depths 0..depth.
// Under the error policy blank ancestors are skipped, producing a short path
// that the validator reports as a gap; under skip/fill_unknown every segment
// is guaranteed present.
func pathExpr(depth int, cfg services.ExtractionConfig) string {
	segments := make([]string, 0, depth+1)
	for i := 0; i <= depth; i++ {
		quoted := repo.QuoteIdent(cfg.Levels[i].Column)
		if cfg.IncompleteRows == services.IncompleteRowsError {
			segments = append(segments, fmt.Sprintf(
				"CASE WHEN %s THEN NULL ELSE %s END", blankExpr(cfg.Levels[i].Column), quoted,
			))
			continue
		}
		segments = append(segments, quoted)
	}
	return fmt.Sprintf("concat_ws('%s', %s)", services.PathDelimiter, strings.Join(segments, ", "))
}

func levelFilter(depth int, cfg services.ExtractionConfig) string {
	switch cfg.IncompleteRows {
	case services.IncompleteRowsSkip:
		// A node exists at this depth only when the whole ancestor chain is populated.
		conds := make([]string, 0, depth+1)
		for i := 0; i <= depth; i++ {
			conds = append(conds, presentExpr(cfg.Levels[i].Column))
		}
		return strings.Join(conds, " AND ")
	case services.IncompleteRowsError:
		return presentExpr(cfg.Levels[depth].Column)
	default:
		return ""
	}
}
