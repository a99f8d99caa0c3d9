package query

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// Plan is a structured execution plan.
type Plan struct {
	Query string
	Rows  []map[string]interface{}
}

// IndexSuggestion is a heuristic recommendation for one column.
type IndexSuggestion struct {
	Table         string
	Column        string
	DistinctRatio float64
	Statement     string
}

// Explain returns the database's execution plan for the statement.
func (o *Optimizer) Explain(ctx context.Context, sqlText string, params []interface{}) (*Plan, error) {
	normalized := normalizeSQL(sqlText)

	rows, err := o.db.QueryContext(ctx, "EXPLAIN "+normalized, params...)
	if err != nil {
		return nil, apperrors.NewStoreError("sql", "explain", err)
	}
	defer rows.Close()

	planRows, err := scanRows(rows)
	if err != nil {
		return nil, apperrors.NewStoreError("sql", "explain", err)
	}
	return &Plan{Query: normalized, Rows: planRows}, nil
}

// SuggestIndexes inspects column statistics for table and recommends indexes
// on unindexed columns whose distinct-value ratio is high. The heuristic
// favors high selectivity; low-cardinality columns are skipped.
func (o *Optimizer) SuggestIndexes(ctx context.Context, table string) ([]IndexSuggestion, error) {
	if !validIdentifier(table) {
		return nil, apperrors.NewValidationError("invalid table name", table)
	}

	candidates, err := o.unindexedColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	var suggestions []IndexSuggestion
	for _, column := range candidates {
		ratio, err := o.distinctRatio(ctx, table, column)
		if err != nil {
			o.log.Warnw("column statistics unavailable",
				"table", table,
				"column", column,
				"error", err,
			)
			continue
		}
		if ratio < 0.7 {
			continue
		}
		suggestions = append(suggestions, IndexSuggestion{
			Table:         table,
			Column:        column,
			DistinctRatio: ratio,
			Statement:     fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)", table, column, table, column),
		})
	}
	return suggestions, nil
}

func (o *Optimizer) unindexedColumns(ctx context.Context, table string) ([]string, error) {
	const q = `SELECT c.COLUMN_NAME FROM information_schema.COLUMNS c
		LEFT JOIN information_schema.STATISTICS s
		ON s.TABLE_SCHEMA = c.TABLE_SCHEMA AND s.TABLE_NAME = c.TABLE_NAME AND s.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = DATABASE() AND c.TABLE_NAME = ? AND s.INDEX_NAME IS NULL`

	rows, err := o.db.QueryContext(ctx, normalizeSQL(q), table)
	if err != nil {
		return nil, apperrors.NewStoreError("sql", "column_stats", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.NewStoreError("sql", "column_stats", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (o *Optimizer) distinctRatio(ctx context.Context, table, column string) (float64, error) {
	if !validIdentifier(column) {
		return 0, fmt.Errorf("invalid column name %q", column)
	}

	q := fmt.Sprintf("SELECT COUNT(DISTINCT %s), COUNT(*) FROM %s", column, table)
	var distinct, total float64
	if err := o.db.QueryRowContext(ctx, q).Scan(&distinct, &total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return distinct / total, nil
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return !strings.ContainsAny(name, " ;")
}
