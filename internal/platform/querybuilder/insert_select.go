package querybuilder

import (
	"fmt"
	"strings"
)

type computedColumn struct {
	column string
	expr   string
}

// InsertSelectBuilder renders INSERT ... SELECT FROM (VALUES ...) so extra
// columns can be derived per row inside the same statement. Computed
// expressions reference the VALUES rows through the alias "v".
type InsertSelectBuilder struct {
	table    string
	columns  []string
	casts    []string
	rows     [][]any
	computed []computedColumn
	suffix   string
}

func InsertSelect(table string) *InsertSelectBuilder {
	return &InsertSelectBuilder{table: table}
}

func (b *InsertSelectBuilder) Columns(columns ...string) *InsertSelectBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

// Casts sets a postgres type per column; VALUES lists need explicit types for
// placeholders that are compared against table columns.
func (b *InsertSelectBuilder) Casts(casts ...string) *InsertSelectBuilder {
	b.casts = append([]string(nil), casts...)
	return b
}

func (b *InsertSelectBuilder) Values(values ...any) *InsertSelectBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

func (b *InsertSelectBuilder) Computed(column, expr string) *InsertSelectBuilder {
	b.computed = append(b.computed, computedColumn{column: column, expr: expr})
	return b
}

func (b *InsertSelectBuilder) Suffix(sql string) *InsertSelectBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *InsertSelectBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("insert table is required")
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("insert columns are required")
	}
	if len(b.casts) != 0 && len(b.casts) != len(b.columns) {
		return "", nil, fmt.Errorf("insert casts has %d entries, expected %d", len(b.casts), len(b.columns))
	}
	if len(b.rows) == 0 {
		return "", nil, fmt.Errorf("insert values are required")
	}

	var buf strings.Builder
	buf.WriteString("INSERT INTO ")
	buf.WriteString(b.table)
	buf.WriteString(" (")
	buf.WriteString(strings.Join(b.columns, ", "))
	for _, c := range b.computed {
		buf.WriteString(", ")
		buf.WriteString(c.column)
	}
	buf.WriteString(") SELECT ")
	for i, col := range b.columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("v.")
		buf.WriteString(col)
	}
	for _, c := range b.computed {
		buf.WriteString(", ")
		buf.WriteString(c.expr)
	}
	buf.WriteString(" FROM (VALUES ")

	args := make([]any, 0, len(b.rows)*len(b.columns))
	argIndex := 1
	for rowIdx, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", rowIdx, len(row), len(b.columns))
		}
		if rowIdx > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("(")
		for colIdx, value := range row {
			if colIdx > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(placeholder(argIndex))
			if len(b.casts) > 0 && b.casts[colIdx] != "" {
				buf.WriteString("::")
				buf.WriteString(b.casts[colIdx])
			}
			args = append(args, value)
			argIndex++
		}
		buf.WriteString(")")
	}
	buf.WriteString(") AS v (")
	buf.WriteString(strings.Join(b.columns, ", "))
	buf.WriteString(")")

	if b.suffix != "" {
		buf.WriteString(" ")
		buf.WriteString(b.suffix)
	}

	return buf.String(), args, nil
}
