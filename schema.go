package phraseql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phraseql/phraseql/domain/model"
)

// primaryKeyColumn is promoted to PRIMARY KEY when a column with exactly
// this normalized name exists.
const primaryKeyColumn = "id"

// buildPlan turns inferred columns and well-formed rows into a
// materialization plan for the chosen backend. The caller filters ragged
// rows with splitWellFormed first and passes the skip count through.
func buildPlan(name string, backend model.Backend, columns []model.ColumnDescriptor, records []model.Record, skipped int) *model.MaterializationPlan {
	plan := &model.MaterializationPlan{
		Backend: backend,
		Skipped: skipped,
	}
	if backend == model.BackendDocument {
		plan.Document = buildDocumentPlan(name, columns, records)
		return plan
	}
	plan.Relational = buildRelationalPlan(name, columns, records)
	return plan
}

// splitWellFormed separates records matching the header width from the
// rest. It runs before type inference, so a malformed row is skipped and
// counted without influencing the schema. Records shorter than the header
// count as well-formed only when they came from formats that pad missing
// fields; by this point any padding already happened, so a length mismatch
// is a malformed row.
func splitWellFormed(width int, records []model.Record) ([]model.Record, int) {
	good := make([]model.Record, 0, len(records))
	skipped := 0
	for _, record := range records {
		if len(record) != width {
			skipped++
			continue
		}
		good = append(good, record)
	}
	return good, skipped
}

// buildRelationalPlan emits a CREATE TABLE statement with one typed column
// per descriptor and a parameterized batch insert. A column named exactly
// "id" is promoted to primary key; otherwise the table has none.
func buildRelationalPlan(name string, columns []model.ColumnDescriptor, records []model.Record) *model.RelationalPlan {
	columnDefs := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for _, col := range columns {
		def := fmt.Sprintf("%q %s", col.Name, col.Type.RelationalType())
		if col.Name == primaryKeyColumn {
			def += " PRIMARY KEY"
		}
		columnDefs = append(columnDefs, def)
		placeholders = append(placeholders, "?")
	}

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = coerceValue(record[i], col.Type)
		}
		rows = append(rows, row)
	}

	return &model.RelationalPlan{
		Table: name,
		CreateSQL: fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (%s)`,
			name,
			strings.Join(columnDefs, ", "),
		),
		InsertSQL: fmt.Sprintf(
			`INSERT INTO %q VALUES (%s)`,
			name,
			strings.Join(placeholders, ", "),
		),
		Rows: rows,
	}
}

// buildDocumentPlan emits one document per row with normalized field names
// and values coerced to the inferred types.
func buildDocumentPlan(name string, columns []model.ColumnDescriptor, records []model.Record) *model.DocumentPlan {
	documents := make([]map[string]any, 0, len(records))
	for _, record := range records {
		doc := make(map[string]any, len(columns))
		for i, col := range columns {
			doc[col.Name] = coerceValue(record[i], col.Type)
		}
		documents = append(documents, doc)
	}

	return &model.DocumentPlan{
		Collection: name,
		Documents:  documents,
	}
}

// coerceValue converts a raw string field to the Go value matching the
// inferred column type. Empty values become nil so both stores see them as
// NULL/missing. A value that no longer parses (possible when inference ran
// on a sample) falls back to the raw string.
func coerceValue(raw string, colType model.ColumnType) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	switch colType {
	case model.ColumnTypeInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	case model.ColumnTypeFloat:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case model.ColumnTypeBoolean:
		switch strings.ToLower(trimmed) {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	}
	return raw
}
