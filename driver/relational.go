// Package driver provides the concrete store backends. The relational
// store runs on SQLite, the document store on MongoDB. Both satisfy the
// engine's store interfaces structurally and depend only on the domain
// model, so the core stays free of driver imports.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phraseql/phraseql/domain/model"

	// SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Relational is a SQLite-backed relational store.
type Relational struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenRelational opens a SQLite database at the given path. Use ":memory:"
// for an in-process store that vanishes on close.
func OpenRelational(ctx context.Context, path string, logger *slog.Logger) (*Relational, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return &Relational{db: db, logger: logger}, nil
}

// Close closes the underlying database handle.
func (r *Relational) Close() error {
	return r.db.Close()
}

// DB exposes the underlying handle for callers that need raw access.
func (r *Relational) DB() *sql.DB {
	return r.db
}

// Materialize creates the plan's table and inserts its rows in a single
// transaction, so a failed ingestion leaves no partial table behind.
func (r *Relational) Materialize(ctx context.Context, plan *model.RelationalPlan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, plan.CreateSQL); err != nil {
		return fmt.Errorf("create table %s: %w", plan.Table, err)
	}

	stmt, err := tx.PrepareContext(ctx, plan.InsertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", plan.Table, err)
	}
	defer stmt.Close()

	for _, row := range plan.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert into %s: %w", plan.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", plan.Table, err)
	}
	r.logger.Debug("materialized table", "table", plan.Table, "rows", len(plan.Rows))
	return nil
}

// Select runs a query and scans every row into a column-name map. Byte
// slices become strings so results stay printable and comparable.
func (r *Relational) Select(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return results, nil
}

// ListTables introspects every user table and rebuilds its dataset
// descriptor from the table schema.
func (r *Relational) ListTables(ctx context.Context) ([]*model.Dataset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	datasets := make([]*model.Dataset, 0, len(names))
	for _, name := range names {
		columns, err := r.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		count, err := r.tableRowCount(ctx, name)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, model.NewDataset(name, model.BackendRelational, columns, count))
	}
	return datasets, nil
}

// tableColumns reads a table's schema via PRAGMA table_info.
func (r *Relational) tableColumns(ctx context.Context, table string) ([]model.ColumnDescriptor, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []model.ColumnDescriptor
	for rows.Next() {
		var (
			cid          int
			name         string
			declared     string
			notNull      int
			defaultValue sql.NullString
			primaryKey   int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &defaultValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns = append(columns, model.ColumnDescriptor{
			Name:     name,
			Type:     columnTypeFromDeclared(declared),
			Nullable: notNull == 0 && primaryKey == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

// tableRowCount counts a table's rows.
func (r *Relational) tableRowCount(ctx context.Context, table string) (int, error) {
	var count int
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", table))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return count, nil
}

// columnTypeFromDeclared maps a declared SQL type back to the domain
// column type. Unknown declarations default to text, matching SQLite's
// affinity behavior.
func columnTypeFromDeclared(declared string) model.ColumnType {
	switch strings.ToUpper(strings.TrimSpace(declared)) {
	case "INTEGER":
		return model.ColumnTypeInteger
	case "REAL":
		return model.ColumnTypeFloat
	case "BOOLEAN":
		return model.ColumnTypeBoolean
	default:
		return model.ColumnTypeText
	}
}
