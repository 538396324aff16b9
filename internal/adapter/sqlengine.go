package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqlEngine holds the database/sql plumbing shared by engines built on a
// standard driver. Dialect-specific behavior (connection strings, table
// registration) lives in the embedding type.
type sqlEngine struct {
	db     *sql.DB
	config Config

	// dollarParams rewrites ? placeholders to $1..$n for drivers that
	// only accept numbered parameters.
	dollarParams bool
}

// rebind converts ? placeholders to $N form when the driver requires it.
func (e *sqlEngine) rebind(query string) string {
	if !e.dollarParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e *sqlEngine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// DB exposes the underlying connection for callers that need transaction
// control, such as the incremental loader.
func (e *sqlEngine) DB() *sql.DB {
	return e.db
}

// returnsRows sniffs the statement prefix to pick the query or exec path.
func returnsRows(sqlStr string) bool {
	trimmed := strings.TrimSpace(sqlStr)
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "PRAGMA", "EXPLAIN"} {
		if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}

// ExecuteQuery runs a SQL statement, materializing rows for row-returning
// statements and reporting affected rows for the rest.
func (e *sqlEngine) ExecuteQuery(ctx context.Context, sqlStr string) (*QueryResult, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	if !returnsRows(sqlStr) {
		res, err := e.db.ExecContext(ctx, sqlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to execute SQL: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			// Some drivers cannot report this for DDL.
			affected = 0
		}
		return &QueryResult{RowsAffected: affected}, nil
	}

	rows, err := e.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	return result, nil
}

// Query executes a row-returning statement for streaming consumption.
func (e *sqlEngine) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := e.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	return &Rows{Rows: rows}, nil
}

// splitQualified splits schema.table, defaulting the schema.
func splitQualified(table, defaultSchema string) (string, string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// tableExists checks information_schema, shared across dialects.
func (e *sqlEngine) tableExists(ctx context.Context, table, defaultSchema string) (bool, error) {
	if e.db == nil {
		return false, fmt.Errorf("database connection not established")
	}

	schema, tableName := splitQualified(table, defaultSchema)
	query := e.rebind(`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`)
	var count int64
	if err := e.db.QueryRowContext(ctx, query, schema, tableName).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// getTableSchema reads column metadata from information_schema.
func (e *sqlEngine) getTableSchema(ctx context.Context, table, defaultSchema string) (*TableSchema, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema, tableName := splitQualified(table, defaultSchema)
	query := e.rebind(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`)

	rows, err := e.db.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", schema, tableName) //nolint:gosec // Table names are validated by caller
	var rowCount int64
	if err := e.db.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		// Non-fatal, leave the count at 0.
		rowCount = 0
	}

	return &TableSchema{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}
