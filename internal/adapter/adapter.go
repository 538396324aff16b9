// Package adapter provides storage engine interfaces and implementations
// for SQLFlow's pipeline executor.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a storage engine.
type Config struct {
	// Type specifies the engine type (e.g., "duckdb", "postgres")
	Type string

	// Path is the file path for file-based engines (e.g., DuckDB)
	// Use ":memory:" for in-memory databases
	Path string

	// Host is the hostname for network-based engines
	Host string

	// Port is the port number for network-based engines
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Schema is the default schema to use
	Schema string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Column represents a column in a table schema.
type Column struct {
	// Name is the column name
	Name string

	// Type is the declared data type of the column
	Type string

	// Nullable indicates whether the column allows NULL values
	Nullable bool

	// PrimaryKey indicates whether the column is part of the primary key
	PrimaryKey bool

	// Position is the ordinal position of the column in the table
	Position int
}

// TableSchema describes a table's shape as reported by the engine.
type TableSchema struct {
	// Schema is the namespace containing the table
	Schema string

	// Name is the table name
	Name string

	// Columns in ordinal order
	Columns []Column

	// RowCount is the approximate number of rows (may not be exact)
	RowCount int64
}

// Column returns the named column, or nil when absent.
func (s *TableSchema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// QueryResult carries the outcome of ExecuteQuery. Row-returning
// statements populate Columns and Rows; mutating statements populate
// RowsAffected.
type QueryResult struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// ScalarInt returns the first cell of the first row as an int64.
// Missing rows or non-numeric cells yield zero.
func (r *QueryResult) ScalarInt() int64 {
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return 0
	}
	switch v := r.Rows[0][0].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case uint64:
		return int64(v)
	}
	return 0
}

// Rows wraps sql.Rows to provide a consistent streaming interface across
// engines.
type Rows struct {
	*sql.Rows
}

// Engine defines the interface every storage engine must implement. It
// covers SQL execution, table registration for external files, and the
// metadata the incremental loader and schema validator need.
type Engine interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// ExecuteQuery runs a SQL statement. Row-returning statements come
	// back fully materialized; mutating statements report affected rows.
	ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error)

	// Query executes a row-returning statement for streaming consumption.
	// Callers must close the result and check Rows.Err after iteration.
	Query(ctx context.Context, sql string) (*Rows, error)

	// TableExists reports whether a table is visible to the engine.
	TableExists(ctx context.Context, table string) (bool, error)

	// GetTableSchema retrieves schema metadata for a table.
	GetTableSchema(ctx context.Context, table string) (*TableSchema, error)

	// RegisterTable makes an external data file (CSV, Parquet) queryable
	// under the given table name.
	RegisterTable(ctx context.Context, tableName string, filePath string, format string) error

	// DialectName returns the SQL dialect name for this engine.
	DialectName() string
}
