package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func() Engine { return NewDuckDBEngine() })
}

// DuckDBEngine implements the Engine interface for DuckDB.
type DuckDBEngine struct {
	sqlEngine
}

// NewDuckDBEngine creates a new, unconnected DuckDB engine.
func NewDuckDBEngine() *DuckDBEngine {
	return &DuckDBEngine{}
}

// NewDuckDBEngineFromDB wraps an existing connection. Used by tests to
// inject a mock database.
func NewDuckDBEngineFromDB(db *sql.DB) *DuckDBEngine {
	e := &DuckDBEngine{}
	e.db = db
	return e
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (e *DuckDBEngine) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	e.db = db
	e.config = cfg

	return nil
}

// TableExists reports whether a table is visible in the catalog.
func (e *DuckDBEngine) TableExists(ctx context.Context, table string) (bool, error) {
	return e.tableExists(ctx, table, "main")
}

// GetTableSchema retrieves schema metadata for a table.
func (e *DuckDBEngine) GetTableSchema(ctx context.Context, table string) (*TableSchema, error) {
	return e.getTableSchema(ctx, table, "main")
}

// RegisterTable makes a data file queryable as a table using DuckDB's
// file readers with automatic schema detection.
func (e *DuckDBEngine) RegisterTable(ctx context.Context, tableName string, filePath string, format string) error {
	if e.db == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var reader string
	switch strings.ToLower(format) {
	case "csv", "":
		reader = fmt.Sprintf("read_csv_auto('%s', header=true)", absPath)
	case "parquet":
		reader = fmt.Sprintf("read_parquet('%s')", absPath)
	case "json":
		reader = fmt.Sprintf("read_json_auto('%s')", absPath)
	default:
		return fmt.Errorf("unsupported file format %q", format)
	}

	query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", tableName, reader)
	if _, err := e.ExecuteQuery(ctx, query); err != nil {
		return fmt.Errorf("failed to register %s table %s: %w", format, tableName, err)
	}

	return nil
}

// ExportQuery writes a query's result to a destination file using
// DuckDB's COPY statement.
func (e *DuckDBEngine) ExportQuery(ctx context.Context, query, destPath, format string, options map[string]any) error {
	if e.db == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var opts []string
	switch strings.ToLower(format) {
	case "csv", "":
		opts = append(opts, "FORMAT CSV")
		header := true
		if v, ok := options["header"].(bool); ok {
			header = v
		}
		if header {
			opts = append(opts, "HEADER")
		}
		if delim, ok := options["delimiter"].(string); ok {
			opts = append(opts, fmt.Sprintf("DELIMITER '%s'", delim))
		}
	case "parquet":
		opts = append(opts, "FORMAT PARQUET")
	case "json":
		opts = append(opts, "FORMAT JSON")
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	stmt := fmt.Sprintf("COPY (%s) TO '%s' (%s)", query, absPath, strings.Join(opts, ", "))
	if _, err := e.ExecuteQuery(ctx, stmt); err != nil {
		return fmt.Errorf("failed to export to %s: %w", destPath, err)
	}

	return nil
}

// DialectName returns the SQL dialect name.
func (e *DuckDBEngine) DialectName() string {
	return "duckdb"
}

// Ensure DuckDBEngine implements Engine interface
var _ Engine = (*DuckDBEngine)(nil)
