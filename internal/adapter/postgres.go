package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", func() Engine { return NewPostgresEngine() })
}

// PostgresEngine implements the Engine interface for PostgreSQL using the
// pgx driver through database/sql.
type PostgresEngine struct {
	sqlEngine
}

// NewPostgresEngine creates a new, unconnected Postgres engine.
func NewPostgresEngine() *PostgresEngine {
	e := &PostgresEngine{}
	e.dollarParams = true
	return e
}

// Connect establishes a connection to PostgreSQL.
func (e *PostgresEngine) Connect(ctx context.Context, cfg Config) error {
	dsn := connString(cfg)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	e.db = db
	e.config = cfg

	return nil
}

func connString(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			u.User = url.User(cfg.Username)
		}
	}

	q := u.Query()
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (e *PostgresEngine) defaultSchema() string {
	if e.config.Schema != "" {
		return e.config.Schema
	}
	return "public"
}

// TableExists reports whether a table is visible in the catalog.
func (e *PostgresEngine) TableExists(ctx context.Context, table string) (bool, error) {
	return e.tableExists(ctx, table, e.defaultSchema())
}

// GetTableSchema retrieves schema metadata for a table.
func (e *PostgresEngine) GetTableSchema(ctx context.Context, table string) (*TableSchema, error) {
	return e.getTableSchema(ctx, table, e.defaultSchema())
}

// RegisterTable loads a data file into a table. Postgres has no file
// readers equivalent to DuckDB's, so only server-side CSV COPY is
// supported.
func (e *PostgresEngine) RegisterTable(ctx context.Context, tableName string, filePath string, format string) error {
	if e.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if format != "" && format != "csv" {
		return fmt.Errorf("postgres engine cannot register %s files", format)
	}

	stmt := fmt.Sprintf("COPY %s FROM '%s' WITH (FORMAT csv, HEADER true)", tableName, filePath)
	if _, err := e.ExecuteQuery(ctx, stmt); err != nil {
		return fmt.Errorf("failed to register csv table %s: %w", tableName, err)
	}

	return nil
}

// DialectName returns the SQL dialect name.
func (e *PostgresEngine) DialectName() string {
	return "postgres"
}

// Ensure PostgresEngine implements Engine interface
var _ Engine = (*PostgresEngine)(nil)
