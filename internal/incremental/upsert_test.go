package incremental

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

func TestUpsertExecute_RequiresKeys(t *testing.T) {
	engine := newFakeEngine()
	s := NewUpsertStrategy(engine, SourceWins)

	result := s.Execute(context.Background(), DataSource{SourceQuery: "SELECT 1"}, "users")

	assert.False(t, result.Success())
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "requires key columns")
	assert.Empty(t, engine.executed, "validation failure must run zero SQL")
}

func TestUpsertExecute_LatestWinsRequiresTimeColumn(t *testing.T) {
	engine := newFakeEngine()
	s := NewUpsertStrategy(engine, LatestWins)

	result := s.Execute(context.Background(),
		DataSource{SourceQuery: "SELECT 1", KeyColumns: []string{"id"}}, "users")

	assert.False(t, result.Success())
	assert.Contains(t, result.ValidationErrors[0], "time column")
	assert.Empty(t, engine.executed)
}

func TestUpsertExecute_UnknownKeyColumn(t *testing.T) {
	engine := newFakeEngine()
	engine.schema = usersSchema()
	s := NewUpsertStrategy(engine, SourceWins)

	result := s.Execute(context.Background(),
		DataSource{SourceQuery: "SELECT 1", KeyColumns: []string{"missing"}}, "users")

	assert.False(t, result.Success())
	assert.Contains(t, result.ValidationErrors[0], `"missing"`)
	assert.Empty(t, engine.executed, "key validation happens before SQL")
}

func TestUpsertExecute_SourceWins(t *testing.T) {
	engine := newFakeEngine()
	engine.schema = usersSchema()
	engine.results["UPDATE users"] = &adapter.QueryResult{RowsAffected: 3}
	engine.results["INSERT INTO users"] = &adapter.QueryResult{RowsAffected: 5}
	s := NewUpsertStrategy(engine, SourceWins)

	source := DataSource{SourceQuery: "SELECT * FROM staging_users", KeyColumns: []string{"id"}}
	result := s.Execute(context.Background(), source, "users")

	require.True(t, result.Success(), "errors: %v", result.ValidationErrors)
	assert.Equal(t, int64(3), result.RowsUpdated)
	assert.Equal(t, int64(5), result.RowsInserted)
	assert.Equal(t, int64(8), result.TotalRowsAffected())

	require.Len(t, engine.executed, 2)
	update, insert := engine.executed[0], engine.executed[1]
	assert.Contains(t, update, `"name" = src."name"`)
	assert.NotContains(t, update, `"id" = src."id"`, "key columns must not be overwritten")
	assert.Contains(t, update, `users."id" = src."id"`)
	assert.Contains(t, insert, "NOT EXISTS")
	assert.Contains(t, insert, `users."id" = src."id"`)
}

func TestUpsertExecute_LatestWinsComparesTimestamps(t *testing.T) {
	engine := newFakeEngine()
	engine.schema = usersSchema()
	s := NewUpsertStrategy(engine, LatestWins)

	source := DataSource{
		SourceQuery: "SELECT * FROM staging_users",
		KeyColumns:  []string{"id"},
		TimeColumn:  "updated_at",
	}
	result := s.Execute(context.Background(), source, "users")

	require.True(t, result.Success())
	assert.Contains(t, engine.executed[0], `src."updated_at" >= users."updated_at"`)
}

func TestUpsertCanHandle(t *testing.T) {
	s := NewUpsertStrategy(newFakeEngine(), SourceWins)

	assert.True(t, s.CanHandle(LoadPattern{HasPrimaryKey: true, InsertRate: 0.3, UpdateRate: 0.4}))
	assert.True(t, s.CanHandle(LoadPattern{HasPrimaryKey: true, InsertRate: 0.1, UpdateRate: 0.2}))
	assert.False(t, s.CanHandle(LoadPattern{InsertRate: 0.3, UpdateRate: 0.4}), "no primary key")
	assert.False(t, s.CanHandle(LoadPattern{HasPrimaryKey: true, InsertRate: 0.3, UpdateRate: 0.1}), "update rate too low")
	assert.False(t, s.CanHandle(LoadPattern{HasPrimaryKey: true, UpdateRate: 0.4}), "no inserts expected")
}
