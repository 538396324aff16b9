package adapter

import (
	"fmt"
	"strings"
)

// typeFamilies maps normalized type names to a family tag. Types in the
// same family are interchangeable for compatibility checks; date and time
// types require exact matches.
var typeFamilies = map[string]string{
	"INT":      "integer",
	"INTEGER":  "integer",
	"BIGINT":   "integer",
	"SMALLINT": "integer",
	"TINYINT":  "integer",

	"VARCHAR": "string",
	"TEXT":    "string",
	"STRING":  "string",
	"CHAR":    "string",

	"FLOAT":   "numeric",
	"DOUBLE":  "numeric",
	"REAL":    "numeric",
	"NUMERIC": "numeric",
	"DECIMAL": "numeric",

	"BOOLEAN": "boolean",
	"BOOL":    "boolean",

	"DATE":      "date",
	"TIME":      "time",
	"TIMESTAMP": "timestamp",
}

// normalizeType strips length/precision suffixes and dialect decoration:
// "VARCHAR(255)" becomes "VARCHAR", "timestamp without time zone"
// becomes "TIMESTAMP".
func normalizeType(typ string) string {
	t := strings.ToUpper(strings.TrimSpace(typ))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "CHARACTER", "BPCHAR":
		t = "CHAR"
	case "INT2":
		t = "SMALLINT"
	case "INT4":
		t = "INTEGER"
	case "INT8":
		t = "BIGINT"
	case "FLOAT4":
		t = "REAL"
	case "FLOAT8":
		t = "DOUBLE"
	case "TIMESTAMPTZ":
		t = "TIMESTAMP"
	}
	return t
}

// TypesCompatible reports whether two declared column types belong to the
// same type family. Unknown types are compatible only when their
// normalized names match exactly.
func TypesCompatible(a, b string) bool {
	na, nb := normalizeType(a), normalizeType(b)
	if na == nb {
		return true
	}
	fa, aok := typeFamilies[na]
	fb, bok := typeFamilies[nb]
	return aok && bok && fa == fb
}

// ValidateSchemaCompatibility checks whether incoming data shaped like
// source can be written into a table shaped like target. It returns one
// error string per problem: columns present in source but absent from
// target, and columns whose types fall in different families. Extra
// target columns are allowed (they stay NULL or keep defaults).
func ValidateSchemaCompatibility(target, source *TableSchema) []string {
	var errs []string
	for _, col := range source.Columns {
		existing := target.Column(col.Name)
		if existing == nil {
			errs = append(errs, fmt.Sprintf("column %q does not exist in table %s", col.Name, target.Name))
			continue
		}
		if !TypesCompatible(existing.Type, col.Type) {
			errs = append(errs, fmt.Sprintf(
				"column %q type mismatch: table has %s, incoming data has %s",
				col.Name, existing.Type, col.Type))
		}
	}
	return errs
}

// ValidateUpsertKeys verifies that every declared key column exists in
// the table schema.
func ValidateUpsertKeys(schema *TableSchema, keys []string) []string {
	var errs []string
	if len(keys) == 0 {
		errs = append(errs, "upsert requires at least one key column")
		return errs
	}
	for _, key := range keys {
		if schema.Column(key) == nil {
			errs = append(errs, fmt.Sprintf("upsert key column %q does not exist in table %s", key, schema.Name))
		}
	}
	return errs
}
