// Package parser provides lexing and parsing for .sf pipeline files.
// It turns pipeline text into a validated AST of typed steps.
package parser

import "strings"

// TokenType identifies the lexical class of a token.
type TokenType int

//nolint:revive // token names mirror the DSL terminals
const (
	EOF TokenType = iota
	ERROR
	IDENT
	STRING
	NUMBER
	JSON_OBJECT
	VARIABLE

	// Punctuation and operators
	SEMICOLON
	EQUALS
	DOT
	COMMA
	LPAREN
	RPAREN
	STAR
	CONCAT
	EQ
	NEQ
	LT
	GT
	LE
	GE
	PLUS
	MINUS
	SLASH
	PIPE

	// Keywords
	SOURCE
	TYPE
	PARAMS
	LOAD
	FROM
	EXPORT
	TO
	OPTIONS
	SELECT
	INCLUDE
	AS
	SET
	CREATE
	TABLE
	IF
	THEN
	ELSE
	ELSEIF
	END
	ENDIF
)

var tokenNames = map[TokenType]string{
	EOF:         "EOF",
	ERROR:       "ERROR",
	IDENT:       "IDENT",
	STRING:      "STRING",
	NUMBER:      "NUMBER",
	JSON_OBJECT: "JSON_OBJECT",
	VARIABLE:    "VARIABLE",
	SEMICOLON:   ";",
	EQUALS:      "=",
	DOT:         ".",
	COMMA:       ",",
	LPAREN:      "(",
	RPAREN:      ")",
	STAR:        "*",
	CONCAT:      "||",
	EQ:          "==",
	NEQ:         "!=",
	LT:          "<",
	GT:          ">",
	LE:          "<=",
	GE:          ">=",
	PLUS:        "+",
	MINUS:       "-",
	SLASH:       "/",
	PIPE:        "|",
	SOURCE:      "SOURCE",
	TYPE:        "TYPE",
	PARAMS:      "PARAMS",
	LOAD:        "LOAD",
	FROM:        "FROM",
	EXPORT:      "EXPORT",
	TO:          "TO",
	OPTIONS:     "OPTIONS",
	SELECT:      "SELECT",
	INCLUDE:     "INCLUDE",
	AS:          "AS",
	SET:         "SET",
	CREATE:      "CREATE",
	TABLE:       "TABLE",
	IF:          "IF",
	THEN:        "THEN",
	ELSE:        "ELSE",
	ELSEIF:      "ELSEIF",
	END:         "END",
	ENDIF:       "ENDIF",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// keywords maps lowercase identifiers to keyword token types.
// Keywords are matched case-insensitively before falling back to IDENT.
var keywords = map[string]TokenType{
	"source":  SOURCE,
	"type":    TYPE,
	"params":  PARAMS,
	"load":    LOAD,
	"from":    FROM,
	"export":  EXPORT,
	"to":      TO,
	"options": OPTIONS,
	"select":  SELECT,
	"include": INCLUDE,
	"as":      AS,
	"set":     SET,
	"create":  CREATE,
	"table":   TABLE,
	"if":      IF,
	"then":    THEN,
	"else":    ELSE,
	"elseif":  ELSEIF,
	"end":     END,
	"endif":   ENDIF,
}

// LookupIdent returns the keyword token type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// Token is a single lexical unit with its position in the source.
// Line and Column are 1-based; Offset is the 0-based byte position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
	Offset  int
}

// IsDirective reports whether the token starts a new pipeline statement.
// Used by the parser to resynchronize after an error.
func (t Token) IsDirective() bool {
	switch t.Type {
	case SOURCE, LOAD, EXPORT, INCLUDE, SET, CREATE, IF:
		return true
	}
	return false
}
