package parser

import (
	"fmt"
	"strings"
)

// ParseError is a parsing failure with exact source position.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// ErrorList aggregates the parse errors collected across one parse pass.
// The parser resynchronizes after each statement-level failure, so a
// single pass can report several independent errors.
type ErrorList []*ParseError

func (l ErrorList) Error() string {
	if len(l) == 0 {
		return "no parse errors"
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// First returns the first error, for callers in strict mode.
func (l ErrorList) First() *ParseError {
	if len(l) == 0 {
		return nil
	}
	return l[0]
}
