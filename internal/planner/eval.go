package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalCondition evaluates a conditional directive expression after
// variable substitution. Supported forms: comparisons with == != < > <= >=,
// boolean combinators AND OR NOT (case-insensitive), parentheses, quoted
// strings, numbers, and bare words treated as strings. Comparisons are
// numeric when both operands parse as numbers, string otherwise.
func EvalCondition(expr string) (bool, error) {
	tokens, err := tokenizeCondition(expr)
	if err != nil {
		return false, err
	}
	p := &condParser{tokens: tokens}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.atEnd() {
		return false, fmt.Errorf("unexpected %q", p.tokens[p.pos].text)
	}
	return result.truthy(), nil
}

type condTokenKind int

const (
	condValue condTokenKind = iota
	condOperator
	condLParen
	condRParen
	condAnd
	condOr
	condNot
)

type condToken struct {
	kind condTokenKind
	text string
}

func tokenizeCondition(expr string) ([]condToken, error) {
	var tokens []condToken
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, condToken{condLParen, "("})
			i++
		case ch == ')':
			tokens = append(tokens, condToken{condRParen, ")"})
			i++
		case ch == '=' || ch == '!' || ch == '<' || ch == '>':
			op := string(ch)
			if i+1 < len(expr) && expr[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q", op)
			}
			tokens = append(tokens, condToken{condOperator, op})
		case ch == '\'' || ch == '"':
			quote := ch
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string")
			}
			tokens = append(tokens, condToken{condValue, expr[i+1 : j]})
			i = j + 1
		default:
			j := i
			for j < len(expr) && !strings.ContainsRune(" \t\n\r()=!<>'\"", rune(expr[j])) {
				j++
			}
			word := expr[i:j]
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, condToken{condAnd, word})
			case "OR":
				tokens = append(tokens, condToken{condOr, word})
			case "NOT":
				tokens = append(tokens, condToken{condNot, word})
			default:
				tokens = append(tokens, condToken{condValue, word})
			}
			i = j
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty condition")
	}
	return tokens, nil
}

// condValueResult carries either a comparison outcome or a raw operand.
type condResult struct {
	isBool bool
	b      bool
	text   string
}

func (r condResult) truthy() bool {
	if r.isBool {
		return r.b
	}
	switch strings.ToLower(r.text) {
	case "", "false", "0", "no", "off":
		return false
	}
	return true
}

type condParser struct {
	tokens []condToken
	pos    int
}

func (p *condParser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *condParser) peek() (condToken, bool) {
	if p.atEnd() {
		return condToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *condParser) parseOr() (condResult, error) {
	left, err := p.parseAnd()
	if err != nil {
		return condResult{}, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != condOr {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return condResult{}, err
		}
		left = condResult{isBool: true, b: left.truthy() || right.truthy()}
	}
}

func (p *condParser) parseAnd() (condResult, error) {
	left, err := p.parseNot()
	if err != nil {
		return condResult{}, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != condAnd {
			return left, nil
		}
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return condResult{}, err
		}
		left = condResult{isBool: true, b: left.truthy() && right.truthy()}
	}
}

func (p *condParser) parseNot() (condResult, error) {
	if tok, ok := p.peek(); ok && tok.kind == condNot {
		p.pos++
		inner, err := p.parseNot()
		if err != nil {
			return condResult{}, err
		}
		return condResult{isBool: true, b: !inner.truthy()}, nil
	}
	return p.parseComparison()
}

func (p *condParser) parseComparison() (condResult, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return condResult{}, err
	}
	tok, ok := p.peek()
	if !ok || tok.kind != condOperator {
		return left, nil
	}
	p.pos++
	right, err := p.parsePrimary()
	if err != nil {
		return condResult{}, err
	}
	return compare(left, tok.text, right)
}

func (p *condParser) parsePrimary() (condResult, error) {
	tok, ok := p.peek()
	if !ok {
		return condResult{}, fmt.Errorf("unexpected end of condition")
	}
	switch tok.kind {
	case condLParen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return condResult{}, err
		}
		next, ok := p.peek()
		if !ok || next.kind != condRParen {
			return condResult{}, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	case condValue:
		p.pos++
		return condResult{text: tok.text}, nil
	default:
		return condResult{}, fmt.Errorf("unexpected %q", tok.text)
	}
}

func compare(left condResult, op string, right condResult) (condResult, error) {
	ls, rs := left.text, right.text
	if left.isBool {
		ls = strconv.FormatBool(left.b)
	}
	if right.isBool {
		rs = strconv.FormatBool(right.b)
	}

	var result bool
	ln, lerr := strconv.ParseFloat(ls, 64)
	rn, rerr := strconv.ParseFloat(rs, 64)
	if lerr == nil && rerr == nil {
		switch op {
		case "==":
			result = ln == rn
		case "!=":
			result = ln != rn
		case "<":
			result = ln < rn
		case ">":
			result = ln > rn
		case "<=":
			result = ln <= rn
		case ">=":
			result = ln >= rn
		}
	} else {
		switch op {
		case "==":
			result = ls == rs
		case "!=":
			result = ls != rs
		case "<":
			result = ls < rs
		case ">":
			result = ls > rs
		case "<=":
			result = ls <= rs
		case ">=":
			result = ls >= rs
		}
	}
	return condResult{isBool: true, b: result}, nil
}
