package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parser is a recursive-descent consumer of the token stream produced by
// the Lexer. One Parser instance parses one pipeline text.
type Parser struct {
	tokens []Token
	pos    int
	errors ErrorList
}

// Parse parses pipeline text in strict mode: the first collected error is
// returned and the partial AST discarded.
func Parse(text string) (*Pipeline, error) {
	pipeline, errs := ParseCollect(text)
	if len(errs) > 0 {
		return nil, errs.First()
	}
	return pipeline, nil
}

// ParseCollect parses pipeline text, resynchronizing after statement-level
// failures so one pass can surface multiple independent errors. The
// returned pipeline holds every step that parsed cleanly.
func ParseCollect(text string) (*Pipeline, ErrorList) {
	p := &Parser{tokens: Tokenize(text)}
	pipeline := &Pipeline{}

	for !p.atEnd() {
		step, err := p.parseStatement()
		if err != nil {
			p.errors = append(p.errors, err)
			p.synchronize()
			continue
		}
		pipeline.Steps = append(pipeline.Steps, step)
	}

	return pipeline, p.errors
}

// ---------- Token helpers ----------

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) previous() Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t TokenType) bool {
	return p.current().Type == t
}

func (p *Parser) atEnd() bool {
	return p.current().Type == EOF
}

// consume takes the current token if it matches, otherwise returns a
// ParseError positioned at the offending token.
func (p *Parser) consume(t TokenType, msg string) (Token, *ParseError) {
	if p.check(t) {
		return p.advance(), nil
	}
	return Token{}, p.errorAt(p.current(), msg)
}

func (p *Parser) errorAt(tok Token, msg string) *ParseError {
	return &ParseError{Message: msg, Line: tok.Line, Column: tok.Column}
}

// synchronize skips tokens until the previous token was a semicolon or the
// next token starts a known directive, so parsing can continue after an
// error and collect further ones.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.previous().Type == SEMICOLON {
			return
		}
		if p.current().IsDirective() {
			return
		}
		p.advance()
	}
}

// ---------- Statement dispatch ----------

func (p *Parser) parseStatement() (Step, *ParseError) {
	tok := p.current()
	switch tok.Type {
	case SOURCE:
		return p.parseSourceStatement()
	case LOAD:
		return p.parseLoadStatement()
	case EXPORT:
		return p.parseExportStatement()
	case INCLUDE:
		return p.parseIncludeStatement()
	case SET:
		return p.parseSetStatement()
	case CREATE:
		return p.parseSQLBlockStatement()
	case IF:
		return p.parseConditionalBlock()
	case ERROR:
		return nil, p.errorAt(tok, fmt.Sprintf("unexpected character %q", tok.Literal))
	default:
		return nil, p.errorAt(tok, fmt.Sprintf("unexpected token %s, expected a directive", tok.Type))
	}
}

// parseSourceStatement parses: SOURCE name TYPE type PARAMS {json};
func (p *Parser) parseSourceStatement() (Step, *ParseError) {
	start := p.advance() // SOURCE

	name, err := p.consume(IDENT, "expected source name after SOURCE")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(TYPE, "expected TYPE after source name"); err != nil {
		return nil, err
	}
	connType, cerr := p.consumeIdentLike("expected connector type after TYPE")
	if cerr != nil {
		return nil, cerr
	}
	if _, err = p.consume(PARAMS, "expected PARAMS after connector type"); err != nil {
		return nil, err
	}
	paramsTok, err := p.consume(JSON_OBJECT, "expected JSON object after PARAMS")
	if err != nil {
		return nil, err
	}

	params, perr := decodeJSONObject(paramsTok.Literal)
	if perr != nil {
		return nil, p.errorAt(paramsTok, "Invalid JSON in PARAMS: "+perr.Error())
	}

	if _, err = p.consume(SEMICOLON, "expected ; after SOURCE statement"); err != nil {
		return nil, err
	}

	return &SourceStep{
		Name:          name.Literal,
		ConnectorType: connType,
		Params:        params,
		LineNumber:    start.Line,
	}, nil
}

// parseLoadStatement parses: LOAD table FROM source;
func (p *Parser) parseLoadStatement() (Step, *ParseError) {
	start := p.advance() // LOAD

	table, err := p.consume(IDENT, "expected table name after LOAD")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(FROM, "expected FROM after table name"); err != nil {
		return nil, err
	}
	source, err := p.consume(IDENT, "expected source name after FROM")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(SEMICOLON, "expected ; after LOAD statement"); err != nil {
		return nil, err
	}

	return &LoadStep{
		TableName:  table.Literal,
		SourceName: source.Literal,
		LineNumber: start.Line,
	}, nil
}

// parseExportStatement parses: EXPORT SELECT ... TO "uri" TYPE type OPTIONS {json};
func (p *Parser) parseExportStatement() (Step, *ParseError) {
	start := p.advance() // EXPORT

	if !p.check(SELECT) {
		return nil, p.errorAt(p.current(), "expected SELECT after EXPORT")
	}

	// Capture the query verbatim up to the TO directive boundary.
	var sqlTokens []Token
	for !p.atEnd() && !p.check(TO) && !p.check(SEMICOLON) {
		sqlTokens = append(sqlTokens, p.advance())
	}
	if _, err := p.consume(TO, "expected TO after EXPORT query"); err != nil {
		return nil, err
	}

	dest, err := p.consume(STRING, "expected destination URI string after TO")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(TYPE, "expected TYPE after destination URI"); err != nil {
		return nil, err
	}
	connType, cerr := p.consumeIdentLike("expected connector type after TYPE")
	if cerr != nil {
		return nil, cerr
	}

	options := map[string]any{}
	if p.check(OPTIONS) {
		p.advance()
		optTok, oerr := p.consume(JSON_OBJECT, "expected JSON object after OPTIONS")
		if oerr != nil {
			return nil, oerr
		}
		decoded, derr := decodeJSONObject(optTok.Literal)
		if derr != nil {
			return nil, p.errorAt(optTok, "Invalid JSON in OPTIONS: "+derr.Error())
		}
		options = decoded
	}

	if _, err = p.consume(SEMICOLON, "expected ; after EXPORT statement"); err != nil {
		return nil, err
	}

	return &ExportStep{
		SQLQuery:       joinSQL(sqlTokens),
		DestinationURI: dest.Literal,
		ConnectorType:  connType,
		Options:        options,
		LineNumber:     start.Line,
	}, nil
}

// parseIncludeStatement parses: INCLUDE "path.sf" AS alias;
func (p *Parser) parseIncludeStatement() (Step, *ParseError) {
	start := p.advance() // INCLUDE

	path, err := p.consume(STRING, "expected file path string after INCLUDE")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(AS, "expected AS after include path"); err != nil {
		return nil, err
	}
	alias, err := p.consume(IDENT, "expected alias after AS")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(SEMICOLON, "expected ; after INCLUDE statement"); err != nil {
		return nil, err
	}

	return &IncludeStep{
		FilePath:   path.Literal,
		Alias:      alias.Literal,
		LineNumber: start.Line,
	}, nil
}

// parseSetStatement parses: SET name = value;
func (p *Parser) parseSetStatement() (Step, *ParseError) {
	start := p.advance() // SET

	name, err := p.consume(IDENT, "expected variable name after SET")
	if err != nil {
		return nil, err
	}
	if _, err = p.consume(EQUALS, "expected = after variable name"); err != nil {
		return nil, err
	}

	var valueTokens []Token
	for !p.atEnd() && !p.check(SEMICOLON) {
		tok := p.advance()
		if tok.Type == ERROR {
			return nil, p.errorAt(tok, fmt.Sprintf("unexpected character %q in SET value", tok.Literal))
		}
		valueTokens = append(valueTokens, tok)
	}
	if len(valueTokens) == 0 {
		return nil, p.errorAt(p.current(), "expected value after = in SET statement")
	}
	if _, err = p.consume(SEMICOLON, "expected ; after SET statement"); err != nil {
		return nil, err
	}

	return &SetStep{
		VariableName:  name.Literal,
		VariableValue: joinSQL(valueTokens),
		LineNumber:    start.Line,
	}, nil
}

// parseSQLBlockStatement parses: CREATE TABLE name AS SELECT ...;
func (p *Parser) parseSQLBlockStatement() (Step, *ParseError) {
	start := p.advance() // CREATE

	if _, err := p.consume(TABLE, "expected TABLE after CREATE"); err != nil {
		return nil, err
	}
	tableName, err := p.parseQualifiedName("expected table name after CREATE TABLE")
	if err != nil {
		return nil, err
	}
	if _, cerr := p.consume(AS, "expected AS after table name"); cerr != nil {
		return nil, cerr
	}
	if !p.check(SELECT) {
		return nil, p.errorAt(p.current(), "expected SELECT after AS")
	}

	var sqlTokens []Token
	for !p.atEnd() && !p.check(SEMICOLON) {
		sqlTokens = append(sqlTokens, p.advance())
	}
	if _, cerr := p.consume(SEMICOLON, "expected ; after CREATE TABLE statement"); cerr != nil {
		return nil, cerr
	}

	return &SQLBlockStep{
		TableName:  tableName,
		SQLQuery:   joinSQL(sqlTokens),
		LineNumber: start.Line,
	}, nil
}

// parseConditionalBlock parses:
//
//	IF cond THEN steps [ELSE IF cond THEN steps]* [ELSE steps] END IF;
func (p *Parser) parseConditionalBlock() (Step, *ParseError) {
	start := p.advance() // IF

	block := &ConditionalBlockStep{LineNumber: start.Line}

	branch, err := p.parseConditionalBranch(start)
	if err != nil {
		return nil, err
	}
	block.Branches = append(block.Branches, branch)

	for {
		switch {
		case p.check(ELSEIF):
			tok := p.advance()
			b, berr := p.parseConditionalBranch(tok)
			if berr != nil {
				return nil, berr
			}
			block.Branches = append(block.Branches, b)
		case p.check(ELSE) && p.peekType() == IF:
			tok := p.advance() // ELSE
			p.advance()        // IF
			b, berr := p.parseConditionalBranch(tok)
			if berr != nil {
				return nil, berr
			}
			block.Branches = append(block.Branches, b)
		case p.check(ELSE):
			p.advance()
			steps, serr := p.parseBranchSteps()
			if serr != nil {
				return nil, serr
			}
			block.ElseSteps = steps
		case p.check(ENDIF):
			p.advance()
			p.consumeOptionalSemicolon()
			return block, nil
		case p.check(END):
			p.advance()
			if _, cerr := p.consume(IF, "expected IF after END"); cerr != nil {
				return nil, cerr
			}
			p.consumeOptionalSemicolon()
			return block, nil
		default:
			return nil, p.errorAt(p.current(), "expected ELSE IF, ELSE, or END IF in conditional block")
		}
	}
}

// parseConditionalBranch parses a condition expression up to THEN, then the
// branch's nested steps.
func (p *Parser) parseConditionalBranch(start Token) (*ConditionalBranch, *ParseError) {
	var condTokens []Token
	for !p.atEnd() && !p.check(THEN) {
		condTokens = append(condTokens, p.advance())
	}
	if _, err := p.consume(THEN, "expected THEN after condition"); err != nil {
		return nil, err
	}
	if len(condTokens) == 0 {
		return nil, p.errorAt(start, "expected condition expression before THEN")
	}

	steps, err := p.parseBranchSteps()
	if err != nil {
		return nil, err
	}

	return &ConditionalBranch{
		Condition:  joinSQL(condTokens),
		Steps:      steps,
		LineNumber: start.Line,
	}, nil
}

// parseBranchSteps parses nested statements until a conditional terminator.
func (p *Parser) parseBranchSteps() ([]Step, *ParseError) {
	var steps []Step
	for !p.atEnd() {
		switch p.current().Type {
		case ELSEIF, ELSE, END, ENDIF:
			return steps, nil
		}
		step, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return nil, p.errorAt(p.current(), "unterminated conditional block, expected END IF")
}

func (p *Parser) consumeOptionalSemicolon() {
	if p.check(SEMICOLON) {
		p.advance()
	}
}

func (p *Parser) peekType() TokenType {
	if p.pos+1 >= len(p.tokens) {
		return EOF
	}
	return p.tokens[p.pos+1].Type
}

// consumeIdentLike accepts an identifier or keyword as a bare name. Needed
// because connector types like TABLE collide with DSL keywords.
func (p *Parser) consumeIdentLike(msg string) (string, *ParseError) {
	tok := p.current()
	if isNameToken(tok) {
		p.advance()
		return tok.Literal, nil
	}
	return "", p.errorAt(tok, msg)
}

// parseQualifiedName parses name or schema.name, preserving the dot.
func (p *Parser) parseQualifiedName(msg string) (string, *ParseError) {
	first, err := p.consume(IDENT, msg)
	if err != nil {
		return "", err
	}
	name := first.Literal
	for p.check(DOT) {
		p.advance()
		part, perr := p.consume(IDENT, "expected identifier after .")
		if perr != nil {
			return "", perr
		}
		name += "." + part.Literal
	}
	return name, nil
}

// decodeJSONObject decodes a captured JSON_OBJECT token literal.
func decodeJSONObject(blob string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(blob), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// joinSQL re-joins captured tokens into SQL text. Tokens are separated by
// single spaces, except: no space around DOT (so t.id survives intact) and
// no space before ( when it directly follows an identifier or keyword
// (function-call formatting).
func joinSQL(tokens []Token) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 && needsSpace(tokens[i-1], tok) {
			b.WriteByte(' ')
		}
		b.WriteString(sqlLiteral(tok))
	}
	return b.String()
}

// sqlLiteral renders one token back to source form.
func sqlLiteral(tok Token) string {
	if tok.Type == STRING && !strings.HasPrefix(tok.Literal, "'") {
		// DSL double-quoted string re-emitted with its quotes.
		return `"` + tok.Literal + `"`
	}
	return tok.Literal
}

func needsSpace(prev, cur Token) bool {
	if prev.Type == DOT || cur.Type == DOT {
		return false
	}
	if cur.Type == LPAREN && isNameToken(prev) {
		return false
	}
	return true
}

// isNameToken reports whether a token can occupy a name position.
func isNameToken(tok Token) bool {
	return tok.Type == IDENT || (tok.Type >= SOURCE && tok.Type <= ENDIF)
}
