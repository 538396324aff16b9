package parser

// Lexer tokenizes .sf pipeline source text.
//
// The lexer never fails: characters that match no rule are emitted as
// single-character ERROR tokens and rejected later by the parser with
// positional context.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Tokenize runs the lexer over the whole input and returns every token,
// terminated by an EOF token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	line, col, offset := l.line, l.col, l.pos

	mk := func(t TokenType, lit string) Token {
		return Token{Type: t, Literal: lit, Line: line, Column: col, Offset: offset}
	}

	switch l.ch {
	case 0:
		return mk(EOF, "")
	case ';':
		l.readChar()
		return mk(SEMICOLON, ";")
	case '.':
		l.readChar()
		return mk(DOT, ".")
	case ',':
		l.readChar()
		return mk(COMMA, ",")
	case '(':
		l.readChar()
		return mk(LPAREN, "(")
	case ')':
		l.readChar()
		return mk(RPAREN, ")")
	case '*':
		l.readChar()
		return mk(STAR, "*")
	case '+':
		l.readChar()
		return mk(PLUS, "+")
	case '-':
		l.readChar()
		return mk(MINUS, "-")
	case '/':
		l.readChar()
		return mk(SLASH, "/")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return mk(EQ, "==")
		}
		l.readChar()
		return mk(EQUALS, "=")
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return mk(NEQ, "!=")
		}
		l.readChar()
		return mk(ERROR, "!")
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return mk(LE, "<=")
		}
		l.readChar()
		return mk(LT, "<")
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return mk(GE, ">=")
		}
		l.readChar()
		return mk(GT, ">")
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			l.readChar()
			return mk(CONCAT, "||")
		}
		l.readChar()
		return mk(PIPE, "|")
	case '$':
		if l.peekChar() == '{' {
			return mk(VARIABLE, l.readVariable())
		}
		l.readChar()
		return mk(ERROR, "$")
	case '"':
		return mk(STRING, l.readString())
	case '\'':
		// Single-quoted strings only occur inside embedded SQL, which is
		// reproduced verbatim, so the literal keeps its quotes.
		return mk(STRING, l.readSQLString())
	case '{':
		return mk(JSON_OBJECT, l.readJSONObject())
	}

	switch {
	case isLetter(l.ch) || l.ch == '_':
		lit := l.readIdentifier()
		return mk(LookupIdent(lit), lit)
	case isDigit(l.ch):
		return mk(NUMBER, l.readNumber())
	}

	ch := l.ch
	l.readChar()
	return mk(ERROR, string(ch))
}

// skipWhitespaceAndComments consumes whitespace and -- line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a double-quoted string literal with backslash escapes.
// The returned literal excludes the surrounding quotes.
func (l *Lexer) readString() string {
	start := l.pos
	l.readChar() // skip opening quote

	closed := false
	for l.ch != 0 {
		if l.ch == '\\' && l.peekChar() != 0 {
			l.readChar() // skip escape
			l.readChar() // skip escaped char
			continue
		}
		if l.ch == '"' {
			l.readChar() // skip closing quote
			closed = true
			break
		}
		l.readChar()
	}
	end := l.pos
	if closed {
		end--
	}
	return unescape(l.input[start+1 : end])
}

// unescape resolves backslash escapes inside a string literal.
func unescape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// readSQLString reads a single-quoted SQL string literal, returning it
// verbatim including the quotes. Doubled quotes ('') are kept as written.
func (l *Lexer) readSQLString() string {
	start := l.pos
	l.readChar() // skip opening quote
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readJSONObject captures a whole {...} blob as one token.
//
// Brace depth is only counted outside double-quoted strings so that
// values like {"a": "b{c}"} are captured intact. Backslash escapes inside
// strings are honored.
func (l *Lexer) readJSONObject() string {
	start := l.pos
	depth := 0
	inString := false

	for l.ch != 0 {
		switch {
		case inString && l.ch == '\\' && l.peekChar() != 0:
			l.readChar() // skip escape
		case l.ch == '"':
			inString = !inString
		case !inString && l.ch == '{':
			depth++
		case !inString && l.ch == '}':
			depth--
			if depth == 0 {
				l.readChar() // consume final }
				return l.input[start:l.pos]
			}
		}
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readVariable captures a ${name} or ${name|default} placeholder as one
// token so its internal | is not mis-tokenized as concatenation.
func (l *Lexer) readVariable() string {
	start := l.pos
	l.readChar() // skip $
	l.readChar() // skip {
	for l.ch != 0 && l.ch != '}' {
		l.readChar()
	}
	if l.ch == '}' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads an integer or decimal literal.
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
