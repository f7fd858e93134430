package lexer

import (
	"fmt"
	"unicode"

	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer/token"
)

const eof = '\000'

type Lexer struct {
	Collector *diagnostics.Collector

	src    []byte
	offset int
	pos    token.Pos

	// indents is the column stack driving INDENT/DEDENT synthesis. It always
	// starts at [0] and every push is balanced by a pop before EOF.
	indents []int
	tokens  []*token.Token
}

func New(filename string, src []byte, collector *diagnostics.Collector) *Lexer {
	lexer := new(Lexer)

	lexer.Collector = collector
	lexer.pos = token.NewPosition(filename, 1, 1)
	lexer.src = src
	lexer.offset = 0
	lexer.indents = []int{0}

	return lexer
}

// NewAt scans src as if it started at position. The parser uses it to re-lex
// expressions embedded in format strings so their diagnostics point into the
// original literal.
func NewAt(position token.Pos, src []byte, collector *diagnostics.Collector) *Lexer {
	lexer := New(position.Filename, src, collector)
	lexer.pos = position
	return lexer
}

func (lex *Lexer) Filename() string { return lex.pos.Filename }

// Tokenize scans the whole unit. The returned stream ends with EOF, every
// logical line ends with one NEWLINE, and INDENT/DEDENT counts balance. On
// malformed input the error is reported through the collector and
// COMPILER_ERROR_FOUND is returned.
func (lex *Lexer) Tokenize() ([]*token.Token, error) {
	for lex.peekChar() != eof {
		if err := lex.lexLine(); err != nil {
			return nil, err
		}
	}
	for len(lex.indents) > 1 {
		lex.indents = lex.indents[:len(lex.indents)-1]
		lex.push(token.DEDENT, nil, lex.pos)
	}
	lex.push(token.EOF, nil, lex.pos)
	return lex.tokens, nil
}

func (lex *Lexer) lexLine() error {
	width := lex.skipIndent()

	// Blank lines, comment-only lines and documentation strings carry no
	// block structure; they advance line numbers and nothing else.
	for lex.peekDocOpen() {
		if err := lex.skipDocString(); err != nil {
			return err
		}
		lex.skipSpaces()
	}

	switch lex.peekChar() {
	case eof:
		return nil
	case '\n':
		lex.nextChar()
		return nil
	case '#':
		lex.skipLine()
		return nil
	}

	if err := lex.applyIndent(width); err != nil {
		return err
	}
	return lex.lexTokens()
}

// applyIndent settles the line's block depth against the column stack.
func (lex *Lexer) applyIndent(width int) error {
	top := lex.indents[len(lex.indents)-1]
	if width > top {
		lex.indents = append(lex.indents, width)
		lex.push(token.INDENT, nil, lex.pos)
		return nil
	}
	for width < lex.indents[len(lex.indents)-1] {
		lex.indents = lex.indents[:len(lex.indents)-1]
		lex.push(token.DEDENT, nil, lex.pos)
	}
	if width != lex.indents[len(lex.indents)-1] {
		inconsistentDedent := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: inconsistent dedent",
				lex.pos.Filename,
				lex.pos.Line,
				lex.pos.Column,
			),
		}
		lex.Collector.ReportAndSave(inconsistentDedent)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

func (lex *Lexer) lexTokens() error {
	for {
		lex.skipSpaces()

		ch := lex.peekChar()
		switch {
		case ch == eof:
			lex.push(token.NEWLINE, nil, lex.pos)
			return nil
		case ch == '\n':
			newlinePos := lex.pos
			lex.nextChar()
			lex.push(token.NEWLINE, nil, newlinePos)
			return nil
		case ch == '#':
			lex.skipLine()
			lex.push(token.NEWLINE, nil, lex.pos)
			return nil
		case lex.peekDocOpen():
			if err := lex.skipDocString(); err != nil {
				return err
			}
		default:
			if err := lex.getToken(ch); err != nil {
				return err
			}
		}
	}
}

func (lex *Lexer) getToken(ch byte) error {
	pos := lex.pos

	switch ch {
	case '(':
		lex.nextChar()
		lex.push(token.OPEN_PAREN, nil, pos)
	case ')':
		lex.nextChar()
		lex.push(token.CLOSE_PAREN, nil, pos)
	case '[':
		lex.nextChar()
		lex.push(token.OPEN_BRACKET, nil, pos)
	case ']':
		lex.nextChar()
		lex.push(token.CLOSE_BRACKET, nil, pos)
	case '{':
		lex.nextChar()
		lex.push(token.OPEN_CURLY, nil, pos)
	case '}':
		lex.nextChar()
		lex.push(token.CLOSE_CURLY, nil, pos)
	case ',':
		lex.nextChar()
		lex.push(token.COMMA, nil, pos)
	case ':':
		lex.nextChar()
		lex.push(token.COLON, nil, pos)
	case ';':
		lex.nextChar()
		lex.push(token.SEMICOLON, nil, pos)
	case '~':
		lex.nextChar()
		lex.push(token.TILDE, nil, pos)
	case '%':
		lex.nextChar()
		lex.push(token.PERCENT, nil, pos)
	case '+':
		lex.nextChar()
		switch lex.peekChar() {
		case '+':
			lex.nextChar()
			lex.push(token.PLUS_PLUS, nil, pos)
		case '=':
			lex.nextChar()
			lex.push(token.PLUS_EQUAL, nil, pos)
		default:
			lex.push(token.PLUS, nil, pos)
		}
	case '-':
		lex.nextChar()
		switch lex.peekChar() {
		case '-':
			lex.nextChar()
			lex.push(token.MINUS_MINUS, nil, pos)
		case '=':
			lex.nextChar()
			lex.push(token.MINUS_EQUAL, nil, pos)
		case '>':
			lex.nextChar()
			lex.push(token.ARROW, nil, pos)
		default:
			lex.push(token.MINUS, nil, pos)
		}
	case '*':
		lex.nextChar()
		if lex.peekChar() == '=' {
			lex.nextChar()
			lex.push(token.STAR_EQUAL, nil, pos)
		} else {
			lex.push(token.STAR, nil, pos)
		}
	case '/':
		lex.nextChar()
		if lex.peekChar() == '=' {
			lex.nextChar()
			lex.push(token.SLASH_EQUAL, nil, pos)
		} else {
			lex.push(token.SLASH, nil, pos)
		}
	case '=':
		lex.nextChar()
		switch lex.peekChar() {
		case '=':
			lex.nextChar()
			lex.push(token.EQUAL_EQUAL, nil, pos)
		case '>':
			lex.nextChar()
			lex.push(token.FAT_ARROW, nil, pos)
		default:
			lex.push(token.EQUAL, nil, pos)
		}
	case '!':
		lex.nextChar()
		if lex.peekChar() == '=' {
			lex.nextChar()
			lex.push(token.BANG_EQUAL, nil, pos)
		} else {
			lex.push(token.BANG, nil, pos)
		}
	case '>':
		lex.nextChar()
		if lex.peekChar() == '=' {
			lex.nextChar()
			lex.push(token.GREATER_EQ, nil, pos)
		} else {
			lex.push(token.GREATER, nil, pos)
		}
	case '<':
		lex.nextChar()
		if lex.peekChar() == '=' {
			lex.nextChar()
			lex.push(token.LESS_EQ, nil, pos)
		} else {
			lex.push(token.LESS, nil, pos)
		}
	case '.':
		next := lex.peekNextChar()
		if next >= '0' && next <= '9' {
			return lex.getNumberLit()
		}
		lex.nextChar()
		lex.push(token.DOT, nil, pos)
	case '"':
		return lex.getStringLit(token.STRING_LIT)
	case '\'':
		return lex.getRawcodeLit()
	default:
		if ch == 'f' && lex.peekNextChar() == '"' {
			lex.nextChar() // f
			return lex.getStringLit(token.FSTRING_LIT)
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			lex.getIdOrKeyword()
			return nil
		}
		if ch >= '0' && ch <= '9' {
			return lex.getNumberLit()
		}
		invalidCharacter := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: invalid character %c",
				pos.Filename,
				pos.Line,
				pos.Column,
				ch,
			),
		}
		lex.Collector.ReportAndSave(invalidCharacter)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

// getStringLit scans a quoted literal. Escape sequences are kept verbatim in
// the lexeme since they are re-emitted as written into the target text; the
// surrounding quotes are stripped.
func (lex *Lexer) getStringLit(kind token.Kind) error {
	pos := lex.pos
	lex.nextChar() // "

	start := lex.offset
	for {
		ch := lex.peekChar()
		if ch == eof || ch == '\n' {
			unterminatedStringLiteral := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: unterminated string literal",
					pos.Filename,
					pos.Line,
					pos.Column,
				),
			}
			lex.Collector.ReportAndSave(unterminatedStringLiteral)
			return diagnostics.COMPILER_ERROR_FOUND
		}
		if ch == '"' {
			break
		}
		if ch == '\\' {
			lex.nextChar()
			escape := lex.peekChar()
			if escape == eof || escape == '\n' {
				continue
			}
			switch escape {
			case '\\', '"', 'n', 't', 'r':
			default:
				invalidEscape := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: invalid escape sequence \\%c",
						lex.pos.Filename,
						lex.pos.Line,
						lex.pos.Column,
						escape,
					),
				}
				lex.Collector.ReportAndSave(invalidEscape)
				return diagnostics.COMPILER_ERROR_FOUND
			}
		}
		lex.nextChar()
	}

	lexeme := lex.src[start:lex.offset]
	lex.nextChar() // "
	lex.push(kind, lexeme, pos)
	return nil
}

// getRawcodeLit scans a 'hfoo' style object code. The target language treats
// these as integer literals, quotes included, so the lexeme keeps both.
func (lex *Lexer) getRawcodeLit() error {
	pos := lex.pos
	start := lex.offset
	lex.nextChar() // '

	for {
		ch := lex.peekChar()
		if ch == eof || ch == '\n' {
			unterminatedRawcode := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: unterminated rawcode literal",
					pos.Filename,
					pos.Line,
					pos.Column,
				),
			}
			lex.Collector.ReportAndSave(unterminatedRawcode)
			return diagnostics.COMPILER_ERROR_FOUND
		}
		if ch == '\'' {
			break
		}
		lex.nextChar()
	}

	lex.nextChar() // '
	lex.push(token.INT_LIT, lex.src[start:lex.offset], pos)
	return nil
}

func (lex *Lexer) getNumberLit() error {
	pos := lex.pos

	if lex.peekChar() == '0' {
		next := lex.peekNextChar()
		if next == 'x' || next == 'X' {
			start := lex.offset
			lex.nextChar() // 0
			lex.nextChar() // x
			digits := lex.readWhile(isHexDigit)
			if len(digits) == 0 {
				malformedHex := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: malformed hex literal",
						pos.Filename,
						pos.Line,
						pos.Column,
					),
				}
				lex.Collector.ReportAndSave(malformedHex)
				return diagnostics.COMPILER_ERROR_FOUND
			}
			lex.push(token.INT_LIT, lex.src[start:lex.offset], pos)
			return nil
		}
	}

	var dotFound, dotRepeated bool
	kind := token.INT_LIT

	number := lex.readWhile(
		func(chr byte) bool {
			if chr == '.' {
				if dotFound {
					dotRepeated = true
					return false
				}
				kind = token.REAL_LIT
				dotFound = true
				return true
			}
			return chr >= '0' && chr <= '9'
		},
	)

	if dotRepeated {
		malformedReal := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: malformed real literal",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		lex.Collector.ReportAndSave(malformedReal)
		return diagnostics.COMPILER_ERROR_FOUND
	}

	lex.push(kind, number, pos)
	return nil
}

func (lex *Lexer) getIdOrKeyword() {
	pos := lex.pos
	identifier := lex.readWhile(
		func(chr byte) bool { return unicode.IsNumber(rune(chr)) || unicode.IsLetter(rune(chr)) || chr == '_' },
	)
	kind := token.ID
	if keyword, ok := token.KEYWORDS[string(identifier)]; ok {
		kind = keyword
	}
	lex.push(kind, identifier, pos)
}

func (lex *Lexer) peekDocOpen() bool {
	return lex.offset+2 < len(lex.src) &&
		lex.src[lex.offset] == '"' &&
		lex.src[lex.offset+1] == '"' &&
		lex.src[lex.offset+2] == '"'
}

// skipDocString consumes a """ documentation string, newlines included. The
// content never reaches the token stream.
func (lex *Lexer) skipDocString() error {
	pos := lex.pos
	lex.nextChar()
	lex.nextChar()
	lex.nextChar()

	for !lex.peekDocOpen() {
		if lex.peekChar() == eof {
			unterminatedDoc := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: unterminated multi-line string",
					pos.Filename,
					pos.Line,
					pos.Column,
				),
			}
			lex.Collector.ReportAndSave(unterminatedDoc)
			return diagnostics.COMPILER_ERROR_FOUND
		}
		lex.nextChar()
	}

	lex.nextChar()
	lex.nextChar()
	lex.nextChar()
	return nil
}

func (lex *Lexer) push(kind token.Kind, lexeme []byte, pos token.Pos) {
	lex.tokens = append(lex.tokens, token.New(lexeme, kind, pos))
}

func (lex *Lexer) skipIndent() int {
	width := 0
	for lex.peekChar() == ' ' {
		lex.nextChar()
		width++
	}
	return width
}

func (lex *Lexer) skipSpaces() {
	lex.readWhile(func(ch byte) bool { return ch == ' ' })
}

func (lex *Lexer) skipLine() {
	lex.readWhile(func(ch byte) bool { return ch != '\n' })
	if lex.peekChar() == '\n' {
		lex.nextChar()
	}
}

func (lex *Lexer) readWhile(isValid func(byte) bool) []byte {
	var start, end int
	start = lex.offset

	for {
		character := lex.peekChar()
		if character == eof {
			break
		}

		if isValid(character) {
			lex.nextChar()
		} else {
			break
		}
	}

	end = lex.offset

	return lex.src[start:end]
}

func (lex *Lexer) nextChar() byte {
	if lex.offset >= len(lex.src) {
		return eof
	}
	character := lex.src[lex.offset]
	lex.pos.Move(character)
	lex.offset++
	return character
}

func (lex *Lexer) peekChar() byte {
	if lex.offset >= len(lex.src) {
		return eof
	}
	character := lex.src[lex.offset]
	return character
}

func (lex *Lexer) peekNextChar() byte {
	if lex.offset+1 >= len(lex.src) {
		return eof
	}
	return lex.src[lex.offset+1]
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
