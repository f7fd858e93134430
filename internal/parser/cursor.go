package parser

import (
	"github.com/escaco95/vjassp/internal/lexer/token"
)

// cursor walks one unit's token stream. The lexer terminates every stream
// with EOF, so lookahead and advancement clamp to that final token rather
// than running off the slice.
type cursor struct {
	tokens []*token.Token
	offset int
}

func newCursor(tokens []*token.Token) *cursor {
	return &cursor{tokens: tokens}
}

func (cursor *cursor) peek() *token.Token {
	return cursor.peekN(0)
}

func (cursor *cursor) peekN(n int) *token.Token {
	offset := cursor.offset + n
	if offset >= len(cursor.tokens) {
		offset = len(cursor.tokens) - 1
	}
	return cursor.tokens[offset]
}

func (cursor *cursor) next() *token.Token {
	tok := cursor.peek()
	if cursor.offset < len(cursor.tokens)-1 {
		cursor.offset++
	}
	return tok
}

func (cursor *cursor) skip() {
	cursor.next()
}

func (cursor *cursor) nextIs(kind token.Kind) bool {
	return cursor.peek().Kind == kind
}
