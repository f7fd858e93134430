package token

import "fmt"

type Token struct {
	Lexeme []byte
	Kind   Kind
	Pos    Pos
}

func New(lexeme []byte, kind Kind, position Pos) *Token {
	return &Token{Lexeme: lexeme, Kind: kind, Pos: position}
}

// Name is the user-facing spelling: the lexeme for identifiers and literals,
// the kind's fixed spelling for everything else.
func (token *Token) Name() string {
	if token.Kind == ID || LITERAL_KIND[token.Kind] {
		return string(token.Lexeme)
	}
	return token.Kind.String()
}

func (token *Token) String() string {
	if len(token.Lexeme) == 0 {
		return fmt.Sprintf("%s at %s", token.Kind, token.Pos)
	}
	return fmt.Sprintf("%s %q at %s", token.Kind, token.Lexeme, token.Pos)
}
