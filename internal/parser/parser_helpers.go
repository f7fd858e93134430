package parser

import (
	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer"
)

const defaultFilename = "test.jp"

// ParseUnitFrom lexes and parses src as a single unit, skipping the source
// resolver. Stage tests build their inputs through it.
func ParseUnitFrom(src, filename string) (*ast.Unit, *diagnostics.Collector, error) {
	if filename == "" {
		filename = defaultFilename
	}
	collector := diagnostics.New()

	lex := lexer.New(filename, []byte(src), collector)
	tokens, err := lex.Tokenize()
	if err != nil {
		return nil, collector, err
	}

	p := New(collector)
	unit, err := p.ParseUnit(filename, filename, tokens)
	return unit, collector, err
}

// ParseExprFrom parses a single expression.
func ParseExprFrom(expr, filename string) (ast.Expr, error) {
	if filename == "" {
		filename = defaultFilename
	}
	collector := diagnostics.New()

	lex := lexer.New(filename, []byte(expr), collector)
	tokens, err := lex.Tokenize()
	if err != nil {
		return nil, err
	}

	p := New(collector)
	p.cursor = newCursor(tokens)
	return p.parseExpr()
}

// ParseStmtFrom parses a single statement, indented blocks included.
func ParseStmtFrom(src, filename string) (ast.Stmt, error) {
	if filename == "" {
		filename = defaultFilename
	}
	collector := diagnostics.New()

	lex := lexer.New(filename, []byte(src), collector)
	tokens, err := lex.Tokenize()
	if err != nil {
		return nil, err
	}

	p := New(collector)
	p.cursor = newCursor(tokens)
	return p.parseStmt()
}
