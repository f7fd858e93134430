// Package testutil carries the small constructors the stage tests share.
package testutil

import (
	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer/token"
	"github.com/escaco95/vjassp/internal/lower"
	"github.com/escaco95/vjassp/internal/parser"
)

const DefaultFilename = "test.jp"

func Pos(line, column int) token.Pos {
	return token.Pos{Filename: DefaultFilename, Line: line, Column: column}
}

func NewToken(lexeme string, kind token.Kind) *token.Token {
	return token.New([]byte(lexeme), kind, Pos(1, 1))
}

func NewIdExpr(name string) *ast.IdExpr {
	return &ast.IdExpr{Name: NewToken(name, token.ID)}
}

func NewLiteralExpr(value string, kind token.Kind) *ast.LiteralExpr {
	return &ast.LiteralExpr{Value: NewToken(value, kind)}
}

func NewBlock(statements ...ast.Stmt) *ast.BlockStmt {
	return &ast.BlockStmt{Statements: statements}
}

// LowerSource parses src as one unit and runs the lowering passes over it,
// handing back the program ready for emission alongside the collector.
func LowerSource(src string) (*ast.Program, *diagnostics.Collector, error) {
	unit, collector, err := parser.ParseUnitFrom(src, DefaultFilename)
	if err != nil {
		return nil, collector, err
	}
	program := &ast.Program{Units: []*ast.Unit{unit}}
	if err := lower.New(collector).Lower(program); err != nil {
		return nil, collector, err
	}
	return program, collector, nil
}
