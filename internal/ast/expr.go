package ast

import (
	"fmt"

	"github.com/escaco95/vjassp/internal/lexer/token"
)

// Binary operator sets, one per precedence level, loosest first. The parser
// walks them to climb precedence.
var LOGICAL_OR map[token.Kind]bool = map[token.Kind]bool{
	token.OR: true,
}

var LOGICAL_AND map[token.Kind]bool = map[token.Kind]bool{
	token.AND: true,
}

var EQUALITY map[token.Kind]bool = map[token.Kind]bool{
	token.EQUAL_EQUAL: true,
	token.BANG_EQUAL:  true,
}

var COMPARASION map[token.Kind]bool = map[token.Kind]bool{
	token.GREATER:    true,
	token.GREATER_EQ: true,
	token.LESS:       true,
	token.LESS_EQ:    true,
}

var TERM map[token.Kind]bool = map[token.Kind]bool{
	token.MINUS: true,
	token.PLUS:  true,
}

var FACTOR map[token.Kind]bool = map[token.Kind]bool{
	token.SLASH:   true,
	token.STAR:    true,
	token.PERCENT: true,
}

var UNARY map[token.Kind]bool = map[token.Kind]bool{
	token.NOT:   true,
	token.BANG:  true,
	token.MINUS: true,
}

type Expr interface {
	Node
	exprNode()
}

type LiteralExpr struct {
	Expr
	Value *token.Token
}

func (literal LiteralExpr) String() string {
	return literal.Value.Name()
}
func (literal LiteralExpr) astNode()  {}
func (literal LiteralExpr) exprNode() {}

type IdExpr struct {
	Expr
	Name *token.Token
}

func (idExpr IdExpr) String() string {
	return idExpr.Name.Name()
}
func (idExpr IdExpr) astNode()  {}
func (idExpr IdExpr) exprNode() {}

type BinExpr struct {
	Expr
	LHS Expr
	Op  token.Kind
	RHS Expr
}

func (binExpr BinExpr) String() string {
	return fmt.Sprintf("(%v) %v (%v)", binExpr.LHS, binExpr.Op, binExpr.RHS)
}
func (binExpr BinExpr) astNode()  {}
func (binExpr BinExpr) exprNode() {}

type UnaryExpr struct {
	Expr
	Op    token.Kind
	Value Expr
}

func (unary UnaryExpr) String() string {
	return fmt.Sprintf("%v %v", unary.Op, unary.Value)
}
func (unary UnaryExpr) astNode()  {}
func (unary UnaryExpr) exprNode() {}

type CallExpr struct {
	Expr
	Callee Expr
	Args   []Expr
}

func (call CallExpr) String() string {
	return fmt.Sprintf("%v(%v)", call.Callee, call.Args)
}
func (call CallExpr) astNode()  {}
func (call CallExpr) exprNode() {}

type IndexExpr struct {
	Expr
	Base  Expr
	Index Expr
}

func (index IndexExpr) String() string {
	return fmt.Sprintf("%v[%v]", index.Base, index.Index)
}
func (index IndexExpr) astNode()  {}
func (index IndexExpr) exprNode() {}

type FieldAccess struct {
	Expr
	Base  Expr
	Field *token.Token
}

func (access FieldAccess) String() string {
	return fmt.Sprintf("%v.%v", access.Base, access.Field.Name())
}
func (access FieldAccess) astNode()  {}
func (access FieldAccess) exprNode() {}

// FuncRefExpr is `function NAME`, a code value in the target language.
type FuncRefExpr struct {
	Expr
	Name *token.Token
}

func (ref FuncRefExpr) String() string {
	return fmt.Sprintf("function %s", ref.Name.Name())
}
func (ref FuncRefExpr) astNode()  {}
func (ref FuncRefExpr) exprNode() {}
