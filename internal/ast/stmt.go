package ast

import (
	"fmt"

	"github.com/escaco95/vjassp/internal/lexer/token"
)

type Stmt interface {
	Node
	stmtNode()
}

type BlockStmt struct {
	Stmt
	Statements []Stmt
}

func (block BlockStmt) String() string {
	return fmt.Sprintf("BLOCK: %v", block.Statements)
}
func (block BlockStmt) astNode()  {}
func (block BlockStmt) stmtNode() {}

// VarStmt is a local variable declaration. Hoisting may detach the
// initializer into an in-place assignment; see internal/lower.
type VarStmt struct {
	Stmt
	Type      *TypeRef
	Name      *token.Token
	Value     Expr
	Constant  bool
	IsArray   bool
	Hashtable bool
}

func (variable VarStmt) String() string {
	return fmt.Sprintf("LOCAL: %s", variable.Name)
}
func (variable VarStmt) astNode()  {}
func (variable VarStmt) stmtNode() {}

type AssignStmt struct {
	Stmt
	LHS   Expr
	Value Expr
}

func (assign AssignStmt) String() string {
	return fmt.Sprintf("SET: %s = %s", assign.LHS, assign.Value)
}
func (assign AssignStmt) astNode()  {}
func (assign AssignStmt) stmtNode() {}

// ExprStmt is a bare (or explicit `call`) call statement.
type ExprStmt struct {
	Stmt
	Expr Expr
}

func (stmt ExprStmt) String() string {
	return fmt.Sprintf("CALL: %s", stmt.Expr)
}
func (stmt ExprStmt) astNode()  {}
func (stmt ExprStmt) stmtNode() {}

// IncDecStmt is `X++` / `X--`; lowering rewrites it into an assignment.
type IncDecStmt struct {
	Stmt
	LHS Expr
	Dec bool
}

func (incDec IncDecStmt) String() string {
	if incDec.Dec {
		return fmt.Sprintf("DEC: %s", incDec.LHS)
	}
	return fmt.Sprintf("INC: %s", incDec.LHS)
}
func (incDec IncDecStmt) astNode()  {}
func (incDec IncDecStmt) stmtNode() {}

type IfCond struct {
	Cond  Expr
	Block *BlockStmt
}

type CondStmt struct {
	Stmt
	If    *IfCond
	Elifs []*IfCond
	Else  *BlockStmt
}

func (cond CondStmt) String() string {
	return fmt.Sprintf("IF: %s", cond.If.Cond)
}
func (cond CondStmt) astNode()  {}
func (cond CondStmt) stmtNode() {}

// UntilStmt loops until the condition holds; lowering turns it into a
// LoopStmt with a leading exitwhen.
type UntilStmt struct {
	Stmt
	Cond  Expr
	Block *BlockStmt
}

func (until UntilStmt) String() string {
	return fmt.Sprintf("UNTIL: %s", until.Cond)
}
func (until UntilStmt) astNode()  {}
func (until UntilStmt) stmtNode() {}

// WhileStmt loops while the condition holds; lowering turns it into a
// LoopStmt with a leading negated exitwhen.
type WhileStmt struct {
	Stmt
	Cond  Expr
	Block *BlockStmt
}

func (while WhileStmt) String() string {
	return fmt.Sprintf("WHILE: %s", while.Cond)
}
func (while WhileStmt) astNode()  {}
func (while WhileStmt) stmtNode() {}

type LoopStmt struct {
	Stmt
	Block *BlockStmt
}

func (loop LoopStmt) String() string {
	return "LOOP"
}
func (loop LoopStmt) astNode()  {}
func (loop LoopStmt) stmtNode() {}

// BreakStmt exits the innermost loop; lowering rewrites it to exitwhen true.
type BreakStmt struct {
	Stmt
	Pos token.Pos
}

func (brk BreakStmt) String() string {
	return "BREAK"
}
func (brk BreakStmt) astNode()  {}
func (brk BreakStmt) stmtNode() {}

type ExitwhenStmt struct {
	Stmt
	Cond Expr
}

func (exitwhen ExitwhenStmt) String() string {
	return fmt.Sprintf("EXITWHEN: %s", exitwhen.Cond)
}
func (exitwhen ExitwhenStmt) astNode()  {}
func (exitwhen ExitwhenStmt) stmtNode() {}

type ReturnStmt struct {
	Stmt
	// Value is nil on a bare return.
	Value Expr
}

func (ret ReturnStmt) String() string {
	return fmt.Sprintf("RETURN: %s", ret.Value)
}
func (ret ReturnStmt) astNode()  {}
func (ret ReturnStmt) stmtNode() {}

// DebugStmt passes its wrapped statement through with a `debug` prefix.
type DebugStmt struct {
	Stmt
	Wrapped Stmt
}

func (debug DebugStmt) String() string {
	return fmt.Sprintf("DEBUG: %s", debug.Wrapped)
}
func (debug DebugStmt) astNode()  {}
func (debug DebugStmt) stmtNode() {}
