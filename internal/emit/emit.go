// Package emit renders a lowered program as vJass text.
package emit

import (
	"fmt"
	"log"
	"strings"

	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer/token"
	"github.com/escaco95/vjassp/internal/lower"
)

// Render emits the whole program: units in resolution order, declarations in
// source order, and the VJPLIBS epilogue when any system was declared. The
// output is deterministic and ends with exactly one trailing newline.
func Render(program *ast.Program) (string, error) {
	e := &emitter{}
	if err := e.program(program); err != nil {
		return "", err
	}
	return e.out.String(), nil
}

type emitter struct {
	out   strings.Builder
	depth int
}

func (e *emitter) write(s string) { e.out.WriteString(s) }
func (e *emitter) nl()            { e.out.WriteByte('\n') }

func (e *emitter) writef(format string, args ...any) {
	fmt.Fprintf(&e.out, format, args...)
}

func (e *emitter) pad() {
	for i := 0; i < e.depth; i++ {
		e.out.WriteString("    ")
	}
}

func (e *emitter) line(format string, args ...any) {
	e.pad()
	fmt.Fprintf(&e.out, format, args...)
	e.nl()
}

func (e *emitter) program(program *ast.Program) error {
	first := true
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			if !first {
				e.nl()
			}
			first = false
			switch decl := decl.(type) {
			case *ast.Container:
				if err := e.container(decl); err != nil {
					return err
				}
			case *ast.NativeDecl:
				if err := e.native(decl); err != nil {
					return err
				}
			default:
				return diagnostics.Internalf("no rendering for declaration %T", decl)
			}
		}
	}
	if len(program.Systems) > 0 {
		if !first {
			e.nl()
		}
		e.epilogue(program.Libraries)
	}
	return nil
}

// epilogue closes the system wiring: VJPLIBS requires every plain library,
// and every former system requires VJPLIBS.
func (e *emitter) epilogue(libraries []string) {
	if len(libraries) > 0 {
		e.line("library %s requires %s", lower.VJPLIBS_NAME, strings.Join(libraries, ", "))
	} else {
		e.line("library %s", lower.VJPLIBS_NAME)
	}
	e.line("endlibrary")
}

func (e *emitter) container(container *ast.Container) error {
	closing := "endlibrary"
	e.pad()
	switch container.Kind {
	case ast.CONTAINER_LIBRARY:
		e.write("library ")
	case ast.CONTAINER_SCOPE, ast.CONTAINER_CONTENT:
		e.write("scope ")
		closing = "endscope"
	default:
		return diagnostics.Internalf("container '%s' reached the emitter with kind %s", container.ResolvedName, container.Kind)
	}
	e.write(container.ResolvedName)
	if len(container.InitNames) > 0 {
		e.write(" initializer onInit")
	}
	if len(container.Requires) > 0 {
		e.write(" requires ")
		for i, require := range container.Requires {
			if i > 0 {
				e.write(", ")
			}
			if require.Optional {
				e.write("optional ")
			}
			e.write(require.Name.Name())
		}
	}
	e.nl()

	e.depth++
	if err := e.members(container); err != nil {
		return err
	}
	if len(container.InitNames) > 0 {
		e.onInit(container.InitNames)
	}
	e.depth--
	e.line("%s", closing)
	return nil
}

// members renders the container body. Contiguous variable runs share one
// globals block; the first block is emitted even when empty, since vJass
// expects it straight after the header. Aliases emit nothing and do not
// break a run.
func (e *emitter) members(container *ast.Container) error {
	members := container.Members
	run, i := varRun(members, 0)
	if err := e.globals(run); err != nil {
		return err
	}

	for i < len(members) {
		switch member := members[i].(type) {
		case *ast.VarDecl:
			run, i = varRun(members, i)
			if err := e.globals(run); err != nil {
				return err
			}
		case *ast.AliasDecl:
			i++
		case *ast.FnDecl:
			if err := e.function(member); err != nil {
				return err
			}
			i++
		case *ast.InitDecl:
			if err := e.initFunction(member); err != nil {
				return err
			}
			i++
		case *ast.TypeDecl:
			e.structDecl(member)
			i++
		case *ast.NativeDecl:
			if err := e.native(member); err != nil {
				return err
			}
			i++
		case *ast.Container:
			if err := e.container(member); err != nil {
				return err
			}
			i++
		default:
			return diagnostics.Internalf("no rendering for member %T", member)
		}
	}
	return nil
}

// varRun collects the variable run starting at offset, skipping aliases.
// It returns the run and the index of the first member past it.
func varRun(members []ast.Decl, offset int) ([]*ast.VarDecl, int) {
	var run []*ast.VarDecl
	i := offset
	for i < len(members) {
		if variable, ok := members[i].(*ast.VarDecl); ok {
			run = append(run, variable)
			i++
			continue
		}
		if _, ok := members[i].(*ast.AliasDecl); ok {
			i++
			continue
		}
		break
	}
	return run, i
}

func (e *emitter) globals(run []*ast.VarDecl) error {
	e.line("globals")
	e.depth++
	for _, variable := range run {
		e.pad()
		e.write(visKeyword(variable.Vis))
		if variable.Constant {
			e.write("constant ")
		}
		e.write(variable.Type.Target())
		if variable.IsArray {
			e.write(" array")
		}
		e.write(" ")
		e.write(variable.Name.Name())
		if variable.Hashtable {
			e.write(" = InitHashtable()")
		} else if variable.Value != nil {
			e.write(" = ")
			if err := e.expr(variable.Value); err != nil {
				return err
			}
		}
		e.nl()
	}
	e.depth--
	e.line("endglobals")
	return nil
}

func (e *emitter) function(fn *ast.FnDecl) error {
	e.pad()
	e.write(visKeyword(fn.Vis))
	e.write("function ")
	e.write(fn.Name.Name())
	e.signature(fn.Params, fn.RetType)
	e.nl()

	e.depth++
	if err := e.locals(fn.Locals); err != nil {
		return err
	}
	if err := e.block(fn.Block); err != nil {
		return err
	}
	e.depth--
	e.line("endfunction")
	return nil
}

func (e *emitter) initFunction(init *ast.InitDecl) error {
	e.line("private function %s takes nothing returns nothing", init.FuncName)
	e.depth++
	if err := e.locals(init.Locals); err != nil {
		return err
	}
	if err := e.block(init.Block); err != nil {
		return err
	}
	e.depth--
	e.line("endfunction")
	return nil
}

// onInit calls each init function in source order. The initializer clause on
// the container header points here.
func (e *emitter) onInit(names []string) {
	e.line("private function onInit takes nothing returns nothing")
	e.depth++
	for _, name := range names {
		e.line("call %s()", name)
	}
	e.depth--
	e.line("endfunction")
}

func (e *emitter) structDecl(typeDecl *ast.TypeDecl) {
	e.pad()
	e.write(visKeyword(typeDecl.Vis))
	e.write("struct ")
	e.write(typeDecl.Name.Name())
	// handle-derived types map to plain structs; anything else only works
	// as an array struct in the target.
	if typeDecl.Base.Name() != "handle" {
		e.write(" extends array")
	}
	e.nl()
	e.line("endstruct")
}

func (e *emitter) native(native *ast.NativeDecl) error {
	e.pad()
	e.write("native ")
	e.write(native.Name.Name())
	e.signature(native.Params, native.RetType)
	e.nl()
	return nil
}

func (e *emitter) signature(params []*ast.Field, ret *ast.TypeRef) {
	e.write(" takes ")
	if len(params) == 0 {
		e.write("nothing")
	} else {
		for i, param := range params {
			if i > 0 {
				e.write(", ")
			}
			e.write(param.Type.Target())
			e.write(" ")
			e.write(param.Name.Name())
		}
	}
	e.write(" returns ")
	if ret == nil {
		e.write("nothing")
	} else {
		e.write(ret.Target())
	}
}

func (e *emitter) locals(locals []*ast.VarStmt) error {
	for _, local := range locals {
		e.pad()
		e.write("local ")
		e.write(local.Type.Target())
		if local.IsArray {
			e.write(" array")
		}
		e.write(" ")
		e.write(local.Name.Name())
		if local.Hashtable {
			e.write(" = InitHashtable()")
		} else if local.Value != nil {
			e.write(" = ")
			if err := e.expr(local.Value); err != nil {
				return err
			}
		}
		e.nl()
	}
	return nil
}

func (e *emitter) block(block *ast.BlockStmt) error {
	for _, stmt := range block.Statements {
		if err := e.stmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) stmt(stmt ast.Stmt) error {
	switch statement := stmt.(type) {
	case *ast.AssignStmt:
		e.pad()
		if err := e.assign(statement); err != nil {
			return err
		}
		e.nl()
	case *ast.ExprStmt:
		e.pad()
		if err := e.call(statement); err != nil {
			return err
		}
		e.nl()
	case *ast.CondStmt:
		e.pad()
		e.write("if ")
		if err := e.expr(statement.If.Cond); err != nil {
			return err
		}
		e.write(" then")
		e.nl()
		if err := e.indented(statement.If.Block); err != nil {
			return err
		}
		for _, elif := range statement.Elifs {
			e.pad()
			e.write("elseif ")
			if err := e.expr(elif.Cond); err != nil {
				return err
			}
			e.write(" then")
			e.nl()
			if err := e.indented(elif.Block); err != nil {
				return err
			}
		}
		if statement.Else != nil {
			e.line("else")
			if err := e.indented(statement.Else); err != nil {
				return err
			}
		}
		e.line("endif")
	case *ast.LoopStmt:
		e.line("loop")
		if err := e.indented(statement.Block); err != nil {
			return err
		}
		e.line("endloop")
	case *ast.ExitwhenStmt:
		e.pad()
		e.write("exitwhen ")
		if err := e.expr(statement.Cond); err != nil {
			return err
		}
		e.nl()
	case *ast.ReturnStmt:
		if statement.Value == nil {
			e.line("return")
			return nil
		}
		e.pad()
		e.write("return ")
		if err := e.expr(statement.Value); err != nil {
			return err
		}
		e.nl()
	case *ast.DebugStmt:
		e.pad()
		e.write("debug ")
		switch wrapped := statement.Wrapped.(type) {
		case *ast.AssignStmt:
			if err := e.assign(wrapped); err != nil {
				return err
			}
		case *ast.ExprStmt:
			if err := e.call(wrapped); err != nil {
				return err
			}
		default:
			return diagnostics.Internalf("debug wraps %T, which has no rendering", statement.Wrapped)
		}
		e.nl()
	case *ast.UntilStmt, *ast.WhileStmt, *ast.BreakStmt, *ast.IncDecStmt, *ast.VarStmt:
		return diagnostics.Internalf("%T reached the emitter without lowering", stmt)
	default:
		return diagnostics.Internalf("no rendering for statement %T", stmt)
	}
	return nil
}

func (e *emitter) indented(block *ast.BlockStmt) error {
	e.depth++
	err := e.block(block)
	e.depth--
	return err
}

func (e *emitter) assign(statement *ast.AssignStmt) error {
	e.write("set ")
	if err := e.expr(statement.LHS); err != nil {
		return err
	}
	e.write(" = ")
	return e.expr(statement.Value)
}

func (e *emitter) call(statement *ast.ExprStmt) error {
	e.write("call ")
	return e.expr(statement.Expr)
}

// Precedence levels, loosest first. Operands re-parenthesize against these
// so the grouping the parser saw survives a round-trip through text.
const (
	PREC_OR = iota + 1
	PREC_AND
	PREC_EQUALITY
	PREC_COMPARISON
	PREC_TERM
	PREC_FACTOR
	PREC_UNARY
	PREC_POSTFIX
)

func binPrec(op token.Kind) int {
	switch op {
	case token.OR:
		return PREC_OR
	case token.AND:
		return PREC_AND
	case token.EQUAL_EQUAL, token.BANG_EQUAL:
		return PREC_EQUALITY
	case token.GREATER, token.GREATER_EQ, token.LESS, token.LESS_EQ:
		return PREC_COMPARISON
	case token.PLUS, token.MINUS:
		return PREC_TERM
	case token.STAR, token.SLASH, token.PERCENT:
		return PREC_FACTOR
	default:
		log.Fatalf("no precedence for operator %s", op)
		return 0
	}
}

func exprPrec(expr ast.Expr) int {
	switch expression := expr.(type) {
	case *ast.BinExpr:
		return binPrec(expression.Op)
	case *ast.UnaryExpr:
		return PREC_UNARY
	case *ast.FuncRefExpr:
		// `function N` binds nothing; parenthesize it anywhere but as a
		// plain argument.
		return PREC_OR
	default:
		return PREC_POSTFIX
	}
}

func (e *emitter) expr(expr ast.Expr) error {
	switch expression := expr.(type) {
	case *ast.LiteralExpr:
		e.literal(expression.Value)
	case *ast.IdExpr:
		e.write(expression.Name.Name())
	case *ast.BinExpr:
		prec := binPrec(expression.Op)
		if err := e.operand(expression.LHS, prec, false); err != nil {
			return err
		}
		e.writef(" %s ", expression.Op)
		return e.operand(expression.RHS, prec, true)
	case *ast.UnaryExpr:
		return e.unary(expression)
	case *ast.CallExpr:
		if err := e.operand(expression.Callee, PREC_POSTFIX, false); err != nil {
			return err
		}
		e.write("(")
		for i, arg := range expression.Args {
			if i > 0 {
				e.write(", ")
			}
			if err := e.expr(arg); err != nil {
				return err
			}
		}
		e.write(")")
	case *ast.IndexExpr:
		if err := e.operand(expression.Base, PREC_POSTFIX, false); err != nil {
			return err
		}
		e.write("[")
		if err := e.expr(expression.Index); err != nil {
			return err
		}
		e.write("]")
	case *ast.FieldAccess:
		if err := e.operand(expression.Base, PREC_POSTFIX, false); err != nil {
			return err
		}
		e.write(".")
		e.write(expression.Field.Name())
	case *ast.FuncRefExpr:
		e.writef("function %s", expression.Name.Name())
	default:
		return diagnostics.Internalf("no rendering for expression %T", expr)
	}
	return nil
}

func (e *emitter) unary(expression *ast.UnaryExpr) error {
	need := exprPrec(expression.Value) < PREC_UNARY
	if expression.Op == token.MINUS {
		e.write("-")
		// -(-x) must not flatten into a token the target lexes as `--`.
		if inner, ok := expression.Value.(*ast.UnaryExpr); ok && inner.Op == token.MINUS {
			need = true
		}
	} else {
		// The target spells negation `not`; `!` folds into it.
		e.write("not ")
	}
	if need {
		e.write("(")
	}
	if err := e.expr(expression.Value); err != nil {
		return err
	}
	if need {
		e.write(")")
	}
	return nil
}

// operand writes expr parenthesized when its precedence loses to the parent,
// or ties it on the right of a left-associative operator.
func (e *emitter) operand(expr ast.Expr, parent int, right bool) error {
	prec := exprPrec(expr)
	need := prec < parent || (right && prec == parent)
	if need {
		e.write("(")
	}
	if err := e.expr(expr); err != nil {
		return err
	}
	if need {
		e.write(")")
	}
	return nil
}

// literal writes a literal token back out. String lexemes carry their escape
// sequences verbatim but not their quotes; everything else round-trips as
// written.
func (e *emitter) literal(value *token.Token) {
	if value.Kind == token.STRING_LIT {
		e.write("\"")
		e.write(value.Name())
		e.write("\"")
		return
	}
	e.write(value.Name())
}

func visKeyword(vis ast.Visibility) string {
	switch vis {
	case ast.VIS_PRIVATE:
		return "private "
	case ast.VIS_API:
		return "public "
	}
	return ""
}
