// Package lower runs the whole-program semantic passes between parsing and
// emission: anonymous container naming, alias resolution, visibility,
// initializer wiring, local hoisting and statement rewrites.
package lower

import (
	"fmt"
	"hash/fnv"
	"log"
	"reflect"

	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer/token"
)

// VJPLIBS_NAME is the synthetic library every system requires. It in turn
// requires every plain library, so systems initialize after all of them.
const VJPLIBS_NAME = "VJPLIBS"

// BUILTIN_ALIASES pre-seeds the alias table with the dialect's short type
// spellings. Redeclaring one of these names is a duplicate-alias diagnostic.
var BUILTIN_ALIASES map[string]string = map[string]string{
	"int":   "integer",
	"bool":  "boolean",
	"str":   "string",
	"float": "real",
}

// ContentTag derives the deterministic scope name stamped on the ordinal-th
// anonymous content block of the unit at canon. Identical inputs yield
// identical tags across runs.
func ContentTag(canon string, ordinal int) string {
	return "VJPS" + hashTag(fmt.Sprintf("%s#%d", canon, ordinal))
}

// InitTag derives the deterministic function name wrapping the ordinal-th
// init block of the named container.
func InitTag(container string, ordinal int) string {
	return "VJPI" + hashTag(fmt.Sprintf("%s#%d", container, ordinal))
}

func hashTag(seed string) string {
	hash := fnv.New64a()
	hash.Write([]byte(seed))
	return fmt.Sprintf("%016X", hash.Sum64())
}

type lowerer struct {
	collector *diagnostics.Collector

	aliases    map[string]string
	aliasDecls map[string]*ast.AliasDecl
	// aliasOrder keeps cycle checks deterministic.
	aliasOrder []string

	scopes map[*ast.Container]*ast.Scope
}

func New(collector *diagnostics.Collector) *lowerer {
	return &lowerer{
		collector:  collector,
		aliases:    make(map[string]string),
		aliasDecls: make(map[string]*ast.AliasDecl),
		scopes:     make(map[*ast.Container]*ast.Scope),
	}
}

// Lower annotates and rewrites the parsed forest in place. Pass order
// matters: naming feeds initializer tags, visibility builds the symbol
// tables initializer wiring checks, and hoisting must see declarations
// before rewrites discard the loop forms that contain them.
func (l *lowerer) Lower(program *ast.Program) error {
	l.nameContainers(program)
	if err := l.resolveAliases(program); err != nil {
		return err
	}
	if err := l.resolveVisibility(program); err != nil {
		return err
	}
	if err := l.wireInitializers(program); err != nil {
		return err
	}
	if err := l.hoistLocals(program); err != nil {
		return err
	}
	l.rewriteStatements(program)
	l.collectLibraries(program)
	return nil
}

func (l *lowerer) nameContainers(program *ast.Program) {
	for _, unit := range program.Units {
		ordinal := 0
		for _, decl := range unit.Decls {
			if container, ok := decl.(*ast.Container); ok {
				l.nameContainer(unit, container, &ordinal)
			}
		}
	}
}

func (l *lowerer) nameContainer(unit *ast.Unit, container *ast.Container, ordinal *int) {
	if container.Name != nil {
		container.ResolvedName = container.Name.Name()
	} else {
		container.ResolvedName = ContentTag(unit.Canon, *ordinal)
		*ordinal++
	}
	for _, member := range container.Members {
		if nested, ok := member.(*ast.Container); ok {
			l.nameContainer(unit, nested, ordinal)
		}
	}
}

func (l *lowerer) resolveAliases(program *ast.Program) error {
	for name, base := range BUILTIN_ALIASES {
		l.aliases[name] = base
	}
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			if container, ok := decl.(*ast.Container); ok {
				if err := l.collectAliases(container); err != nil {
					return err
				}
			}
		}
	}
	for _, name := range l.aliasOrder {
		if err := l.checkAliasCycle(name); err != nil {
			return err
		}
	}
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			switch decl := decl.(type) {
			case *ast.Container:
				l.resolveContainerTypes(decl)
			case *ast.NativeDecl:
				l.resolveSignature(decl.Params, decl.RetType)
			}
		}
	}
	return nil
}

func (l *lowerer) collectAliases(container *ast.Container) error {
	for _, member := range container.Members {
		switch member := member.(type) {
		case *ast.AliasDecl:
			name := member.Name.Name()
			if _, ok := l.aliases[name]; ok {
				pos := member.Name.Pos
				duplicateAlias := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: duplicate alias '%s'",
						pos.Filename,
						pos.Line,
						pos.Column,
						name,
					),
				}
				l.collector.ReportAndSave(duplicateAlias)
				return diagnostics.COMPILER_ERROR_FOUND
			}
			l.aliases[name] = member.Base.Name()
			l.aliasDecls[name] = member
			l.aliasOrder = append(l.aliasOrder, name)
		case *ast.Container:
			if err := l.collectAliases(member); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *lowerer) checkAliasCycle(name string) error {
	seen := make(map[string]bool)
	current := name
	for {
		base, ok := l.aliases[current]
		if !ok {
			return nil
		}
		if seen[current] {
			decl := l.aliasDecls[name]
			pos := decl.Name.Pos
			aliasCycle := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: alias cycle involving '%s'",
					pos.Filename,
					pos.Line,
					pos.Column,
					name,
				),
			}
			l.collector.ReportAndSave(aliasCycle)
			return diagnostics.COMPILER_ERROR_FOUND
		}
		seen[current] = true
		current = base
	}
}

func (l *lowerer) resolveContainerTypes(container *ast.Container) {
	for _, member := range container.Members {
		switch member := member.(type) {
		case *ast.VarDecl:
			l.resolveType(member.Type)
		case *ast.FnDecl:
			l.resolveSignature(member.Params, member.RetType)
			l.resolveBlockTypes(member.Block)
		case *ast.NativeDecl:
			l.resolveSignature(member.Params, member.RetType)
		case *ast.InitDecl:
			l.resolveBlockTypes(member.Block)
		case *ast.Container:
			l.resolveContainerTypes(member)
		}
	}
}

func (l *lowerer) resolveSignature(params []*ast.Field, ret *ast.TypeRef) {
	for _, param := range params {
		l.resolveType(param.Type)
	}
	l.resolveType(ret)
}

// resolveBlockTypes runs before hoisting, while local declarations still sit
// inside their blocks.
func (l *lowerer) resolveBlockTypes(block *ast.BlockStmt) {
	for _, stmt := range block.Statements {
		switch statement := stmt.(type) {
		case *ast.VarStmt:
			l.resolveType(statement.Type)
		case *ast.CondStmt:
			l.resolveBlockTypes(statement.If.Block)
			for _, elif := range statement.Elifs {
				l.resolveBlockTypes(elif.Block)
			}
			if statement.Else != nil {
				l.resolveBlockTypes(statement.Else)
			}
		case *ast.UntilStmt:
			l.resolveBlockTypes(statement.Block)
		case *ast.WhileStmt:
			l.resolveBlockTypes(statement.Block)
		case *ast.LoopStmt:
			l.resolveBlockTypes(statement.Block)
		}
	}
}

func (l *lowerer) resolveType(ref *ast.TypeRef) {
	if ref == nil {
		return
	}
	name := ref.Name.Name()
	for {
		base, ok := l.aliases[name]
		if !ok {
			break
		}
		name = base
	}
	ref.Resolved = name
}

func (l *lowerer) resolveVisibility(program *ast.Program) error {
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			if container, ok := decl.(*ast.Container); ok {
				if err := l.resolveContainer(container); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *lowerer) resolveContainer(container *ast.Container) error {
	scope := ast.NewScope()
	l.scopes[container] = scope

	for _, member := range container.Members {
		switch member := member.(type) {
		case *ast.VarDecl:
			vis, err := l.memberVisibility(member.Name, member.BlockVis, member.InlineVis)
			if err != nil {
				return err
			}
			member.Vis = vis
			if err := l.declare(scope, member.Name, member); err != nil {
				return err
			}
		case *ast.FnDecl:
			vis, err := l.memberVisibility(member.Name, member.BlockVis, member.InlineVis)
			if err != nil {
				return err
			}
			member.Vis = vis
			if err := l.declare(scope, member.Name, member); err != nil {
				return err
			}
		case *ast.TypeDecl:
			vis, err := l.memberVisibility(member.Name, member.BlockVis, member.InlineVis)
			if err != nil {
				return err
			}
			member.Vis = vis
			if err := l.declare(scope, member.Name, member); err != nil {
				return err
			}
		case *ast.NativeDecl:
			if err := l.declare(scope, member.Name, member); err != nil {
				return err
			}
		case *ast.Container:
			if member.Name != nil {
				if err := l.declare(scope, member.Name, member); err != nil {
					return err
				}
			}
			if err := l.resolveContainer(member); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *lowerer) memberVisibility(name *token.Token, blockVis, inlineVis ast.Visibility) (ast.Visibility, error) {
	vis := blockVis
	if inlineVis != ast.VIS_NONE {
		if blockVis != ast.VIS_NONE && blockVis != inlineVis {
			pos := name.Pos
			conflictingVis := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: conflicting visibility modifiers for '%s'",
					pos.Filename,
					pos.Line,
					pos.Column,
					name.Name(),
				),
			}
			l.collector.ReportAndSave(conflictingVis)
			return ast.VIS_NONE, diagnostics.COMPILER_ERROR_FOUND
		}
		vis = inlineVis
	}
	if vis == ast.VIS_NONE {
		vis = ast.VIS_PRIVATE
	}
	return vis, nil
}

func (l *lowerer) declare(scope *ast.Scope, name *token.Token, member ast.Node) error {
	if err := scope.Insert(name.Name(), member); err != nil {
		pos := name.Pos
		duplicateMember := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: duplicate declaration '%s'",
				pos.Filename,
				pos.Line,
				pos.Column,
				name.Name(),
			),
		}
		l.collector.ReportAndSave(duplicateMember)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

func (l *lowerer) wireInitializers(program *ast.Program) error {
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			if container, ok := decl.(*ast.Container); ok {
				if err := l.wireContainerInits(container); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *lowerer) wireContainerInits(container *ast.Container) error {
	ordinal := 0
	for _, member := range container.Members {
		switch member := member.(type) {
		case *ast.InitDecl:
			member.FuncName = InitTag(container.ResolvedName, ordinal)
			container.InitNames = append(container.InitNames, member.FuncName)
			ordinal++
		case *ast.Container:
			if err := l.wireContainerInits(member); err != nil {
				return err
			}
		}
	}
	if len(container.InitNames) == 0 {
		return nil
	}

	// The synthetic initializer claims the name onInit inside this container.
	scope := l.scopes[container]
	if clash, err := scope.Lookup("onInit"); err == nil {
		name := memberName(clash)
		pos := name.Pos
		reservedOnInit := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: 'onInit' is reserved when init: blocks exist",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		l.collector.ReportAndSave(reservedOnInit)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

func memberName(node ast.Node) *token.Token {
	switch member := node.(type) {
	case *ast.VarDecl:
		return member.Name
	case *ast.FnDecl:
		return member.Name
	case *ast.TypeDecl:
		return member.Name
	case *ast.NativeDecl:
		return member.Name
	case *ast.Container:
		return member.Name
	}
	return nil
}

func (l *lowerer) hoistLocals(program *ast.Program) error {
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			if container, ok := decl.(*ast.Container); ok {
				if err := l.hoistContainer(container); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *lowerer) hoistContainer(container *ast.Container) error {
	for _, member := range container.Members {
		switch member := member.(type) {
		case *ast.FnDecl:
			locals, err := l.hoistFunction(member.Params, member.Block)
			if err != nil {
				return err
			}
			member.Locals = locals
		case *ast.InitDecl:
			locals, err := l.hoistFunction(nil, member.Block)
			if err != nil {
				return err
			}
			member.Locals = locals
		case *ast.Container:
			if err := l.hoistContainer(member); err != nil {
				return err
			}
		}
	}
	return nil
}

// hoistFunction moves every local declaration of one function body into the
// returned prologue. A leading run keeps its initializers; every later
// declaration is split into a bare prologue entry plus an assignment at its
// original position.
func (l *lowerer) hoistFunction(params []*ast.Field, block *ast.BlockStmt) ([]*ast.VarStmt, error) {
	h := &hoister{collector: l.collector, symbols: make(map[string]bool, len(params))}
	for _, param := range params {
		if err := h.declare(param.Name, "parameter"); err != nil {
			return nil, err
		}
	}

	statements := block.Statements
	leading := 0
	for leading < len(statements) {
		variable, ok := statements[leading].(*ast.VarStmt)
		if !ok {
			break
		}
		if err := h.declare(variable.Name, "local"); err != nil {
			return nil, err
		}
		h.locals = append(h.locals, variable)
		leading++
	}

	rest, err := h.block(statements[leading:])
	if err != nil {
		return nil, err
	}
	block.Statements = rest
	return h.locals, nil
}

// hoister collects one function's locals. symbols holds parameters too, so
// a local shadowing a parameter is caught alongside plain duplicates.
type hoister struct {
	collector *diagnostics.Collector
	symbols   map[string]bool
	locals    []*ast.VarStmt
}

func (h *hoister) declare(name *token.Token, what string) error {
	if h.symbols[name.Name()] {
		pos := name.Pos
		duplicateSymbol := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: duplicate %s '%s'",
				pos.Filename,
				pos.Line,
				pos.Column,
				what,
				name.Name(),
			),
		}
		h.collector.ReportAndSave(duplicateSymbol)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	h.symbols[name.Name()] = true
	return nil
}

func (h *hoister) block(statements []ast.Stmt) ([]ast.Stmt, error) {
	rewritten := make([]ast.Stmt, 0, len(statements))
	for _, stmt := range statements {
		switch statement := stmt.(type) {
		case *ast.VarStmt:
			if err := h.declare(statement.Name, "local"); err != nil {
				return nil, err
			}
			h.locals = append(h.locals, statement)
			if assign := splitLocal(statement); assign != nil {
				rewritten = append(rewritten, assign)
			}
		case *ast.CondStmt:
			if err := h.nested(statement.If.Block); err != nil {
				return nil, err
			}
			for _, elif := range statement.Elifs {
				if err := h.nested(elif.Block); err != nil {
					return nil, err
				}
			}
			if statement.Else != nil {
				if err := h.nested(statement.Else); err != nil {
					return nil, err
				}
			}
			rewritten = append(rewritten, statement)
		case *ast.UntilStmt:
			if err := h.nested(statement.Block); err != nil {
				return nil, err
			}
			rewritten = append(rewritten, statement)
		case *ast.WhileStmt:
			if err := h.nested(statement.Block); err != nil {
				return nil, err
			}
			rewritten = append(rewritten, statement)
		case *ast.LoopStmt:
			if err := h.nested(statement.Block); err != nil {
				return nil, err
			}
			rewritten = append(rewritten, statement)
		default:
			rewritten = append(rewritten, stmt)
		}
	}
	return rewritten, nil
}

func (h *hoister) nested(block *ast.BlockStmt) error {
	statements, err := h.block(block.Statements)
	if err != nil {
		return err
	}
	block.Statements = statements
	return nil
}

// splitLocal strips a mid-block declaration down to its prologue form and
// returns the assignment that stays at the original position, if any.
// Constants keep their initializer attached instead.
func splitLocal(variable *ast.VarStmt) ast.Stmt {
	if variable.Hashtable {
		variable.Hashtable = false
		return &ast.AssignStmt{
			LHS:   &ast.IdExpr{Name: variable.Name},
			Value: initHashtableCall(variable.Name.Pos),
		}
	}
	if variable.Constant || variable.Value == nil {
		return nil
	}
	assign := &ast.AssignStmt{
		LHS:   &ast.IdExpr{Name: variable.Name},
		Value: variable.Value,
	}
	variable.Value = nil
	return assign
}

func initHashtableCall(pos token.Pos) ast.Expr {
	callee := &ast.IdExpr{Name: token.New([]byte("InitHashtable"), token.ID, pos)}
	return &ast.CallExpr{Callee: callee}
}

func (l *lowerer) rewriteStatements(program *ast.Program) {
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			if container, ok := decl.(*ast.Container); ok {
				l.rewriteContainer(container)
			}
		}
	}
}

func (l *lowerer) rewriteContainer(container *ast.Container) {
	for _, member := range container.Members {
		switch member := member.(type) {
		case *ast.FnDecl:
			l.rewriteBlock(member.Block)
		case *ast.InitDecl:
			l.rewriteBlock(member.Block)
		case *ast.Container:
			l.rewriteContainer(member)
		}
	}
}

func (l *lowerer) rewriteBlock(block *ast.BlockStmt) {
	for i, stmt := range block.Statements {
		block.Statements[i] = l.rewriteStmt(stmt)
	}
}

func (l *lowerer) rewriteStmt(stmt ast.Stmt) ast.Stmt {
	switch statement := stmt.(type) {
	case *ast.IncDecStmt:
		op := token.PLUS
		if statement.Dec {
			op = token.MINUS
		}
		pos := exprPos(statement.LHS)
		return &ast.AssignStmt{
			LHS: statement.LHS,
			Value: &ast.BinExpr{
				LHS: statement.LHS,
				Op:  op,
				RHS: &ast.LiteralExpr{Value: token.New([]byte("1"), token.INT_LIT, pos)},
			},
		}
	case *ast.BreakStmt:
		return &ast.ExitwhenStmt{
			Cond: &ast.LiteralExpr{Value: token.New([]byte("true"), token.TRUE, statement.Pos)},
		}
	case *ast.UntilStmt:
		l.rewriteBlock(statement.Block)
		statements := append([]ast.Stmt{&ast.ExitwhenStmt{Cond: statement.Cond}}, statement.Block.Statements...)
		return &ast.LoopStmt{Block: &ast.BlockStmt{Statements: statements}}
	case *ast.WhileStmt:
		l.rewriteBlock(statement.Block)
		exit := &ast.ExitwhenStmt{Cond: &ast.UnaryExpr{Op: token.NOT, Value: statement.Cond}}
		statements := append([]ast.Stmt{exit}, statement.Block.Statements...)
		return &ast.LoopStmt{Block: &ast.BlockStmt{Statements: statements}}
	case *ast.LoopStmt:
		l.rewriteBlock(statement.Block)
		return statement
	case *ast.CondStmt:
		l.rewriteBlock(statement.If.Block)
		for _, elif := range statement.Elifs {
			l.rewriteBlock(elif.Block)
		}
		if statement.Else != nil {
			l.rewriteBlock(statement.Else)
		}
		return statement
	case *ast.DebugStmt:
		statement.Wrapped = l.rewriteStmt(statement.Wrapped)
		return statement
	case *ast.AssignStmt, *ast.ExprStmt, *ast.ReturnStmt, *ast.ExitwhenStmt:
		return stmt
	default:
		log.Fatalf("unimplemented statement on lowering: %s", reflect.TypeOf(stmt))
		return stmt
	}
}

func exprPos(expr ast.Expr) token.Pos {
	switch expression := expr.(type) {
	case *ast.IdExpr:
		return expression.Name.Pos
	case *ast.IndexExpr:
		return exprPos(expression.Base)
	case *ast.FieldAccess:
		return exprPos(expression.Base)
	case *ast.LiteralExpr:
		return expression.Value.Pos
	}
	return token.Pos{}
}

// collectLibraries records library and system names for the VJPLIBS
// epilogue, then demotes each system to a plain library requiring VJPLIBS.
func (l *lowerer) collectLibraries(program *ast.Program) {
	for _, unit := range program.Units {
		for _, decl := range unit.Decls {
			container, ok := decl.(*ast.Container)
			if !ok {
				continue
			}
			switch container.Kind {
			case ast.CONTAINER_LIBRARY:
				program.Libraries = append(program.Libraries, container.ResolvedName)
			case ast.CONTAINER_SYSTEM:
				program.Systems = append(program.Systems, container.ResolvedName)
				container.Requires = append(container.Requires, &ast.Require{
					Name: token.New([]byte(VJPLIBS_NAME), token.ID, container.Pos),
				})
				container.Kind = ast.CONTAINER_LIBRARY
			}
		}
	}
}
