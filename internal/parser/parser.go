package parser

import (
	"bytes"
	"fmt"

	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer"
	"github.com/escaco95/vjassp/internal/lexer/token"
)

// compoundOps maps an op= token onto the operator its desugared assignment
// applies: X op= E parses as X = X op E.
var compoundOps map[token.Kind]token.Kind = map[token.Kind]token.Kind{
	token.PLUS_EQUAL:  token.PLUS,
	token.MINUS_EQUAL: token.MINUS,
	token.STAR_EQUAL:  token.STAR,
	token.SLASH_EQUAL: token.SLASH,
}

// Parser builds a unit's declaration list from the lexer's token stream. It
// fails fast: the first diagnostic aborts the unit's parse.
type Parser struct {
	collector *diagnostics.Collector
	cursor    *cursor
}

func New(collector *diagnostics.Collector) *Parser {
	parser := new(Parser)
	parser.collector = collector
	return parser
}

// ParseUnit parses one resolved source unit. Import directives were already
// acted on by the source resolver, so they are validated and dropped here.
func (p *Parser) ParseUnit(path, canon string, tokens []*token.Token) (*ast.Unit, error) {
	p.cursor = newCursor(tokens)

	unit := &ast.Unit{Path: path, Canon: canon}
	sawDecl := false
	for {
		tok := p.cursor.peek()
		switch tok.Kind {
		case token.EOF:
			return unit, nil
		case token.NEWLINE:
			p.cursor.skip()
		case token.IMPORT, token.WHEN:
			if err := p.parseImportDirective(sawDecl); err != nil {
				return nil, err
			}
		case token.LIBRARY, token.SYSTEM, token.SCOPE, token.CONTENT:
			container, err := p.parseContainer()
			if err != nil {
				return nil, err
			}
			unit.Decls = append(unit.Decls, container)
			sawDecl = true
		case token.NATIVE:
			native, err := p.parseNative()
			if err != nil {
				return nil, err
			}
			unit.Decls = append(unit.Decls, native)
			sawDecl = true
		default:
			pos := tok.Pos
			unexpectedToken := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: expected declaration, not %s",
					pos.Filename,
					pos.Line,
					pos.Column,
					tok.Kind,
				),
			}
			p.collector.ReportAndSave(unexpectedToken)
			return nil, diagnostics.COMPILER_ERROR_FOUND
		}
	}
}

func (p *Parser) parseImportDirective(sawDecl bool) error {
	directive := p.cursor.peek()
	if sawDecl {
		pos := directive.Pos
		misplacedImport := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: import directives must precede declarations",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		p.collector.ReportAndSave(misplacedImport)
		return diagnostics.COMPILER_ERROR_FOUND
	}

	if directive.Kind == token.WHEN {
		p.cursor.skip()
		// The tag condition was evaluated during source resolution, consume
		// it without interpreting.
		for !p.cursor.nextIs(token.IMPORT) {
			tok := p.cursor.peek()
			if tok.Kind == token.NEWLINE || tok.Kind == token.EOF {
				pos := tok.Pos
				expectedImport := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: expected import after when condition, not %s",
						pos.Filename,
						pos.Line,
						pos.Column,
						tok.Kind,
					),
				}
				p.collector.ReportAndSave(expectedImport)
				return diagnostics.COMPILER_ERROR_FOUND
			}
			p.cursor.skip()
		}
	}

	p.cursor.skip() // import
	path, ok := p.expect(token.STRING_LIT)
	if !ok {
		pos := path.Pos
		expectedPath := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected file path string, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				path.Kind,
			),
		}
		p.collector.ReportAndSave(expectedPath)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return p.expectNewline()
}

func (p *Parser) parseContainer() (*ast.Container, error) {
	kw := p.cursor.next()

	container := new(ast.Container)
	container.Pos = kw.Pos
	switch kw.Kind {
	case token.LIBRARY:
		container.Kind = ast.CONTAINER_LIBRARY
	case token.SYSTEM:
		container.Kind = ast.CONTAINER_SYSTEM
	case token.SCOPE:
		container.Kind = ast.CONTAINER_SCOPE
	case token.CONTENT:
		container.Kind = ast.CONTAINER_CONTENT
	}

	// content blocks may be anonymous, every other container is named
	if container.Kind != ast.CONTAINER_CONTENT || p.cursor.nextIs(token.ID) {
		name, ok := p.expect(token.ID)
		if !ok {
			pos := name.Pos
			expectedName := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: expected %s name, not %s",
					pos.Filename,
					pos.Line,
					pos.Column,
					container.Kind,
					name.Kind,
				),
			}
			p.collector.ReportAndSave(expectedName)
			return nil, diagnostics.COMPILER_ERROR_FOUND
		}
		container.Name = name
	}

	if err := p.expectBlockOpen(); err != nil {
		return nil, err
	}
	if err := p.parseMembers(container, ast.VIS_NONE); err != nil {
		return nil, err
	}
	return container, nil
}

func (p *Parser) parseMembers(container *ast.Container, blockVis ast.Visibility) error {
	for {
		tok := p.cursor.peek()
		if tok.Kind == token.NEWLINE {
			p.cursor.skip()
			continue
		}
		if tok.Kind == token.DEDENT || tok.Kind == token.EOF {
			if tok.Kind == token.DEDENT {
				p.cursor.skip()
			}
			return nil
		}
		if err := p.parseMember(container, blockVis); err != nil {
			return err
		}
	}
}

func (p *Parser) parseMember(container *ast.Container, blockVis ast.Visibility) error {
	inlineVis := ast.VIS_NONE

	tok := p.cursor.peek()
	if tok.Kind == token.GLOBAL || tok.Kind == token.API {
		vis := ast.VIS_GLOBAL
		if tok.Kind == token.API {
			vis = ast.VIS_API
		}
		if p.cursor.peekN(1).Kind == token.COLON {
			p.cursor.skip()
			if blockVis != ast.VIS_NONE {
				pos := tok.Pos
				nestedVisibility := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: visibility blocks cannot nest",
						pos.Filename,
						pos.Line,
						pos.Column,
					),
				}
				p.collector.ReportAndSave(nestedVisibility)
				return diagnostics.COMPILER_ERROR_FOUND
			}
			if err := p.expectBlockOpen(); err != nil {
				return err
			}
			return p.parseMembers(container, vis)
		}
		inlineVis = vis
		p.cursor.skip()
		tok = p.cursor.peek()
	}

	if inlineVis != ast.VIS_NONE {
		switch tok.Kind {
		case token.ID, token.TYPE:
		default:
			pos := tok.Pos
			badModifier := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: visibility modifiers only apply to variables, functions and types",
					pos.Filename,
					pos.Line,
					pos.Column,
				),
			}
			p.collector.ReportAndSave(badModifier)
			return diagnostics.COMPILER_ERROR_FOUND
		}
	}

	switch tok.Kind {
	case token.INIT:
		return p.parseInit(container)
	case token.TYPE:
		return p.parseTypeDecl(container, blockVis, inlineVis)
	case token.ALIAS:
		return p.parseAliasDecl(container)
	case token.USES:
		return p.parseUses(container)
	case token.NATIVE:
		native, err := p.parseNative()
		if err != nil {
			return err
		}
		container.Members = append(container.Members, native)
		return nil
	case token.SCOPE, token.CONTENT:
		nested, err := p.parseContainer()
		if err != nil {
			return err
		}
		container.Members = append(container.Members, nested)
		return nil
	case token.LIBRARY, token.SYSTEM:
		pos := tok.Pos
		nestedLibrary := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: %s declarations cannot nest inside %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				tok.Kind,
				container.Kind,
			),
		}
		p.collector.ReportAndSave(nestedLibrary)
		return diagnostics.COMPILER_ERROR_FOUND
	case token.ID:
		return p.parseVarOrFunction(container, blockVis, inlineVis)
	default:
		pos := tok.Pos
		unexpectedMember := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected member declaration, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				tok.Kind,
			),
		}
		p.collector.ReportAndSave(unexpectedMember)
		return diagnostics.COMPILER_ERROR_FOUND
	}
}

func (p *Parser) parseInit(container *ast.Container) error {
	kw := p.cursor.next()

	block, err := p.parseIndentedBlock()
	if err != nil {
		return err
	}
	initDecl := &ast.InitDecl{Block: block, Pos: kw.Pos}
	container.Members = append(container.Members, initDecl)
	return nil
}

func (p *Parser) parseTypeDecl(container *ast.Container, blockVis, inlineVis ast.Visibility) error {
	p.cursor.skip() // type

	name, err := p.expectIdent("type name")
	if err != nil {
		return err
	}
	if err := p.expectExtends(); err != nil {
		return err
	}
	base, err := p.expectIdent("base type")
	if err != nil {
		return err
	}
	if err := p.expectNewline(); err != nil {
		return err
	}

	typeDecl := &ast.TypeDecl{Name: name, Base: base, BlockVis: blockVis, InlineVis: inlineVis}
	container.Members = append(container.Members, typeDecl)
	return nil
}

func (p *Parser) parseAliasDecl(container *ast.Container) error {
	p.cursor.skip() // alias

	name, err := p.expectIdent("alias name")
	if err != nil {
		return err
	}
	if err := p.expectExtends(); err != nil {
		return err
	}
	base, err := p.expectIdent("base type")
	if err != nil {
		return err
	}
	if err := p.expectNewline(); err != nil {
		return err
	}

	aliasDecl := &ast.AliasDecl{Name: name, Base: base}
	container.Members = append(container.Members, aliasDecl)
	return nil
}

func (p *Parser) parseUses(container *ast.Container) error {
	kw := p.cursor.next()
	if container.Kind != ast.CONTAINER_LIBRARY && container.Kind != ast.CONTAINER_SYSTEM {
		pos := kw.Pos
		usesOutsideLibrary := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: uses clauses are only allowed inside a library or system",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		p.collector.ReportAndSave(usesOutsideLibrary)
		return diagnostics.COMPILER_ERROR_FOUND
	}

	optional := false
	if p.cursor.nextIs(token.OPTIONAL) {
		p.cursor.skip()
		optional = true
	}
	name, err := p.expectIdent("library name")
	if err != nil {
		return err
	}
	if err := p.expectNewline(); err != nil {
		return err
	}
	container.Requires = append(container.Requires, &ast.Require{Name: name, Optional: optional})
	return nil
}

func (p *Parser) parseNative() (*ast.NativeDecl, error) {
	p.cursor.skip() // native

	name, err := p.expectIdent("native name")
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	retType, err := p.parseRetType()
	if err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &ast.NativeDecl{Name: name, Params: params, RetType: retType}, nil
}

func (p *Parser) parseVarOrFunction(container *ast.Container, blockVis, inlineVis ast.Visibility) error {
	if p.cursor.peekN(1).Kind == token.OPEN_PAREN {
		fnDecl, err := p.parseFnDecl(blockVis, inlineVis)
		if err != nil {
			return err
		}
		container.Members = append(container.Members, fnDecl)
		return nil
	}

	parts, err := p.parseVarParts()
	if err != nil {
		return err
	}
	varDecl := &ast.VarDecl{
		Type:      parts.typeRef,
		Name:      parts.name,
		Value:     parts.value,
		Constant:  parts.constant,
		IsArray:   parts.isArray,
		Hashtable: parts.hashtable,
		BlockVis:  blockVis,
		InlineVis: inlineVis,
	}
	container.Members = append(container.Members, varDecl)
	return nil
}

func (p *Parser) parseFnDecl(blockVis, inlineVis ast.Visibility) (*ast.FnDecl, error) {
	name := p.cursor.next()

	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	retType, err := p.parseRetType()
	if err != nil {
		return nil, err
	}
	block, err := p.parseIndentedBlock()
	if err != nil {
		return nil, err
	}

	fnDecl := &ast.FnDecl{
		Name:      name,
		Params:    params,
		RetType:   retType,
		Block:     block,
		BlockVis:  blockVis,
		InlineVis: inlineVis,
	}
	return fnDecl, nil
}

func (p *Parser) parseParams() ([]*ast.Field, error) {
	openParen, ok := p.expect(token.OPEN_PAREN)
	if !ok {
		pos := openParen.Pos
		expectedParen := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected (, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				openParen.Kind,
			),
		}
		p.collector.ReportAndSave(expectedParen)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}

	var params []*ast.Field
	if p.cursor.nextIs(token.CLOSE_PAREN) {
		p.cursor.skip()
		return params, nil
	}
	for {
		paramType, err := p.expectIdent("parameter type")
		if err != nil {
			return nil, err
		}
		paramName, err := p.expectIdent("parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Field{Name: paramName, Type: &ast.TypeRef{Name: paramType}})
		if !p.cursor.nextIs(token.COMMA) {
			break
		}
		p.cursor.skip()
	}

	closeParen, ok := p.expect(token.CLOSE_PAREN)
	if !ok {
		pos := closeParen.Pos
		expectedParen := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected ), not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				closeParen.Kind,
			),
		}
		p.collector.ReportAndSave(expectedParen)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	return params, nil
}

// parseRetType consumes `-> TYPE` when present. Nil means the function
// returns nothing.
func (p *Parser) parseRetType() (*ast.TypeRef, error) {
	if !p.cursor.nextIs(token.ARROW) {
		return nil, nil
	}
	p.cursor.skip()
	name, err := p.expectIdent("return type")
	if err != nil {
		return nil, err
	}
	return &ast.TypeRef{Name: name}, nil
}

type varParts struct {
	typeRef   *ast.TypeRef
	name      *token.Token
	value     ast.Expr
	constant  bool
	isArray   bool
	hashtable bool
}

// parseVarParts parses the declaration shapes shared by globals and locals:
// TYPE NAME, TYPE *NAME, TYPE NAME ~ EXPR, TYPE NAME = EXPR, TYPE NAME = []
// and TYPE NAME = {}. The bracket and curly initializer contents are
// decorative and dropped.
func (p *Parser) parseVarParts() (*varParts, error) {
	typeName := p.cursor.next()
	parts := &varParts{typeRef: &ast.TypeRef{Name: typeName}}

	starred := false
	if p.cursor.nextIs(token.STAR) {
		p.cursor.skip()
		starred = true
		parts.isArray = true
	}

	name, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}
	parts.name = name

	tok := p.cursor.peek()
	switch tok.Kind {
	case token.NEWLINE:
		p.cursor.skip()
		return parts, nil
	case token.TILDE:
		p.cursor.skip()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		parts.value = value
		parts.constant = true
	case token.EQUAL:
		p.cursor.skip()
		switch p.cursor.peek().Kind {
		case token.OPEN_BRACKET:
			if err := p.skipBracketed(token.OPEN_BRACKET, token.CLOSE_BRACKET); err != nil {
				return nil, err
			}
			parts.isArray = true
		case token.OPEN_CURLY:
			if err := p.skipBracketed(token.OPEN_CURLY, token.CLOSE_CURLY); err != nil {
				return nil, err
			}
			parts.hashtable = true
		default:
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			parts.value = value
		}
	default:
		pos := tok.Pos
		unexpectedToken := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected =, ~ or newline after variable name, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				tok.Kind,
			),
		}
		p.collector.ReportAndSave(unexpectedToken)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}

	if starred && (parts.value != nil || parts.hashtable) {
		pos := name.Pos
		arrayInitializer := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: array variable %s cannot take an initializer",
				pos.Filename,
				pos.Line,
				pos.Column,
				name.Name(),
			),
		}
		p.collector.ReportAndSave(arrayInitializer)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	return parts, p.expectNewline()
}

// skipBracketed consumes a balanced bracket pair on the current line.
func (p *Parser) skipBracketed(open, close token.Kind) error {
	p.cursor.skip()
	depth := 1
	for depth > 0 {
		tok := p.cursor.peek()
		if tok.Kind == token.NEWLINE || tok.Kind == token.EOF {
			pos := tok.Pos
			unbalanced := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: expected %s, not %s",
					pos.Filename,
					pos.Line,
					pos.Column,
					close,
					tok.Kind,
				),
			}
			p.collector.ReportAndSave(unbalanced)
			return diagnostics.COMPILER_ERROR_FOUND
		}
		if tok.Kind == open {
			depth++
		}
		if tok.Kind == close {
			depth--
		}
		p.cursor.skip()
	}
	return nil
}

func (p *Parser) parseIndentedBlock() (*ast.BlockStmt, error) {
	if err := p.expectBlockOpen(); err != nil {
		return nil, err
	}
	return p.parseBlock()
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	block := new(ast.BlockStmt)
	for {
		tok := p.cursor.peek()
		if tok.Kind == token.NEWLINE {
			p.cursor.skip()
			continue
		}
		if tok.Kind == token.DEDENT || tok.Kind == token.EOF {
			if tok.Kind == token.DEDENT {
				p.cursor.skip()
			}
			return block, nil
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	tok := p.cursor.peek()
	switch tok.Kind {
	case token.ID:
		return p.parseIdStmt()
	case token.CALL:
		return p.parseCallStmt()
	case token.SET:
		return p.parseSetStmt()
	case token.IF:
		return p.parseCondStmt()
	case token.UNTIL:
		return p.parseUntilStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.LOOP:
		return p.parseLoopStmt()
	case token.BREAK:
		return p.parseBreakStmt()
	case token.EXITWHEN:
		return p.parseExitwhenStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.DEBUG:
		return p.parseDebugStmt()
	default:
		pos := tok.Pos
		unexpectedStmt := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected statement, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				tok.Kind,
			),
		}
		p.collector.ReportAndSave(unexpectedStmt)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
}

// parseIdStmt handles everything that starts with an identifier: local
// declarations, assignments, increments and bare calls. Two leading
// identifiers (or ID * ID) always mean a local declaration since no
// expression statement can have that shape.
func (p *Parser) parseIdStmt() (ast.Stmt, error) {
	second := p.cursor.peekN(1).Kind
	if second == token.ID ||
		(second == token.STAR && p.cursor.peekN(2).Kind == token.ID) {
		return p.parseVarStmt()
	}
	return p.parseSimpleStmt()
}

func (p *Parser) parseVarStmt() (ast.Stmt, error) {
	parts, err := p.parseVarParts()
	if err != nil {
		return nil, err
	}
	varStmt := &ast.VarStmt{
		Type:      parts.typeRef,
		Name:      parts.name,
		Value:     parts.value,
		Constant:  parts.constant,
		IsArray:   parts.isArray,
		Hashtable: parts.hashtable,
	}
	return varStmt, nil
}

func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	start := p.cursor.peek()
	lhs, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}

	tok := p.cursor.peek()
	switch tok.Kind {
	case token.EQUAL:
		p.cursor.skip()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.requireLValue(lhs, start); err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &ast.AssignStmt{LHS: lhs, Value: value}, nil
	case token.PLUS_EQUAL, token.MINUS_EQUAL, token.STAR_EQUAL, token.SLASH_EQUAL:
		p.cursor.skip()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.requireLValue(lhs, start); err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		value := &ast.BinExpr{LHS: lhs, Op: compoundOps[tok.Kind], RHS: rhs}
		return &ast.AssignStmt{LHS: lhs, Value: value}, nil
	case token.PLUS_PLUS, token.MINUS_MINUS:
		p.cursor.skip()
		if err := p.requireLValue(lhs, start); err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &ast.IncDecStmt{LHS: lhs, Dec: tok.Kind == token.MINUS_MINUS}, nil
	}

	if _, ok := lhs.(*ast.CallExpr); !ok {
		pos := start.Pos
		expectedCall := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected call or assignment",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		p.collector.ReportAndSave(expectedCall)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: lhs}, nil
}

func (p *Parser) parseCallStmt() (ast.Stmt, error) {
	kw := p.cursor.next()

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	callExpr, ok := expr.(*ast.CallExpr)
	if !ok {
		pos := kw.Pos
		expectedCall := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected function call after call",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		p.collector.ReportAndSave(expectedCall)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: callExpr}, nil
}

func (p *Parser) parseSetStmt() (ast.Stmt, error) {
	p.cursor.skip() // set

	start := p.cursor.peek()
	lhs, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if err := p.requireLValue(lhs, start); err != nil {
		return nil, err
	}

	equal, ok := p.expect(token.EQUAL)
	if !ok {
		pos := equal.Pos
		expectedEqual := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected =, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				equal.Kind,
			),
		}
		p.collector.ReportAndSave(expectedEqual)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &ast.AssignStmt{LHS: lhs, Value: value}, nil
}

func (p *Parser) parseCondStmt() (ast.Stmt, error) {
	p.cursor.skip() // if

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	block, err := p.parseIndentedBlock()
	if err != nil {
		return nil, err
	}
	condStmt := &ast.CondStmt{If: &ast.IfCond{Cond: cond, Block: block}}

	for p.cursor.nextIs(token.ELSEIF) {
		p.cursor.skip()
		elifCond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elifBlock, err := p.parseIndentedBlock()
		if err != nil {
			return nil, err
		}
		condStmt.Elifs = append(condStmt.Elifs, &ast.IfCond{Cond: elifCond, Block: elifBlock})
	}
	if p.cursor.nextIs(token.ELSE) {
		p.cursor.skip()
		elseBlock, err := p.parseIndentedBlock()
		if err != nil {
			return nil, err
		}
		condStmt.Else = elseBlock
	}
	return condStmt, nil
}

func (p *Parser) parseUntilStmt() (ast.Stmt, error) {
	p.cursor.skip() // until

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	block, err := p.parseIndentedBlock()
	if err != nil {
		return nil, err
	}
	return &ast.UntilStmt{Cond: cond, Block: block}, nil
}

func (p *Parser) parseWhileStmt() (ast.Stmt, error) {
	p.cursor.skip() // while

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	block, err := p.parseIndentedBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Block: block}, nil
}

func (p *Parser) parseLoopStmt() (ast.Stmt, error) {
	p.cursor.skip() // loop

	block, err := p.parseIndentedBlock()
	if err != nil {
		return nil, err
	}
	return &ast.LoopStmt{Block: block}, nil
}

func (p *Parser) parseBreakStmt() (ast.Stmt, error) {
	kw := p.cursor.next()
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &ast.BreakStmt{Pos: kw.Pos}, nil
}

func (p *Parser) parseExitwhenStmt() (ast.Stmt, error) {
	p.cursor.skip() // exitwhen

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &ast.ExitwhenStmt{Cond: cond}, nil
}

func (p *Parser) parseReturnStmt() (ast.Stmt, error) {
	p.cursor.skip() // return

	ret := new(ast.ReturnStmt)
	if !p.cursor.nextIs(token.NEWLINE) {
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ret.Value = value
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p *Parser) parseDebugStmt() (ast.Stmt, error) {
	kw := p.cursor.next()

	wrapped, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	switch wrapped.(type) {
	case *ast.ExprStmt, *ast.AssignStmt, *ast.IncDecStmt:
	default:
		pos := kw.Pos
		badDebug := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: debug requires a call or set statement",
				pos.Filename,
				pos.Line,
				pos.Column,
			),
		}
		p.collector.ReportAndSave(badDebug)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	return &ast.DebugStmt{Wrapped: wrapped}, nil
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseLogicalOr()
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	lhs, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for ast.LOGICAL_OR[p.cursor.peek().Kind] {
		op := p.cursor.next()
		rhs, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinExpr{LHS: lhs, Op: op.Kind, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	lhs, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for ast.LOGICAL_AND[p.cursor.peek().Kind] {
		op := p.cursor.next()
		rhs, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinExpr{LHS: lhs, Op: op.Kind, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	lhs, err := p.parseComparasion()
	if err != nil {
		return nil, err
	}
	for ast.EQUALITY[p.cursor.peek().Kind] {
		op := p.cursor.next()
		rhs, err := p.parseComparasion()
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinExpr{LHS: lhs, Op: op.Kind, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseComparasion() (ast.Expr, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for ast.COMPARASION[p.cursor.peek().Kind] {
		op := p.cursor.next()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinExpr{LHS: lhs, Op: op.Kind, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	lhs, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for ast.TERM[p.cursor.peek().Kind] {
		op := p.cursor.next()
		rhs, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinExpr{LHS: lhs, Op: op.Kind, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseFactor() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for ast.FACTOR[p.cursor.peek().Kind] {
		op := p.cursor.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinExpr{LHS: lhs, Op: op.Kind, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if ast.UNARY[p.cursor.peek().Kind] {
		op := p.cursor.next()
		value, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op.Kind, Value: value}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cursor.peek().Kind {
		case token.DOT:
			p.cursor.skip()
			field, err := p.expectIdent("member name")
			if err != nil {
				return nil, err
			}
			expr = &ast.FieldAccess{Base: expr, Field: field}
		case token.OPEN_BRACKET:
			p.cursor.skip()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			closeBracket, ok := p.expect(token.CLOSE_BRACKET)
			if !ok {
				pos := closeBracket.Pos
				expectedBracket := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: expected ], not %s",
						pos.Filename,
						pos.Line,
						pos.Column,
						closeBracket.Kind,
					),
				}
				p.collector.ReportAndSave(expectedBracket)
				return nil, diagnostics.COMPILER_ERROR_FOUND
			}
			expr = &ast.IndexExpr{Base: expr, Index: index}
		case token.OPEN_PAREN:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Callee: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	p.cursor.skip() // (

	var args []ast.Expr
	if p.cursor.nextIs(token.CLOSE_PAREN) {
		p.cursor.skip()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.cursor.nextIs(token.COMMA) {
			break
		}
		p.cursor.skip()
	}

	closeParen, ok := p.expect(token.CLOSE_PAREN)
	if !ok {
		pos := closeParen.Pos
		expectedParen := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected ), not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				closeParen.Kind,
			),
		}
		p.collector.ReportAndSave(expectedParen)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cursor.peek()
	switch tok.Kind {
	case token.ID:
		p.cursor.skip()
		return &ast.IdExpr{Name: tok}, nil
	case token.INT_LIT, token.REAL_LIT, token.STRING_LIT,
		token.TRUE, token.FALSE, token.NULL:
		p.cursor.skip()
		return &ast.LiteralExpr{Value: tok}, nil
	case token.FSTRING_LIT:
		p.cursor.skip()
		return p.buildFString(tok)
	case token.OPEN_PAREN:
		p.cursor.skip()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		closeParen, ok := p.expect(token.CLOSE_PAREN)
		if !ok {
			pos := closeParen.Pos
			expectedParen := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: expected ), not %s",
					pos.Filename,
					pos.Line,
					pos.Column,
					closeParen.Kind,
				),
			}
			p.collector.ReportAndSave(expectedParen)
			return nil, diagnostics.COMPILER_ERROR_FOUND
		}
		return expr, nil
	case token.FUNCTION:
		p.cursor.skip()
		name, err := p.expectIdent("function name")
		if err != nil {
			return nil, err
		}
		return &ast.FuncRefExpr{Name: name}, nil
	default:
		pos := tok.Pos
		expectedExpr := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected expression, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				tok.Kind,
			),
		}
		p.collector.ReportAndSave(expectedExpr)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
}

// buildFString desugars a format string into a concatenation chain:
// f"a {x} b" parses as "a " + x + " b". Doubled braces escape literal
// braces.
func (p *Parser) buildFString(tok *token.Token) (ast.Expr, error) {
	content := tok.Lexeme

	var parts []ast.Expr
	var segment []byte
	flush := func() {
		if len(segment) == 0 {
			return
		}
		lit := token.New(segment, token.STRING_LIT, tok.Pos)
		parts = append(parts, &ast.LiteralExpr{Value: lit})
		segment = nil
	}

	offset := 0
	for offset < len(content) {
		ch := content[offset]
		switch {
		case ch == '{' && offset+1 < len(content) && content[offset+1] == '{':
			segment = append(segment, '{')
			offset += 2
		case ch == '}' && offset+1 < len(content) && content[offset+1] == '}':
			segment = append(segment, '}')
			offset += 2
		case ch == '{':
			end := bytes.IndexByte(content[offset+1:], '}')
			if end == -1 {
				pos := tok.Pos
				unclosedBrace := diagnostics.Diag{
					Message: fmt.Sprintf(
						"%s:%d:%d: unclosed { in format string",
						pos.Filename,
						pos.Line,
						pos.Column,
					),
				}
				p.collector.ReportAndSave(unclosedBrace)
				return nil, diagnostics.COMPILER_ERROR_FOUND
			}
			flush()
			inner, err := p.parseEmbeddedExpr(tok, offset+1, content[offset+1:offset+1+end])
			if err != nil {
				return nil, err
			}
			parts = append(parts, inner)
			offset += end + 2
		case ch == '}':
			pos := tok.Pos
			strayBrace := diagnostics.Diag{
				Message: fmt.Sprintf(
					"%s:%d:%d: unmatched } in format string",
					pos.Filename,
					pos.Line,
					pos.Column,
				),
			}
			p.collector.ReportAndSave(strayBrace)
			return nil, diagnostics.COMPILER_ERROR_FOUND
		default:
			segment = append(segment, ch)
			offset++
		}
	}
	flush()

	if len(parts) == 0 {
		empty := token.New(nil, token.STRING_LIT, tok.Pos)
		return &ast.LiteralExpr{Value: empty}, nil
	}
	expr := parts[0]
	for _, part := range parts[1:] {
		expr = &ast.BinExpr{LHS: expr, Op: token.PLUS, RHS: part}
	}
	return expr, nil
}

// parseEmbeddedExpr re-lexes an interpolated expression so its diagnostics
// point into the original literal. The literal's position is on the opening
// quote; content starts one column past it.
func (p *Parser) parseEmbeddedExpr(tok *token.Token, offset int, src []byte) (ast.Expr, error) {
	lead := 0
	for lead < len(src) && src[lead] == ' ' {
		lead++
	}
	trimmed := bytes.TrimSpace(src)

	start := token.NewPosition(tok.Pos.Filename, tok.Pos.Line, tok.Pos.Column+1+offset+lead)
	sublexer := lexer.NewAt(start, trimmed, p.collector)
	tokens, err := sublexer.Tokenize()
	if err != nil {
		return nil, err
	}

	saved := p.cursor
	p.cursor = newCursor(tokens)
	expr, err := p.parseExpr()
	if err == nil && !p.cursor.nextIs(token.NEWLINE) && !p.cursor.nextIs(token.EOF) {
		leftover := p.cursor.peek()
		pos := leftover.Pos
		unexpectedToken := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: unexpected %s in format string",
				pos.Filename,
				pos.Line,
				pos.Column,
				leftover.Kind,
			),
		}
		p.collector.ReportAndSave(unexpectedToken)
		err = diagnostics.COMPILER_ERROR_FOUND
	}
	p.cursor = saved
	if err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) requireLValue(expr ast.Expr, start *token.Token) error {
	switch expr.(type) {
	case *ast.IdExpr, *ast.IndexExpr, *ast.FieldAccess:
		return nil
	}
	pos := start.Pos
	invalidTarget := diagnostics.Diag{
		Message: fmt.Sprintf(
			"%s:%d:%d: invalid assignment target",
			pos.Filename,
			pos.Line,
			pos.Column,
		),
	}
	p.collector.ReportAndSave(invalidTarget)
	return diagnostics.COMPILER_ERROR_FOUND
}

// expectBlockOpen consumes the `:` NEWLINE INDENT sequence every indented
// block opens with.
func (p *Parser) expectBlockOpen() error {
	colon, ok := p.expect(token.COLON)
	if !ok {
		pos := colon.Pos
		expectedColon := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected :, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				colon.Kind,
			),
		}
		p.collector.ReportAndSave(expectedColon)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	if err := p.expectNewline(); err != nil {
		return err
	}
	indent, ok := p.expect(token.INDENT)
	if !ok {
		pos := indent.Pos
		expectedBlock := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected indented block, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				indent.Kind,
			),
		}
		p.collector.ReportAndSave(expectedBlock)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

func (p *Parser) expectExtends() error {
	extends, ok := p.expect(token.EXTENDS)
	if !ok {
		pos := extends.Pos
		expectedExtends := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected extends, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				extends.Kind,
			),
		}
		p.collector.ReportAndSave(expectedExtends)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

// expectIdent consumes an identifier, naming what was being parsed on
// mismatch.
func (p *Parser) expectIdent(what string) (*token.Token, error) {
	name, ok := p.expect(token.ID)
	if !ok {
		pos := name.Pos
		expectedName := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected %s, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				what,
				name.Kind,
			),
		}
		p.collector.ReportAndSave(expectedName)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	return name, nil
}

func (p *Parser) expectNewline() error {
	newline, ok := p.expect(token.NEWLINE)
	if !ok {
		pos := newline.Pos
		expectedNewline := diagnostics.Diag{
			Message: fmt.Sprintf(
				"%s:%d:%d: expected newline, not %s",
				pos.Filename,
				pos.Line,
				pos.Column,
				newline.Kind,
			),
		}
		p.collector.ReportAndSave(expectedNewline)
		return diagnostics.COMPILER_ERROR_FOUND
	}
	return nil
}

func (p *Parser) expect(expectedKind token.Kind) (*token.Token, bool) {
	tok := p.cursor.peek()
	if tok.Kind != expectedKind {
		return tok, false
	}
	p.cursor.skip()
	return tok, true
}
