package ast

import (
	"fmt"

	"github.com/escaco95/vjassp/internal/lexer/token"
)

type Decl interface {
	Node
	declNode()
}

type ContainerKind int

const (
	CONTAINER_LIBRARY ContainerKind = iota
	CONTAINER_SYSTEM
	CONTAINER_SCOPE
	CONTAINER_CONTENT
)

func (kind ContainerKind) String() string {
	switch kind {
	case CONTAINER_LIBRARY:
		return "library"
	case CONTAINER_SYSTEM:
		return "system"
	case CONTAINER_SCOPE:
		return "scope"
	case CONTAINER_CONTENT:
		return "content"
	}
	return "unknown"
}

// Visibility of a container member. Declarations default to private; a
// `global:` block (or inline `global`) drops the keyword entirely and an
// `api:` block (or inline `api`) emits `public`.
type Visibility int

const (
	// VIS_NONE means no modifier was written; lowering resolves it.
	VIS_NONE Visibility = iota
	VIS_PRIVATE
	VIS_GLOBAL
	VIS_API
)

func (vis Visibility) String() string {
	switch vis {
	case VIS_NONE:
		return "none"
	case VIS_PRIVATE:
		return "private"
	case VIS_GLOBAL:
		return "global"
	case VIS_API:
		return "api"
	}
	return "unknown"
}

// Container is a library, system, scope or content declaration.
type Container struct {
	Decl
	Kind ContainerKind
	// Name is nil for anonymous content blocks.
	Name    *token.Token
	Members []Decl
	// Requires holds the `uses` clauses, libraries only.
	Requires []*Require
	Pos      token.Pos

	// Lowering results. ResolvedName is the declared name or a VJPS tag;
	// InitNames lists the VJPI initializer functions in source order.
	ResolvedName string
	InitNames    []string
}

func (container Container) String() string {
	return fmt.Sprintf("%s %s", container.Kind, container.ResolvedName)
}
func (container Container) astNode()  {}
func (container Container) declNode() {}

// Require is one `uses [optional] NAME` clause.
type Require struct {
	Name     *token.Token
	Optional bool
}

// TypeRef is a declared type spelling. Resolved carries the alias-resolved
// target name once lowering ran.
type TypeRef struct {
	Name     *token.Token
	Resolved string
}

func (ref *TypeRef) Target() string {
	if ref.Resolved != "" {
		return ref.Resolved
	}
	return string(ref.Name.Lexeme)
}

type Field struct {
	Name *token.Token
	Type *TypeRef
}

// VarDecl is a container-level variable declaration.
type VarDecl struct {
	Decl
	Type *TypeRef
	Name *token.Token
	// Value is nil for plain and array declarations.
	Value Expr
	// Constant is set by a `~` initializer.
	Constant bool
	// IsArray is set by a `*NAME` spelling or a `[]` initializer idiom.
	IsArray bool
	// Hashtable is set by the `{}` initializer idiom.
	Hashtable bool

	BlockVis  Visibility
	InlineVis Visibility
	// Vis is the final visibility, set by lowering.
	Vis Visibility
}

func (varDecl VarDecl) String() string {
	return fmt.Sprintf("VAR: %s", varDecl.Name)
}
func (varDecl VarDecl) astNode()  {}
func (varDecl VarDecl) declNode() {}

type FnDecl struct {
	Decl
	Name    *token.Token
	Params  []*Field
	RetType *TypeRef // nil means returns nothing
	Block   *BlockStmt

	BlockVis  Visibility
	InlineVis Visibility
	Vis       Visibility

	// Locals is the hoisted prologue, set by lowering.
	Locals []*VarStmt
}

func (fnDecl FnDecl) String() string {
	return fmt.Sprintf("FN: %s", fnDecl.Name)
}
func (fnDecl FnDecl) astNode()  {}
func (fnDecl FnDecl) declNode() {}

// InitDecl is one `init:` block. Lowering wraps it into a VJPI function
// called from the container's synthetic onInit.
type InitDecl struct {
	Decl
	Block *BlockStmt
	Pos   token.Pos

	FuncName string
	Locals   []*VarStmt
}

func (initDecl InitDecl) String() string {
	return fmt.Sprintf("INIT: %s", initDecl.FuncName)
}
func (initDecl InitDecl) astNode()  {}
func (initDecl InitDecl) declNode() {}

// TypeDecl is `type NAME extends BASE`, emitted as a struct.
type TypeDecl struct {
	Decl
	Name *token.Token
	Base *token.Token

	BlockVis  Visibility
	InlineVis Visibility
	Vis       Visibility
}

func (typeDecl TypeDecl) String() string {
	return fmt.Sprintf("TYPE: %s extends %s", typeDecl.Name, typeDecl.Base)
}
func (typeDecl TypeDecl) astNode()  {}
func (typeDecl TypeDecl) declNode() {}

// AliasDecl is `alias NAME extends BASE`, a text-level type alias resolved
// during lowering. It emits nothing.
type AliasDecl struct {
	Decl
	Name *token.Token
	Base *token.Token
}

func (aliasDecl AliasDecl) String() string {
	return fmt.Sprintf("ALIAS: %s extends %s", aliasDecl.Name, aliasDecl.Base)
}
func (aliasDecl AliasDecl) astNode()  {}
func (aliasDecl AliasDecl) declNode() {}

// NativeDecl is an engine-provided function prototype.
type NativeDecl struct {
	Decl
	Name    *token.Token
	Params  []*Field
	RetType *TypeRef
}

func (native NativeDecl) String() string {
	return fmt.Sprintf("NATIVE: %s", native.Name)
}
func (native NativeDecl) astNode()  {}
func (native NativeDecl) declNode() {}
