package ast

import "errors"

var (
	ERR_SYMBOL_ALREADY_DEFINED_ON_SCOPE = errors.New("symbol already defined on scope")
	ERR_SYMBOL_NOT_FOUND_ON_SCOPE       = errors.New("symbol not found on scope")
)

// Scope is the symbol table of one container. Member names only clash within
// their own container, so scopes do not chain: nested containers get fresh
// tables.
type Scope struct {
	symbols map[string]Node
}

func NewScope() *Scope {
	return &Scope{symbols: make(map[string]Node)}
}

// Insert claims name for node. A name already claimed fails with
// ERR_SYMBOL_ALREADY_DEFINED_ON_SCOPE and keeps its first owner.
func (scope *Scope) Insert(name string, node Node) error {
	if _, ok := scope.symbols[name]; ok {
		return ERR_SYMBOL_ALREADY_DEFINED_ON_SCOPE
	}
	scope.symbols[name] = node
	return nil
}

// Lookup finds the node name was claimed for.
func (scope *Scope) Lookup(name string) (Node, error) {
	node, ok := scope.symbols[name]
	if !ok {
		return nil, ERR_SYMBOL_NOT_FOUND_ON_SCOPE
	}
	return node, nil
}
