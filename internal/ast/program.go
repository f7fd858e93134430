package ast

import "fmt"

// Program is the parsed forest, one Unit per resolved source file in
// emission order (dependencies before importers).
type Program struct {
	Units []*Unit

	// Lowering results driving the VJPLIBS epilogue: the names of every
	// plain library and every system, in emission order.
	Libraries []string
	Systems   []string
}

// Unit is the parse result of one source file.
type Unit struct {
	// Path is the path as given, for display in diagnostics.
	Path string
	// Canon is the canonical absolute path. Anonymous scope tags hash it.
	Canon string
	Decls []Decl
}

func (unit Unit) String() string {
	return fmt.Sprintf("Unit: %s (%d decls)", unit.Path, len(unit.Decls))
}
