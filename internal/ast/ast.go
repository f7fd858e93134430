// Package ast defines the abstract syntax tree for the vJASS+ dialect.
package ast

type Node interface {
	astNode()
}
