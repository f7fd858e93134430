// Package compiler wires the stages into a driver: resolve the import
// graph, lex and parse every unit, lower the program and emit the target
// text. The first error in a phase stops the compilation there.
package compiler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/config"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/emit"
	"github.com/escaco95/vjassp/internal/lexer"
	"github.com/escaco95/vjassp/internal/lower"
	"github.com/escaco95/vjassp/internal/parser"
	"github.com/escaco95/vjassp/internal/source"
)

// Result of one successful compilation.
type Result struct {
	// Output is the emitted vJass text.
	Output string
	// Target is the destination path, the entry with its extension swapped
	// for config.TARGET_EXT.
	Target string
	// Program is the lowered tree, kept for tools poking at the result.
	Program *ast.Program
}

type Compiler struct {
	Collector *diagnostics.Collector
	Tags      config.Tags
}

func New(tags config.Tags, collector *diagnostics.Collector) *Compiler {
	compiler := new(Compiler)
	compiler.Collector = collector
	compiler.Tags = tags
	return compiler
}

// Compile runs the whole pipeline on the entry file. An empty entry falls
// back to config.DEFAULT_ENTRY in the working directory. Diagnostics land
// in the collector; the returned error only says whether they exist.
func (compiler *Compiler) Compile(entry string) (*Result, error) {
	if entry == "" {
		entry = config.DEFAULT_ENTRY
	}

	resolver := source.NewResolver(compiler.Tags, compiler.Collector)
	units, err := resolver.Resolve(entry)
	if err != nil {
		return nil, err
	}

	program := &ast.Program{Units: make([]*ast.Unit, 0, len(units))}
	for _, unit := range units {
		parsed, err := compiler.parseUnit(unit)
		if err != nil {
			return nil, err
		}
		program.Units = append(program.Units, parsed)
	}

	if err := lower.New(compiler.Collector).Lower(program); err != nil {
		return nil, err
	}

	output, err := emit.Render(program)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:  output,
		Target:  targetPath(entry),
		Program: program,
	}, nil
}

// CompileAndWrite compiles the entry and writes the output next to it.
func (compiler *Compiler) CompileAndWrite(entry string) (*Result, error) {
	result, err := compiler.Compile(entry)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(result.Target, []byte(result.Output), 0644); err != nil {
		return nil, errors.Wrapf(err, "writing %s", result.Target)
	}
	return result, nil
}

// CompileSnippet pushes one in-memory unit through lex, parse, lower and
// emit. The REPL calls it once per complete snippet; nothing is resolved or
// written.
func (compiler *Compiler) CompileSnippet(src, filename string) (string, error) {
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}

	lex := lexer.New(filename, []byte(src), compiler.Collector)
	tokens, err := lex.Tokenize()
	if err != nil {
		return "", err
	}

	p := parser.New(compiler.Collector)
	unit, err := p.ParseUnit(filename, filename, tokens)
	if err != nil {
		return "", err
	}

	program := &ast.Program{Units: []*ast.Unit{unit}}
	if err := lower.New(compiler.Collector).Lower(program); err != nil {
		return "", err
	}
	return emit.Render(program)
}

func (compiler *Compiler) parseUnit(unit *source.Unit) (*ast.Unit, error) {
	lex := lexer.New(unit.Path, unit.Src, compiler.Collector)
	tokens, err := lex.Tokenize()
	if err != nil {
		return nil, err
	}
	p := parser.New(compiler.Collector)
	return p.ParseUnit(unit.Path, unit.Canon, tokens)
}

// targetPath swaps the entry extension for the target one, so the output
// lands next to the entry.
func targetPath(entry string) string {
	ext := filepath.Ext(entry)
	return entry[:len(entry)-len(ext)] + config.TARGET_EXT
}
