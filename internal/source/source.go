// Package source resolves the import graph of a compilation into a flat list
// of units in dependency post-order, so that every unit precedes the units
// importing it in the emitted output.
package source

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/escaco95/vjassp/internal/config"
	"github.com/escaco95/vjassp/internal/diagnostics"
)

// Unit is one resolved source file.
type Unit struct {
	// Path as the user wrote it, for diagnostics.
	Path string
	// Canon is the canonical absolute path. Units are deduplicated on it.
	Canon string
	// Src is the normalized text: UTF-8, \n endings, tabs expanded, one
	// trailing newline.
	Src []byte
}

type Resolver struct {
	Collector *diagnostics.Collector
	Tags      config.Tags

	visited map[string]bool
	units   []*Unit
}

func NewResolver(tags config.Tags, collector *diagnostics.Collector) *Resolver {
	resolver := new(Resolver)
	resolver.Collector = collector
	resolver.Tags = tags
	resolver.visited = make(map[string]bool)
	return resolver
}

// Resolve walks the import graph from the entry file. Re-imports of an
// already visited canonical path are no-ops, which also makes cycles
// harmless. The entry unit comes last.
func (resolver *Resolver) Resolve(entry string) ([]*Unit, error) {
	canon, err := filepath.Abs(entry)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving entry path %s", entry)
	}
	if _, err := os.Stat(entry); err != nil {
		noSuchFile := diagnostics.Diag{
			Message: fmt.Sprintf("%s: no such file", entry),
		}
		resolver.Collector.ReportAndSave(noSuchFile)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}

	resolver.visited[canon] = true
	if err := resolver.resolve(entry, canon); err != nil {
		return nil, err
	}
	return resolver.units, nil
}

func (resolver *Resolver) resolve(path, canon string) error {
	src, err := resolver.load(path)
	if err != nil {
		return err
	}
	unit := &Unit{Path: path, Canon: canon, Src: src}

	for _, directive := range scanImports(src) {
		if directive.When != "" && !resolver.Tags.Satisfied(directive.When) {
			continue
		}
		targets, err := resolver.expand(unit, directive)
		if err != nil {
			return err
		}
		for _, target := range targets {
			targetCanon, err := filepath.Abs(target)
			if err != nil {
				return errors.Wrapf(err, "resolving import path %s", target)
			}
			if resolver.visited[targetCanon] {
				continue
			}
			resolver.visited[targetCanon] = true
			if err := resolver.resolve(target, targetCanon); err != nil {
				return err
			}
		}
	}

	// post-order: dependencies first
	resolver.units = append(resolver.units, unit)
	return nil
}

func (resolver *Resolver) load(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return resolver.normalize(raw, path), nil
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func (resolver *Resolver) normalize(src []byte, path string) []byte {
	src = bytes.TrimPrefix(src, bom)

	if !utf8.Valid(src) {
		notUtf8 := diagnostics.Diag{
			Message:   fmt.Sprintf("%s: not valid UTF-8, decoded as Latin-1", path),
			IsWarning: true,
		}
		resolver.Collector.ReportAndSave(notUtf8)
		src = decodeLatin1(src)
	}

	src = bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	src = bytes.ReplaceAll(src, []byte("\r"), []byte("\n"))
	src = expandTabs(src)

	if len(src) > 0 && src[len(src)-1] != '\n' {
		src = append(src, '\n')
	}
	return src
}

func decodeLatin1(src []byte) []byte {
	runes := make([]rune, 0, len(src))
	for _, b := range src {
		runes = append(runes, rune(b))
	}
	return []byte(string(runes))
}

// expandTabs rewrites leading tabs to the next multiple of four columns so
// the lexer only ever sees spaces as indentation. Interior tabs become four
// plain spaces.
func expandTabs(src []byte) []byte {
	if !bytes.ContainsRune(src, '\t') {
		return src
	}

	var out bytes.Buffer
	out.Grow(len(src))

	column := 0
	leading := true
	for _, b := range src {
		switch b {
		case '\n':
			out.WriteByte(b)
			column = 0
			leading = true
		case '\t':
			width := 4
			if leading {
				width = 4 - column%4
			}
			for i := 0; i < width; i++ {
				out.WriteByte(' ')
			}
			column += width
		case ' ':
			out.WriteByte(b)
			column++
		default:
			out.WriteByte(b)
			column++
			leading = false
		}
	}
	return out.Bytes()
}

type importDirective struct {
	// When is the tag condition, empty when unconditional.
	When string
	// Path as written inside the quotes, forward slashes.
	Path string
	// Line is 1-based, for diagnostics.
	Line int
}

var importRegex = regexp.MustCompile(`^\s*(?:when\s+(\S+)\s+)?import\s+"([^"]+)"\s*(?:#.*)?$`)

// scanImports collects the leading import directives of a unit. Blank lines,
// comments and documentation strings may precede them; the first other line
// ends the scan.
func scanImports(src []byte) []importDirective {
	var directives []importDirective

	inDoc := false
	for i, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		if inDoc {
			if strings.Contains(trimmed, `"""`) {
				inDoc = false
			}
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, `"""`) {
			if strings.Count(trimmed, `"""`) < 2 {
				inDoc = true
			}
			continue
		}

		match := importRegex.FindStringSubmatch(line)
		if match == nil {
			break
		}
		directives = append(directives, importDirective{
			When: match[1],
			Path: match[2],
			Line: i + 1,
		})
	}
	return directives
}

// expand resolves a directive against the importing unit's directory,
// expanding `dir/*` and `dir/**` mass imports into sorted file lists.
func (resolver *Resolver) expand(unit *Unit, directive importDirective) ([]string, error) {
	dir := filepath.Dir(unit.Path)

	if mask, recursive := massImport(directive.Path); mask != "" {
		return resolver.expandMass(unit, directive, filepath.Join(dir, filepath.FromSlash(mask)), recursive)
	}

	target := filepath.Join(dir, filepath.FromSlash(directive.Path))
	if filepath.Ext(target) == "" {
		target += config.SOURCE_EXT
	}
	if _, err := os.Stat(target); err != nil {
		noSuchFile := diagnostics.Diag{
			Message: fmt.Sprintf("%s:%d: no such file %q", unit.Path, directive.Line, directive.Path),
		}
		resolver.Collector.ReportAndSave(noSuchFile)
		return nil, diagnostics.COMPILER_ERROR_FOUND
	}
	return []string{target}, nil
}

func massImport(path string) (mask string, recursive bool) {
	if rest, ok := strings.CutSuffix(path, "/**"); ok {
		return rest, true
	}
	if rest, ok := strings.CutSuffix(path, "/*"); ok {
		return rest, false
	}
	return "", false
}

func (resolver *Resolver) expandMass(unit *Unit, directive importDirective, maskDir string, recursive bool) ([]string, error) {
	var matches []string

	if recursive {
		err := filepath.WalkDir(maskDir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() && filepath.Ext(path) == config.SOURCE_EXT {
				matches = append(matches, path)
			}
			return nil
		})
		if err != nil {
			return nil, resolver.reportMassImport(unit, directive)
		}
	} else {
		entries, err := os.ReadDir(maskDir)
		if err != nil {
			return nil, resolver.reportMassImport(unit, directive)
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == config.SOURCE_EXT {
				matches = append(matches, filepath.Join(maskDir, entry.Name()))
			}
		}
	}

	if len(matches) == 0 {
		return nil, resolver.reportMassImport(unit, directive)
	}
	sort.Strings(matches)
	return matches, nil
}

func (resolver *Resolver) reportMassImport(unit *Unit, directive importDirective) error {
	matchesNothing := diagnostics.Diag{
		Message: fmt.Sprintf("%s:%d: import %q matches no files", unit.Path, directive.Line, directive.Path),
	}
	resolver.Collector.ReportAndSave(matchesNothing)
	return diagnostics.COMPILER_ERROR_FOUND
}
