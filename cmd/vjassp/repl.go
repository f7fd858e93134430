package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/escaco95/vjassp/internal/compiler"
	"github.com/escaco95/vjassp/internal/config"
	"github.com/escaco95/vjassp/internal/diagnostics"
)

const (
	promptMain   = ">>> "
	promptCont   = "... "
	replFilename = "repl.jp"
)

var banner = fmt.Sprintf("vJASS+ %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.", config.VERSION)

// repl reads snippets until EOF, compiling each in isolation and printing
// the emitted vJass. History lives in memory only.
func repl(tags config.Tags) int {
	fmt.Println(banner)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// Restore the terminal if the process is killed mid-prompt.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	for {
		code, ok := readSnippet(ln)
		if !ok {
			fmt.Println()
			return 0
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if strings.ToLower(trimmed) == ":quit" {
				return 0
			}
			fmt.Println("unknown command. Type :quit to exit.")
			continue
		}

		collector := diagnostics.New()
		output, err := compiler.New(tags, collector).CompileSnippet(wrapSnippet(code), replFilename)
		if err != nil {
			flush(collector, err)
			continue
		}
		fmt.Print(output)
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readSnippet accumulates one logical input. A single line ending in ':'
// opens a block and keeps the continuation prompt up until a blank line;
// anything else stands alone. Ctrl-C drops the partial input, Ctrl-D ends
// the session.
func readSnippet(ln *liner.State) (string, bool) {
	var b strings.Builder

	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if needsMore(b.String()) {
			continue
		}
		return b.String(), true
	}
}

func needsMore(src string) bool {
	lines := strings.Split(src, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(lines) == 1 {
		return strings.HasSuffix(last, ":")
	}
	return last != ""
}

// declStarters spell the keywords that may open a top-level declaration. A
// snippet starting with anything else is treated as statements and compiled
// inside a synthetic content block.
var declStarters = map[string]bool{
	"library": true,
	"system":  true,
	"scope":   true,
	"content": true,
	"native":  true,
}

func wrapSnippet(src string) string {
	fields := strings.Fields(src)
	if len(fields) > 0 && declStarters[strings.TrimSuffix(fields[0], ":")] {
		return src
	}

	var b strings.Builder
	b.WriteString("content:\n    init:\n")
	for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("        ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
