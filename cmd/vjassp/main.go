package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/escaco95/vjassp/internal/compiler"
	"github.com/escaco95/vjassp/internal/config"
	"github.com/escaco95/vjassp/internal/diagnostics"
)

func main() {
	os.Exit(run())
}

func run() int {
	args, err := cli(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch args.Command {
	case COMMAND_HELP:
		fmt.Print(HELP_COMMAND)
		return 0
	case COMMAND_VERSION:
		fmt.Println(config.VERSION)
		return 0
	case COMMAND_REPL:
		return repl(args.Tags)
	}
	return build(args)
}

func build(args CliResult) int {
	collector := diagnostics.New()
	result, err := compiler.New(args.Tags, collector).CompileAndWrite(args.Entry)
	exit := flush(collector, err)
	if exit == 0 {
		fmt.Printf("wrote %s\n", result.Target)
	}
	return exit
}

// flush prints every saved diagnostic to stderr and maps the outcome to the
// process exit code: 0 clean or warnings only, 1 user error, 2 compiler bug.
// Internal errors are the only ones that print a stack.
func flush(collector *diagnostics.Collector, err error) int {
	collector.DumpTo(os.Stderr)
	if err == nil {
		if collector.HasErrors() {
			return 1
		}
		return 0
	}

	var internal *diagnostics.InternalError
	if errors.As(err, &internal) {
		fmt.Fprintf(os.Stderr, "internal error: %s\n%s", internal.Message, internal.Stack)
		return 2
	}
	if !errors.Is(err, diagnostics.COMPILER_ERROR_FOUND) {
		// Wrapped I/O failures never went through the collector.
		fmt.Fprintln(os.Stderr, err)
	}
	return 1
}
