package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/escaco95/vjassp/internal/config"
)

type Command int

const (
	COMMAND_BUILD Command = iota
	COMMAND_REPL
	COMMAND_HELP
	COMMAND_VERSION
)

type CliResult struct {
	Command Command
	Entry   string
	Tags    config.Tags
}

var HELP_COMMAND string = `vjassp - compiles vJASS+ sources into vJass.

Usage:
  vjassp [command] [arguments]

Available Commands:
  build [entry.jp] [TAG...]   Compile the entry file and its imports into a
                              single .j file written next to the entry.
                              Without an entry, main.jp in the working
                              directory is compiled. Trailing bare arguments
                              are compile tags (NAME or NAME=VALUE) gating
                              'when' imports.

  repl [TAG...]               Interactive prompt: type declarations or
                              statements and see the emitted vJass.

  version                     Print the compiler version.

  help                        Show this help message.

Running vjassp without a command builds, so these are equivalent:
  vjassp
  vjassp build main.jp

Examples:
  vjassp build maps/entry.jp
  vjassp build entry.jp DEBUG MODE=fast
  vjassp repl
`

func cli(args []string) (CliResult, error) {
	result := CliResult{}

	if len(args) > 0 {
		switch args[0] {
		case "help", "-h", "--help":
			result.Command = COMMAND_HELP
			return result, nil
		case "version":
			result.Command = COMMAND_VERSION
			return result, nil
		case "repl":
			result.Command = COMMAND_REPL
			result.Tags = config.ParseTags(args[1:])
			return result, nil
		case "build":
			args = args[1:]
		}
	}

	result.Command = COMMAND_BUILD
	var tagArgs []string
	for _, arg := range args {
		if !isEntryArg(arg) {
			tagArgs = append(tagArgs, arg)
			continue
		}
		if result.Entry != "" {
			return result, fmt.Errorf("unexpected argument %q after entry %q", arg, result.Entry)
		}
		result.Entry = arg
	}
	result.Tags = config.ParseTags(tagArgs)
	return result, nil
}

// isEntryArg tells the entry path apart from trailing compile tags. Tags are
// bare NAME or NAME=VALUE words, so anything carrying a path separator or a
// file extension is the entry.
func isEntryArg(arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	return strings.ContainsAny(arg, `/\`) || filepath.Ext(arg) != ""
}
