package config

import "strings"

// Version of the vjassp toolchain.
const VERSION = "4.0.0"

const (
	// SOURCE_EXT is the extension of vJASS+ source units.
	SOURCE_EXT = ".jp"
	// TARGET_EXT is the extension of the emitted vJass text.
	TARGET_EXT = ".j"
	// DEFAULT_ENTRY is the file the build command looks for when no entry
	// argument was given.
	DEFAULT_ENTRY = "main" + SOURCE_EXT
)

// Tags holds the compile tags given on the command line. A bare tag NAME maps
// to an empty value; NAME=VALUE keeps the value. Tags gate `when` imports.
type Tags map[string]string

func ParseTags(args []string) Tags {
	tags := make(Tags, len(args))
	for _, arg := range args {
		if arg == "" {
			continue
		}
		name, value, _ := strings.Cut(arg, "=")
		tags[name] = value
	}
	return tags
}

// Satisfied reports whether a `when` condition holds. A bare condition NAME is
// satisfied by any tag of that name; NAME=VALUE requires the exact pair.
func (tags Tags) Satisfied(condition string) bool {
	name, value, exact := strings.Cut(condition, "=")
	tagValue, ok := tags[name]
	if !ok {
		return false
	}
	if exact {
		return tagValue == value
	}
	return true
}
