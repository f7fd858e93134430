package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

var (
	COMPILER_ERROR_FOUND = errors.New("compiler error found")
)

type Diag struct {
	Message   string
	IsWarning bool
}

type Collector struct {
	Diags []Diag
}

func New() *Collector {
	return &Collector{
		Diags: nil,
	}
}

func (collector *Collector) ReportAndSave(diag Diag) {
	collector.Diags = append(collector.Diags, diag)
}

// HasErrors tells whether any non-warning diagnostic was reported.
func (collector *Collector) HasErrors() bool {
	for _, diag := range collector.Diags {
		if !diag.IsWarning {
			return true
		}
	}
	return false
}

func (collector *Collector) DumpTo(w io.Writer) {
	for _, diag := range collector.Diags {
		fmt.Fprintln(w, diag.Message)
	}
}

// InternalError is a compiler bug surfacing to the user: a malformed node
// reached a phase that has no rendering for it. It carries the stack of the
// offending call site so the report is actionable.
type InternalError struct {
	Message string
	Stack   []byte
}

func Internalf(format string, args ...any) *InternalError {
	return &InternalError{
		Message: fmt.Sprintf(format, args...),
		Stack:   debug.Stack(),
	}
}

func (e *InternalError) Error() string {
	return e.Message
}
