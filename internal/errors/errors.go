// Package errors defines the fault taxonomy shared by the compile pipeline,
// the parse diagnostics collected by the line classifier, and the mapping
// from a fault to the code/title/detail triple shown to the operator.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Diagnostic is one structural problem found while parsing a source document.
type Diagnostic struct {
	Line    int
	Message string
}

// String renders the diagnostic as "<line> - <message>".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d - %s", d.Line, d.Message)
}

// DiagnosticList collects diagnostics in the order they were found.
type DiagnosticList []Diagnostic

// Add appends a diagnostic for a 1-based line number.
func (l *DiagnosticList) Add(line int, format string, args ...interface{}) {
	*l = append(*l, Diagnostic{Line: line, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether anything was collected.
func (l DiagnosticList) HasErrors() bool {
	return len(l) > 0
}

// Err returns nil for an empty list, otherwise one aggregate syntax fault.
func (l DiagnosticList) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return NewSyntaxFault(l)
}

// Describe splits err into the code, title and detail lines reported on the
// console. Stylesheet faults use their own location and extract; everything
// else uses the first line of the message as title.
func Describe(err error) (code, title string, detail []string) {
	var f *Fault
	if !errors.As(err, &f) {
		lines := strings.Split(err.Error(), "\n")
		return CodeInternal, lines[0], lines[1:]
	}

	if f.Kind == KindStylesheet {
		title = fmt.Sprintf("#%d:%d - CSS error - %s", f.Line, f.Column, f.Message)
		detail = make([]string, len(f.Extract))
		copy(detail, f.Extract)
		return f.Code, title, detail
	}

	msg := f.Message
	if f.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Cause)
	}
	lines := strings.Split(msg, "\n")

	code = f.Code
	if code == "" {
		code = string(f.Kind)
	}

	return code, lines[0], lines[1:]
}
