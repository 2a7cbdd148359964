package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a compile fault.
type Kind string

const (
	KindSourceRequired Kind = "source_required"
	KindWrongExtension Kind = "wrong_extension"
	KindSyntax         Kind = "syntax"
	KindScriptAnchor   Kind = "script_anchor"
	KindStylesheet     Kind = "stylesheet"
	KindMarkup         Kind = "markup"
	KindFileSystem     Kind = "filesystem"
	KindInternal       Kind = "internal"
)

// Common fault codes.
const (
	CodeSourceRequired = "SF_REQUIRED"
	CodeWrongExtension = "SF_EXTENSION"
	CodeSyntax         = "SF_SYNTAX"
	CodeScriptAnchor   = "SCRIPT_ANCHOR"
	CodeMarkup         = "MARKUP_SYNTAX"
	CodeRead           = "FS_READ"
	CodeWrite          = "FS_WRITE"
	CodeRemove         = "FS_REMOVE"
	CodeInternal       = "INTERNAL"
)

// Fault is a structured compile error with location and context.
type Fault struct {
	Kind     Kind
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
	// Extract holds the source lines surrounding Line, when known.
	Extract []string
	// Type is the renderer-reported category (stylesheet faults only).
	Type string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	var parts []string

	if f.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", f.Code))
	}

	if f.FilePath != "" {
		location := f.FilePath
		if f.Line > 0 {
			location += fmt.Sprintf(":%d", f.Line)
			if f.Column > 0 {
				location += fmt.Sprintf(":%d", f.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, f.Message)

	result := strings.Join(parts, " ")

	if f.Cause != nil {
		result += fmt.Sprintf(": %v", f.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is reports whether target is a Fault of the same kind and code.
func (f *Fault) Is(target error) bool {
	var t *Fault
	if errors.As(target, &t) {
		return f.Kind == t.Kind && f.Code == t.Code
	}

	return false
}

// WithContext adds context information to the fault.
func (f *Fault) WithContext(key string, value interface{}) *Fault {
	if f.Context == nil {
		f.Context = make(map[string]interface{})
	}
	f.Context[key] = value

	return f
}

// WithLocation adds file location information.
func (f *Fault) WithLocation(filePath string, line, column int) *Fault {
	f.FilePath = filePath
	f.Line = line
	f.Column = column

	return f
}

// NewSourceRequiredFault is returned when no source file was given.
func NewSourceRequiredFault() *Fault {
	return &Fault{
		Kind:    KindSourceRequired,
		Code:    CodeSourceRequired,
		Message: "source file required",
	}
}

// NewWrongExtensionFault is returned when the source file has the wrong extension.
func NewWrongExtensionFault(ext string) *Fault {
	return &Fault{
		Kind:    KindWrongExtension,
		Code:    CodeWrongExtension,
		Message: fmt.Sprintf("source file requires extension %q", ext),
	}
}

// NewSyntaxFault aggregates parse diagnostics into one fault. The message
// carries one diagnostic per line after the title.
func NewSyntaxFault(diags DiagnosticList) *Fault {
	lines := make([]string, 0, len(diags)+1)
	lines = append(lines, "syntax errors found")
	for _, d := range diags {
		lines = append(lines, d.String())
	}

	return &Fault{
		Kind:    KindSyntax,
		Code:    CodeSyntax,
		Message: strings.Join(lines, "\n"),
		Context: map[string]interface{}{"diagnostics": len(diags)},
	}
}

// NewScriptAnchorFault is returned when the script has no injection point.
func NewScriptAnchorFault() *Fault {
	return &Fault{
		Kind:    KindScriptAnchor,
		Code:    CodeScriptAnchor,
		Message: `script requires line "export default {" or "Vue.component( 'xxx', {"`,
	}
}

// NewStylesheetFault creates a renderer-reported stylesheet fault.
func NewStylesheetFault(typ, message string, line, column int, extract []string) *Fault {
	return &Fault{
		Kind:    KindStylesheet,
		Code:    "css." + strings.ToLower(typ),
		Message: message,
		Line:    line,
		Column:  column,
		Extract: extract,
		Type:    typ,
	}
}

// NewMarkupFault creates a markup renderer fault.
func NewMarkupFault(message string, line int) *Fault {
	return &Fault{
		Kind:    KindMarkup,
		Code:    CodeMarkup,
		Message: message,
		Line:    line,
	}
}

// NewFileSystemFault wraps a read/write/remove failure.
func NewFileSystemFault(code, message string, cause error) *Fault {
	return &Fault{
		Kind:    KindFileSystem,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalFault wraps an unexpected failure.
func NewInternalFault(message string, cause error) *Fault {
	return &Fault{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of err, or KindInternal if err is not a Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}

	return KindInternal
}

// IsKind checks whether err is a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}

	return false
}
