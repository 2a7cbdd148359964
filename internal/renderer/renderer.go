// Package renderer turns the template and style sections of a component
// into HTML and CSS.
//
// The markup dialect is an indentation-based subset of pug: elements are
// written as "tag#id.class(attr=value) text", nesting follows indentation,
// and the element tree is emitted through golang.org/x/net/html.
//
// Stylesheets accept CSS plus a small less subset: "//" line comments and
// "@name: value;" variables. Mixins, operations, guards and functions are
// not supported and fail as stylesheet faults. The result is run through
// esbuild's CSS transform, which lowers nesting for the configured browser
// engines.
package renderer

import (
	"strings"
)

// extract returns the source lines around a 1-based line number: previous,
// current and next, with "" standing in for lines that do not exist.
func extract(src string, line int) []string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, 3)
	for n := line - 1; n <= line+1; n++ {
		if n >= 1 && n <= len(lines) {
			out = append(out, strings.TrimRight(lines[n-1], "\r"))
		} else {
			out = append(out, "")
		}
	}
	return out
}
