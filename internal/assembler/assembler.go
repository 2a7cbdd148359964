// Package assembler splices the rendered template into the component script
// and prepends the style bootstrap, producing a browser-ready ES module.
package assembler

import (
	"regexp"
	"strings"

	"github.com/conneroisu/coco/internal/errors"
)

var anchors = []*regexp.Regexp{
	regexp.MustCompile(`^\s*export\s+default\s*\{\s*$`),
	regexp.MustCompile(`^\s*Vue\.component\s*\(.+,\s*\{\s*$`),
}

// FindAnchor returns the index of the line after the one opening the
// component definition object. "export default {" takes precedence over a
// "Vue.component('name', {" registration.
func FindAnchor(script []string) (int, error) {
	for _, re := range anchors {
		for i, ln := range script {
			if re.MatchString(ln) {
				return i + 1, nil
			}
		}
	}
	return -1, errors.NewScriptAnchorFault()
}

var templateEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)

// EscapeTemplate makes html safe to embed in a JavaScript template literal.
func EscapeTemplate(html string) string {
	return templateEscaper.Replace(html)
}

// Assemble builds the output module lines. The CSS is embedded verbatim.
func Assemble(html, css string, script []string, at int) []string {
	if at < 0 {
		at = 0
	}
	if at > len(script) {
		at = len(script)
	}

	out := make([]string, 0, len(script)+4)
	out = append(out,
		`const st = document.createElement("style");`,
		"st.innerHTML = `"+css+"`;",
		`document.getElementsByTagName("head")[0].appendChild(st);`,
	)
	out = append(out, script[:at]...)
	out = append(out, "\ttemplate:`"+EscapeTemplate(html)+"`,")
	out = append(out, script[at:]...)

	return out
}

// Module joins assembled lines into the output file content.
func Module(lines []string) string {
	return strings.Join(lines, "\n")
}
