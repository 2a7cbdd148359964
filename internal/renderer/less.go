package renderer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conneroisu/coco/internal/errors"
)

// lessVariable matches a whole-line variable declaration such as
// "@primary: #333;".
var lessVariable = regexp.MustCompile(`^\s*@([A-Za-z_][A-Za-z0-9_-]*)\s*:\s*(.*?)\s*;\s*$`)

// cssAtRules are the "@name" keywords passed through to CSS untouched.
var cssAtRules = map[string]bool{
	"charset":             true,
	"container":           true,
	"counter-style":       true,
	"document":            true,
	"font-face":           true,
	"font-feature-values": true,
	"font-palette-values": true,
	"import":              true,
	"keyframes":           true,
	"layer":               true,
	"media":               true,
	"namespace":           true,
	"page":                true,
	"property":            true,
	"scope":               true,
	"starting-style":      true,
	"supports":            true,
	"viewport":            true,
}

// lessPreprocessor resolves the less subset accepted in style sections:
// "//" line comments and "@name: value;" variables. Declarations are
// removed and references replaced by their value, in source order. Line
// numbers are preserved.
type lessPreprocessor struct {
	body    string
	vars    map[string]string
	inBlock bool
}

func newLessPreprocessor(body string) *lessPreprocessor {
	return &lessPreprocessor{body: body, vars: make(map[string]string)}
}

func (p *lessPreprocessor) process() (string, error) {
	lines := strings.Split(p.body, "\n")
	for i, line := range lines {
		out, err := p.line(line, i+1)
		if err != nil {
			return "", err
		}
		lines[i] = out
	}
	return strings.Join(lines, "\n"), nil
}

func (p *lessPreprocessor) line(line string, lineNo int) (string, error) {
	inBlock := p.inBlock
	stripped := p.stripLineComment(line)

	if !inBlock {
		if m := lessVariable.FindStringSubmatchIndex(stripped); m != nil {
			name := stripped[m[2]:m[3]]
			value, err := p.expand(stripped[m[4]:m[5]], lineNo, m[4], false)
			if err != nil {
				return "", err
			}
			p.vars[name] = value
			return "", nil
		}
	}

	return p.expand(stripped, lineNo, 0, inBlock)
}

// stripLineComment drops a "//" comment outside of strings, parentheses and
// block comments. It tracks block comments across lines.
func (p *lessPreprocessor) stripLineComment(line string) string {
	var quote byte
	depth := 0

	for i := 0; i < len(line); i++ {
		c := line[i]
		next := byte(0)
		if i+1 < len(line) {
			next = line[i+1]
		}

		switch {
		case p.inBlock:
			if c == '*' && next == '/' {
				p.inBlock = false
				i++
			}
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == '/' && next == '*':
			p.inBlock = true
			i++
		case c == '/' && next == '/' && depth == 0:
			return strings.TrimRight(line[:i], " \t")
		}
	}

	return line
}

// expand replaces variable references in s. offset is the column of s
// within its source line.
func (p *lessPreprocessor) expand(s string, lineNo, offset int, inBlock bool) (string, error) {
	if !strings.Contains(s, "@") {
		return s, nil
	}

	var b strings.Builder
	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		next := byte(0)
		if i+1 < len(s) {
			next = s[i+1]
		}

		switch {
		case inBlock:
			if c == '*' && next == '/' {
				inBlock = false
				b.WriteString("*/")
				i++
				continue
			}
		case quote != 0:
			if c == '\\' && next != 0 {
				b.WriteByte(c)
				b.WriteByte(next)
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && next == '*':
			inBlock = true
			b.WriteString("/*")
			i++
			continue
		case c == '@':
			name := identAt(s, i+1)
			if name == "" {
				break
			}
			if value, ok := p.vars[name]; ok {
				b.WriteString(value)
				i += len(name)
				continue
			}
			if !isAtRule(name) {
				return "", errors.NewStylesheetFault("Name",
					fmt.Sprintf("variable @%s is undefined", name),
					lineNo, offset+i+1, extract(p.body, lineNo))
			}
		}

		b.WriteByte(c)
	}

	return b.String(), nil
}

func identAt(s string, at int) string {
	end := at
	for end < len(s) {
		c := s[end]
		if c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			end++
			continue
		}
		break
	}
	return s[at:end]
}

// isAtRule reports whether name is a CSS at-rule keyword. Vendor-prefixed
// names such as "-webkit-keyframes" count as at-rules.
func isAtRule(name string) bool {
	return strings.HasPrefix(name, "-") || cssAtRules[strings.ToLower(name)]
}
