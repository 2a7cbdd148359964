// Package scoping namespaces the primary class rule of a component
// stylesheet and the template element that uses it.
//
// Only the first style line holding a "." somewhere before a "{" is scoped.
// The class is the text between that "." and the brace, so ".card.active {"
// yields "card.active" and "div.card {" yields "card". The selector becomes
// ".class[token] {" and the first template line referring to ".class" gets
// the token as an extra attribute, so the rendered HTML and CSS agree.
package scoping

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/coco/internal/component"
)

// DefaultPrefix is prepended to every generated scope token.
const DefaultPrefix = "coco-v"

var classRule = regexp.MustCompile(`\.(.+?)\s*\{`)

// NewToken returns a short random scope token such as "coco-v-1f3a9c2e".
func NewToken(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + id[:8]
}

// Scoper rewrites scoped stylesheets.
type Scoper struct {
	prefix   string
	newToken func(prefix string) string
}

// NewScoper creates a scoper generating tokens with the given prefix.
func NewScoper(prefix string) *Scoper {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Scoper{prefix: prefix, newToken: NewToken}
}

// Result describes what a Scope call changed.
type Result struct {
	Token     string
	Class     string
	StyleLine int
	// TemplateLine is -1 when no template line was rewritten.
	TemplateLine int
}

// Scope rewrites doc when its style is scoped. It returns nil when nothing
// was scoped, which is not an error.
func (s *Scoper) Scope(doc *component.Document) *Result {
	if !doc.StyleScoped {
		return nil
	}

	styleIdx, class := findClassRule(doc.Style)
	if styleIdx < 0 {
		return nil
	}

	token := s.newToken(s.prefix)
	doc.Style[styleIdx] = scopeRule(doc.Style[styleIdx], token)

	res := &Result{Token: token, Class: class, StyleLine: styleIdx, TemplateLine: -1}
	ref := "." + class
	for i, ln := range doc.Template {
		if !strings.Contains(ln, ref) {
			continue
		}
		if scoped, ok := scopeElement(ln, ref, token); ok {
			doc.Template[i] = scoped
			res.TemplateLine = i
		}
		break
	}

	return res
}

func findClassRule(style []string) (int, string) {
	for i, ln := range style {
		if m := classRule.FindStringSubmatch(ln); m != nil {
			return i, m[1]
		}
	}
	return -1, ""
}

// scopeRule turns ".name {" into ".name[token] {".
func scopeRule(line, token string) string {
	loc := classRule.FindStringSubmatchIndex(line)
	end := loc[3]
	return line[:end] + "[" + token + "]" + line[end:]
}

// scopeElement adds token to the attribute list of a template line. A line
// that already has an attribute list gets the token before its last ")".
// Otherwise the selector chain starting at the first "." gets a new
// "(token)" list, provided the chain is followed by whitespace or the line
// is the bare class selector.
func scopeElement(line, ref, token string) (string, bool) {
	if close := strings.LastIndex(line, ")"); close >= 0 {
		return line[:close] + " " + token + " " + line[close:], true
	}

	if dot := strings.Index(line, "."); dot >= 0 {
		if ws := strings.IndexAny(line[dot:], " \t"); ws >= 0 {
			at := dot + ws
			return line[:at] + "(" + token + ")" + line[at:], true
		}
	}

	if line == ref {
		return line + "(" + token + ")", true
	}

	return line, false
}
