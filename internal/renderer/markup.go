package renderer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"

	"github.com/conneroisu/coco/internal/errors"
)

const maxIncludeDepth = 8

// MarkupRenderer renders the pug subset used by template sections.
type MarkupRenderer struct {
	fs afero.Fs
}

// NewMarkupRenderer creates a renderer resolving includes through fs.
func NewMarkupRenderer(fs afero.Fs) *MarkupRenderer {
	return &MarkupRenderer{fs: fs}
}

// RenderMarkup renders body to HTML. filename locates relative includes.
func (r *MarkupRenderer) RenderMarkup(ctx context.Context, body, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	nodes, err := r.render(body, filename, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", errors.NewMarkupFault(fmt.Sprintf("%s: %v", filepath.Base(filename), err), 0)
		}
	}

	return b.String(), nil
}

func (r *MarkupRenderer) render(body, filename string, depth int) ([]*html.Node, error) {
	root, err := buildTree(body, filename)
	if err != nil {
		return nil, err
	}

	var out []*html.Node
	for _, child := range root.children {
		nodes, err := r.convert(child, filename, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}

	return out, nil
}

// srcLine is one markup line with the lines nested below it.
type srcLine struct {
	num      int
	indent   int
	text     string
	children []*srcLine
	block    []string
}

func markupFault(filename string, line int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return errors.NewMarkupFault(fmt.Sprintf("%s:%d: %s", filepath.Base(filename), line, msg), line)
}

// buildTree groups lines by indentation. Lines below a comment or a
// "tag." element are collected verbatim as that line's text block.
func buildTree(body, filename string) (*srcLine, error) {
	root := &srcLine{indent: -1}
	stack := []*srcLine{root}
	var blockOwner *srcLine

	for i, raw := range strings.Split(body, "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		num := i + 1

		if raw == "" {
			if blockOwner != nil {
				blockOwner.block = append(blockOwner.block, "")
			}
			continue
		}

		text := strings.TrimLeft(raw, " \t")
		indent := len(raw) - len(text)

		if blockOwner != nil {
			if indent > blockOwner.indent {
				blockOwner.block = append(blockOwner.block, raw)
				continue
			}
			blockOwner = nil
		}

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		if len(parent.children) > 0 && parent.children[0].indent != indent {
			return nil, markupFault(filename, num, "inconsistent indentation")
		}

		node := &srcLine{num: num, indent: indent, text: text}
		parent.children = append(parent.children, node)
		stack = append(stack, node)

		if opensBlock(text) {
			blockOwner = node
		}
	}

	return root, nil
}

func opensBlock(text string) bool {
	if strings.HasPrefix(text, "//") {
		return true
	}
	if strings.HasPrefix(text, "|") || strings.HasPrefix(text, "<") {
		return false
	}
	el, err := parseElement(text)
	return err == nil && el.block
}

// dedent strips the common leading whitespace of a text block and drops
// trailing blank lines.
func dedent(block []string) string {
	for len(block) > 0 && block[len(block)-1] == "" {
		block = block[:len(block)-1]
	}
	common := -1
	for _, ln := range block {
		if ln == "" {
			continue
		}
		n := len(ln) - len(strings.TrimLeft(ln, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	out := make([]string, len(block))
	for i, ln := range block {
		if len(ln) >= common && common > 0 {
			ln = ln[common:]
		}
		out[i] = ln
	}
	return strings.Join(out, "\n")
}

func (r *MarkupRenderer) convert(n *srcLine, filename string, depth int) ([]*html.Node, error) {
	text := n.text

	switch {
	case strings.HasPrefix(text, "//-"):
		return nil, nil

	case strings.HasPrefix(text, "//"):
		data := strings.TrimSpace(text[2:])
		if len(n.block) > 0 {
			if data != "" {
				data += "\n"
			}
			data += dedent(n.block)
		}
		return []*html.Node{{Type: html.CommentNode, Data: data}}, nil

	case strings.HasPrefix(text, "|"):
		if len(n.children) > 0 {
			return nil, markupFault(filename, n.num, "piped text cannot have nested lines")
		}
		return []*html.Node{rawNode(strings.TrimPrefix(text[1:], " "))}, nil

	case strings.HasPrefix(text, "<"):
		if len(n.children) > 0 {
			return nil, markupFault(filename, n.num, "literal HTML cannot have nested lines")
		}
		return []*html.Node{rawNode(text)}, nil

	case text == "include" || strings.HasPrefix(text, "include "):
		return r.include(n, filename, depth)
	}

	el, err := parseElement(text)
	if err != nil {
		return nil, markupFault(filename, n.num, "%v", err)
	}

	node := el.node()

	if el.expand != "" {
		inner := &srcLine{num: n.num, indent: n.indent, text: el.expand, children: n.children, block: n.block}
		nodes, err := r.convert(inner, filename, depth)
		if err != nil {
			return nil, err
		}
		for _, c := range nodes {
			node.AppendChild(c)
		}
		return []*html.Node{node}, nil
	}

	if el.text != "" {
		node.AppendChild(rawNode(el.text))
	}
	if el.block && len(n.block) > 0 {
		node.AppendChild(rawNode(dedent(n.block)))
	}
	for _, child := range n.children {
		nodes, err := r.convert(child, filename, depth)
		if err != nil {
			return nil, err
		}
		for _, c := range nodes {
			node.AppendChild(c)
		}
	}

	return []*html.Node{node}, nil
}

func (r *MarkupRenderer) include(n *srcLine, filename string, depth int) ([]*html.Node, error) {
	if len(n.children) > 0 {
		return nil, markupFault(filename, n.num, "include cannot have nested lines")
	}
	if depth >= maxIncludeDepth {
		return nil, markupFault(filename, n.num, "includes nested deeper than %d levels", maxIncludeDepth)
	}

	target := strings.TrimSpace(strings.TrimPrefix(n.text, "include"))
	if target == "" {
		return nil, markupFault(filename, n.num, "include requires a path")
	}
	if filepath.Ext(target) == "" {
		target += ".pug"
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(filename), target)
	}

	data, err := afero.ReadFile(r.fs, target)
	if err != nil {
		return nil, markupFault(filename, n.num, "include %s: %v", target, err)
	}

	return r.render(string(data), target, depth+1)
}

func rawNode(s string) *html.Node {
	return &html.Node{Type: html.RawNode, Data: s}
}

// element is the parsed head of an element line.
type element struct {
	tag     string
	id      string
	classes []string
	attrs   []html.Attribute
	text    string
	expand  string
	block   bool
}

func (e *element) node() *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: e.tag}

	classes := append([]string(nil), e.classes...)
	hasID := false
	for _, a := range e.attrs {
		switch a.Key {
		case "class":
			if a.Val != "" {
				classes = append(classes, a.Val)
			}
			continue
		case "id":
			hasID = true
		}
		n.Attr = append(n.Attr, a)
	}

	var head []html.Attribute
	if e.id != "" && !hasID {
		head = append(head, html.Attribute{Key: "id", Val: e.id})
	}
	if len(classes) > 0 {
		head = append(head, html.Attribute{Key: "class", Val: strings.Join(classes, " ")})
	}
	n.Attr = append(head, n.Attr...)

	return n
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '_' || c == ':'
}

func readName(s string, i int) int {
	for i < len(s) && isNameChar(s[i]) && s[i] != ':' {
		i++
	}
	return i
}

func parseElement(text string) (*element, error) {
	el := &element{}
	i := 0

	if i < len(text) && isNameStart(text[i]) {
		j := i
		for j < len(text) && isNameChar(text[j]) {
			if text[j] == ':' && (j+1 == len(text) || text[j+1] == ' ') {
				break
			}
			j++
		}
		el.tag = text[i:j]
		i = j
	}

	for i < len(text) {
		c := text[i]
		if c == '.' && i+1 < len(text) && (isNameStart(text[i+1]) || text[i+1] == '-' || text[i+1] == '_') {
			end := readName(text, i+1)
			el.classes = append(el.classes, text[i+1:end])
			i = end
			continue
		}
		if c == '#' && i+1 < len(text) && isNameChar(text[i+1]) {
			end := readName(text, i+1)
			el.id = text[i+1 : end]
			i = end
			continue
		}
		break
	}

	if el.tag == "" {
		if len(el.classes) == 0 && el.id == "" {
			if text == "" {
				return nil, fmt.Errorf("empty element")
			}
			return nil, fmt.Errorf("unexpected %q", text[:1])
		}
		el.tag = "div"
	}

	if i < len(text) && text[i] == '(' {
		end, err := matchParen(text, i)
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttrs(text[i+1 : end])
		if err != nil {
			return nil, err
		}
		el.attrs = attrs
		i = end + 1
	}

	rest := text[i:]
	switch {
	case rest == "":
	case rest == ".":
		el.block = true
	case strings.HasPrefix(rest, ": "):
		el.expand = strings.TrimSpace(rest[2:])
	case rest[0] == ' ':
		el.text = rest[1:]
	default:
		return nil, fmt.Errorf("unexpected %q after <%s>", rest[:1], el.tag)
	}

	return el, nil
}

// matchParen returns the index of the ")" closing the "(" at open, ignoring
// parentheses inside quoted values.
func matchParen(s string, open int) (int, error) {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("unterminated attribute list")
}

func parseAttrs(s string) ([]html.Attribute, error) {
	var attrs []html.Attribute
	i := 0
	skip := func(set string) {
		for i < len(s) && strings.IndexByte(set, s[i]) >= 0 {
			i++
		}
	}

	for {
		skip(" \t,")
		if i >= len(s) {
			return attrs, nil
		}

		start := i
		for i < len(s) && strings.IndexByte(" \t,=", s[i]) < 0 {
			i++
		}
		key := s[start:i]
		if key == "" {
			return nil, fmt.Errorf("attribute without a name")
		}

		skip(" \t")
		if i >= len(s) || s[i] != '=' {
			attrs = append(attrs, html.Attribute{Key: key})
			continue
		}
		i++
		skip(" \t")

		var val string
		if i < len(s) && (s[i] == '"' || s[i] == '\'' || s[i] == '`') {
			quote := s[i]
			i++
			var b strings.Builder
			for i < len(s) && s[i] != quote {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
			if i >= len(s) {
				return nil, fmt.Errorf("unterminated value for attribute %q", key)
			}
			i++
			val = b.String()
		} else {
			start := i
			for i < len(s) && strings.IndexByte(" \t,", s[i]) < 0 {
				i++
			}
			val = s[start:i]
		}
		attrs = append(attrs, html.Attribute{Key: key, Val: val})
	}
}
