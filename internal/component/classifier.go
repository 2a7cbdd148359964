package component

import (
	"regexp"
	"strings"

	"github.com/conneroisu/coco/internal/errors"
)

// DefaultIndent is the structural indentation unit of section content.
const DefaultIndent = "\t"

var (
	templateOpen = regexp.MustCompile(`^<template\s+lang="pug">$`)
	styleOpen    = regexp.MustCompile(`^<style\s+lang="(?:less|css)"(\s+scoped)?>$`)
)

// Parser classifies source lines into sections.
type Parser struct {
	// Indent is stripped from the front of every section content line.
	Indent string
}

// NewParser returns a parser using the default TAB indentation unit.
func NewParser() *Parser {
	return &Parser{Indent: DefaultIndent}
}

// Parse classifies lines with the default parser.
func Parse(path string, lines []string) (*Document, error) {
	return NewParser().Parse(path, lines)
}

type marker struct {
	section Section
	open    bool
	scoped  bool
	text    string
}

func classifyMarker(line string) (marker, bool) {
	switch line {
	case "<script>":
		return marker{section: SectionScript, open: true, text: "<script>"}, true
	case "</script>":
		return marker{section: SectionScript, text: "</script>"}, true
	case "</template>":
		return marker{section: SectionTemplate, text: "</template>"}, true
	case "</style>":
		return marker{section: SectionStyle, text: "</style>"}, true
	}

	if templateOpen.MatchString(line) {
		return marker{section: SectionTemplate, open: true, text: "<template>"}, true
	}
	if m := styleOpen.FindStringSubmatch(line); m != nil {
		return marker{section: SectionStyle, open: true, scoped: m[1] != "", text: "<style>"}, true
	}

	return marker{}, false
}

// Parse scans lines once, tracking the current section. Structural problems
// are recorded and parsing continues; if any were recorded the result is a
// single syntax fault listing all of them with 1-based line numbers.
func (p *Parser) Parse(path string, lines []string) (*Document, error) {
	indent := p.Indent
	if indent == "" {
		indent = DefaultIndent
	}

	doc := NewDocument(path)
	var diags errors.DiagnosticList
	current := SectionNone

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimRight(raw, " \t\r")

		if m, ok := classifyMarker(line); ok {
			if m.open {
				if current != SectionNone {
					diags.Add(lineNo, "found %q inside <%s>", m.text, current)
				}
				current = m.section
				if m.section == SectionStyle {
					doc.StyleScoped = m.scoped
				}
			} else {
				if current != m.section {
					diags.Add(lineNo, "found %q inside <%s>", m.text, current)
				}
				current = SectionNone
			}
			continue
		}

		if current == SectionNone {
			if strings.TrimSpace(raw) != "" {
				diags.Add(lineNo, "unexpected text outside of script/template/style section: %q", line)
			}
			continue
		}

		content, indented := strings.CutPrefix(raw, indent)
		if !indented && strings.TrimSpace(raw) != "" && current != SectionScript {
			diags.Add(lineNo, "Tab-indent missing in content of section <%s>", current)
		}
		doc.appendLine(current, content)
	}

	if err := diags.Err(); err != nil {
		return nil, err
	}

	return doc, nil
}
