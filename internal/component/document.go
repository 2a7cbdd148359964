// Package component decomposes a single-file component source into its
// script, template and style sections.
//
// A source document looks like this, with every content line indented by
// one TAB:
//
//	<script>
//		export default {
//		}
//	</script>
//	<template lang="pug">
//		.card Hello
//	</template>
//	<style lang="less" scoped>
//		.card { color: red; }
//	</style>
//
// Parse collects every structural problem in a single pass and fails with
// one aggregate syntax fault, so an author sees all of them at once.
package component

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Section identifies which part of the document a line belongs to.
type Section int

const (
	SectionNone Section = iota
	SectionScript
	SectionTemplate
	SectionStyle
)

// String returns the tag name of the section.
func (s Section) String() string {
	switch s {
	case SectionScript:
		return "script"
	case SectionTemplate:
		return "template"
	case SectionStyle:
		return "style"
	default:
		return "none"
	}
}

// Document is one decomposed source file. It is owned by a single pipeline
// run and mutated in place by each stage.
type Document struct {
	Name        string
	Dir         string
	Script      []string
	Template    []string
	Style       []string
	StyleScoped bool

	// Rendered output attached by the pipeline.
	HTML string
	CSS  string
}

// NewDocument creates an empty document for the source file at path.
func NewDocument(path string) *Document {
	base := filepath.Base(path)
	return &Document{
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Dir:      filepath.Dir(path),
		Script:   []string{},
		Template: []string{},
		Style:    []string{},
	}
}

func (d *Document) appendLine(s Section, line string) {
	switch s {
	case SectionScript:
		d.Script = append(d.Script, line)
	case SectionTemplate:
		d.Template = append(d.Template, line)
	case SectionStyle:
		d.Style = append(d.Style, line)
	}
}

// Tag returns the kebab-case element name of the component.
func (d *Document) Tag() string {
	return KebabCase(d.Name)
}

// KebabCase converts "MyCard" to "my-card".
func KebabCase(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			if b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
