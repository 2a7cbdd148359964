package component

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TrimBlankLines drops leading and trailing whitespace-only lines. An
// all-blank sequence becomes empty. The returned slice shares storage with
// lines.
func TrimBlankLines(lines []string) []string {
	first := -1
	for i, ln := range lines {
		if strings.TrimSpace(ln) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return lines[:0]
	}

	last := len(lines) - 1
	for last > first && strings.TrimSpace(lines[last]) == "" {
		last--
	}

	return lines[first : last+1]
}

// Normalize trims blank edges of every section in place.
func (d *Document) Normalize() {
	d.Script = TrimBlankLines(d.Script)
	d.Template = TrimBlankLines(d.Template)
	d.Style = TrimBlankLines(d.Style)
}

// Decode converts raw file content to text, dropping a UTF-8 or UTF-16 byte
// order mark.
func Decode(data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

// SplitLines splits text on line breaks, tolerating CRLF endings.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}
