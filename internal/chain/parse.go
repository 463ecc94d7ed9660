package chain

import (
	"fmt"
	"strings"

	"github.com/starford/chainval/internal/apperr"
)

// globalDevsName is the optional second block feeding the global scope.
const globalDevsName = "global.devs"

// devsPrefix marks global keys that belong in the global.devs block.
const devsPrefix = "devs."

type lineKind int

const (
	rawLine lineKind = iota
	propLine
)

// line is one source line of a block. For property lines value is the
// value as parsed, so unchanged properties are written back verbatim.
type line struct {
	kind  lineKind
	text  string
	key   string
	value string
}

// block is a header line and the lines that follow it up to the next header.
// The preamble block has no header and no owner.
type block struct {
	header    string
	name      string
	commented bool
	section   *Section
	global    bool
	lines     []line
}

func (b *block) props(m *Model) *Properties {
	switch {
	case b.global:
		return m.Global.Props
	case b.section != nil:
		return b.section.Props
	}
	return nil
}

type layout struct {
	blocks          []*block
	crlf            bool
	trailingNewline bool
}

// Parse reads a chain file. Unknown content is kept so that Bytes reproduces
// the source when the model is not modified.
func Parse(data []byte) (*Model, error) {
	m := New()
	text := string(data)
	lay := &layout{
		crlf:            strings.Contains(text, "\r\n"),
		trailingNewline: strings.HasSuffix(text, "\n"),
	}
	m.layout = lay

	text = strings.TrimSuffix(text, "\n")
	cur := &block{}
	lay.blocks = append(lay.blocks, cur)
	if text == "" {
		return m, nil
	}

	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1

		if name, commented, ok := parseHeader(trimmed); ok {
			cur = &block{header: raw, name: name, commented: commented}
			if !commented && (name == GlobalName || name == globalDevsName) {
				cur.global = true
			} else {
				cur.section = &Section{Name: name, Commented: commented, Props: &Properties{}}
				m.Sections = append(m.Sections, cur.section)
			}
			lay.blocks = append(lay.blocks, cur)
			continue
		}

		if trimmed == "" {
			cur.lines = append(cur.lines, line{kind: rawLine, text: raw})
			continue
		}

		if cur.commented {
			if !strings.HasPrefix(trimmed, "#") {
				return nil, fmt.Errorf("chain: line %d: active property inside commented section %q: %w",
					lineNo, cur.name, apperr.ErrInvalidInput)
			}
			if key, value, ok := splitProperty(trimmed[1:]); ok {
				cur.section.Props.Set(key, value)
				cur.lines = append(cur.lines, line{kind: propLine, text: raw, key: key, value: value})
			} else {
				cur.lines = append(cur.lines, line{kind: rawLine, text: raw})
			}
			continue
		}

		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") {
			cur.lines = append(cur.lines, line{kind: rawLine, text: raw})
			continue
		}

		key, value, ok := splitProperty(trimmed)
		if !ok {
			return nil, fmt.Errorf("chain: line %d: malformed line %q: %w", lineNo, trimmed, apperr.ErrInvalidInput)
		}
		props := cur.props(m)
		if props == nil {
			return nil, fmt.Errorf("chain: line %d: property %q outside any section: %w", lineNo, key, apperr.ErrInvalidInput)
		}
		props.Set(key, value)
		cur.lines = append(cur.lines, line{kind: propLine, text: raw, key: key, value: value})
	}

	return m, nil
}

// parseHeader recognises "[name]" and "#[name]" (optionally "# [name]").
func parseHeader(s string) (name string, commented bool, ok bool) {
	if strings.HasPrefix(s, "#") {
		commented = true
		s = strings.TrimSpace(s[1:])
	}
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false, false
	}
	name = strings.TrimSpace(s[1 : len(s)-1])
	if name == "" || strings.ContainsAny(name, "[]") {
		return "", false, false
	}
	return name, commented, true
}

// splitProperty splits "key=value". Keys may not contain whitespace.
func splitProperty(s string) (key, value string, ok bool) {
	idx := strings.IndexByte(s, '=')
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(s[:idx])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, strings.TrimSpace(s[idx+1:]), true
}
