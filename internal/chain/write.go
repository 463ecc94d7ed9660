package chain

import (
	"bytes"
	"io"
	"strings"
)

// Bytes renders the model. A parsed model that was not modified renders to
// its source; mutations only touch the lines of the properties they change.
func (m *Model) Bytes() []byte {
	w := &writer{eol: "\n", trailingNewline: true}
	if m.layout != nil {
		if m.layout.crlf {
			w.eol = "\r\n"
		}
		w.trailingNewline = m.layout.trailingNewline
		m.writeLayout(w)
	} else {
		m.writeCanonical(w)
	}
	return w.bytes()
}

// WriteTo implements io.WriterTo.
func (m *Model) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(m.Bytes())
	return int64(n), err
}

type writer struct {
	lines           []string
	eol             string
	trailingNewline bool
}

func (w *writer) add(s string) { w.lines = append(w.lines, s) }

// separate adds a blank line unless output is empty or already ends with one.
func (w *writer) separate() {
	if n := len(w.lines); n > 0 && strings.TrimSpace(w.lines[n-1]) != "" {
		w.add("")
	}
}

func (w *writer) bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(w.lines, w.eol))
	if w.trailingNewline && len(w.lines) > 0 {
		buf.WriteString(w.eol)
	}
	return buf.Bytes()
}

func (m *Model) writeCanonical(w *writer) {
	if m.Global != nil && m.Global.Props.Len() > 0 {
		writeNewBlock(w, "["+GlobalName+"]", false, m.Global.Props)
	}
	for _, s := range m.Sections {
		writeNewBlock(w, header(s.Name, s.Commented), s.Commented, s.Props)
	}
}

func (m *Model) writeLayout(w *writer) {
	live := make(map[*Section]bool, len(m.Sections))
	for _, s := range m.Sections {
		live[s] = true
	}

	// Keys that already have a line somewhere; everything else is appended
	// to its home block.
	placed := make(map[*Properties]map[string]bool)
	primary := make(map[*Properties]*block)
	var devs *block
	for _, b := range m.layout.blocks {
		props := b.props(m)
		if props == nil {
			continue
		}
		if _, ok := primary[props]; !ok {
			primary[props] = b
			placed[props] = make(map[string]bool)
		}
		if b.global && b.name == globalDevsName && devs == nil {
			devs = b
		}
		for _, l := range b.lines {
			if l.kind == propLine {
				placed[props][l.key] = true
			}
		}
	}
	home := func(props *Properties, key string) *block {
		if devs != nil && props == m.Global.Props && strings.HasPrefix(key, devsPrefix) {
			return devs
		}
		return primary[props]
	}

	globalWritten := false
	for i, b := range m.layout.blocks {
		if b.section != nil && !live[b.section] {
			continue
		}
		if i > 0 && !globalWritten && !b.global && m.Global.Props.Len() > 0 && primary[m.Global.Props] == nil {
			writeNewBlock(w, "["+GlobalName+"]", false, m.Global.Props)
			w.add("")
			globalWritten = true
		}
		if b.global {
			globalWritten = true
		}
		m.writeBlock(w, b, placed, home)
	}

	if !globalWritten && m.Global.Props.Len() > 0 && primary[m.Global.Props] == nil {
		writeNewBlock(w, "["+GlobalName+"]", false, m.Global.Props)
	}

	laidOut := make(map[*Section]bool)
	for _, b := range m.layout.blocks {
		if b.section != nil {
			laidOut[b.section] = true
		}
	}
	for _, s := range m.Sections {
		if !laidOut[s] {
			writeNewBlock(w, header(s.Name, s.Commented), s.Commented, s.Props)
		}
	}
}

func (m *Model) writeBlock(w *writer, b *block, placed map[*Properties]map[string]bool, home func(*Properties, string) *block) {
	commented := b.commented
	if b.header != "" {
		if s := b.section; s != nil && (s.Name != b.name || s.Commented != b.commented) {
			commented = s.Commented
			w.add(header(s.Name, s.Commented))
		} else {
			w.add(b.header)
		}
	}

	// New properties go right after the last property line, or after the
	// header when the block has none, so that blank lines and comments
	// introducing the next block stay in front of it.
	insertAt := len(w.lines)
	props := b.props(m)
	for _, l := range b.lines {
		if l.kind == rawLine {
			w.add(l.text)
			continue
		}
		value, ok := props.Lookup(l.key)
		if !ok {
			continue
		}
		if value == l.value && commented == b.commented {
			w.add(l.text)
		} else {
			w.add(propertyLine(l.key, value, commented))
		}
		insertAt = len(w.lines)
	}

	if props == nil {
		return
	}
	var extra []string
	for _, k := range props.Keys() {
		if !placed[props][k] && home(props, k) == b {
			extra = append(extra, propertyLine(k, props.Get(k), commented))
		}
	}
	if len(extra) == 0 {
		return
	}
	rest := append([]string(nil), w.lines[insertAt:]...)
	w.lines = append(append(w.lines[:insertAt], extra...), rest...)
}

func writeNewBlock(w *writer, head string, commented bool, props *Properties) {
	w.separate()
	w.add(head)
	for _, k := range props.Keys() {
		w.add(propertyLine(k, props.Get(k), commented))
	}
}

func header(name string, commented bool) string {
	if commented {
		return "#[" + name + "]"
	}
	return "[" + name + "]"
}

func propertyLine(key, value string, commented bool) string {
	if commented {
		return "#" + key + "=" + value
	}
	return key + "=" + value
}
