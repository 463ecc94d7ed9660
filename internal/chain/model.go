// Package chain models release chain files: a global property block followed by
// ordered per-project sections of key=value properties.
package chain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Well-known property keys.
const (
	KeyMode      = "mode"
	KeyBranch    = "branch"
	KeyTag       = "tag"
	KeyFork      = "fork"
	KeyTestsUnit = "tests.unit"

	KeyVersion          = "version"
	KeyBinaryVersion    = "version.binary"
	KeyDevVersion       = "devs.version"
	KeyDevBinaryVersion = "devs.version.binary"
	KeyDescription      = "description"
	KeyIssueID          = "issue.id"
	KeyRecipients       = "recipients"
)

// GlobalName is the reserved name of the global scope.
const GlobalName = "global"

// Properties is an insertion-ordered string map. The zero value is ready to use
// and a nil *Properties reads as empty.
type Properties struct {
	values map[string]string
	order  []string
}

// NewProperties returns Properties populated from alternating key/value pairs.
func NewProperties(kv ...string) *Properties {
	p := &Properties{}
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

// Get returns the raw value for key, or "" when absent.
func (p *Properties) Get(key string) string {
	v, _ := p.Lookup(key)
	return v
}

// Lookup returns the raw value for key and whether it is present.
func (p *Properties) Lookup(key string) (string, bool) {
	if p == nil || p.values == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present, even with a blank value.
func (p *Properties) Has(key string) bool {
	_, ok := p.Lookup(key)
	return ok
}

// IsSet reports whether key is present with a non-blank value.
func (p *Properties) IsSet(key string) bool {
	return strings.TrimSpace(p.Get(key)) != ""
}

// Set stores value under key and reports whether anything changed.
func (p *Properties) Set(key, value string) bool {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	old, ok := p.values[key]
	if ok && old == value {
		return false
	}
	if !ok {
		p.order = append(p.order, key)
	}
	p.values[key] = value
	return true
}

// Delete removes key and reports whether it was present.
func (p *Properties) Delete(key string) bool {
	if !p.Has(key) {
		return false
	}
	delete(p.values, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// MarshalJSON encodes the properties as a JSON object.
func (p *Properties) MarshalJSON() ([]byte, error) {
	if p == nil || p.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.values)
}

// Global holds the file-wide properties of a chain.
type Global struct {
	Props *Properties
}

func (g *Global) Version() string          { return g.Props.Get(KeyVersion) }
func (g *Global) BinaryVersion() string    { return g.Props.Get(KeyBinaryVersion) }
func (g *Global) DevVersion() string       { return g.Props.Get(KeyDevVersion) }
func (g *Global) DevBinaryVersion() string { return g.Props.Get(KeyDevBinaryVersion) }
func (g *Global) Description() string      { return g.Props.Get(KeyDescription) }
func (g *Global) IssueID() string          { return g.Props.Get(KeyIssueID) }

// Recipients returns the comma-separated recipients list with blanks removed.
func (g *Global) Recipients() []string {
	var out []string
	for _, r := range strings.Split(g.Props.Get(KeyRecipients), ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Section is one project block of a chain file.
type Section struct {
	Name      string
	Commented bool
	Props     *Properties
}

// NewSection returns an active section populated from alternating key/value pairs.
func NewSection(name string, kv ...string) *Section {
	return &Section{Name: name, Props: NewProperties(kv...)}
}

func (s *Section) Mode() string   { return s.Props.Get(KeyMode) }
func (s *Section) Branch() string { return s.Props.Get(KeyBranch) }
func (s *Section) Tag() string    { return s.Props.Get(KeyTag) }
func (s *Section) Fork() string   { return s.Props.Get(KeyFork) }

// TestsUnit reports whether unit tests are enabled. Absent or unparsable values read as false.
func (s *Section) TestsUnit() bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s.Props.Get(KeyTestsUnit)))
	return err == nil && b
}

// Model is the in-memory form of a chain file.
type Model struct {
	Global   *Global
	Sections []*Section

	// layout of the source file; nil for models built in code.
	layout *layout
}

// New returns an empty model with an empty global block.
func New(sections ...*Section) *Model {
	return &Model{
		Global:   &Global{Props: &Properties{}},
		Sections: sections,
	}
}

// AddSection appends s to the model.
func (m *Model) AddSection(s *Section) {
	m.Sections = append(m.Sections, s)
}

// Section returns the first section named name, or nil.
func (m *Model) Section(name string) *Section {
	for _, s := range m.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SectionsNamed returns every section named name. Duplicate names are legal.
func (m *Model) SectionsNamed(name string) []*Section {
	var out []*Section
	for _, s := range m.Sections {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// HasSection reports whether a section named name exists, commented or not.
// The reserved global name is present when the global block holds any property.
func (m *Model) HasSection(name string) bool {
	if name == GlobalName && m.Global != nil && m.Global.Props.Len() > 0 {
		return true
	}
	return m.Section(name) != nil
}

// ActiveSections returns the non-commented sections in file order.
func (m *Model) ActiveSections() []*Section {
	var out []*Section
	for _, s := range m.Sections {
		if !s.Commented {
			out = append(out, s)
		}
	}
	return out
}

// CommentedSections returns the commented sections in file order.
func (m *Model) CommentedSections() []*Section {
	var out []*Section
	for _, s := range m.Sections {
		if s.Commented {
			out = append(out, s)
		}
	}
	return out
}

type sectionJSON struct {
	Name       string      `json:"name"`
	Commented  bool        `json:"commented"`
	Properties *Properties `json:"properties"`
}

// MarshalJSON encodes the model without its source layout.
func (m *Model) MarshalJSON() ([]byte, error) {
	sections := make([]sectionJSON, len(m.Sections))
	for i, s := range m.Sections {
		sections[i] = sectionJSON{Name: s.Name, Commented: s.Commented, Properties: s.Props}
	}
	var global *Properties
	if m.Global != nil {
		global = m.Global.Props
	}
	return json.Marshal(struct {
		Global   *Properties   `json:"global"`
		Sections []sectionJSON `json:"sections"`
	}{global, sections})
}
