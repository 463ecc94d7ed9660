// Package autofix applies mechanical repairs for auto-fixable validation
// issues. It mutates the model in place and never reads or writes files.
package autofix

import (
	"slices"
	"strings"

	"github.com/starford/chainval/internal/chain"
	"github.com/starford/chainval/internal/validation"
)

// Operations recorded on an Action.
const (
	OpSet    = "set"
	OpDelete = "delete"
)

// Action is one effective mutation.
type Action struct {
	RuleID   string `json:"ruleId"`
	Section  string `json:"section"`
	Property string `json:"property"`
	Op       string `json:"op"`
	Value    string `json:"value,omitempty"`
}

// Result summarises one Apply call. Attempted counts auto-fixable issues,
// Changed counts mutations that altered the model.
type Result struct {
	Attempted int      `json:"attempted"`
	Changed   int      `json:"changed"`
	Actions   []Action `json:"actions"`
}

// Fixer maps issues back to the compiled rule that raised them.
type Fixer struct {
	rules   map[string]validation.Rule
	allowed map[string][]string
}

// New indexes rules by id. The first PropertyValueValidation rule for a
// property supplies its fallback value when a rule has no DefaultValue.
func New(rules []validation.Rule) *Fixer {
	f := &Fixer{
		rules:   make(map[string]validation.Rule, len(rules)),
		allowed: make(map[string][]string),
	}
	for _, r := range rules {
		if r.Check == nil {
			continue
		}
		if _, dup := f.rules[r.ID]; !dup {
			f.rules[r.ID] = r
		}
		if pv, ok := r.Check.(validation.PropertyValue); ok && r.Enabled {
			if _, seen := f.allowed[pv.Property]; !seen {
				f.allowed[pv.Property] = pv.Allowed
			}
		}
	}
	return f
}

// Apply attempts every auto-fixable issue in order. Issues whose rule is
// unknown, broken, or has no usable value are counted as attempted and left alone.
func (f *Fixer) Apply(m *chain.Model, issues []validation.Issue) Result {
	res := Result{Actions: []Action{}}
	for _, is := range issues {
		if !is.AutoFixable {
			continue
		}
		res.Attempted++
		r, ok := f.rules[is.RuleID]
		if !ok {
			continue
		}
		for _, a := range f.fix(m, r, is.Section) {
			res.Changed++
			res.Actions = append(res.Actions, a)
		}
	}
	return res
}

func (f *Fixer) fix(m *chain.Model, r validation.Rule, section string) []Action {
	var out []Action
	set := func(name string, props *chain.Properties, key, value string) {
		if value != "" && props.Set(key, value) {
			out = append(out, Action{RuleID: r.ID, Section: name, Property: key, Op: OpSet, Value: value})
		}
	}
	del := func(name string, props *chain.Properties, key string) {
		if props.Delete(key) {
			out = append(out, Action{RuleID: r.ID, Section: name, Property: key, Op: OpDelete})
		}
	}

	switch c := r.Check.(type) {
	case validation.PropertyRequired:
		for _, s := range active(m, section) {
			if !s.Props.IsSet(c.Property) {
				set(s.Name, s.Props, c.Property, f.fallback(c.Property, c.Default))
			}
		}

	case validation.PropertyValue:
		for _, s := range active(m, section) {
			if s.Props.IsSet(c.Property) && !slices.Contains(c.Allowed, s.Props.Get(c.Property)) {
				set(s.Name, s.Props, c.Property, c.Allowed[0])
			}
		}

	case validation.MutuallyExclusive:
		for _, s := range active(m, section) {
			keep, ok := modeRef(s, c.Properties)
			if !ok || !s.Props.IsSet(keep) {
				keep = ""
				for _, p := range c.Properties {
					if s.Props.IsSet(p) {
						keep = p
						break
					}
				}
			}
			for _, p := range c.Properties {
				if p != keep && s.Props.IsSet(p) {
					del(s.Name, s.Props, p)
				}
			}
		}

	case validation.RequiredOneOf:
		for _, s := range active(m, section) {
			if slices.ContainsFunc(c.Properties, s.Props.IsSet) {
				continue
			}
			// The default belongs to the first property; a mode naming
			// another one leaves nothing sensible to write.
			first := c.Properties[0]
			if ref, ok := modeRef(s, c.Properties); ok && ref != first {
				continue
			}
			set(s.Name, s.Props, first, f.fallback(first, c.Default))
		}

	case validation.Conditional:
		for _, s := range active(m, section) {
			if s.Name == c.Section {
				del(s.Name, s.Props, c.Property)
			}
		}

	case validation.DependentProperty:
		for _, s := range active(m, section) {
			if s.Props.IsSet(c.Dependent) && !s.Props.IsSet(c.Required) {
				set(s.Name, s.Props, c.Required, f.fallback(c.Required, c.Default))
			}
		}

	case validation.GlobalCondition:
		if m.Global == nil {
			m.Global = &chain.Global{Props: chain.NewProperties()}
		}
		if m.Global.Props == nil {
			m.Global.Props = chain.NewProperties()
		}
		if !m.Global.Props.IsSet(c.GlobalProperty) {
			set(chain.GlobalName, m.Global.Props, c.GlobalProperty, f.fallback(c.GlobalProperty, c.Default))
		}

	case validation.RequiredSections:
		// No effective fix.
	}
	return out
}

func (f *Fixer) fallback(property, def string) string {
	if def != "" {
		return def
	}
	if allowed := f.allowed[property]; len(allowed) > 0 {
		return allowed[0]
	}
	return ""
}

// modeRef returns the section's mode when it names one of props.
func modeRef(s *chain.Section, props []string) (string, bool) {
	mode := strings.TrimSpace(s.Mode())
	return mode, mode != "" && slices.Contains(props, mode)
}

func active(m *chain.Model, name string) []*chain.Section {
	var out []*chain.Section
	for _, s := range m.SectionsNamed(name) {
		if !s.Commented {
			out = append(out, s)
		}
	}
	return out
}
