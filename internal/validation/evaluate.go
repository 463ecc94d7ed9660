package validation

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/chainval/internal/chain"
)

// Message placeholders.
const (
	phSection    = "{SectionName}"
	phValue      = "{PropertyValue}"
	phAllowed    = "{AllowedValues}"
	phMinVersion = "{MinVersion}"
	phMaxVersion = "{MaxVersion}"
	phVersion    = "{VersionValue}"
)

// render substitutes the given placeholder/value pairs. Placeholders not
// listed are left as written.
func render(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func orDefault(msg, def string) string {
	if strings.TrimSpace(msg) == "" {
		return def
	}
	return msg
}

// issue builds an issue attributed to r.
func (r *Rule) issue(section, message, suggestion string) Issue {
	is := Issue{
		RuleID:   r.ID,
		Kind:     r.Kind,
		Message:  message,
		Severity: r.Severity,
		Section:  section,
	}
	if r.Kind.AutoFixable() {
		is.AutoFixable = true
		is.SuggestedFix = suggestion
	}
	return is
}

func (c PropertyRequired) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} is missing required property "+c.Property)
	var out []Issue
	for _, s := range m.ActiveSections() {
		if !s.Props.IsSet(c.Property) {
			out = append(out, r.issue(s.Name,
				render(tmpl, phSection, s.Name),
				fmt.Sprintf("Set %s to default value", c.Property)))
		}
	}
	return out, nil
}

func (c PropertyValue) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	allowed := strings.Join(c.Allowed, ", ")
	tmpl := orDefault(c.Message, "Section {SectionName} has invalid "+c.Property+" '{PropertyValue}' (allowed: {AllowedValues})")
	var out []Issue
	for _, s := range m.ActiveSections() {
		if !s.Props.IsSet(c.Property) {
			continue
		}
		v := s.Props.Get(c.Property)
		if slices.Contains(c.Allowed, v) {
			continue
		}
		out = append(out, r.issue(s.Name,
			render(tmpl, phSection, s.Name, phValue, v, phAllowed, allowed),
			fmt.Sprintf("Set %s to %s", c.Property, c.Allowed[0])))
	}
	return out, nil
}

func (c MutuallyExclusive) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} sets more than one of "+strings.Join(c.Properties, ", "))
	var out []Issue
	for _, s := range m.ActiveSections() {
		var set []string
		for _, p := range c.Properties {
			if s.Props.IsSet(p) {
				set = append(set, p)
			}
		}
		if len(set) > 1 {
			out = append(out, r.issue(s.Name,
				render(tmpl, phSection, s.Name),
				fmt.Sprintf("Keep %s and remove %s", set[0], strings.Join(set[1:], ", "))))
		}
	}
	return out, nil
}

func (c RequiredOneOf) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} must set one of "+strings.Join(c.Properties, ", "))
	var out []Issue
	for _, s := range m.ActiveSections() {
		if slices.ContainsFunc(c.Properties, s.Props.IsSet) {
			continue
		}
		out = append(out, r.issue(s.Name,
			render(tmpl, phSection, s.Name),
			fmt.Sprintf("Set %s to default value", c.Properties[0])))
	}
	return out, nil
}

func (c RequiredSections) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Required section {SectionName} is missing")
	var out []Issue
	for _, name := range c.Sections {
		if m.HasSection(name) {
			continue
		}
		out = append(out, r.issue(name,
			render(tmpl, phSection, name),
			fmt.Sprintf("Add section [%s]", name)))
	}
	return out, nil
}

func (c Regex) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} has "+c.Property+" '{PropertyValue}' not matching "+c.Pattern.String())
	var out []Issue
	for _, s := range m.ActiveSections() {
		if !s.Props.IsSet(c.Property) {
			continue
		}
		v := s.Props.Get(c.Property)
		if !c.Pattern.MatchString(v) {
			out = append(out, r.issue(s.Name, render(tmpl, phSection, s.Name, phValue, v), ""))
		}
	}
	return out, nil
}

func (c Conditional) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} should not set "+c.Property+" to '{PropertyValue}'")
	var out []Issue
	for _, s := range m.SectionsNamed(c.Section) {
		if s.Commented {
			continue
		}
		v, ok := s.Props.Lookup(c.Property)
		var hit bool
		if len(c.Forbidden) > 0 {
			hit = ok && slices.Contains(c.Forbidden, v)
		} else {
			hit = s.Props.IsSet(c.Property)
		}
		if hit {
			out = append(out, r.issue(s.Name,
				render(tmpl, phSection, s.Name, phValue, v),
				fmt.Sprintf("Remove %s from %s", c.Property, s.Name)))
		}
	}
	return out, nil
}

func (c DependentProperty) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} sets "+c.Dependent+" but not "+c.Required)
	var out []Issue
	for _, s := range m.ActiveSections() {
		if s.Props.IsSet(c.Dependent) && !s.Props.IsSet(c.Required) {
			out = append(out, r.issue(s.Name,
				render(tmpl, phSection, s.Name, phValue, s.Props.Get(c.Dependent)),
				fmt.Sprintf("Set %s to default value", c.Required)))
		}
	}
	return out, nil
}

func (c GlobalCondition) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	if m.Global.Props.IsSet(c.GlobalProperty) {
		return nil, nil
	}
	for _, s := range m.ActiveSections() {
		if s.Props.Get(c.Property) == c.Value {
			tmpl := orDefault(c.Message, "Global property "+c.GlobalProperty+" is required when a project has "+c.Property+"={PropertyValue}")
			return []Issue{r.issue(chain.GlobalName,
				render(tmpl, phSection, chain.GlobalName, phValue, c.Value),
				fmt.Sprintf("Set %s in [%s]", c.GlobalProperty, chain.GlobalName))}, nil
		}
	}
	return nil, nil
}

func (c VersionRange) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	lo, hi := strconv.FormatInt(c.Min, 10), strconv.FormatInt(c.Max, 10)
	tmpl := orDefault(c.Message, "Version {VersionValue} in {SectionName} is outside [{MinVersion}, {MaxVersion}]")
	var out []Issue
	check := func(section, raw string) {
		n, ok := numericVersion(raw)
		if !ok || (n >= c.Min && n <= c.Max) {
			return
		}
		out = append(out, r.issue(section, render(tmpl,
			phSection, section, phVersion, raw, phMinVersion, lo, phMaxVersion, hi), ""))
	}
	check(chain.GlobalName, m.Global.BinaryVersion())
	for _, s := range m.ActiveSections() {
		check(s.Name, s.Tag())
	}
	return out, nil
}

func (c CommentedSection) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} is commented out")
	var out []Issue
	for _, s := range m.CommentedSections() {
		out = append(out, r.issue(s.Name, render(tmpl, phSection, s.Name), ""))
	}
	return out, nil
}

func (c GitFork) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	tmpl := orDefault(c.Message, "Section {SectionName} has an unusable fork '{PropertyValue}'")
	var out []Issue
	for _, s := range m.ActiveSections() {
		fork := s.Fork()
		if strings.Contains(fork, "invalid") || strings.Contains(fork, "missing") {
			out = append(out, r.issue(s.Name, render(tmpl, phSection, s.Name, phValue, fork), ""))
		}
	}
	return out, nil
}

func (c VersionConsistency) evaluate(r *Rule, m *chain.Model) ([]Issue, error) {
	seen := make(map[int64]struct{})
	for _, s := range m.ActiveSections() {
		if n, ok := numericVersion(s.Tag()); ok {
			seen[n] = struct{}{}
		}
	}
	if len(seen) <= c.MaxDistinct {
		return nil, nil
	}
	versions := make([]int64, 0, len(seen))
	for n := range seen {
		versions = append(versions, n)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	parts := make([]string, len(versions))
	for i, n := range versions {
		parts[i] = strconv.FormatInt(n, 10)
	}
	tmpl := orDefault(c.Message, "Tags reference too many distinct versions: {VersionValue}")
	return []Issue{r.issue("", render(tmpl, phVersion, strings.Join(parts, ", ")), "")}, nil
}

// numericVersion parses an integral version, ignoring a leading v or V.
func numericVersion(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "v") || strings.HasPrefix(s, "V") {
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
