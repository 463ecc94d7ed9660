package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chainval/internal/chain"
)

// Condition and warning-condition values understood by the engine.
const (
	ConditionAnyProjectHasPropertyValue = "AnyProjectHasPropertyValue"
	WarningConditionHasValue            = "HasValue"
)

const defaultMaxDistinctVersions = 3

// Check is the typed, compiled form of a descriptor's parameters. The set of
// implementations is closed: one per Kind.
type Check interface {
	Kind() Kind
	evaluate(r *Rule, m *chain.Model) ([]Issue, error)
}

// PropertyRequired flags sections where Property is missing or blank.
type PropertyRequired struct {
	Property string `json:"PropertyName"`
	Message  string `json:"ErrorMessage"`
	Default  string `json:"DefaultValue"`
}

// PropertyValue flags sections where Property is set to a value outside Allowed.
type PropertyValue struct {
	Property string   `json:"PropertyName"`
	Allowed  []string `json:"AllowedValues"`
	Message  string   `json:"ErrorMessage"`
}

// MutuallyExclusive flags sections where more than one of Properties is set.
type MutuallyExclusive struct {
	Properties []string `json:"Properties"`
	Message    string   `json:"ErrorMessage"`
}

// RequiredOneOf flags sections where none of Properties is set.
type RequiredOneOf struct {
	Properties []string `json:"Properties"`
	Message    string   `json:"ErrorMessage"`
	Default    string   `json:"DefaultValue"`
}

// RequiredSections flags section names absent from the model.
type RequiredSections struct {
	Sections []string `json:"RequiredSections"`
	Message  string   `json:"ErrorMessage"`
}

// Regex flags sections where Property is set and does not match Pattern.
type Regex struct {
	Property string         `json:"PropertyName"`
	Pattern  *regexp.Regexp `json:"Pattern"`
	Message  string         `json:"ErrorMessage"`
}

// Conditional checks Property in the sections named Section: either its value
// is in Forbidden, or (when Forbidden is empty) it has any value at all.
type Conditional struct {
	Section   string   `json:"SectionName"`
	Property  string   `json:"PropertyName"`
	Forbidden []string `json:"ForbiddenValues"`
	Message   string   `json:"ErrorMessage"`
}

// DependentProperty flags sections where Dependent is set but Required is not.
type DependentProperty struct {
	Dependent string `json:"DependentProperty"`
	Required  string `json:"RequiredProperty"`
	Message   string `json:"ErrorMessage"`
	Default   string `json:"DefaultValue"`
}

// GlobalCondition requires GlobalProperty once any section has Property == Value.
type GlobalCondition struct {
	Property       string `json:"PropertyName"`
	Value          string `json:"PropertyValue"`
	GlobalProperty string `json:"RequiredGlobalProperty"`
	Message        string `json:"ErrorMessage"`
	Default        string `json:"DefaultValue"`
}

// VersionRange bounds the global binary version and every section tag.
type VersionRange struct {
	Min     int64  `json:"MinVersion"`
	Max     int64  `json:"MaxVersion"`
	Message string `json:"ErrorMessage"`
}

// CommentedSection flags every commented section.
type CommentedSection struct {
	Message string `json:"ErrorMessage"`
}

// GitFork flags fork URLs marked invalid or missing.
type GitFork struct {
	Message string `json:"ErrorMessage"`
}

// VersionConsistency flags chains whose tags spread over too many versions.
type VersionConsistency struct {
	MaxDistinct int    `json:"MaxDistinctVersions"`
	Message     string `json:"ErrorMessage"`
}

func (PropertyRequired) Kind() Kind   { return KindPropertyRequired }
func (PropertyValue) Kind() Kind      { return KindPropertyValueValidation }
func (MutuallyExclusive) Kind() Kind  { return KindMutuallyExclusive }
func (RequiredOneOf) Kind() Kind      { return KindRequiredOneOf }
func (RequiredSections) Kind() Kind   { return KindRequiredSections }
func (Regex) Kind() Kind              { return KindRegexValidation }
func (Conditional) Kind() Kind        { return KindConditionalValidation }
func (DependentProperty) Kind() Kind  { return KindDependentProperty }
func (GlobalCondition) Kind() Kind    { return KindGlobalCondition }
func (VersionRange) Kind() Kind       { return KindVersionRangeValidation }
func (CommentedSection) Kind() Kind   { return KindCommentedSectionValidation }
func (GitFork) Kind() Kind            { return KindGitValidation }
func (VersionConsistency) Kind() Kind { return KindVersionConsistencyValidation }

// Rule is a compiled descriptor. Check is nil when compilation failed; such a
// rule reports Err as an issue every time it runs.
type Rule struct {
	Descriptor
	Check Check
	Err   error
}

// Compile validates a descriptor and builds its typed check.
func Compile(d Descriptor) (Rule, error) {
	r := Rule{Descriptor: d}
	if err := d.Validate(); err != nil {
		r.Err = fmt.Errorf("rule %q: %w", d.ID, err)
		return r, r.Err
	}
	check, err := compileCheck(d.Kind, d.Params)
	if err != nil {
		r.Err = fmt.Errorf("rule %q (%s): %w", d.ID, d.Kind, err)
		return r, r.Err
	}
	r.Check = check
	return r, nil
}

func compileCheck(kind Kind, p Params) (Check, error) {
	msg := p.String("ErrorMessage")

	switch kind {
	case KindPropertyRequired:
		c := PropertyRequired{Property: p.String("PropertyName"), Message: msg, Default: p.String("DefaultValue")}
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.Property, ozzo.Required))

	case KindPropertyValueValidation:
		c := PropertyValue{Property: p.String("PropertyName"), Allowed: p.Strings("AllowedValues"), Message: msg}
		return c, ozzo.ValidateStruct(&c,
			ozzo.Field(&c.Property, ozzo.Required),
			ozzo.Field(&c.Allowed, ozzo.Required),
		)

	case KindMutuallyExclusive:
		c := MutuallyExclusive{Properties: p.Strings("Properties"), Message: msg}
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.Properties, ozzo.Required, ozzo.Length(2, 0)))

	case KindRequiredOneOf:
		c := RequiredOneOf{Properties: p.Strings("Properties"), Message: msg, Default: p.String("DefaultValue")}
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.Properties, ozzo.Required))

	case KindRequiredSections:
		c := RequiredSections{Sections: p.Strings("RequiredSections"), Message: msg}
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.Sections, ozzo.Required))

	case KindRegexValidation:
		c := Regex{Property: p.String("PropertyName"), Message: msg}
		pattern := p.String("Pattern")
		if err := ozzo.Validate(pattern, ozzo.Required); err != nil {
			return nil, ozzo.Errors{"Pattern": err}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, ozzo.Errors{"Pattern": err}
		}
		c.Pattern = re
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.Property, ozzo.Required))

	case KindConditionalValidation:
		c := Conditional{
			Section:   p.String("SectionName"),
			Property:  p.String("PropertyName"),
			Forbidden: p.Strings("ForbiddenValues"),
			Message:   msg,
		}
		if err := ozzo.ValidateStruct(&c,
			ozzo.Field(&c.Section, ozzo.Required),
			ozzo.Field(&c.Property, ozzo.Required),
		); err != nil {
			return nil, err
		}
		if len(c.Forbidden) == 0 {
			warn := p.String("WarningCondition")
			if err := ozzo.Validate(warn, ozzo.Required, ozzo.In(WarningConditionHasValue)); err != nil {
				return nil, ozzo.Errors{"WarningCondition": fmt.Errorf("required as %q when ForbiddenValues is empty: %w", WarningConditionHasValue, err)}
			}
		}
		return c, nil

	case KindDependentProperty:
		c := DependentProperty{
			Dependent: p.String("DependentProperty"),
			Required:  p.String("RequiredProperty"),
			Message:   msg,
			Default:   p.String("DefaultValue"),
		}
		return c, ozzo.ValidateStruct(&c,
			ozzo.Field(&c.Dependent, ozzo.Required),
			ozzo.Field(&c.Required, ozzo.Required),
		)

	case KindGlobalCondition:
		condition := p.String("Condition")
		if err := ozzo.Validate(condition, ozzo.Required, ozzo.In(ConditionAnyProjectHasPropertyValue)); err != nil {
			return nil, ozzo.Errors{"Condition": err}
		}
		c := GlobalCondition{
			Property:       p.String("PropertyName"),
			Value:          p.String("PropertyValue"),
			GlobalProperty: p.String("RequiredGlobalProperty"),
			Message:        msg,
			Default:        p.String("DefaultValue"),
		}
		return c, ozzo.ValidateStruct(&c,
			ozzo.Field(&c.Property, ozzo.Required),
			ozzo.Field(&c.Value, ozzo.Required),
			ozzo.Field(&c.GlobalProperty, ozzo.Required, ozzo.In(chain.KeyBinaryVersion, chain.KeyDevBinaryVersion)),
		)

	case KindVersionRangeValidation:
		lo, errLo := strconv.ParseInt(p.String("MinVersion"), 10, 64)
		hi, errHi := strconv.ParseInt(p.String("MaxVersion"), 10, 64)
		errs := ozzo.Errors{}
		if errLo != nil {
			errs["MinVersion"] = errors.New("must be an integer")
		}
		if errHi != nil {
			errs["MaxVersion"] = errors.New("must be an integer")
		}
		if len(errs) > 0 {
			return nil, errs
		}
		c := VersionRange{Min: lo, Max: hi, Message: msg}
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.Max, ozzo.Min(lo).Error("must not be less than MinVersion")))

	case KindCommentedSectionValidation:
		return CommentedSection{Message: msg}, nil

	case KindGitValidation:
		return GitFork{Message: msg}, nil

	case KindVersionConsistencyValidation:
		c := VersionConsistency{MaxDistinct: defaultMaxDistinctVersions, Message: msg}
		if raw := p.String("MaxDistinctVersions"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, ozzo.Errors{"MaxDistinctVersions": errors.New("must be an integer")}
			}
			c.MaxDistinct = n
		}
		return c, ozzo.ValidateStruct(&c, ozzo.Field(&c.MaxDistinct, ozzo.Min(1)))
	}

	return nil, fmt.Errorf("unknown rule type %q", kind)
}
