// Package validation is a data-driven rule engine for chain files. Rules are
// described by external descriptors, compiled once into typed checks and
// evaluated against a chain.Model.
package validation

import (
	"fmt"
	"strings"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Kind names one of the closed set of rule kinds.
type Kind string

// Rule kinds.
const (
	KindPropertyRequired             Kind = "PropertyRequired"
	KindPropertyValueValidation      Kind = "PropertyValueValidation"
	KindMutuallyExclusive            Kind = "MutuallyExclusive"
	KindRequiredOneOf                Kind = "RequiredOneOf"
	KindRequiredSections             Kind = "RequiredSections"
	KindRegexValidation              Kind = "RegexValidation"
	KindConditionalValidation        Kind = "ConditionalValidation"
	KindDependentProperty            Kind = "DependentProperty"
	KindGlobalCondition              Kind = "GlobalCondition"
	KindVersionRangeValidation       Kind = "VersionRangeValidation"
	KindCommentedSectionValidation   Kind = "CommentedSectionValidation"
	KindGitValidation                Kind = "GitValidation"
	KindVersionConsistencyValidation Kind = "VersionConsistencyValidation"
)

// Kinds lists every known rule kind.
var Kinds = []Kind{
	KindPropertyRequired,
	KindPropertyValueValidation,
	KindMutuallyExclusive,
	KindRequiredOneOf,
	KindRequiredSections,
	KindRegexValidation,
	KindConditionalValidation,
	KindDependentProperty,
	KindGlobalCondition,
	KindVersionRangeValidation,
	KindCommentedSectionValidation,
	KindGitValidation,
	KindVersionConsistencyValidation,
}

// AutoFixable reports whether issues of this kind are marked auto-fixable.
func (k Kind) AutoFixable() bool {
	switch k {
	case KindRegexValidation, KindVersionRangeValidation, KindCommentedSectionValidation,
		KindGitValidation, KindVersionConsistencyValidation:
		return false
	}
	return true
}

// Severity of an issue.
type Severity string

// Severities.
const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
	SeverityInfo    Severity = "Info"
)

// ParseSeverity normalises case ("error" → Error). Unknown values are returned as-is.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info":
		return SeverityInfo
	}
	return Severity(s)
}

// Descriptor is one externally authored validation rule.
type Descriptor struct {
	ID          string   `yaml:"ruleId" json:"ruleId"`
	Kind        Kind     `yaml:"ruleType" json:"ruleType"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Params      Params   `yaml:"configuration" json:"configuration,omitempty"`
}

// UnmarshalYAML decodes a descriptor. Rules are enabled unless stated otherwise.
func (d *Descriptor) UnmarshalYAML(value *yaml.Node) error {
	type raw Descriptor
	r := raw{Enabled: true}
	if err := value.Decode(&r); err != nil {
		return err
	}
	r.Severity = ParseSeverity(string(r.Severity))
	*d = Descriptor(r)
	return nil
}

// Validate checks the descriptor envelope; parameters are checked by Compile.
func (d Descriptor) Validate() error {
	kinds := make([]interface{}, len(Kinds))
	for i, k := range Kinds {
		kinds[i] = k
	}
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.ID, ozzo.Required),
		ozzo.Field(&d.Kind, ozzo.Required, ozzo.In(kinds...).Error("unknown rule type")),
		ozzo.Field(&d.Severity, ozzo.Required,
			ozzo.In(SeverityError, SeverityWarning, SeverityInfo).Error("must be Error, Warning or Info")),
	)
}

// Params holds kind-specific rule parameters. Values are scalars or lists.
type Params map[string]any

// String returns a scalar parameter. Absent parameters read as "", and a list
// reads as its first element.
func (p Params) String(name string) string {
	switch v := p[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case []any:
		if len(v) > 0 && v[0] != nil {
			return fmt.Sprint(v[0])
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns a list parameter. Absent parameters read as an empty list,
// and a non-blank scalar reads as a one-element list.
func (p Params) Strings(name string) []string {
	switch v := p[name].(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	default:
		return []string{fmt.Sprint(v)}
	}
}
