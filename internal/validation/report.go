package validation

import "encoding/json"

// EngineSection is the synthetic section that rule execution failures are attributed to.
const EngineSection = "_engine"

// Issue is a single finding. Section is empty for model-wide findings.
type Issue struct {
	RuleID       string   `json:"ruleId"`
	Kind         Kind     `json:"ruleType"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	Section      string   `json:"section,omitempty"`
	AutoFixable  bool     `json:"autoFixable"`
	SuggestedFix string   `json:"suggestedFix,omitempty"`
}

// Report is the ordered list of issues produced by one validation pass.
type Report struct {
	issues []Issue
}

// NewReport returns a report holding issues.
func NewReport(issues ...Issue) *Report {
	return &Report{issues: append([]Issue(nil), issues...)}
}

// Add appends issues.
func (r *Report) Add(issues ...Issue) {
	r.issues = append(r.issues, issues...)
}

// Merge appends every issue of other.
func (r *Report) Merge(other *Report) {
	if other != nil {
		r.issues = append(r.issues, other.issues...)
	}
}

// Issues returns a copy of the issues in order.
func (r *Report) Issues() []Issue {
	return append([]Issue(nil), r.issues...)
}

// Len returns the number of issues.
func (r *Report) Len() int { return len(r.issues) }

// IsValid reports whether the report holds no issue at all.
func (r *Report) IsValid() bool { return len(r.issues) == 0 }

// HasErrors reports whether any issue has Error severity.
func (r *Report) HasErrors() bool { return r.Count(SeverityError) > 0 }

// Count returns the number of issues with severity sev.
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, is := range r.issues {
		if is.Severity == sev {
			n++
		}
	}
	return n
}

// Fixable returns the auto-fixable issues in order.
func (r *Report) Fixable() []Issue {
	var out []Issue
	for _, is := range r.issues {
		if is.AutoFixable {
			out = append(out, is)
		}
	}
	return out
}

// MarshalJSON encodes the report with its severity counts.
func (r *Report) MarshalJSON() ([]byte, error) {
	issues := r.issues
	if issues == nil {
		issues = []Issue{}
	}
	return json.Marshal(struct {
		Valid    bool    `json:"valid"`
		Errors   int     `json:"errors"`
		Warnings int     `json:"warnings"`
		Infos    int     `json:"infos"`
		Issues   []Issue `json:"issues"`
	}{r.IsValid(), r.Count(SeverityError), r.Count(SeverityWarning), r.Count(SeverityInfo), issues})
}
