package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/autofix"
	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/rebase"
	"github.com/starford/chainval/internal/validation"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" json ", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v", tt.in, err)
			continue
		}
		if err != nil && !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("ParseFormat(%q) err = %v, want ErrInvalidInput", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleReport() *validation.Report {
	return validation.NewReport(
		validation.Issue{RuleID: "mode-required", Kind: validation.KindPropertyRequired, Severity: validation.SeverityError,
			Section: "web", Message: "Project web has no mode", AutoFixable: true},
		validation.Issue{RuleID: "commented-sections", Kind: validation.KindCommentedSectionValidation,
			Severity: validation.SeverityInfo, Section: "legacy", Message: "Project legacy is commented out"},
		validation.Issue{RuleID: "required-sections", Kind: validation.KindRequiredSections,
			Severity: validation.SeverityWarning, Message: "Missing section core"},
	)
}

func TestIssues_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := Issues(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"SEVERITY", "Project web has no mode (fixable)", "legacy", "mode-required",
		"1 error(s), 1 warning(s), 1 info",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Model-wide issues show a dash in the section column.
	if !strings.Contains(out, "Warning   -") {
		t.Errorf("model-wide issue not marked:\n%s", out)
	}
}

func TestIssues_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = Issues(&buf, validation.NewReport())
	if buf.String() != "No issues found.\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestOutcome(t *testing.T) {
	out := &chainservice.Outcome{
		Path:    "release.properties",
		Initial: sampleReport(),
		Final:   validation.NewReport(),
		Fix: &autofix.Result{Attempted: 2, Changed: 2, Actions: []autofix.Action{
			{RuleID: "mode-required", Section: "web", Property: "mode", Op: autofix.OpSet, Value: "branch"},
			{RuleID: "tag-forbidden", Section: "tools", Property: "branch", Op: autofix.OpDelete},
		}},
		Written: true,
	}

	var buf bytes.Buffer
	if err := Outcome(&buf, FormatText, out); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	for _, want := range []string{
		"Chain file: release.properties",
		"Auto-fix: 2 attempted, 2 changed (written)",
		"web: mode=branch [mode-required]",
		"tools: removed branch [tag-forbidden]",
		"No issues found.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	buf.Reset()
	if err := Outcome(&buf, FormatJSON, out); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Path  string `json:"path"`
		Final struct {
			Valid bool `json:"valid"`
		} `json:"final"`
		Initial struct {
			Errors int `json:"errors"`
		} `json:"initial"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output: %v\n%s", err, buf.String())
	}
	if decoded.Path != "release.properties" || !decoded.Final.Valid || decoded.Initial.Errors != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestRebase(t *testing.T) {
	out := &chainservice.RebaseOutcome{
		Result: rebase.Result{From: "20000", To: "20500", Projects: []string{"core", "web"}, Updated: 3},
		Path:   "release.properties",
		DryRun: true,
	}
	var buf bytes.Buffer
	_ = Rebase(&buf, FormatText, out)
	for _, want := range []string{"Version: 20000 -> 20500", "Projects: core, web", "Updated: 3 (dry run, not written)"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	out.DryRun = false
	buf.Reset()
	_ = Rebase(&buf, FormatText, out)
	if !strings.Contains(buf.String(), "(unchanged)") {
		t.Errorf("unwritten rebase:\n%s", buf.String())
	}
}

func TestVersions(t *testing.T) {
	var buf bytes.Buffer
	_ = Versions(&buf, FormatText, &chainservice.Versions{Projects: []rebase.ProjectVersion{}})
	if buf.String() != "Current version: (none)\n" {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	_ = Versions(&buf, FormatText, &chainservice.Versions{
		Current: "20000", Found: true,
		Projects: []rebase.ProjectVersion{{Project: "core", Key: "tag", Version: "20000"}},
	})
	if !strings.Contains(buf.String(), "core") || !strings.Contains(buf.String(), "Current version: 20000") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestRules(t *testing.T) {
	rules := []validation.Rule{
		{Descriptor: validation.Descriptor{ID: "ok", Kind: validation.KindPropertyRequired, Severity: validation.SeverityError, Enabled: true}},
		{Descriptor: validation.Descriptor{ID: "off", Kind: validation.KindRegexValidation, Severity: validation.SeverityWarning}},
		{Descriptor: validation.Descriptor{ID: "bad", Kind: "Nope", Severity: validation.SeverityError, Enabled: true},
			Err: errors.New("unknown rule type")},
	}

	var buf bytes.Buffer
	_ = Rules(&buf, FormatText, rules)
	text := buf.String()
	for _, want := range []string{"enabled", "disabled", "broken: unknown rule type"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	buf.Reset()
	_ = Rules(&buf, FormatJSON, rules)
	var decoded struct {
		Rules []ruleJSON `json:"rules"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Rules) != 3 || !decoded.Rules[0].AutoFixable || decoded.Rules[2].Error == "" {
		t.Errorf("decoded = %+v", decoded.Rules)
	}
}

func TestRuns(t *testing.T) {
	var buf bytes.Buffer
	_ = Runs(&buf, FormatText, nil)
	if buf.String() != "No runs recorded.\n" {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	_ = Runs(&buf, FormatJSON, nil)
	if !strings.Contains(buf.String(), `"runs": []`) {
		t.Errorf("empty json = %s", buf.String())
	}

	rows := []history.RunRow{{ID: 7, Path: "a.properties", Valid: true, Fixed: 2, CreatedAt: time.Now()}}
	buf.Reset()
	_ = Runs(&buf, FormatText, rows)
	if !strings.Contains(buf.String(), "a.properties") || !strings.Contains(buf.String(), "true") {
		t.Errorf("output:\n%s", buf.String())
	}
}
