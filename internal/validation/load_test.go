package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/chainval/internal/apperr"
)

func TestDefaultRules_Compile(t *testing.T) {
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("no default rules")
	}
	v := New(rules)
	if errs := v.ConfigErrors(); len(errs) != 0 {
		t.Errorf("default rules have config errors: %v", errs)
	}
	seen := make(map[Kind]bool)
	for _, r := range v.Rules() {
		seen[r.Kind] = true
	}
	for _, k := range Kinds {
		if !seen[k] {
			t.Errorf("no default rule of kind %s", k)
		}
	}
}

func TestParseRules_Forms(t *testing.T) {
	wrapped := []byte(`{"rules":[{"ruleId":"a","ruleType":"GitValidation","severity":"error"}]}`)
	bare := []byte(`
- ruleId: a
  ruleType: GitValidation
  severity: warning
  enabled: false
  configuration:
    ErrorMessage: bad fork
`)

	rules, err := ParseRules(wrapped)
	if err != nil {
		t.Fatalf("ParseRules(wrapped): %v", err)
	}
	if len(rules) != 1 || rules[0].Severity != SeverityError || !rules[0].Enabled {
		t.Errorf("wrapped = %+v", rules)
	}

	rules, err = ParseRules(bare)
	if err != nil {
		t.Fatalf("ParseRules(bare): %v", err)
	}
	if len(rules) != 1 || rules[0].Severity != SeverityWarning || rules[0].Enabled {
		t.Errorf("bare = %+v", rules)
	}
	if got := rules[0].Params.String("ErrorMessage"); got != "bad fork" {
		t.Errorf("ErrorMessage = %q, want %q", got, "bad fork")
	}
}

func TestParseRules_Invalid(t *testing.T) {
	_, err := ParseRules([]byte(`{"rules": [`))
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRules(filepath.Join(dir, "nope.json"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing file: err = %v, want ErrNotFound", err)
	}

	path := filepath.Join(dir, "rules.yaml")
	content := "rules:\n  - ruleId: mode\n    ruleType: PropertyRequired\n    severity: Error\n    configuration:\n      PropertyName: mode\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "mode" {
		t.Errorf("rules = %+v", rules)
	}

	defaults, err := LoadRules("")
	if err != nil || len(defaults) == 0 {
		t.Errorf("LoadRules(\"\") = %d rules, %v", len(defaults), err)
	}
}
