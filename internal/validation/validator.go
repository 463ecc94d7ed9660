package validation

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/chainval/internal/chain"
)

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used to report rule execution failures.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// Validator runs a fixed set of compiled rules over chain models. It holds no
// per-run state and may be reused.
type Validator struct {
	rules  []Rule
	errs   []error
	logger *slog.Logger
}

// New compiles descriptors in order. Descriptors that fail to compile are kept
// as broken rules and their errors are available from ConfigErrors. Disabled
// descriptors are listed but never compiled.
func New(descriptors []Descriptor, opts ...Option) *Validator {
	v := &Validator{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(v)
	}
	for _, d := range descriptors {
		if !d.Enabled {
			v.rules = append(v.rules, Rule{Descriptor: d})
			continue
		}
		r, err := Compile(d)
		if err != nil {
			v.errs = append(v.errs, err)
			v.logger.Warn("rule configuration invalid",
				slog.String("rule_id", d.ID),
				slog.String("error", err.Error()))
		}
		v.rules = append(v.rules, r)
	}
	return v
}

// Rules returns the compiled rules in descriptor order.
func (v *Validator) Rules() []Rule {
	return append([]Rule(nil), v.rules...)
}

// Rule returns the rule with the given id.
func (v *Validator) Rule(id string) (Rule, bool) {
	for _, r := range v.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// ConfigErrors returns the compile errors of broken rules.
func (v *Validator) ConfigErrors() []error {
	return append([]error(nil), v.errs...)
}

// Validate runs every enabled rule and concatenates their issues in rule
// order. A failing rule contributes one Error issue and never stops the run.
func (v *Validator) Validate(m *chain.Model) *Report {
	report := &Report{}
	for i := range v.rules {
		r := &v.rules[i]
		if !r.Enabled {
			continue
		}
		issues, err := run(r, m)
		if err != nil {
			v.logger.Warn("rule execution failed",
				slog.String("rule_id", r.ID),
				slog.String("error", err.Error()))
			report.Add(Issue{
				RuleID:   r.ID,
				Kind:     r.Kind,
				Message:  fmt.Sprintf("rule %s failed: %v", r.ID, err),
				Severity: SeverityError,
				Section:  EngineSection,
			})
			continue
		}
		report.Add(issues...)
	}
	return report
}

// run evaluates one rule, converting panics into errors.
func run(r *Rule, m *chain.Model) (issues []Issue, err error) {
	defer func() {
		if p := recover(); p != nil {
			issues, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	if r.Check == nil {
		if r.Err != nil {
			return nil, r.Err
		}
		return nil, fmt.Errorf("rule has no check")
	}
	return r.Check.evaluate(r, m)
}
