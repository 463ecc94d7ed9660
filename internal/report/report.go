// Package report renders validation outcomes, rebase results, rule sets and
// run history for the console, as aligned text or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/autofix"
	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/validation"
)

// Format selects the output rendering.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json" (case-insensitive). Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	}
	return "", fmt.Errorf("report: unknown format %q: %w", s, apperr.ErrInvalidInput)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Outcome renders a validation outcome.
func Outcome(w io.Writer, f Format, out *chainservice.Outcome) error {
	if f == FormatJSON {
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "Chain file: %s\n", out.Path)
	if out.Fix != nil {
		fmt.Fprintf(w, "Auto-fix: %d attempted, %d changed", out.Fix.Attempted, out.Fix.Changed)
		if out.Written {
			fmt.Fprint(w, " (written)")
		}
		fmt.Fprintln(w)
		for _, a := range out.Fix.Actions {
			target := a.Section
			if target == "" {
				target = "global"
			}
			if a.Op == autofix.OpDelete {
				fmt.Fprintf(w, "  - %s: removed %s [%s]\n", target, a.Property, a.RuleID)
			} else {
				fmt.Fprintf(w, "  - %s: %s=%s [%s]\n", target, a.Property, a.Value, a.RuleID)
			}
		}
	}
	return Issues(w, out.Final)
}

// Issues renders a report as an aligned issue table followed by a summary.
func Issues(w io.Writer, r *validation.Report) error {
	if r.IsValid() {
		_, err := fmt.Fprintln(w, "No issues found.")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "SEVERITY\tSECTION\tRULE\tMESSAGE")
	for _, is := range r.Issues() {
		section := is.Section
		if section == "" {
			section = "-"
		}
		msg := is.Message
		if is.AutoFixable {
			msg += " (fixable)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", is.Severity, section, is.RuleID, msg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d error(s), %d warning(s), %d info\n",
		r.Count(validation.SeverityError), r.Count(validation.SeverityWarning), r.Count(validation.SeverityInfo))
	return err
}

// Rebase renders a rebase outcome.
func Rebase(w io.Writer, f Format, out *chainservice.RebaseOutcome) error {
	if f == FormatJSON {
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "Chain file: %s\n", out.Path)
	fmt.Fprintf(w, "Version: %s -> %s\n", out.From, out.To)
	if len(out.Projects) > 0 {
		fmt.Fprintf(w, "Projects: %s\n", strings.Join(out.Projects, ", "))
	}
	status := "written"
	switch {
	case out.DryRun:
		status = "dry run, not written"
	case !out.Written:
		status = "unchanged"
	}
	_, err := fmt.Fprintf(w, "Updated: %d (%s)\n", out.Updated, status)
	return err
}

// Versions renders the version analysis of a chain.
func Versions(w io.Writer, f Format, v *chainservice.Versions) error {
	if f == FormatJSON {
		return writeJSON(w, v)
	}

	current := v.Current
	if !v.Found {
		current = "(none)"
	}
	fmt.Fprintf(w, "Current version: %s\n", current)
	if len(v.Projects) == 0 {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "PROJECT\tKEY\tVERSION")
	for _, p := range v.Projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Project, p.Key, p.Version)
	}
	return tw.Flush()
}

type ruleJSON struct {
	ID          string              `json:"ruleId"`
	Kind        validation.Kind     `json:"ruleType"`
	Severity    validation.Severity `json:"severity"`
	Enabled     bool                `json:"enabled"`
	AutoFixable bool                `json:"autoFixable"`
	Description string              `json:"description,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Rules renders the compiled rule set. Broken rules show their compile error.
func Rules(w io.Writer, f Format, rules []validation.Rule) error {
	if f == FormatJSON {
		out := make([]ruleJSON, len(rules))
		for i, r := range rules {
			out[i] = ruleJSON{
				ID:          r.ID,
				Kind:        r.Kind,
				Severity:    r.Severity,
				Enabled:     r.Enabled,
				AutoFixable: r.Kind.AutoFixable(),
				Description: r.Description,
			}
			if r.Err != nil {
				out[i].Error = r.Err.Error()
			}
		}
		return writeJSON(w, map[string]any{"rules": out})
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "RULE\tTYPE\tSEVERITY\tSTATUS")
	for _, r := range rules {
		status := "enabled"
		switch {
		case r.Err != nil:
			status = "broken: " + r.Err.Error()
		case !r.Enabled:
			status = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Severity, status)
	}
	return tw.Flush()
}

// Runs renders recorded validation runs.
func Runs(w io.Writer, f Format, rows []history.RunRow) error {
	if f == FormatJSON {
		if rows == nil {
			rows = []history.RunRow{}
		}
		return writeJSON(w, map[string]any{"runs": rows})
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTIME\tPATH\tVALID\tERRORS\tWARNINGS\tFIXED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%d\t%d\t%d\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Path, r.Valid, r.Errors, r.Warnings, r.Fixed)
	}
	return tw.Flush()
}
