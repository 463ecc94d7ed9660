// Package rebase moves a chain to a new binary version: it reads the current
// global version, finds the version-bearing properties of each project and
// rewrites them.
package rebase

import (
	"fmt"
	"strings"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/chain"
)

// ErrVersionNotFound is returned when the chain has no global binary version.
var ErrVersionNotFound = fmt.Errorf("current version: %w", apperr.ErrNotFound)

// ErrInvalidVersion is returned for a blank target version.
var ErrInvalidVersion = fmt.Errorf("new version must not be blank: %w", apperr.ErrInvalidInput)

// ProjectVersion is the version carried by one project.
type ProjectVersion struct {
	Project string `json:"project"`
	Key     string `json:"key"`
	Version string `json:"version"`
}

// Result describes a completed rebase.
type Result struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Projects []string `json:"projects"`
	Updated  int      `json:"updated"`
}

// ExtractCurrentVersion returns the global binary version.
func ExtractCurrentVersion(m *chain.Model) (string, error) {
	if m == nil || m.Global == nil {
		return "", ErrVersionNotFound
	}
	v := strings.TrimSpace(m.Global.BinaryVersion())
	if v == "" {
		return "", ErrVersionNotFound
	}
	return v, nil
}

// IsVersionKey reports whether a section property carries a version.
func IsVersionKey(key string) bool {
	switch key {
	case chain.KeyTag, chain.KeyVersion, chain.KeyBinaryVersion:
		return true
	}
	return strings.HasSuffix(key, "."+chain.KeyVersion) || strings.HasSuffix(key, "."+chain.KeyBinaryVersion)
}

// AnalyzeProjectVersions lists active projects that carry a version, in file
// order. The reported key is tag when present, else the first version key.
func AnalyzeProjectVersions(m *chain.Model) []ProjectVersion {
	var out []ProjectVersion
	for _, s := range m.ActiveSections() {
		key := versionKey(s)
		if key == "" {
			continue
		}
		out = append(out, ProjectVersion{Project: s.Name, Key: key, Version: s.Props.Get(key)})
	}
	return out
}

func versionKey(s *chain.Section) string {
	if s.Props.IsSet(chain.KeyTag) {
		return chain.KeyTag
	}
	for _, k := range s.Props.Keys() {
		if IsVersionKey(k) && s.Props.IsSet(k) {
			return k
		}
	}
	return ""
}

// UpdateSelectedProjects writes newVersion to the global binary version and
// to every version key of the named active projects. Unknown names are
// skipped. It returns the number of values that changed.
func UpdateSelectedProjects(m *chain.Model, newVersion string, projects []string) int {
	updated := 0
	if m.Global != nil && m.Global.Props.Has(chain.KeyBinaryVersion) {
		if m.Global.Props.Set(chain.KeyBinaryVersion, newVersion) {
			updated++
		}
	}
	selected := make(map[string]bool, len(projects))
	for _, p := range projects {
		selected[p] = true
	}
	for _, s := range m.ActiveSections() {
		if !selected[s.Name] {
			continue
		}
		for _, k := range s.Props.Keys() {
			if IsVersionKey(k) && s.Props.IsSet(k) && s.Props.Set(k, newVersion) {
				updated++
			}
		}
	}
	return updated
}

// Rebase moves the chain to newVersion. An empty projects list selects every
// analysed project. The model is untouched when an error is returned.
func Rebase(m *chain.Model, newVersion string, projects []string) (Result, error) {
	newVersion = strings.TrimSpace(newVersion)
	if newVersion == "" {
		return Result{}, ErrInvalidVersion
	}
	from, err := ExtractCurrentVersion(m)
	if err != nil {
		return Result{}, err
	}

	analysed := AnalyzeProjectVersions(m)
	if len(projects) == 0 {
		for _, pv := range analysed {
			projects = append(projects, pv.Project)
		}
	}
	projects = dedupe(projects)

	return Result{
		From:     from,
		To:       newVersion,
		Projects: projects,
		Updated:  UpdateSelectedProjects(m, newVersion, projects),
	}, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
