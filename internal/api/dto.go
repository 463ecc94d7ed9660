package api

import (
	"time"

	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/models"
	"github.com/starford/chainval/internal/validation"
)

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	Path    string `json:"path" example:"release.properties" validate:"required"`
	AutoFix bool   `json:"autoFix" example:"false"`
}

// RebaseRequest is the request body for POST /rebase. IfMatch may also be
// sent as an If-Match header.
type RebaseRequest struct {
	Path       string   `json:"path" example:"release.properties" validate:"required"`
	NewVersion string   `json:"newVersion" example:"20500" validate:"required"`
	Projects   []string `json:"projects" example:"core,web"`
	DryRun     bool     `json:"dryRun" example:"false"`
	IfMatch    string   `json:"ifMatch,omitempty" example:"abc123..."`
}

// ValidateResponse is the validation outcome (aliased from the domain layer).
type ValidateResponse = chainservice.Outcome

// RebaseResponse is the rebase outcome (aliased from the domain layer).
type RebaseResponse = chainservice.RebaseOutcome

// VersionsResponse is the version analysis (aliased from the domain layer).
type VersionsResponse = chainservice.Versions

// ChainListResponse wraps chain file listings.
type ChainListResponse struct {
	Chains []models.ChainStatus `json:"chains" validate:"required"`
}

// RuleDTO describes one configured rule.
type RuleDTO struct {
	ID            string              `json:"ruleId" example:"mode-required" validate:"required"`
	Kind          validation.Kind     `json:"ruleType" example:"PropertyRequired" validate:"required"`
	Severity      validation.Severity `json:"severity" example:"Error" validate:"required"`
	Enabled       bool                `json:"enabled"`
	Description   string              `json:"description,omitempty"`
	Configuration validation.Params   `json:"configuration,omitempty"`
	AutoFixable   bool                `json:"autoFixable"`
	Error         string              `json:"error,omitempty"`
}

// RulesResponse wraps the configured rule set.
type RulesResponse struct {
	Rules  []RuleDTO `json:"rules" validate:"required"`
	Errors []string  `json:"errors"`
}

// RunDTO is one recorded validation run.
type RunDTO struct {
	ID        int64     `json:"id" example:"7" validate:"required"`
	Path      string    `json:"path" example:"release.properties" validate:"required"`
	Checksum  string    `json:"checksum" example:"abc123..."`
	Valid     bool      `json:"valid"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	Infos     int       `json:"infos"`
	Fixed     int       `json:"fixed"`
	CreatedAt time.Time `json:"created_at"`
}

// RunListResponse wraps run listings.
type RunListResponse struct {
	Runs []RunDTO `json:"runs" validate:"required"`
}

// RunDetailResponse is one run with its issues.
type RunDetailResponse struct {
	RunDTO
	Issues []validation.Issue `json:"issues" validate:"required"`
}

func toRunDTO(r history.RunRow) RunDTO {
	return RunDTO{
		ID:        r.ID,
		Path:      r.Path,
		Checksum:  r.Checksum,
		Valid:     r.Valid,
		Errors:    r.Errors,
		Warnings:  r.Warnings,
		Infos:     r.Infos,
		Fixed:     r.Fixed,
		CreatedAt: r.CreatedAt,
	}
}

func toRuleDTO(r validation.Rule) RuleDTO {
	d := RuleDTO{
		ID:            r.ID,
		Kind:          r.Kind,
		Severity:      r.Severity,
		Enabled:       r.Enabled,
		Description:   r.Description,
		Configuration: r.Params,
		AutoFixable:   r.Kind.AutoFixable(),
	}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	return d
}
