package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/chainval/internal/chainservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *chainservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *chainservice.Service) *Handler {
	return &Handler{svc: svc}
}

// chainPath extracts the chain path from the URL (everything after /api/chains/).
// Supports encoded slashes from OpenAPI clients (e.g. releases%2F2024.properties).
func chainPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListChains handles GET /api/chains.
//
//	@Summary		List chain files with their last validation run
//	@Tags			chains
//	@Produce		json
//	@Success		200	{object}	ChainListResponse
//	@Security		BearerAuth
//	@Router			/chains [get]
func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list chains", err)
		return
	}
	writeJSON(w, http.StatusOK, ChainListResponse{Chains: items})
}

// GetChain handles GET /api/chains/*.
//
//	@Summary		Get the parsed model of a chain file
//	@Tags			chains
//	@Produce		json
//	@Param			path	path		string	true	"Chain file path"
//	@Success		200		{object}	object
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chains/{path} [get]
func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	path := chainPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	m, err := h.svc.Model(r.Context(), path)
	if err != nil {
		writeError(w, "get chain", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Validate handles POST /api/validate.
//
//	@Summary		Validate a chain file, optionally applying auto-fixes
//	@Tags			validation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ValidateRequest	true	"Chain to validate"
//	@Success		200		{object}	ValidateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	out, err := h.svc.Validate(r.Context(), req.Path, req.AutoFix)
	if err != nil {
		writeError(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Versions handles GET /api/versions.
//
//	@Summary		Current version and per-project versions of a chain
//	@Tags			rebase
//	@Produce		json
//	@Param			path	query		string	true	"Chain file path"
//	@Success		200		{object}	VersionsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions [get]
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	v, err := h.svc.Versions(r.Context(), path)
	if err != nil {
		writeError(w, "versions", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Rebase handles POST /api/rebase.
//
//	@Summary		Move a chain to a new version
//	@Tags			rebase
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header	string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	RebaseRequest	true	"Rebase request"
//	@Success		200		{object}	RebaseResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rebase [post]
func (h *Handler) Rebase(w http.ResponseWriter, r *http.Request) {
	var req RebaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" || strings.TrimSpace(req.NewVersion) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and newVersion are required"))
		return
	}
	ifMatch := req.IfMatch
	if ifMatch == "" {
		ifMatch = r.Header.Get("If-Match")
	}

	out, err := h.svc.Rebase(r.Context(), chainservice.RebaseRequest{
		Path:       req.Path,
		NewVersion: req.NewVersion,
		Projects:   req.Projects,
		DryRun:     req.DryRun,
		IfMatch:    ifMatch,
	})
	if err != nil {
		writeError(w, "rebase", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Rules handles GET /api/rules.
//
//	@Summary		List the configured rule set
//	@Tags			validation
//	@Produce		json
//	@Success		200	{object}	RulesResponse
//	@Security		BearerAuth
//	@Router			/rules [get]
func (h *Handler) Rules(w http.ResponseWriter, _ *http.Request) {
	v := h.svc.Validator()
	rules := v.Rules()
	resp := RulesResponse{Rules: make([]RuleDTO, len(rules)), Errors: []string{}}
	for i, r := range rules {
		resp.Rules[i] = toRuleDTO(r)
	}
	for _, err := range v.ConfigErrors() {
		resp.Errors = append(resp.Errors, err.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recorded validation runs, newest first
//	@Tags			history
//	@Produce		json
//	@Param			path	query		string	false	"Chain file path"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	rows, err := h.svc.Runs(r.Context(), q.Get("path"), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	resp := RunListResponse{Runs: make([]RunDTO, len(rows))}
	for i, row := range rows {
		resp.Runs[i] = toRunDTO(row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get one validation run with its issues
//	@Tags			history
//	@Produce		json
//	@Param			id	path		int	true	"Run id"
//	@Success		200	{object}	RunDetailResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid run id"))
		return
	}
	row, issues, err := h.svc.Run(r.Context(), id)
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, RunDetailResponse{RunDTO: toRunDTO(*row), Issues: issues})
}
