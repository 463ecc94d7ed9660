// Package chainservice coordinates chain file storage, validation, auto-fix,
// rebase and run history.
package chainservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/autofix"
	"github.com/starford/chainval/internal/chain"
	"github.com/starford/chainval/internal/checksum"
	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/models"
	"github.com/starford/chainval/internal/rebase"
	"github.com/starford/chainval/internal/storage"
	"github.com/starford/chainval/internal/validation"
	"github.com/starford/chainval/internal/watch"
)

// Notification kinds.
const (
	EventValidated = "validated"
	EventRebased   = "rebased"
)

// Notifier receives a notification after a chain file was validated or rebased.
type Notifier func(kind, path string, data any)

// Option configures a Service.
type Option func(*Service)

// WithHistory records every validation run in h.
func WithHistory(h history.Store) Option {
	return func(s *Service) { s.history = h }
}

// WithNotifier sets the notification callback.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Outcome is the result of validating one chain file.
type Outcome struct {
	Path     string             `json:"path"`
	Checksum string             `json:"checksum"`
	Initial  *validation.Report `json:"initial"`
	Final    *validation.Report `json:"final"`
	Fix      *autofix.Result    `json:"fix,omitempty"`
	Written  bool               `json:"written"`
	RunID    int64              `json:"run_id,omitempty"`
}

// RebaseRequest describes a rebase of one chain file. IfMatch, when set,
// must equal the checksum of the file on disk.
type RebaseRequest struct {
	Path       string
	NewVersion string
	Projects   []string
	DryRun     bool
	IfMatch    string
}

// RebaseOutcome is the result of a rebase.
type RebaseOutcome struct {
	rebase.Result
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	DryRun   bool   `json:"dry_run"`
	Written  bool   `json:"written"`
}

// Versions describes the current version of a chain and its projects.
type Versions struct {
	Path     string                  `json:"path"`
	Current  string                  `json:"current"`
	Found    bool                    `json:"found"`
	Projects []rebase.ProjectVersion `json:"projects"`
}

// Service coordinates storage, validation and history operations.
type Service struct {
	store     storage.Provider
	validator *validation.Validator
	fixer     *autofix.Fixer
	history   history.Store
	notify    Notifier
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a chain service.
func New(store storage.Provider, v *validation.Validator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: v,
		fixer:     autofix.New(v.Rules()),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validator returns the validator the service runs.
func (s *Service) Validator() *validation.Validator { return s.validator }

// lock serialises work on one path.
func (s *Service) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) load(path string) (*chain.Model, []byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := chain.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, data, nil
}

// Model reads and parses a chain file.
func (s *Service) Model(ctx context.Context, path string) (*chain.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, _, err := s.load(path)
	return m, err
}

// Validate validates a chain file. With autoFix, fixable issues are repaired,
// the file is written back when something changed, and the result is
// re-validated.
func (s *Service) Validate(ctx context.Context, path string, autoFix bool) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.lock(path)
	defer unlock()

	m, data, err := s.load(path)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Path: path, Checksum: checksum.Sum(data)}
	out.Initial = s.validator.Validate(m)
	out.Final = out.Initial

	if autoFix {
		fixable := out.Initial.Fixable()
		res := s.fixer.Apply(m, fixable)
		out.Fix = &res
		if res.Changed > 0 {
			fixed := m.Bytes()
			if err := s.store.Write(path, fixed); err != nil {
				return nil, err
			}
			out.Written = true
			out.Checksum = checksum.Sum(fixed)
			out.Final = s.validator.Validate(m)
		}
		s.logger.Info("auto-fix applied",
			slog.String("chain_file", path),
			slog.Int("attempted", res.Attempted),
			slog.Int("changed", res.Changed))
	}

	if s.history != nil {
		fixed := 0
		if out.Fix != nil {
			fixed = out.Fix.Changed
		}
		id, err := s.history.RecordRun(history.NewRunRow(path, out.Checksum, out.Final, fixed), out.Final.Issues())
		if err != nil {
			s.logger.Warn("record run failed", slog.String("chain_file", path), slog.String("error", err.Error()))
		} else {
			out.RunID = id
		}
	}

	s.logger.Debug("chain validated",
		slog.String("chain_file", path),
		slog.Int("errors", out.Final.Count(validation.SeverityError)),
		slog.Int("warnings", out.Final.Count(validation.SeverityWarning)))

	s.emit(EventValidated, path, map[string]any{
		"path":     path,
		"checksum": out.Checksum,
		"valid":    !out.Final.HasErrors(),
		"errors":   out.Final.Count(validation.SeverityError),
		"warnings": out.Final.Count(validation.SeverityWarning),
		"written":  out.Written,
	})
	return out, nil
}

// Rebase moves a chain file to a new version and writes it back unless the
// request is a dry run or nothing changed.
func (s *Service) Rebase(ctx context.Context, req RebaseRequest) (*RebaseOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.lock(req.Path)
	defer unlock()

	m, data, err := s.load(req.Path)
	if err != nil {
		return nil, err
	}
	cs := checksum.Sum(data)
	if req.IfMatch != "" && !checksum.Matches(data, req.IfMatch) {
		return nil, fmt.Errorf("%s: checksum mismatch: %w", req.Path, apperr.ErrConflict)
	}

	res, err := rebase.Rebase(m, req.NewVersion, req.Projects)
	if err != nil {
		return nil, err
	}
	out := &RebaseOutcome{Result: res, Path: req.Path, Checksum: cs, DryRun: req.DryRun}

	if !req.DryRun && res.Updated > 0 {
		rebased := m.Bytes()
		if err := s.store.Write(req.Path, rebased); err != nil {
			return nil, err
		}
		out.Written = true
		out.Checksum = checksum.Sum(rebased)
	}

	s.logger.Info("chain rebased",
		slog.String("chain_file", req.Path),
		slog.String("from", res.From),
		slog.String("to", res.To),
		slog.Int("updated", res.Updated),
		slog.Bool("dry_run", req.DryRun))

	if out.Written {
		s.emit(EventRebased, req.Path, map[string]any{
			"path":    req.Path,
			"from":    res.From,
			"to":      res.To,
			"updated": res.Updated,
		})
	}
	return out, nil
}

// Versions reports the current version and the versions of every project.
// A chain without a current version is not an error here; Found is false.
func (s *Service) Versions(ctx context.Context, path string) (*Versions, error) {
	m, err := s.Model(ctx, path)
	if err != nil {
		return nil, err
	}
	v := &Versions{Path: path, Projects: rebase.AnalyzeProjectVersions(m)}
	if v.Projects == nil {
		v.Projects = []rebase.ProjectVersion{}
	}
	if cur, err := rebase.ExtractCurrentVersion(m); err == nil {
		v.Current, v.Found = cur, true
	}
	return v, nil
}

// List returns every chain file with its last recorded run.
func (s *Service) List(ctx context.Context) ([]models.ChainStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	var latest map[string]history.RunRow
	if s.history != nil {
		if latest, err = s.history.LatestRuns(); err != nil {
			return nil, err
		}
	}
	out := make([]models.ChainStatus, len(files))
	for i, f := range files {
		out[i] = models.ChainStatus{ChainFile: f, Stale: true}
		if r, ok := latest[f.Path]; ok {
			out[i].LastRun = &models.RunStatus{
				RunID:     r.ID,
				Checksum:  r.Checksum,
				Valid:     r.Valid,
				Errors:    r.Errors,
				Warnings:  r.Warnings,
				CreatedAt: r.CreatedAt,
			}
			out[i].Stale = r.Checksum != f.Checksum
		}
	}
	return out, nil
}

// Runs lists recorded runs, newest first. Without history the list is empty.
func (s *Service) Runs(ctx context.Context, path string, limit int) ([]history.RunRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []history.RunRow{}, nil
	}
	return s.history.ListRuns(path, limit)
}

// Run returns one recorded run with its issues.
func (s *Service) Run(ctx context.Context, id int64) (*history.RunRow, []validation.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if s.history == nil {
		return nil, nil, fmt.Errorf("run %d: %w", id, apperr.ErrNotFound)
	}
	return s.history.GetRun(id)
}

// Sweep validates every chain file whose content changed since its last
// recorded run. Failures are logged and do not stop the sweep.
func (s *Service) Sweep(ctx context.Context) error {
	files, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.Stale {
			continue
		}
		if _, err := s.Validate(ctx, f.Path, false); err != nil {
			s.logger.Warn("sweep: validate failed", slog.String("chain_file", f.Path), slog.String("error", err.Error()))
		}
	}
	return nil
}

// HandleChange reacts to a file change reported by the watcher.
func (s *Service) HandleChange(ctx context.Context, kind, path string) {
	s.emit(kind, path, nil)
	if kind == watch.Deleted {
		return
	}
	if _, err := s.Validate(ctx, path, false); err != nil {
		s.logger.Warn("validate on change failed", slog.String("chain_file", path), slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind, path string, data any) {
	if s.notify != nil {
		s.notify(kind, path, data)
	}
}
