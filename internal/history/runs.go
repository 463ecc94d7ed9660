package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/validation"
)

// DefaultLimit bounds ListRuns when no positive limit is given.
const DefaultLimit = 50

// RunRow represents a row in the runs table.
type RunRow struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Valid     bool      `json:"valid"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	Infos     int       `json:"infos"`
	Fixed     int       `json:"fixed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRunRow summarises a report for path.
func NewRunRow(path, checksum string, report *validation.Report, fixed int) RunRow {
	return RunRow{
		Path:      path,
		Checksum:  checksum,
		Valid:     !report.HasErrors(),
		Errors:    report.Count(validation.SeverityError),
		Warnings:  report.Count(validation.SeverityWarning),
		Infos:     report.Count(validation.SeverityInfo),
		Fixed:     fixed,
		CreatedAt: time.Now().UTC(),
	}
}

const runColumns = `id, path, checksum, valid, errors, warnings, infos, fixed, created_at`

// RecordRun inserts a run and its issues within a transaction and returns the run id.
func (db *DB) RecordRun(run RunRow, issues []validation.Issue) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO runs (path, checksum, valid, errors, warnings, infos, fixed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Path, run.Checksum, run.Valid, run.Errors, run.Warnings, run.Infos, run.Fixed, run.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: run id: %w", err)
	}

	if len(issues) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO issues (run_id, seq, rule_id, kind, severity, section, message, auto_fixable, suggested)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("history: prepare issue insert: %w", err)
		}
		defer stmt.Close()
		for i, is := range issues {
			if _, err := stmt.Exec(id, i, is.RuleID, string(is.Kind), string(is.Severity),
				is.Section, is.Message, is.AutoFixable, is.SuggestedFix); err != nil {
				return 0, fmt.Errorf("history: insert issue: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. An empty path lists
// runs of every chain file.
func (db *DB) ListRuns(path string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if path != "" {
		q += ` WHERE path = ?`
		args = append(args, path)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run with its issues in recorded order.
func (db *DB) GetRun(id int64) (*RunRow, []validation.Issue, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("history: run %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.conn.Query(`
		SELECT rule_id, kind, severity, section, message, auto_fixable, suggested
		FROM issues WHERE run_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("history: run issues: %w", err)
	}
	defer rows.Close()

	issues := []validation.Issue{}
	for rows.Next() {
		var is validation.Issue
		var kind, severity string
		if err := rows.Scan(&is.RuleID, &kind, &severity, &is.Section, &is.Message, &is.AutoFixable, &is.SuggestedFix); err != nil {
			return nil, nil, fmt.Errorf("history: scan issue: %w", err)
		}
		is.Kind = validation.Kind(kind)
		is.Severity = validation.Severity(severity)
		issues = append(issues, is)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &r, issues, nil
}

// LatestRuns returns the newest run of every recorded path.
func (db *DB) LatestRuns() (map[string]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT ` + runColumns + ` FROM runs
		WHERE id IN (SELECT MAX(id) FROM runs GROUP BY path)
	`)
	if err != nil {
		return nil, fmt.Errorf("history: latest runs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]RunRow)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out[r.Path] = r
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRow, error) {
	var r RunRow
	err := s.Scan(&r.ID, &r.Path, &r.Checksum, &r.Valid, &r.Errors, &r.Warnings, &r.Infos, &r.Fixed, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("history: scan run: %w", err)
	}
	return r, nil
}
