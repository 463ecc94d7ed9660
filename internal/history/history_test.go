package history

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/validation"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "chainval-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleIssues() []validation.Issue {
	return []validation.Issue{
		{RuleID: "mode-required", Kind: validation.KindPropertyRequired, Severity: validation.SeverityError,
			Section: "core", Message: "no mode", AutoFixable: true, SuggestedFix: "Set mode to default value"},
		{RuleID: "commented-sections", Kind: validation.KindCommentedSectionValidation, Severity: validation.SeverityInfo,
			Section: "legacy", Message: "commented"},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM issues`).Scan(&count); err != nil {
		t.Fatalf("issues table missing: %v", err)
	}
}

func TestRecordAndGetRun(t *testing.T) {
	db := testDB(t)
	issues := sampleIssues()
	run := NewRunRow("release.properties", "abc", validation.NewReport(issues...), 2)

	id, err := db.RecordRun(run, issues)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, gotIssues, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Path != "release.properties" || got.Checksum != "abc" || got.Valid {
		t.Errorf("run = %+v", got)
	}
	if got.Errors != 1 || got.Infos != 1 || got.Fixed != 2 {
		t.Errorf("counts = %d errors, %d infos, %d fixed", got.Errors, got.Infos, got.Fixed)
	}
	if len(gotIssues) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(gotIssues))
	}
	if gotIssues[0] != issues[0] || gotIssues[1] != issues[1] {
		t.Errorf("issues = %+v, want %+v", gotIssues, issues)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := testDB(t)
	_, _, err := db.GetRun(42)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	db := testDB(t)
	for i, path := range []string{"a.properties", "b.properties", "a.properties"} {
		run := RunRow{Path: path, Checksum: string(rune('x' + i)), Valid: true}
		if _, err := db.RecordRun(run, nil); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns("a.properties", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].Checksum != "z" || runs[1].Checksum != "x" {
		t.Errorf("runs = %+v, want newest first", runs)
	}

	all, err := db.ListRuns("", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
}

func TestLatestRuns(t *testing.T) {
	db := testDB(t)
	_, _ = db.RecordRun(RunRow{Path: "a.properties", Checksum: "1"}, nil)
	_, _ = db.RecordRun(RunRow{Path: "a.properties", Checksum: "2", Valid: true}, nil)
	_, _ = db.RecordRun(RunRow{Path: "b.properties", Checksum: "3"}, nil)

	latest, err := db.LatestRuns()
	if err != nil {
		t.Fatalf("LatestRuns: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len = %d, want 2", len(latest))
	}
	if r := latest["a.properties"]; r.Checksum != "2" || !r.Valid {
		t.Errorf("latest a = %+v", r)
	}
}
