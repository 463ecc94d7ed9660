// Package testutil provides shared test helpers for chain directories and history databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/storage"
	"github.com/starford/chainval/internal/validation"
)

// SampleChain passes the default rule set with a single Info issue for the
// commented legacy project.
const SampleChain = `# release chain
[global]
version=7.2
version.binary=20000
devs.version.binary=20001
description=Spring release

[core]
mode=tag
tag=20000
tests.unit=true

[web]
mode=branch
branch=develop

#[legacy]
#mode=tag
#tag=19000
`

// BrokenChain has three auto-fixable errors: web has no mode, tools sets
// both tag and branch and forked has no branch.
const BrokenChain = `[global]
version.binary=20000
devs.version.binary=20001

[core]
mode=tag
tag=20000

[web]
branch=develop

[tools]
mode=tag
tag=20000
branch=main

[forked]
mode=fork
fork=git@example.com:org/forked.git
`

// TestDB creates a temporary SQLite history database that is automatically cleaned up.
func TestDB(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "chainval-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestChains creates a temporary chains directory with a storage.Provider.
func TestChains(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteChain writes content to name under dir.
func WriteChain(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// DefaultValidator returns a validator over the built-in rule set.
func DefaultValidator(t *testing.T) *validation.Validator {
	t.Helper()
	rules, err := validation.DefaultRules()
	if err != nil {
		t.Fatal(err)
	}
	return validation.New(rules)
}
