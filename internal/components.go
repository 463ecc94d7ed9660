package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/storage"
	"github.com/starford/chainval/internal/validation"
)

// NewValidator compiles rules, loading them from the configured rules path
// when rules is nil. Broken rule configuration is logged, not fatal.
func NewValidator(cfg *Config, rules []validation.Descriptor, logger *slog.Logger) (*validation.Validator, error) {
	if rules == nil {
		var err error
		if rules, err = validation.LoadRules(cfg.Rules.Path); err != nil {
			return nil, err
		}
	}
	return validation.New(rules, validation.WithLogger(logger)), nil
}

// OpenHistory opens the history database. It returns nil when history is disabled.
func OpenHistory(cfg *Config) (*history.DB, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	db, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}
	return db, nil
}

// ServiceOptions returns the chain service options for an optional history
// database and logger.
func ServiceOptions(db *history.DB, logger *slog.Logger) []chainservice.Option {
	opts := []chainservice.Option{chainservice.WithLogger(logger)}
	if db != nil {
		opts = append(opts, chainservice.WithHistory(db))
	}
	return opts
}

// ResolveChain maps a chain file given on the command line to a storage
// provider and the path the service uses for it. Files under the chains
// root keep their root-relative path so that history entries match the
// server's; other files are addressed by name within their own directory.
func ResolveChain(cfg *Config, file string) (storage.Provider, string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", file, err)
	}
	if root, err := filepath.Abs(cfg.Chains.Root); err == nil {
		if rel, err := filepath.Rel(root, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			if store, err := storage.NewFS(root); err == nil {
				return store, filepath.ToSlash(rel), nil
			}
		}
	}
	store, name, err := storage.ForFile(abs)
	if err != nil {
		return nil, "", err
	}
	return store, name, nil
}
