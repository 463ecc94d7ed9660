package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/chainval/internal"
	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/history"
	"github.com/starford/chainval/internal/mcpserver"
	"github.com/starford/chainval/internal/report"
	"github.com/starford/chainval/internal/storage"
	"github.com/starford/chainval/internal/validation"
)

func chainFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "chain-file",
		Aliases: []string{"f"},
		Usage:   "Path to the chain file",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: text or json",
		Value: string(report.FormatText),
	}
}

func requireString(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.String(name))
	if v == "" {
		return "", fmt.Errorf("--%s is required: %w", name, apperr.ErrInvalidInput)
	}
	return v, nil
}

// chainService builds a service for one chain file given on the command line.
// The returned close func releases the history database.
func (e *env) chainService(file string) (*chainservice.Service, string, func(), error) {
	store, path, err := internal.ResolveChain(e.cfg, file)
	if err != nil {
		return nil, "", nil, err
	}
	// History is best effort for one-shot commands.
	db, err := internal.OpenHistory(e.cfg)
	if err != nil {
		e.logger.Warn("history unavailable, runs will not be recorded",
			slog.String("history_path", e.cfg.History.Path),
			slog.String("error", err.Error()))
		db = nil
	}
	closeFn := func() {
		if db != nil {
			_ = db.Close()
		}
	}
	v, err := internal.NewValidator(e.cfg, e.rules, e.logger)
	if err != nil {
		closeFn()
		return nil, "", nil, err
	}
	return chainservice.New(store, v, internal.ServiceOptions(db, e.logger)...), path, closeFn, nil
}

func validateCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a chain file against the rule set",
		Flags: []cli.Flag{
			chainFileFlag(),
			&cli.BoolFlag{Name: "auto-fix", Usage: "Repair auto-fixable issues and write the file back"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			file, err := requireString(cmd, "chain-file")
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			svc, path, closeFn, err := e.chainService(file)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Validate(ctx, path, cmd.Bool("auto-fix"))
			if err != nil {
				return err
			}
			if err := report.Outcome(e.stdout, format, out); err != nil {
				return err
			}
			if out.Final.HasErrors() {
				return fail(exitInvalid, "%s: %d error(s) remain", file, out.Final.Count(validation.SeverityError))
			}
			return nil
		},
	}
}

func rebaseCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "rebase",
		Usage: "Move a chain file to a new version",
		Flags: []cli.Flag{
			chainFileFlag(),
			&cli.StringFlag{Name: "new-version", Usage: "Version to move to"},
			&cli.StringSliceFlag{Name: "project", Usage: "Project to rebase (repeatable); all projects when omitted"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Report what would change without writing"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			file, err := requireString(cmd, "chain-file")
			if err != nil {
				return err
			}
			newVersion, err := requireString(cmd, "new-version")
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			svc, path, closeFn, err := e.chainService(file)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Rebase(ctx, chainservice.RebaseRequest{
				Path:       path,
				NewVersion: newVersion,
				Projects:   cmd.StringSlice("project"),
				DryRun:     cmd.Bool("dry-run"),
			})
			if err != nil {
				return err
			}
			return report.Rebase(e.stdout, format, out)
		},
	}
}

func versionsCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "versions",
		Usage: "Show the current version and per-project versions of a chain file",
		Flags: []cli.Flag{chainFileFlag(), formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			file, err := requireString(cmd, "chain-file")
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			svc, path, closeFn, err := e.chainService(file)
			if err != nil {
				return err
			}
			defer closeFn()

			v, err := svc.Versions(ctx, path)
			if err != nil {
				return err
			}
			return report.Versions(e.stdout, format, v)
		},
	}
}

func rulesCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "List the rule set and report broken rule configuration",
		Flags: []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			v, err := internal.NewValidator(e.cfg, e.rules, e.logger)
			if err != nil {
				return err
			}
			if err := report.Rules(e.stdout, format, v.Rules()); err != nil {
				return err
			}
			if errs := v.ConfigErrors(); len(errs) > 0 {
				return fail(exitInvalid, "%d rule(s) have invalid configuration", len(errs))
			}
			return nil
		},
	}
}

func historyCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded validation runs",
		Flags: []cli.Flag{
			chainFileFlag(),
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: history.DefaultLimit},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			if !e.cfg.History.Enabled {
				return fmt.Errorf("history is disabled in the configuration: %w", apperr.ErrInvalidInput)
			}
			db, err := internal.OpenHistory(e.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			path := ""
			if file := strings.TrimSpace(cmd.String("chain-file")); file != "" {
				if _, path, err = internal.ResolveChain(e.cfg, file); err != nil {
					return err
				}
			}
			rows, err := db.ListRuns(path, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			return report.Runs(e.stdout, format, rows)
		},
	}
}

func serveCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with live validation of the chains directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx,
				internal.WithConfig(e.cfg),
				internal.WithRules(e.rules),
				internal.WithVersion(version),
			); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve chainval tools over MCP on stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// stdout carries the protocol; logs go to stderr.
			e, err := setup(cmd, stdout, stderr)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(e.cfg.Chains.Root, 0o755); err != nil {
				return fmt.Errorf("create chains dir: %w", err)
			}
			store, err := storage.NewFS(e.cfg.Chains.Root)
			if err != nil {
				return err
			}
			db, err := internal.OpenHistory(e.cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			v, err := internal.NewValidator(e.cfg, e.rules, e.logger)
			if err != nil {
				return err
			}

			svc := chainservice.New(store, v, internal.ServiceOptions(db, e.logger)...)
			e.logger.Info("mcp server starting", slog.String("chains_root", store.Root()))
			return mcpserver.New(svc, version).ServeStdio()
		},
	}
}
