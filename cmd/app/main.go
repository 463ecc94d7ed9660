package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/chainval/internal"
	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/validation"
	pkgconfig "github.com/starford/chainval/pkg/config"
)

var version = "dev"

// Exit statuses.
const (
	exitOK      = 0
	exitInvalid = 1
	exitFailure = 2
)

// exitError carries an explicit process exit status.
type exitError struct {
	status int
	err    error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(status int, format string, args ...any) error {
	return &exitError{status: status, err: fmt.Errorf(format, args...)}
}

// exitStatus maps a command error to the process exit status: invalid or
// missing input is 1, anything unexpected is 2.
func exitStatus(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.status
	}
	if errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrNotFound) {
		return exitInvalid
	}
	return exitFailure
}

// env is what every command needs: config, logger and rule descriptors.
type env struct {
	cfg    *internal.Config
	logger *slog.Logger
	rules  []validation.Descriptor
	stdout io.Writer
}

// setup loads config and rules from the global flags.
func setup(cmd *cli.Command, stdout, stderr io.Writer) (*env, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %v: %w", err, apperr.ErrInvalidInput)
		}
	} else if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v: %w", err, apperr.ErrInvalidInput)
	}

	if rules := cmd.String("rules"); rules != "" {
		cfg.Rules.Path = rules
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", lvl, apperr.ErrInvalidInput)
		}
	}

	logger := internal.NewLogger(cfg.App, stderr)
	slog.SetDefault(logger)

	rules, err := validation.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, rules: rules, stdout: stdout}, nil
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "chainval",
		Usage:     "Validate, auto-fix and rebase release chain files",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("CHAINVAL_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "Path to a rule descriptor file (JSON or YAML); built-in rules when empty",
				Sources: cli.EnvVars("CHAINVAL_RULES_FILE"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
		},
		Commands: []*cli.Command{
			validateCommand(stdout, stderr),
			rebaseCommand(stdout, stderr),
			versionsCommand(stdout, stderr),
			rulesCommand(stdout, stderr),
			historyCommand(stdout, stderr),
			serveCommand(stdout, stderr),
			mcpCommand(stdout, stderr),
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return fmt.Errorf("%v: %w", err, apperr.ErrInvalidInput)
		},
	}
}

func main() {
	err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
	}
	os.Exit(exitStatus(err))
}
