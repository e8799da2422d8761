// Package cli implements the smoke command line: global flag parsing,
// configuration layering and dispatch to the list, run, help and version
// commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shared-tasks-backend/internal/exitcode"
	"shared-tasks-backend/internal/scenario"
)

// Version is the harness version. Set at build time.
var Version = "0.1.0"

// Command is one smoke subcommand.
type Command struct {
	Name     string
	Synopsis string
	Usage    string
	Run      func(ctx context.Context, d *Dispatcher, cfg Config, args []string, out, errOut io.Writer) int
}

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	scenarios *scenario.Registry
	getenv    func(string) string
	commands  map[string]Command
}

// NewDispatcher creates a dispatcher over the given scenarios. getenv is
// usually os.Getenv.
func NewDispatcher(scenarios *scenario.Registry, getenv func(string) string) *Dispatcher {
	d := &Dispatcher{scenarios: scenarios, getenv: getenv, commands: map[string]Command{}}
	for _, c := range []Command{listCommand, runCommand, helpCommand, versionCommand} {
		d.commands[c.Name] = c
	}
	return d
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("smoke", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		baseURL    string
		configPath string
		timeout    time.Duration
		password   string
		quiet      bool
	)
	fs.StringVar(&baseURL, "base-url", "", "")
	fs.StringVar(&configPath, "config", "", "")
	fs.DurationVar(&timeout, "timeout", 0, "")
	fs.StringVar(&password, "password", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")

	if err := fs.Parse(args); err != nil {
		errStr := err.Error()
		if name, ok := strings.CutPrefix(errStr, "flag provided but not defined: "); ok {
			fmt.Fprintf(errOut, "error: unknown flag: %s\n", name)
		} else {
			fmt.Fprintf(errOut, "error: %s\n", errStr)
		}
		return exitcode.UsageError
	}

	rest := fs.Args()
	name := "list"
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}
	cmd, ok := d.commands[name]
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", name)
		return exitcode.UsageError
	}

	cfg, err := LoadConfig(configPath, d.getenv)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.ConfigError
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = baseURL
		case "timeout":
			cfg.Timeout = timeout
		case "password":
			cfg.Password = password
		case "quiet":
			cfg.Quiet = quiet
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.ConfigError
	}

	return cmd.Run(ctx, d, cfg, rest, out, errOut)
}

func (d *Dispatcher) httpClient(cfg Config) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
