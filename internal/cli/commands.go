package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"shared-tasks-backend/internal/client"
	"shared-tasks-backend/internal/exitcode"
	"shared-tasks-backend/internal/scenario"
)

var listCommand = Command{
	Name:     "list",
	Synopsis: "List available scenarios",
	Usage:    "smoke list",
	Run: func(ctx context.Context, d *Dispatcher, cfg Config, args []string, out, errOut io.Writer) int {
		for _, s := range d.scenarios.All() {
			fmt.Fprintf(out, "%-24s %s\n", s.Name, s.Synopsis)
		}
		return exitcode.Success
	},
}

var runCommand = Command{
	Name:     "run",
	Synopsis: "Run scenarios against the API",
	Usage:    "smoke run <scenario>... | all",
	Run:      runScenarios,
}

var helpCommand = Command{
	Name:     "help",
	Synopsis: "Show help",
	Usage:    "smoke help",
	Run: func(ctx context.Context, d *Dispatcher, cfg Config, args []string, out, errOut io.Writer) int {
		fmt.Fprintln(out, "Usage: smoke [flags] <command> [args]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Commands:")
		names := make([]string, 0, len(d.commands))
		for name := range d.commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := d.commands[name]
			fmt.Fprintf(out, "  %-10s %s (%s)\n", c.Name, c.Synopsis, c.Usage)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		fmt.Fprintf(out, "  -base-url string   API base URL (default %s, env SMOKE_BASE_URL)\n", client.DefaultBaseURL)
		fmt.Fprintln(out, "  -config string     YAML config file")
		fmt.Fprintln(out, "  -timeout duration  per-scenario timeout (env SMOKE_TIMEOUT)")
		fmt.Fprintln(out, "  -password string   password for created users (env SMOKE_PASSWORD)")
		fmt.Fprintln(out, "  -quiet             only print failures and the summary")
		return exitcode.Success
	},
}

var versionCommand = Command{
	Name:     "version",
	Synopsis: "Print version",
	Usage:    "smoke version",
	Run: func(ctx context.Context, d *Dispatcher, cfg Config, args []string, out, errOut io.Writer) int {
		fmt.Fprintf(out, "smoke %s\n", Version)
		return exitcode.Success
	},
}

func runScenarios(ctx context.Context, d *Dispatcher, cfg Config, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: run needs scenario names or all")
		return exitcode.UsageError
	}

	var selected []scenario.Scenario
	if len(args) == 1 && args[0] == "all" {
		selected = d.scenarios.All()
	} else {
		for _, name := range args {
			s, ok := d.scenarios.Find(name)
			if !ok {
				fmt.Fprintf(errOut, "error: unknown scenario: %s\n", name)
				return exitcode.UsageError
			}
			selected = append(selected, s)
		}
	}

	api := client.New(cfg.BaseURL, d.httpClient(cfg))
	results := make([]scenario.Result, 0, len(selected))
	for i, s := range selected {
		if i > 0 && !cfg.Quiet {
			fmt.Fprintln(out)
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		env := scenario.NewEnv(api, scenario.NewPrinter(out, cfg.Quiet), cfg.Password)
		results = append(results, scenario.Run(sctx, s, env))
		cancel()

		if ctx.Err() != nil {
			break
		}
	}

	return summarize(results, len(selected), out)
}

func summarize(results []scenario.Result, planned int, out io.Writer) int {
	fmt.Fprintln(out)
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(out, "ABORT %s: %v\n", r.Name, r.Err)
		case r.Failed() > 0:
			failed++
			fmt.Fprintf(out, "FAIL  %s (%d of %d checks failed)\n", r.Name, r.Failed(), len(r.Checks))
		default:
			fmt.Fprintf(out, "PASS  %s (%d checks)\n", r.Name, len(r.Checks))
		}
	}
	skipped := planned - len(results)
	fmt.Fprintf(out, "%d scenario(s), %d failed, %d skipped\n", planned, failed, skipped)

	if failed > 0 || skipped > 0 {
		return exitcode.ScenarioFailure
	}
	return exitcode.Success
}
