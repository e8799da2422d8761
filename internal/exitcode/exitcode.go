// Package exitcode defines exit codes for the smoke CLI.
package exitcode

const (
	// Success indicates every scenario ran and all checks passed.
	Success = 0

	// UsageError indicates bad arguments or an unknown command or scenario.
	UsageError = 1

	// ConfigError indicates an unreadable or invalid config file or value.
	ConfigError = 2

	// ScenarioFailure indicates an aborted scenario or a failed check.
	ScenarioFailure = 3
)
