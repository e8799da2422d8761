package scenario

import (
	"fmt"
	"io"
)

type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Printer writes step output and collects checks. In quiet mode only failed
// checks and aborts are written.
type Printer struct {
	w      io.Writer
	quiet  bool
	checks []Check
}

func NewPrinter(w io.Writer, quiet bool) *Printer {
	return &Printer{w: w, quiet: quiet}
}

func (p *Printer) Title(msg string) {
	if !p.quiet {
		fmt.Fprintf(p.w, "=== %s ===\n", msg)
	}
}

// Step prints "\n<step>. <msg>". step is an int or a label such as "2b".
func (p *Printer) Step(step any, msg string) {
	if !p.quiet {
		fmt.Fprintf(p.w, "\n%v. %s\n", step, msg)
	}
}

// Info prints an indented detail line under the current step.
func (p *Printer) Info(format string, args ...any) {
	if !p.quiet {
		fmt.Fprintf(p.w, "  "+format+"\n", args...)
	}
}

// Check records an expected outcome and returns ok.
func (p *Printer) Check(name string, ok bool, detail string) bool {
	p.checks = append(p.checks, Check{Name: name, OK: ok, Detail: detail})
	switch {
	case ok && !p.quiet:
		fmt.Fprintf(p.w, "  [ok] %s\n", name)
	case !ok:
		fmt.Fprintf(p.w, "  [FAIL] %s (%s)\n", name, detail)
	}
	return ok
}

func (p *Printer) Aborted(err error) {
	fmt.Fprintf(p.w, "  [ABORT] %v\n", err)
}

func (p *Printer) Checks() []Check {
	return append([]Check(nil), p.checks...)
}
