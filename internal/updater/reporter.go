package updater

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/modforge/modsync/internal/manifest"
)

// Reporter receives coordinator progress. The interactive build shows it to
// the user; silent/headless runs use the no-op implementation and rely on
// logs alone.
type Reporter interface {
	Stage(name string)
	WaitingForExit(pid int32, iteration int)
	Operation(index, total int, op manifest.Operation)
	Failure(err error)
	Done(code ExitCode)
}

// NopReporter is the silent-mode reporter.
type NopReporter struct{}

func (NopReporter) Stage(string)                           {}
func (NopReporter) WaitingForExit(int32, int)              {}
func (NopReporter) Operation(int, int, manifest.Operation) {}
func (NopReporter) Failure(error)                          {}
func (NopReporter) Done(ExitCode)                          {}

// ConsoleReporter prints progress to w for interactive runs.
type ConsoleReporter struct {
	W io.Writer
}

func (r *ConsoleReporter) Stage(name string) {
	fmt.Fprintf(r.W, "==> %s\n", name)
}

func (r *ConsoleReporter) WaitingForExit(pid int32, iteration int) {
	if iteration == 1 || iteration%10 == 0 {
		fmt.Fprintf(r.W, "    waiting for process %d to exit (%ds)\n", pid, iteration)
	}
}

func (r *ConsoleReporter) Operation(index, total int, op manifest.Operation) {
	target := op.Destination
	if target == "" {
		target = op.Source
	}
	fmt.Fprintf(r.W, "    [%d/%d] %s %s\n", index, total, op.Type, target)
}

func (r *ConsoleReporter) Failure(err error) {
	fmt.Fprintf(r.W, "error: %v\n", err)
}

func (r *ConsoleReporter) Done(code ExitCode) {
	if code == Success {
		fmt.Fprintln(r.W, "update applied")
	} else {
		fmt.Fprintf(r.W, "update finished: %s\n", code)
	}
	slog.Debug("updater done", "code", int(code))
}
