// Package procmon answers "is this process still running" and waits for a
// process to exit.
//
// The updater cannot touch files until the host application has let go of
// them, so its whole schedule hangs off WaitForExit.
package procmon

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const DefaultPollInterval = time.Second

// Monitor polls the OS process table.
type Monitor struct {
	interval time.Duration
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPollInterval overrides the 1s poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

func New(opts ...Option) *Monitor {
	m := &Monitor{interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	return m
}

// IsAlive reports whether pid refers to a live process. Invalid, negative
// and not-found pids are simply not alive; this never returns an error.
func (m *Monitor) IsAlive(pid int32) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(pid)
	return err == nil && exists
}

// WaitForExit blocks until pid is no longer alive, polling at the configured
// interval. onPoll, when non-nil, receives the 1-based iteration count on
// every poll, for progress reporting. Cancellation returns ctx's error,
// which callers must treat as a distinct outcome from normal completion.
//
// A pid that is already dead (or never existed) completes immediately.
func (m *Monitor) WaitForExit(ctx context.Context, pid int32, onPoll func(iteration int)) error {
	for iteration := 1; ; iteration++ {
		if !m.IsAlive(pid) {
			return nil
		}
		if onPoll != nil {
			onPoll(iteration)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.interval):
		}
	}
}
