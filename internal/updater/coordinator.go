package updater

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/modforge/modsync/internal/health"
	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/procmon"
	"github.com/modforge/modsync/internal/retry"
)

// Coordinator drives the deferred update:
//
//	validate environment -> check for pending updates -> wait for the host
//	process to exit -> apply the manifest -> delete removed files -> done
//
// Every failure maps to a fixed exit code. File operations run under the
// retry policy because the host may still hold locks for a moment after its
// pid disappears.
type Coordinator struct {
	layout   manifest.Layout
	monitor  *procmon.Monitor
	policy   *retry.Policy
	checker  *health.Checker
	reporter Reporter

	// manifest consumed by applyManifest, carried into finalize
	pendingManifest *manifest.Manifest
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithMonitor(m *procmon.Monitor) Option {
	return func(c *Coordinator) {
		c.monitor = m
	}
}

func WithRetryPolicy(p *retry.Policy) Option {
	return func(c *Coordinator) {
		c.policy = p
	}
}

func WithReporter(r Reporter) Option {
	return func(c *Coordinator) {
		c.reporter = r
	}
}

func WithChecker(h *health.Checker) Option {
	return func(c *Coordinator) {
		c.checker = h
	}
}

func New(workDir string, opts ...Option) *Coordinator {
	layout := manifest.NewLayout(workDir)
	c := &Coordinator{
		layout:   layout,
		monitor:  procmon.New(),
		policy:   retry.NewPolicy(),
		checker:  health.NewChecker(layout),
		reporter: NopReporter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the full update sequence against the host process pid.
func (c *Coordinator) Run(ctx context.Context, pid int32) ExitCode {
	code := c.run(ctx, pid)
	c.reporter.Done(code)
	return code
}

func (c *Coordinator) run(ctx context.Context, pid int32) ExitCode {
	c.reporter.Stage("validating environment")
	env := c.checker.CheckEnvironment(ctx)
	switch env.Status {
	case health.Unhealthy:
		err := &ValidationError{Reason: env.Message}
		slog.Error("environment validation", "error", err)
		c.reporter.Failure(err)
		return EnvironmentValidationFailed
	case health.Degraded:
		slog.Warn("environment degraded", "reason", env.Message, "facts", env.Facts)
	}

	// one updater per installation
	lock := flock.New(c.layout.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		slog.Error("updater already running or lock unavailable", "path", c.layout.LockPath(), "error", err)
		return UpdateFailed
	}
	defer lock.Unlock()

	pending, err := c.hasPendingUpdates()
	if err != nil {
		slog.Error("staging scan", "error", err)
		return UpdateFailed
	}
	if !pending {
		slog.Info("no pending updates")
		return Success
	}

	if payload := c.checker.CheckPendingUpdates(ctx); payload.Status != health.Healthy {
		slog.Warn("pending payload screening", "status", payload.Status.String(), "message", payload.Message, "facts", payload.Facts)
	}

	c.reporter.Stage("waiting for host process to exit")
	err = c.monitor.WaitForExit(ctx, pid, func(iteration int) {
		c.reporter.WaitingForExit(pid, iteration)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return UserCancelled
		}
		slog.Error("wait for host exit", "pid", pid, "error", &ProcessError{PID: pid, Err: err})
		return UpdateFailed
	}

	c.reporter.Stage("applying update manifest")
	if code := c.applyManifest(ctx); code != Success {
		return code
	}

	c.reporter.Stage("deleting removed files")
	if code := c.deleteRemovedFiles(ctx); code != Success {
		return code
	}

	if err := c.finalize(); err != nil {
		slog.Error("finalize update", "error", err)
		return UpdateFailed
	}

	return Success
}

// hasPendingUpdates reports whether the staging area holds at least one
// file.
func (c *Coordinator) hasPendingUpdates() (bool, error) {
	found := errors.New("found")
	err := filepath.WalkDir(c.layout.StagingDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return found
		}
		return nil
	})
	if errors.Is(err, found) {
		return true, nil
	}
	return false, err
}

// applyManifest executes every manifest operation in order. Copy, move,
// create-directory and delete run under the retry policy; cancellation is
// honored only at operation boundaries so a mid-write operation is never
// aborted.
func (c *Coordinator) applyManifest(ctx context.Context) ExitCode {
	m, err := manifest.Load(c.layout.ManifestPath())
	if err != nil {
		slog.Error("load manifest", "error", err)
		c.reporter.Failure(err)
		return UpdateFailed
	}

	total := len(m.Operations)
	for i, op := range m.Operations {
		if ctx.Err() != nil {
			return UserCancelled
		}
		c.reporter.Operation(i+1, total, op)

		var opErr error
		if retriable(op.Type) {
			opErr = c.policy.Execute(ctx, func() error {
				return c.applyOperation(op)
			})
		} else {
			opErr = c.applyOperation(op)
		}
		if opErr != nil {
			if errors.Is(opErr, context.Canceled) {
				return UserCancelled
			}
			slog.Error("apply operation", "type", op.Type, "destination", op.Destination, "error", opErr)
			c.reporter.Failure(opErr)
			return UpdateFailed
		}
	}

	c.pendingManifest = m
	return Success
}

func retriable(t manifest.OpType) bool {
	switch t {
	case manifest.OpCopyFile, manifest.OpMoveFile, manifest.OpCreateDir, manifest.OpDeleteFile:
		return true
	}
	return false
}

// deleteRemovedFiles replays the removed-files list. It runs after the whole
// manifest, never interleaved, so a crash mid-manifest leaves the list
// intact for an idempotent replay on the next run.
func (c *Coordinator) deleteRemovedFiles(ctx context.Context) ExitCode {
	removed, err := manifest.LoadRemovedFiles(c.layout.RemovedListPath())
	if err != nil {
		slog.Error("load removed-files list", "error", err)
		c.reporter.Failure(err)
		return UpdateFailed
	}

	for _, rel := range removed {
		if ctx.Err() != nil {
			return UserCancelled
		}

		target, err := c.targetPath(rel)
		if err != nil {
			slog.Error("removed-files entry", "path", rel, "error", err)
			c.reporter.Failure(err)
			return UpdateFailed
		}

		err = c.policy.Execute(ctx, func() error {
			return removeIfExists(target)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return UserCancelled
			}
			fileErr := &FileOpError{Op: "delete", Path: rel, Err: err}
			slog.Error("delete removed file", "path", rel, "error", fileErr)
			c.reporter.Failure(fileErr)
			return UpdateFailed
		}
	}

	if err := removeIfExists(c.layout.RemovedListPath()); err != nil {
		slog.Warn("clear removed-files list", "error", err)
	}
	return Success
}

// finalize persists the new previously-synced snapshot, archives the
// consumed manifest and empties the staging area.
func (c *Coordinator) finalize() error {
	if m := c.pendingManifest; m != nil && m.RemoteSyncData != nil {
		if err := manifest.SaveLastSync(c.layout.LastSyncPath(), m.RemoteSyncData); err != nil {
			return err
		}
	}

	if err := manifest.Archive(c.layout.ManifestPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.RemoveAll(c.layout.StagingDir()); err != nil {
		return err
	}
	return os.MkdirAll(c.layout.StagingDir(), 0o755)
}
