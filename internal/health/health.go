// Package health validates that a host installation is safe to update and
// screens pending update payloads before the updater touches anything.
package health

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/errgroup"

	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/utils"
)

// Status orders from best to worst; aggregation takes the worst.
type Status int

const (
	Healthy Status = iota
	Degraded
	Unhealthy
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one named check with structured facts.
type Result struct {
	Name    string         `json:"name"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Facts   map[string]any `json:"facts,omitempty"`
}

// Worst folds results into the overall status.
func Worst(results ...Result) Status {
	worst := Healthy
	for _, r := range results {
		if r.Status > worst {
			worst = r.Status
		}
	}
	return worst
}

// MinFreeSpace below which the environment is degraded.
const MinFreeSpace = 1 << 30 // 1 GiB

// suspiciousExtensions flags staged payloads that carry executable content.
var suspiciousExtensions = map[string]struct{}{
	".exe": {},
	".dll": {},
	".bat": {},
	".cmd": {},
	".ps1": {},
}

// Checker runs the environment and pending-update checks for one
// installation layout.
type Checker struct {
	layout       manifest.Layout
	minFreeSpace uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithMinFreeSpace overrides the 1 GiB free-space floor.
func WithMinFreeSpace(bytes uint64) Option {
	return func(c *Checker) {
		c.minFreeSpace = bytes
	}
}

func NewChecker(layout manifest.Layout, opts ...Option) *Checker {
	c := &Checker{layout: layout, minFreeSpace: MinFreeSpace}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckEnvironment validates the update preconditions: host marker present,
// staging directory present, enough free disk, and a successful write probe.
func (c *Checker) CheckEnvironment(ctx context.Context) Result {
	r := Result{Name: "environment", Status: Healthy, Facts: map[string]any{}}

	if !utils.FileExists(c.layout.MarkerPath()) {
		r.Status = Unhealthy
		r.Message = fmt.Sprintf("host marker %s not found", manifest.HostMarkerName)
		return r
	}

	if !utils.DirExists(c.layout.StagingDir()) {
		r.Status = Unhealthy
		r.Message = "staging directory not found"
		return r
	}

	if usage, err := disk.UsageWithContext(ctx, c.layout.Root); err == nil {
		r.Facts["free_space"] = humanize.IBytes(usage.Free)
		r.Facts["free_bytes"] = usage.Free
		if usage.Free < c.minFreeSpace {
			r.Status = Degraded
			r.Message = fmt.Sprintf("low disk space: %s free", humanize.IBytes(usage.Free))
		}
	}

	if err := c.probeWrite(); err != nil {
		r.Status = Unhealthy
		r.Message = fmt.Sprintf("data directory not writable: %v", err)
		r.Facts["writable"] = false
		return r
	}
	r.Facts["writable"] = true

	return r
}

// probeWrite creates and deletes a temp file in the data directory. Cleanup
// is best-effort.
func (c *Checker) probeWrite() error {
	probe, err := os.CreateTemp(c.layout.DataDir(), ".write-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_, writeErr := probe.WriteString("probe")
	closeErr := probe.Close()
	os.Remove(name)

	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// CheckPendingUpdates screens the staging directory. An absent or empty
// directory is healthy with a zero count. Staged files with executable
// extensions degrade the result and are reported by name.
func (c *Checker) CheckPendingUpdates(ctx context.Context) Result {
	return CheckPendingUpdates(ctx, c.layout.StagingDir())
}

// CheckPendingUpdates screens an arbitrary staged-payload directory.
func CheckPendingUpdates(ctx context.Context, dir string) Result {
	r := Result{Name: "pending_updates", Status: Healthy, Facts: map[string]any{}}

	var count int
	var totalSize int64
	var suspicious []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		count++
		if info, err := d.Info(); err == nil {
			totalSize += info.Size()
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := suspiciousExtensions[ext]; ok {
			suspicious = append(suspicious, d.Name())
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			r.Facts["file_count"] = 0
			return r
		}
		r.Status = Unhealthy
		r.Message = fmt.Sprintf("cannot read staging directory: %v", err)
		return r
	}

	r.Facts["file_count"] = count
	r.Facts["total_size"] = humanize.IBytes(uint64(totalSize))

	if len(suspicious) > 0 {
		sort.Strings(suspicious)
		r.Status = Degraded
		r.Message = "staged payload contains executable content"
		r.Facts["suspicious_files"] = suspicious
	}

	return r
}

// Run executes all checks concurrently - they touch disjoint resources -
// and returns the worst status with every individual result.
func (c *Checker) Run(ctx context.Context) (Status, []Result) {
	results := make([]Result, 2)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results[0] = c.CheckEnvironment(ctx)
		return nil
	})
	g.Go(func() error {
		results[1] = c.CheckPendingUpdates(ctx)
		return nil
	})
	g.Wait()

	return Worst(results...), results
}
