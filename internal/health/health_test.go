package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modsync/internal/manifest"
)

func validLayout(t *testing.T) manifest.Layout {
	t.Helper()
	layout := manifest.NewLayout(t.TempDir())
	require.NoError(t, os.WriteFile(layout.MarkerPath(), nil, 0o644))
	require.NoError(t, os.MkdirAll(layout.StagingDir(), 0o755))
	return layout
}

func TestCheckEnvironmentHealthy(t *testing.T) {
	checker := NewChecker(validLayout(t))

	r := checker.CheckEnvironment(context.Background())
	assert.Equal(t, Healthy, r.Status, r.Message)
	assert.Equal(t, true, r.Facts["writable"])
}

func TestCheckEnvironmentMissingMarker(t *testing.T) {
	layout := manifest.NewLayout(t.TempDir())
	require.NoError(t, os.MkdirAll(layout.StagingDir(), 0o755))

	r := NewChecker(layout).CheckEnvironment(context.Background())
	assert.Equal(t, Unhealthy, r.Status)
	assert.Contains(t, r.Message, manifest.HostMarkerName)
}

func TestCheckEnvironmentMissingStaging(t *testing.T) {
	layout := manifest.NewLayout(t.TempDir())
	require.NoError(t, os.WriteFile(layout.MarkerPath(), nil, 0o644))

	r := NewChecker(layout).CheckEnvironment(context.Background())
	assert.Equal(t, Unhealthy, r.Status)
	assert.Contains(t, r.Message, "staging")
}

func TestCheckEnvironmentLowDiskDegraded(t *testing.T) {
	// an absurd floor guarantees the degraded branch without filling a disk
	checker := NewChecker(validLayout(t), WithMinFreeSpace(1<<62))

	r := checker.CheckEnvironment(context.Background())
	assert.Equal(t, Degraded, r.Status)
	assert.Contains(t, r.Message, "low disk space")
}

func TestCheckPendingUpdatesAbsentDir(t *testing.T) {
	r := CheckPendingUpdates(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, Healthy, r.Status)
	assert.Equal(t, 0, r.Facts["file_count"])
}

func TestCheckPendingUpdatesCountsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("abc"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "data.json"), []byte("{}"), 0o644))

	r := CheckPendingUpdates(context.Background(), dir)
	assert.Equal(t, Healthy, r.Status)
	assert.Equal(t, 2, r.Facts["file_count"])
}

func TestCheckPendingUpdatesSuspiciousExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.EXE"), []byte("mz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.ps1"), []byte("#"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o644))

	r := CheckPendingUpdates(context.Background(), dir)
	assert.Equal(t, Degraded, r.Status)
	assert.Equal(t, []string{"payload.EXE", "setup.ps1"}, r.Facts["suspicious_files"])
}

func TestWorst(t *testing.T) {
	assert.Equal(t, Healthy, Worst())
	assert.Equal(t, Healthy, Worst(Result{Status: Healthy}))
	assert.Equal(t, Degraded, Worst(Result{Status: Healthy}, Result{Status: Degraded}))
	assert.Equal(t, Unhealthy, Worst(Result{Status: Degraded}, Result{Status: Unhealthy}, Result{Status: Healthy}))
}

func TestRunAggregates(t *testing.T) {
	layout := validLayout(t)
	require.NoError(t, os.WriteFile(filepath.Join(layout.StagingDir(), "mod.dll"), []byte("x"), 0o644))

	status, results := NewChecker(layout).Run(context.Background())
	assert.Equal(t, Degraded, status)
	assert.Len(t, results, 2)
}
