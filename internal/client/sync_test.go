package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modsync/internal/changelog"
	"github.com/modforge/modsync/internal/db"
	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/server"
	syncSvc "github.com/modforge/modsync/internal/server/sync"
	"github.com/modforge/modsync/internal/snapshot"
)

// newTestAuthority serves a real sync API over httptest, backed by a content
// directory the test can mutate.
func newTestAuthority(t *testing.T) (*httptest.Server, *syncSvc.SyncService, string) {
	t.Helper()

	sqliteDB, err := db.NewSqliteDB(db.WithPath(":memory:"), db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteDB.Close() })

	log, err := changelog.Open(sqliteDB)
	require.NoError(t, err)

	contentDir := t.TempDir()
	svc := syncSvc.NewSyncService(contentDir, log)

	ts := httptest.NewServer(server.SetupRoutes(svc, &server.Config{}))
	t.Cleanup(ts.Close)
	return ts, svc, contentDir
}

func writeContent(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTestConfig(t *testing.T, serverURL string) *Config {
	t.Helper()
	return &Config{
		ServerURL: serverURL,
		WorkDir:   t.TempDir(),
		SyncPaths: []snapshot.SyncPath{
			{Name: "Mods", Path: "Mods", Enabled: true},
		},
	}
}

func TestRunSynchronizationPassFreshInstall(t *testing.T) {
	ts, svc, contentDir := newTestAuthority(t)
	writeContent(t, contentDir, "Mods/alpha.dll", "alpha v1")
	writeContent(t, contentDir, "Mods/sub/beta.dll", "beta v1")
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	cfg := newTestConfig(t, ts.URL)
	outcome, err := RunSynchronizationPass(context.Background(), cfg)
	require.NoError(t, err)

	// 2 files + Mods dir + Mods/sub dir
	assert.Equal(t, 4, outcome.UpdateCount)
	assert.Equal(t, 2, outcome.Staged)
	assert.Zero(t, outcome.Removed)

	layout := manifest.NewLayout(cfg.WorkDir)
	data, err := os.ReadFile(filepath.Join(layout.StagingDir(), "Mods", "alpha.dll"))
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha v1"), data)

	m, err := manifest.Load(layout.ManifestPath())
	require.NoError(t, err)
	require.NotNil(t, m.RemoteSyncData)
	assert.Equal(t, outcome.Sequence, m.RemoteSyncData.Sequence)

	// directory creations precede file copies
	require.Len(t, m.Operations, 4)
	assert.Equal(t, manifest.OpCreateDir, m.Operations[0].Type)
	assert.Equal(t, manifest.OpCreateDir, m.Operations[1].Type)
	assert.Equal(t, manifest.OpCopyFile, m.Operations[2].Type)
	assert.Equal(t, manifest.OpCopyFile, m.Operations[3].Type)

	// sync paths are never touched directly
	assert.NoDirExists(t, filepath.Join(cfg.WorkDir, "Mods"))
}

func TestRunSynchronizationPassRemovedFile(t *testing.T) {
	ts, svc, contentDir := newTestAuthority(t)
	writeContent(t, contentDir, "Mods/alpha.dll", "alpha v1")
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	cfg := newTestConfig(t, ts.URL)
	// local has an extra file the authority does not know
	writeContent(t, cfg.WorkDir, "Mods/stale.dll", "old")
	writeContent(t, cfg.WorkDir, "Mods/alpha.dll", "alpha v1")

	outcome, err := RunSynchronizationPass(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Removed)

	layout := manifest.NewLayout(cfg.WorkDir)
	removed, err := manifest.LoadRemovedFiles(layout.RemovedListPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"Mods/stale.dll"}, removed)

	// the stale file is only listed, not deleted, during the pass
	assert.FileExists(t, filepath.Join(cfg.WorkDir, "Mods", "stale.dll"))
}

func TestRunSynchronizationPassUpToDate(t *testing.T) {
	ts, svc, contentDir := newTestAuthority(t)
	writeContent(t, contentDir, "Mods/alpha.dll", "alpha v1")
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	cfg := newTestConfig(t, ts.URL)
	writeContent(t, cfg.WorkDir, "Mods/alpha.dll", "alpha v1")

	outcome, err := RunSynchronizationPass(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, outcome.UpdateCount)
	assert.True(t, outcome.Silent)

	// the sequence advances even without pending work
	layout := manifest.NewLayout(cfg.WorkDir)
	last, err := manifest.LoadLastSync(layout.LastSyncPath())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, outcome.Sequence, last.Sequence)
	assert.NoFileExists(t, layout.ManifestPath())
}

func TestRunSynchronizationPassIncremental(t *testing.T) {
	ts, svc, contentDir := newTestAuthority(t)
	writeContent(t, contentDir, "Mods/alpha.dll", "alpha v1")
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	cfg := newTestConfig(t, ts.URL)
	writeContent(t, cfg.WorkDir, "Mods/alpha.dll", "alpha v1")

	// first pass records the sequence
	_, err = RunSynchronizationPass(context.Background(), cfg)
	require.NoError(t, err)

	// authority publishes a new version
	writeContent(t, contentDir, "Mods/alpha.dll", "alpha v2!!")
	_, err = svc.Rescan(context.Background())
	require.NoError(t, err)

	outcome, err := RunSynchronizationPass(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UpdateCount)
	assert.Equal(t, 1, outcome.Staged)

	layout := manifest.NewLayout(cfg.WorkDir)
	data, err := os.ReadFile(filepath.Join(layout.StagingDir(), "Mods", "alpha.dll"))
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha v2!!"), data)
}

func TestRunSynchronizationPassSilentAndRestartFlags(t *testing.T) {
	ts, svc, contentDir := newTestAuthority(t)
	writeContent(t, contentDir, "Mods/alpha.dll", "alpha v1")
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	cfg := newTestConfig(t, ts.URL)
	cfg.SyncPaths[0].Silent = true
	cfg.SyncPaths[0].RestartRequired = true

	outcome, err := RunSynchronizationPass(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, outcome.Silent)
	assert.True(t, outcome.RestartRequired)
}

func TestScannerExcludes(t *testing.T) {
	workDir := t.TempDir()
	writeContent(t, workDir, "Mods/alpha.dll", "alpha")
	writeContent(t, workDir, "Mods/cache.tmp", "scratch")

	scanner := NewScanner(workDir, []string{"*.tmp"}, nil)
	local, err := scanner.Scan(context.Background(), []snapshot.SyncPath{
		{Name: "Mods", Path: "Mods", Enabled: true},
	})
	require.NoError(t, err)

	assert.Contains(t, local, "Mods/alpha.dll")
	assert.NotContains(t, local, "Mods/cache.tmp")
}

func TestScannerExcludeGlobs(t *testing.T) {
	workDir := t.TempDir()
	writeContent(t, workDir, "Mods/alpha.dll", "alpha")
	writeContent(t, workDir, "Mods/sub/notes.BAK", "old")

	scanner := NewScanner(workDir, nil, []string{"**/*.bak"})
	local, err := scanner.Scan(context.Background(), []snapshot.SyncPath{
		{Name: "Mods", Path: "Mods", Enabled: true},
	})
	require.NoError(t, err)

	assert.Contains(t, local, "Mods/alpha.dll")
	assert.NotContains(t, local, "Mods/sub/notes.BAK")
}

func TestDestRel(t *testing.T) {
	sp := snapshot.SyncPath{Name: "Mods", Path: "Mods"}
	assert.Equal(t, "Mods/alpha.dll", destRel(sp, "Mods/alpha.dll"))
	assert.Equal(t, "Mods", destRel(sp, "Mods"))

	relocated := snapshot.SyncPath{Name: "Saves", Path: "../SharedSaves"}
	assert.Equal(t, "../SharedSaves/slot1.sav", destRel(relocated, "Saves/slot1.sav"))
}
