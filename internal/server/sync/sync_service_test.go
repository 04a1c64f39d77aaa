package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modsync/internal/changelog"
	"github.com/modforge/modsync/internal/db"
)

func newTestService(t *testing.T) (*SyncService, string) {
	t.Helper()

	sqliteDB, err := db.NewSqliteDB(db.WithPath(":memory:"), db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteDB.Close() })

	log, err := changelog.Open(sqliteDB)
	require.NoError(t, err)

	dir := t.TempDir()
	return NewSyncService(dir, log), dir
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRescanRecordsAdds(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/alpha.dll", "alpha v1")
	writeFile(t, dir, "readme.txt", "hello")

	changed, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	// Mods dir + two files
	assert.Equal(t, 3, changed)

	seq, entries, err := svc.ChangesSince(0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, seq)

	byPath := map[string]changelog.Entry{}
	for _, e := range entries {
		assert.Equal(t, changelog.OpAdd, e.Op)
		byPath[e.Path] = e
	}
	assert.True(t, byPath["Mods"].IsDir)
	assert.False(t, byPath["Mods/alpha.dll"].IsDir)
	assert.NotEmpty(t, byPath["Mods/alpha.dll"].Fingerprint)
	assert.Empty(t, byPath["Mods"].Fingerprint)
}

func TestRescanRecordsModify(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/alpha.dll", "alpha v1")

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "Mods/alpha.dll", "alpha v2 with different length")
	changed, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	_, entries, err := svc.ChangesSince(2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, changelog.OpModify, entries[0].Op)
	assert.Equal(t, "Mods/alpha.dll", entries[0].Path)
}

func TestRescanRecordsDeletesDeepestFirst(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/sub/beta.dll", "beta")

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	before, _, err := svc.ChangesSince(0)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "Mods")))
	changed, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	_, entries, err := svc.ChangesSince(before)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Mods/sub/beta.dll", entries[0].Path)
	assert.Equal(t, "Mods/sub", entries[1].Path)
	assert.Equal(t, "Mods", entries[2].Path)
	for _, e := range entries {
		assert.Equal(t, changelog.OpDelete, e.Op)
	}
}

func TestRescanIsIdempotent(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/alpha.dll", "alpha v1")

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	changed, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestSnapshotMatchesState(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/alpha.dll", "alpha v1")

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	snap, err := svc.Snapshot()
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Sequence)
	assert.Len(t, snap.Files, 2)
	assert.Contains(t, snap.Files, "Mods/alpha.dll")
	assert.Contains(t, snap.Files, "Mods")
}

func TestHashesPrefixFilter(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/alpha.dll", "alpha")
	writeFile(t, dir, "Scripts/init.lua", "init")

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	files := svc.Hashes("Mods")
	assert.Len(t, files, 2) // the dir itself and the file
	assert.Contains(t, files, "Mods/alpha.dll")
	assert.NotContains(t, files, "Scripts/init.lua")

	all := svc.Hashes("")
	assert.Len(t, all, 4)
}

func TestResolveRejectsEscape(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Resolve("../outside.txt")
	assert.Error(t, err)

	_, err = svc.Resolve("")
	assert.Error(t, err)

	abs, err := svc.Resolve("Mods/alpha.dll")
	require.NoError(t, err)
	assert.Contains(t, abs, "Mods")
}

func TestFoldReplayReconstructsState(t *testing.T) {
	svc, dir := newTestService(t)
	writeFile(t, dir, "Mods/alpha.dll", "alpha v1")
	writeFile(t, dir, "readme.txt", "hello")

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	writeFile(t, dir, "Mods/alpha.dll", "alpha v2!")
	require.NoError(t, os.Remove(filepath.Join(dir, "readme.txt")))
	_, err = svc.Rescan(context.Background())
	require.NoError(t, err)

	_, entries, err := svc.ChangesSince(0)
	require.NoError(t, err)

	state := changelog.Fold(nil, entries)
	snap, err := svc.Snapshot()
	require.NoError(t, err)

	require.Len(t, state, len(snap.Files))
	for path, rec := range snap.Files {
		folded, ok := state[path]
		require.True(t, ok, path)
		assert.Equal(t, rec.Fingerprint, folded.Fingerprint, path)
		assert.Equal(t, rec.IsDir, folded.IsDir, path)
		assert.Equal(t, rec.Size, folded.Size, path)
	}
}
