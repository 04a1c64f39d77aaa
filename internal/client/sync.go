package client

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/syncapi"
	"github.com/modforge/modsync/internal/utils"
)

// Outcome summarizes one synchronization pass for the caller: how much work
// was deferred to the updater and how the user should be notified.
type Outcome struct {
	UpdateCount     int
	Staged          int
	Removed         int
	Silent          bool
	RestartRequired bool
	Sequence        int64
}

// RunSynchronizationPass performs one full pass: fetch remote state, scan
// local state, diff per sync path, stage downloads and persist the deferred
// update manifest. Nothing under the sync paths is touched - applying is the
// updater's job.
func RunSynchronizationPass(ctx context.Context, cfg *Config) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layout := manifest.NewLayout(cfg.WorkDir)
	if err := utils.EnsureDir(layout.StagingDir()); err != nil {
		return nil, err
	}

	api, err := syncapi.New(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	previous := loadPreviousSync(layout)
	remote, err := fetchRemoteState(ctx, api, previous)
	if err != nil {
		return nil, fmt.Errorf("fetch remote state: %w", err)
	}

	active := snapshot.ActivePaths(cfg.SyncPaths)
	scanner := NewScanner(cfg.WorkDir, cfg.Exclude, cfg.ExcludeGlobs)
	local, err := scanner.Scan(ctx, active)
	if err != nil {
		return nil, err
	}

	var prevFiles map[string]snapshot.FileRecord
	if previous != nil {
		prevFiles = previous.Files
	}

	result := &snapshot.Result{}
	for _, sp := range active {
		prefix := sp.Label()
		diff := snapshot.Compute(
			filterByPrefix(local, prefix),
			filterByPrefix(remote.Files, prefix),
			filterByPrefix(prevFiles, prefix),
		)
		result.Paths = append(result.Paths, snapshot.PathDiff{SyncPath: sp, Diff: diff})

		if n := diff.ChangeCount(); n > 0 {
			slog.Info("sync path diff", "path", prefix,
				"added", len(diff.Added), "updated", len(diff.Updated),
				"removed", len(diff.Removed), "dirs", len(diff.CreatedDirs),
				"reverted", diff.Reverted)
		}
	}

	outcome := &Outcome{
		UpdateCount:     result.UpdateCount(),
		Silent:          result.IsSilent(cfg.Headless),
		RestartRequired: result.RestartRequired(),
		Sequence:        remote.Sequence,
	}

	if outcome.UpdateCount == 0 {
		// nothing to apply: record the new sequence directly
		if err := manifest.SaveLastSync(layout.LastSyncPath(), remote); err != nil {
			return nil, err
		}
		slog.Info("sync pass: up to date", "sequence", remote.Sequence)
		return outcome, nil
	}

	m := manifest.New()
	m.RemoteSyncData = remote

	var removedList []string
	for _, pd := range result.Paths {
		staged, removed, err := stagePathDiff(ctx, api, layout, pd, m)
		if err != nil {
			return nil, err
		}
		outcome.Staged += staged
		removedList = append(removedList, removed...)
	}

	if len(removedList) > 0 {
		sort.Strings(removedList)
		if err := manifest.SaveRemovedFiles(layout.RemovedListPath(), removedList); err != nil {
			return nil, err
		}
		outcome.Removed = len(removedList)
	}

	if err := m.Save(layout.ManifestPath()); err != nil {
		return nil, err
	}

	slog.Info("sync pass: update staged",
		"operations", len(m.Operations), "removed", len(removedList),
		"sequence", remote.Sequence, "silent", outcome.Silent,
		"restart_required", outcome.RestartRequired)
	return outcome, nil
}

// stagePathDiff downloads the added/updated files of one sync path into the
// staging area and appends the corresponding manifest operations, directory
// creations first.
func stagePathDiff(ctx context.Context, api *syncapi.Client, layout manifest.Layout, pd snapshot.PathDiff, m *manifest.Manifest) (int, []string, error) {
	sp := pd.SyncPath
	diff := pd.Diff

	for _, key := range diff.CreatedDirs {
		err := m.Add(manifest.Operation{
			Type:        manifest.OpCreateDir,
			Destination: destRel(sp, key),
		})
		if err != nil {
			return 0, nil, err
		}
	}

	keys := make([]string, 0, len(diff.Added)+len(diff.Updated))
	for key := range diff.Added {
		keys = append(keys, key)
	}
	for key := range diff.Updated {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	staged := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return staged, nil, ctx.Err()
		}

		stagingDest := filepath.Join(layout.StagingDir(), filepath.FromSlash(key))
		if err := api.Sync.DownloadFile(ctx, key, stagingDest); err != nil {
			return staged, nil, fmt.Errorf("stage %s: %w", key, err)
		}
		staged++

		err := m.Add(manifest.Operation{
			Type:        manifest.OpCopyFile,
			Source:      key,
			Destination: destRel(sp, key),
		})
		if err != nil {
			return staged, nil, err
		}
	}

	removed := make([]string, 0, len(diff.Removed))
	for _, key := range diff.Removed {
		removed = append(removed, destRel(sp, key))
	}
	return staged, removed, nil
}

// destRel maps a namespaced state key to its destination path relative to
// the installation root. The sync path's Path replaces the namespace label,
// so a path configured to live elsewhere (including `..` segments) lands
// where the user put it.
func destRel(sp snapshot.SyncPath, key string) string {
	rel := strings.TrimPrefix(key, sp.Label())
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return sp.Path
	}
	return path.Join(sp.Path, rel)
}
