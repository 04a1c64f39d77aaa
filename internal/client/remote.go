package client

import (
	"context"
	"log/slog"
	"strings"

	"github.com/modforge/modsync/internal/changelog"
	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/syncapi"
)

// fetchRemoteState returns the authority's current state. When a previously
// synced snapshot exists, only the changelog suffix after its sequence is
// fetched and folded on top; otherwise the full snapshot is downloaded.
func fetchRemoteState(ctx context.Context, api *syncapi.Client, previous *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if previous == nil {
		slog.Debug("remote state: full fetch")
		return api.Sync.Snapshot(ctx)
	}

	changes, err := api.Sync.ChangesSince(ctx, previous.Sequence)
	if err != nil {
		return nil, err
	}
	slog.Debug("remote state: incremental", "since", previous.Sequence, "entries", len(changes.Entries))

	remote := snapshot.NewSnapshot(changes.Sequence)
	remote.Files = changelog.Fold(previous.Files, changes.Entries)
	return remote, nil
}

// loadPreviousSync reads the last completed sync state, nil when this client
// has never synced.
func loadPreviousSync(layout manifest.Layout) *snapshot.Snapshot {
	previous, err := manifest.LoadLastSync(layout.LastSyncPath())
	if err != nil {
		slog.Warn("previous sync state unreadable, forcing full fetch", "error", err)
		return nil
	}
	return previous
}

// filterByPrefix keeps the records whose key equals prefix or lives below
// it.
func filterByPrefix(files map[string]snapshot.FileRecord, prefix string) map[string]snapshot.FileRecord {
	out := make(map[string]snapshot.FileRecord)
	for key, rec := range files {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			out[key] = rec
		}
	}
	return out
}
