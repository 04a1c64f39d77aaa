package changelog

import "github.com/modforge/modsync/internal/snapshot"

// Fold applies entries in sequence order on top of base and returns the
// resulting state. base is not mutated. Replaying the full log from an empty
// base reconstructs the authority's current tree; folding a suffix onto a
// previously synced snapshot brings it up to date without a full fetch.
func Fold(base map[string]snapshot.FileRecord, entries []Entry) map[string]snapshot.FileRecord {
	state := make(map[string]snapshot.FileRecord, len(base)+len(entries))
	for path, rec := range base {
		state[path] = rec
	}

	for _, e := range entries {
		switch e.Op {
		case OpDelete:
			delete(state, e.Path)
		case OpAdd, OpModify:
			state[e.Path] = snapshot.FileRecord{
				Fingerprint:  e.Fingerprint,
				IsDir:        e.IsDir,
				Size:         e.Size,
				LastModified: e.LastModified,
			}
		}
	}
	return state
}
