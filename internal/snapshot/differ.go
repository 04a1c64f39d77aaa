package snapshot

import "sort"

// Diff classifies the files of one sync path. Directories never land in
// Added/Updated/Removed; they only ever appear in CreatedDirs, because a
// directory has no content to download - it must be created.
type Diff struct {
	// Added: present remotely, absent locally.
	Added map[string]FileRecord

	// Updated: present on both sides with differing fingerprints.
	Updated map[string]FileRecord

	// Removed: present locally, gone remotely.
	Removed []string

	// CreatedDirs: remote directories that do not exist locally yet.
	CreatedDirs []string

	// Reverted counts updated files whose remote fingerprint matches the
	// previously synced remote state, i.e. content that rolled back to a
	// value this client has already seen. Informational only; reverts are
	// still applied like any other update.
	Reverted int
}

// Compute diffs a local file map against the authoritative remote map.
// previous is the remote map from the last completed synchronization; it
// feeds the Reverted count and never suppresses a genuine local-vs-remote
// fingerprint difference.
func Compute(local, remote, previous map[string]FileRecord) *Diff {
	d := &Diff{
		Added:   make(map[string]FileRecord),
		Updated: make(map[string]FileRecord),
	}

	for path, remoteRec := range remote {
		localRec, exists := local[path]

		if remoteRec.IsDir {
			if !exists {
				d.CreatedDirs = append(d.CreatedDirs, path)
			}
			continue
		}

		if !exists {
			d.Added[path] = remoteRec
			continue
		}

		if localRec.IsDir {
			// a local directory shadows a remote file; treat as missing
			d.Added[path] = remoteRec
			continue
		}

		if localRec.Fingerprint != remoteRec.Fingerprint {
			d.Updated[path] = remoteRec
			if prevRec, ok := previous[path]; ok && prevRec.Fingerprint == remoteRec.Fingerprint {
				d.Reverted++
			}
		}
	}

	for path, localRec := range local {
		if localRec.IsDir {
			// directory removal is out of scope for file-level deletes
			continue
		}
		if _, exists := remote[path]; !exists {
			d.Removed = append(d.Removed, path)
		}
	}

	sort.Strings(d.Removed)
	sort.Strings(d.CreatedDirs)
	return d
}

// ChangeCount is the number of actions this diff implies. Directory creation
// counts as an action.
func (d *Diff) ChangeCount() int {
	return len(d.Added) + len(d.Updated) + len(d.Removed) + len(d.CreatedDirs)
}

// PathDiff pairs a sync path with its computed diff.
type PathDiff struct {
	SyncPath SyncPath
	Diff     *Diff
}

// Result aggregates the diffs of all active sync paths for one pass.
type Result struct {
	Paths []PathDiff
}

// UpdateCount sums every pending action across all sync paths, directory
// creations included.
func (r *Result) UpdateCount() int {
	total := 0
	for _, pd := range r.Paths {
		total += pd.Diff.ChangeCount()
	}
	return total
}

// IsSilent reports whether the pass may proceed without interactive
// notification: nothing changed, every touched path is marked Silent, or the
// caller runs headless.
func (r *Result) IsSilent(headless bool) bool {
	if headless {
		return true
	}
	for _, pd := range r.Paths {
		if pd.Diff.ChangeCount() == 0 {
			continue
		}
		if !pd.SyncPath.Silent {
			return false
		}
	}
	return true
}

// RestartRequired reports whether any touched path requires the host
// application to relaunch after changes are applied. Directory creations
// carry the owning path's flags the same as file changes.
func (r *Result) RestartRequired() bool {
	for _, pd := range r.Paths {
		if pd.Diff.ChangeCount() > 0 && pd.SyncPath.RestartRequired {
			return true
		}
	}
	return false
}
